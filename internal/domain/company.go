package domain

import (
	"time"

	"github.com/google/uuid"
)

// Company is a tenant with its own <subdomain>.crm.<domain> portal.
// Subdomain is unique and never changes after creation.
type Company struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	Name      string        `json:"name" db:"name"`
	Subdomain string        `json:"subdomain" db:"subdomain"`
	Status    AccountStatus `json:"status" db:"status"`
	CreatedBy *uuid.UUID    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}
