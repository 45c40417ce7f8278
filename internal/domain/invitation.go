package domain

import (
	"time"

	"github.com/google/uuid"
)

// InvitationKind decides which portal accepts the invitation and what kind
// of principal it creates
type InvitationKind string

const (
	InvitationKindStaff        InvitationKind = "staff"
	InvitationKindCompanyOwner InvitationKind = "company_owner"
	InvitationKindCompanyUser  InvitationKind = "company_user"
)

func (k InvitationKind) Valid() bool {
	switch k {
	case InvitationKindStaff, InvitationKindCompanyOwner, InvitationKindCompanyUser:
		return true
	}
	return false
}

type InvitationStatus string

const (
	InvitationStatusActive   InvitationStatus = "active"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusExpired  InvitationStatus = "expired"
	InvitationStatusRevoked  InvitationStatus = "revoked"
)

// Invitation is single use; only the SHA-256 of the token is stored
type Invitation struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	Kind       InvitationKind   `json:"kind" db:"kind"`
	Email      string           `json:"email" db:"email"`
	Role       Role             `json:"role" db:"role"`
	CompanyID  *uuid.UUID       `json:"company_id,omitempty" db:"company_id"`
	TokenHash  string           `json:"-" db:"token_hash"`
	InvitedBy  uuid.UUID        `json:"invited_by" db:"invited_by"`
	Status     InvitationStatus `json:"status" db:"status"`
	ExpiresAt  time.Time        `json:"expires_at" db:"expires_at"`
	AcceptedAt *time.Time       `json:"accepted_at,omitempty" db:"accepted_at"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at" db:"updated_at"`
}

// IsValid checks status and expiry at the given instant
func (i *Invitation) IsValid(now time.Time) bool {
	return i.Status == InvitationStatusActive && now.Before(i.ExpiresAt)
}
