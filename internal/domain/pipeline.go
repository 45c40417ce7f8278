package domain

import (
	"time"

	"github.com/google/uuid"
)

// Client is a prospect or customer tracked by the internal sales team
type Client struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Email       *string    `json:"email,omitempty" db:"email"`
	Phone       *string    `json:"phone,omitempty" db:"phone"`
	CompanyName *string    `json:"company_name,omitempty" db:"company_name"`
	Notes       *string    `json:"notes,omitempty" db:"notes"`
	OwnerID     *uuid.UUID `json:"owner_id,omitempty" db:"owner_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type DealStage string

const (
	DealStageLead        DealStage = "lead"
	DealStageQualified   DealStage = "qualified"
	DealStageProposal    DealStage = "proposal"
	DealStageNegotiation DealStage = "negotiation"
	DealStageWon         DealStage = "won"
	DealStageLost        DealStage = "lost"
)

// DealStages is the kanban column order
var DealStages = []DealStage{
	DealStageLead,
	DealStageQualified,
	DealStageProposal,
	DealStageNegotiation,
	DealStageWon,
	DealStageLost,
}

func (s DealStage) Valid() bool {
	for _, stage := range DealStages {
		if s == stage {
			return true
		}
	}
	return false
}

// Closed reports whether the deal left the active pipeline
func (s DealStage) Closed() bool {
	return s == DealStageWon || s == DealStageLost
}

// Deal value is kept in minor units (cents)
type Deal struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	ClientID  uuid.UUID  `json:"client_id" db:"client_id"`
	Title     string     `json:"title" db:"title"`
	Value     int64      `json:"value" db:"value"`
	Currency  string     `json:"currency" db:"currency"`
	Stage     DealStage  `json:"stage" db:"stage"`
	Position  int        `json:"position" db:"position"`
	OwnerID   *uuid.UUID `json:"owner_id,omitempty" db:"owner_id"`
	ClosedAt  *time.Time `json:"closed_at,omitempty" db:"closed_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}
