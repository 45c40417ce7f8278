package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
)

// InvitationFilter scopes listings; nil fields match everything
type InvitationFilter struct {
	Kind      *domain.InvitationKind
	CompanyID *uuid.UUID
	Status    *domain.InvitationStatus
}

// Matches applies the filter to a single invitation
func (f InvitationFilter) Matches(inv *domain.Invitation) bool {
	if f.Kind != nil && inv.Kind != *f.Kind {
		return false
	}
	if f.Status != nil && inv.Status != *f.Status {
		return false
	}
	if f.CompanyID != nil && (inv.CompanyID == nil || *inv.CompanyID != *f.CompanyID) {
		return false
	}
	return true
}

type InvitationRepository interface {
	Create(ctx context.Context, invitation *domain.Invitation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invitation, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Invitation, error)
	Update(ctx context.Context, invitation *domain.Invitation) error
	List(ctx context.Context, filter InvitationFilter, limit, offset int) ([]*domain.Invitation, int, error)
}
