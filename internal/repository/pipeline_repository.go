package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
)

type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error)
	Update(ctx context.Context, client *domain.Client) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, search string, limit, offset int) ([]*domain.Client, int, error)
}

type DealRepository interface {
	Create(ctx context.Context, deal *domain.Deal) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Deal, error)
	Update(ctx context.Context, deal *domain.Deal) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListAll returns deals ordered by stage then position
	ListAll(ctx context.Context) ([]*domain.Deal, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*domain.Deal, error)
	// Move places the deal at position within stage, shifting siblings
	Move(ctx context.Context, id uuid.UUID, stage domain.DealStage, position int) error
	NextPosition(ctx context.Context, stage domain.DealStage) (int, error)
}
