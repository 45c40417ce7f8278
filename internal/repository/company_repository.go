package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
)

type CompanyRepository interface {
	Create(ctx context.Context, company *domain.Company) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Company, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*domain.Company, error)
	Update(ctx context.Context, company *domain.Company) error
	List(ctx context.Context, limit, offset int) ([]*domain.Company, int, error)
}
