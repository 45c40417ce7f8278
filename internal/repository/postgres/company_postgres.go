package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository"
)

const companyColumns = `id, name, subdomain, status, created_by, created_at, updated_at`

type companyRepository struct {
	db *sqlx.DB
}

// NewCompanyRepository creates a new PostgreSQL company repository
func NewCompanyRepository(db *sqlx.DB) repository.CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) Create(ctx context.Context, company *domain.Company) error {
	query := `
		INSERT INTO companies (` + companyColumns + `)
		VALUES (:id, :name, :subdomain, :status, :created_by, :created_at, :updated_at)`

	_, err := r.db.NamedExecContext(ctx, query, company)
	return wrap(err, "failed to create company")
}

func (r *companyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`

	var company domain.Company
	if err := r.db.GetContext(ctx, &company, query, id); err != nil {
		return nil, wrap(err, "failed to get company by id")
	}
	return &company, nil
}

// GetBySubdomain matches exactly; subdomains are stored lowercase
func (r *companyRepository) GetBySubdomain(ctx context.Context, subdomain string) (*domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE subdomain = $1`

	var company domain.Company
	if err := r.db.GetContext(ctx, &company, query, strings.ToLower(subdomain)); err != nil {
		return nil, wrap(err, "failed to get company by subdomain")
	}
	return &company, nil
}

// Update never touches the subdomain
func (r *companyRepository) Update(ctx context.Context, company *domain.Company) error {
	company.UpdatedAt = time.Now()

	query := `
		UPDATE companies
		SET name = :name,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, company)
	if err != nil {
		return wrap(err, "failed to update company")
	}
	return expectRows(result, "company not found")
}

func (r *companyRepository) List(ctx context.Context, limit, offset int) ([]*domain.Company, int, error) {
	limit, offset = clampPage(limit, offset)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM companies`); err != nil {
		return nil, 0, wrap(err, "failed to count companies")
	}

	companies := []*domain.Company{}
	query := `SELECT ` + companyColumns + ` FROM companies ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &companies, query, limit, offset); err != nil {
		return nil, 0, wrap(err, "failed to list companies")
	}

	return companies, total, nil
}
