package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository"
)

const invitationColumns = `
	id, kind, email, role, company_id, token_hash, invited_by,
	status, expires_at, accepted_at, created_at, updated_at`

type invitationRepository struct {
	db *sqlx.DB
}

// NewInvitationRepository creates a new PostgreSQL invitation repository
func NewInvitationRepository(db *sqlx.DB) repository.InvitationRepository {
	return &invitationRepository{db: db}
}

func (r *invitationRepository) Create(ctx context.Context, invitation *domain.Invitation) error {
	invitation.Email = strings.ToLower(strings.TrimSpace(invitation.Email))

	query := `
		INSERT INTO invitations (` + invitationColumns + `
		) VALUES (
			:id, :kind, :email, :role, :company_id, :token_hash, :invited_by,
			:status, :expires_at, :accepted_at, :created_at, :updated_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, invitation)
	return wrap(err, "failed to create invitation")
}

func (r *invitationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1`

	var invitation domain.Invitation
	if err := r.db.GetContext(ctx, &invitation, query, id); err != nil {
		return nil, wrap(err, "failed to get invitation by id")
	}
	return &invitation, nil
}

func (r *invitationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE token_hash = $1`

	var invitation domain.Invitation
	if err := r.db.GetContext(ctx, &invitation, query, tokenHash); err != nil {
		return nil, wrap(err, "failed to get invitation by token")
	}
	return &invitation, nil
}

// Update only moves the lifecycle fields
func (r *invitationRepository) Update(ctx context.Context, invitation *domain.Invitation) error {
	invitation.UpdatedAt = time.Now()

	query := `
		UPDATE invitations
		SET status = :status,
			accepted_at = :accepted_at,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, invitation)
	if err != nil {
		return wrap(err, "failed to update invitation")
	}
	return expectRows(result, "invitation not found")
}

func (r *invitationRepository) List(ctx context.Context, filter repository.InvitationFilter, limit, offset int) ([]*domain.Invitation, int, error) {
	limit, offset = clampPage(limit, offset)

	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Kind != nil {
		add("kind = $%d", *filter.Kind)
	}
	if filter.CompanyID != nil {
		add("company_id = $%d", *filter.CompanyID)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM invitations`+where, args...); err != nil {
		return nil, 0, wrap(err, "failed to count invitations")
	}

	query := fmt.Sprintf(`SELECT %s FROM invitations%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		invitationColumns, where, len(args)+1, len(args)+2)

	invitations := []*domain.Invitation{}
	if err := r.db.SelectContext(ctx, &invitations, query, append(args, limit, offset)...); err != nil {
		return nil, 0, wrap(err, "failed to list invitations")
	}
	return invitations, total, nil
}
