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

const userColumns = `
	id, email, password_hash, first_name, last_name,
	is_internal_staff, role, company_id, subdomain, company_name,
	status, failed_logins, locked_until,
	created_at, updated_at, last_login_at`

type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user; emails are stored lowercase
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	query := `
		INSERT INTO users (` + userColumns + `
		) VALUES (
			:id, :email, :password_hash, :first_name, :last_name,
			:is_internal_staff, :role, :company_id, :subdomain, :company_name,
			:status, :failed_logins, :locked_until,
			:created_at, :updated_at, :last_login_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, user)
	return wrap(err, "failed to create user")
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, wrap(err, "failed to get user by id")
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, strings.TrimSpace(email)); err != nil {
		return nil, wrap(err, "failed to get user by email")
	}
	return &user, nil
}

// Update writes every mutable column; scope columns are copied as given
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users
		SET password_hash = :password_hash,
			first_name = :first_name,
			last_name = :last_name,
			role = :role,
			company_name = :company_name,
			status = :status,
			failed_logins = :failed_logins,
			locked_until = :locked_until,
			updated_at = :updated_at,
			last_login_at = :last_login_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return wrap(err, "failed to update user")
	}
	return expectRows(result, "user not found")
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET last_login_at = $1,
			updated_at = $1
		WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return wrap(err, "failed to update last login")
	}
	return expectRows(result, "user not found")
}

// IncrementFailedLogins bumps the counter atomically and returns the new value
func (r *userRepository) IncrementFailedLogins(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE users
		SET failed_logins = failed_logins + 1,
			updated_at = $1
		WHERE id = $2
		RETURNING failed_logins`

	var count int
	if err := r.db.GetContext(ctx, &count, query, time.Now(), id); err != nil {
		return 0, wrap(err, "failed to increment failed logins")
	}
	return count, nil
}

func (r *userRepository) ResetFailedLogins(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET failed_logins = 0,
			locked_until = NULL,
			updated_at = $1
		WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return wrap(err, "failed to reset failed logins")
	}
	return expectRows(result, "user not found")
}

func (r *userRepository) ListStaff(ctx context.Context, limit, offset int) ([]*domain.User, int, error) {
	return r.list(ctx, `is_internal_staff = TRUE`, nil, limit, offset)
}

func (r *userRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*domain.User, int, error) {
	return r.list(ctx, `company_id = $1`, []interface{}{companyID}, limit, offset)
}

func (r *userRepository) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*domain.User, int, error) {
	limit, offset = clampPage(limit, offset)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users WHERE `+where, args...); err != nil {
		return nil, 0, wrap(err, "failed to count users")
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY created_at ASC LIMIT $%d OFFSET $%d`,
		userColumns, where, n+1, n+2)

	users := []*domain.User{}
	if err := r.db.SelectContext(ctx, &users, query, append(args, limit, offset)...); err != nil {
		return nil, 0, wrap(err, "failed to list users")
	}
	return users, total, nil
}

func (r *userRepository) ListIDsByCompany(ctx context.Context, companyID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM users WHERE company_id = $1`, companyID); err != nil {
		return nil, wrap(err, "failed to list company user ids")
	}
	return ids, nil
}

func (r *userRepository) ExistsWithRole(ctx context.Context, role domain.Role) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE role = $1)`, role); err != nil {
		return false, wrap(err, "failed to check role existence")
	}
	return exists, nil
}
