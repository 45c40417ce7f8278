package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository"
)

const sessionColumns = `id, user_id, refresh_token_hash, host, user_agent, ip_address, expires_at, created_at`

type sessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES (:id, :user_id, :refresh_token_hash, :host, :user_agent, :ip_address, :expires_at, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, session)
	return wrap(err, "failed to create session")
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	var session domain.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, wrap(err, "failed to get session by id")
	}
	return &session, nil
}

// GetByToken ignores expired sessions
func (r *sessionRepository) GetByToken(ctx context.Context, tokenHash string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE refresh_token_hash = $1 AND expires_at > $2`

	var session domain.Session
	if err := r.db.GetContext(ctx, &session, query, tokenHash, time.Now()); err != nil {
		return nil, wrap(err, "failed to get session by token")
	}
	return &session, nil
}

func (r *sessionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY created_at DESC`

	sessions := []*domain.Session{}
	if err := r.db.SelectContext(ctx, &sessions, query, userID, time.Now()); err != nil {
		return nil, wrap(err, "failed to get sessions by user id")
	}
	return sessions, nil
}

// Update rotates the refresh token of a session
func (r *sessionRepository) Update(ctx context.Context, session *domain.Session) error {
	query := `
		UPDATE sessions
		SET refresh_token_hash = :refresh_token_hash,
			user_agent = :user_agent,
			ip_address = :ip_address,
			expires_at = :expires_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, session)
	if err != nil {
		return wrap(err, "failed to update session")
	}
	return expectRows(result, "session not found")
}

func (r *sessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return wrap(err, "failed to delete session")
	}
	return expectRows(result, "session not found")
}

func (r *sessionRepository) DeleteByToken(ctx context.Context, tokenHash string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE refresh_token_hash = $1`, tokenHash)
	if err != nil {
		return wrap(err, "failed to delete session by token")
	}
	return expectRows(result, "session not found")
}

// DeleteByUserID is idempotent; deleting zero sessions is not an error
func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return wrap(err, "failed to delete user sessions")
}

func (r *sessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, time.Now())
	if err != nil {
		return 0, wrap(err, "failed to delete expired sessions")
	}
	return result.RowsAffected()
}
