package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository"
)

const clientColumns = `id, name, email, phone, company_name, notes, owner_id, created_at, updated_at`

type clientRepository struct {
	db *sqlx.DB
}

// NewClientRepository creates a new PostgreSQL client repository
func NewClientRepository(db *sqlx.DB) repository.ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	query := `
		INSERT INTO clients (` + clientColumns + `)
		VALUES (:id, :name, :email, :phone, :company_name, :notes, :owner_id, :created_at, :updated_at)`

	_, err := r.db.NamedExecContext(ctx, query, client)
	return wrap(err, "failed to create client")
}

func (r *clientRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	var client domain.Client
	if err := r.db.GetContext(ctx, &client, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id); err != nil {
		return nil, wrap(err, "failed to get client by id")
	}
	return &client, nil
}

func (r *clientRepository) Update(ctx context.Context, client *domain.Client) error {
	client.UpdatedAt = time.Now()

	query := `
		UPDATE clients
		SET name = :name,
			email = :email,
			phone = :phone,
			company_name = :company_name,
			notes = :notes,
			owner_id = :owner_id,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, client)
	if err != nil {
		return wrap(err, "failed to update client")
	}
	return expectRows(result, "client not found")
}

func (r *clientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return wrap(err, "failed to delete client")
	}
	return expectRows(result, "client not found")
}

// List matches search against name, email and company name, case-insensitively
func (r *clientRepository) List(ctx context.Context, search string, limit, offset int) ([]*domain.Client, int, error) {
	limit, offset = clampPage(limit, offset)

	where := ""
	args := []interface{}{}
	if search != "" {
		where = ` WHERE name ILIKE $1 OR email ILIKE $1 OR company_name ILIKE $1`
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM clients`+where, args...); err != nil {
		return nil, 0, wrap(err, "failed to count clients")
	}

	query := fmt.Sprintf(`SELECT %s FROM clients%s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		clientColumns, where, len(args)+1, len(args)+2)

	clients := []*domain.Client{}
	if err := r.db.SelectContext(ctx, &clients, query, append(args, limit, offset)...); err != nil {
		return nil, 0, wrap(err, "failed to list clients")
	}
	return clients, total, nil
}

const dealColumns = `id, client_id, title, value, currency, stage, position, owner_id, closed_at, created_at, updated_at`

type dealRepository struct {
	db *sqlx.DB
}

// NewDealRepository creates a new PostgreSQL deal repository
func NewDealRepository(db *sqlx.DB) repository.DealRepository {
	return &dealRepository{db: db}
}

func (r *dealRepository) Create(ctx context.Context, deal *domain.Deal) error {
	query := `
		INSERT INTO deals (` + dealColumns + `)
		VALUES (:id, :client_id, :title, :value, :currency, :stage, :position, :owner_id, :closed_at, :created_at, :updated_at)`

	_, err := r.db.NamedExecContext(ctx, query, deal)
	return wrap(err, "failed to create deal")
}

func (r *dealRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	var deal domain.Deal
	if err := r.db.GetContext(ctx, &deal, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id); err != nil {
		return nil, wrap(err, "failed to get deal by id")
	}
	return &deal, nil
}

// Update leaves stage and position to Move
func (r *dealRepository) Update(ctx context.Context, deal *domain.Deal) error {
	deal.UpdatedAt = time.Now()

	query := `
		UPDATE deals
		SET title = :title,
			value = :value,
			currency = :currency,
			owner_id = :owner_id,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, deal)
	if err != nil {
		return wrap(err, "failed to update deal")
	}
	return expectRows(result, "deal not found")
}

func (r *dealRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM deals WHERE id = $1`, id)
	if err != nil {
		return wrap(err, "failed to delete deal")
	}
	return expectRows(result, "deal not found")
}

func (r *dealRepository) ListAll(ctx context.Context) ([]*domain.Deal, error) {
	query := `
		SELECT ` + dealColumns + `
		FROM deals
		ORDER BY array_position(ARRAY['lead','qualified','proposal','negotiation','won','lost']::varchar[], stage), position, created_at`

	deals := []*domain.Deal{}
	if err := r.db.SelectContext(ctx, &deals, query); err != nil {
		return nil, wrap(err, "failed to list deals")
	}
	return deals, nil
}

func (r *dealRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*domain.Deal, error) {
	deals := []*domain.Deal{}
	query := `SELECT ` + dealColumns + ` FROM deals WHERE client_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &deals, query, clientID); err != nil {
		return nil, wrap(err, "failed to list client deals")
	}
	return deals, nil
}

// Move closes the gap in the source column, opens one in the target
// column and places the deal, all in one transaction.
func (r *dealRepository) Move(ctx context.Context, id uuid.UUID, stage domain.DealStage, position int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrap(err, "failed to begin deal move")
	}
	defer func() { _ = tx.Rollback() }()

	var current domain.Deal
	if err := tx.GetContext(ctx, &current, `SELECT `+dealColumns+` FROM deals WHERE id = $1 FOR UPDATE`, id); err != nil {
		return wrap(err, "failed to lock deal")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE deals SET position = position - 1 WHERE stage = $1 AND position > $2`,
		current.Stage, current.Position); err != nil {
		return wrap(err, "failed to close source gap")
	}

	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM deals WHERE stage = $1 AND id <> $2`, stage, id); err != nil {
		return wrap(err, "failed to count target column")
	}
	if position < 0 || position > count {
		position = count
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE deals SET position = position + 1 WHERE stage = $1 AND position >= $2 AND id <> $3`,
		stage, position, id); err != nil {
		return wrap(err, "failed to open target gap")
	}

	now := time.Now()
	var closedAt *time.Time
	if stage.Closed() {
		closedAt = current.ClosedAt
		if !current.Stage.Closed() || closedAt == nil {
			closedAt = &now
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE deals SET stage = $1, position = $2, closed_at = $3, updated_at = $4 WHERE id = $5`,
		stage, position, closedAt, now, id); err != nil {
		return wrap(err, "failed to move deal")
	}

	if err := tx.Commit(); err != nil {
		return wrap(err, "failed to commit deal move")
	}
	return nil
}

func (r *dealRepository) NextPosition(ctx context.Context, stage domain.DealStage) (int, error) {
	var next int
	if err := r.db.GetContext(ctx, &next, `SELECT COALESCE(MAX(position) + 1, 0) FROM deals WHERE stage = $1`, stage); err != nil {
		return 0, wrap(err, "failed to compute next position")
	}
	return next, nil
}
