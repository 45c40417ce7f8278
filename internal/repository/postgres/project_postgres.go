package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository"
)

const projectColumns = `id, company_id, name, description, status, created_by, created_at, updated_at`

type projectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new PostgreSQL project repository
func NewProjectRepository(db *sqlx.DB) repository.ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES (:id, :company_id, :name, :description, :status, :created_by, :created_at, :updated_at)`

	_, err := r.db.NamedExecContext(ctx, query, project)
	return wrap(err, "failed to create project")
}

func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	var project domain.Project
	if err := r.db.GetContext(ctx, &project, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id); err != nil {
		return nil, wrap(err, "failed to get project by id")
	}
	return &project, nil
}

func (r *projectRepository) Update(ctx context.Context, project *domain.Project) error {
	project.UpdatedAt = time.Now()

	query := `
		UPDATE projects
		SET company_id = :company_id,
			name = :name,
			description = :description,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, project)
	if err != nil {
		return wrap(err, "failed to update project")
	}
	return expectRows(result, "project not found")
}

func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return wrap(err, "failed to delete project")
	}
	return expectRows(result, "project not found")
}

func (r *projectRepository) List(ctx context.Context, companyID *uuid.UUID, limit, offset int) ([]*domain.Project, int, error) {
	limit, offset = clampPage(limit, offset)

	var total int
	projects := []*domain.Project{}

	if companyID == nil {
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM projects`); err != nil {
			return nil, 0, wrap(err, "failed to count projects")
		}
		query := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		if err := r.db.SelectContext(ctx, &projects, query, limit, offset); err != nil {
			return nil, 0, wrap(err, "failed to list projects")
		}
		return projects, total, nil
	}

	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM projects WHERE company_id = $1`, *companyID); err != nil {
		return nil, 0, wrap(err, "failed to count company projects")
	}
	query := `SELECT ` + projectColumns + ` FROM projects WHERE company_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &projects, query, *companyID, limit, offset); err != nil {
		return nil, 0, wrap(err, "failed to list company projects")
	}
	return projects, total, nil
}

const taskColumns = `id, project_id, title, description, status, assignee_id, due_date, created_by, created_at, updated_at`

type taskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new PostgreSQL task repository
func NewTaskRepository(db *sqlx.DB) repository.TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (:id, :project_id, :title, :description, :status, :assignee_id, :due_date, :created_by, :created_at, :updated_at)`

	_, err := r.db.NamedExecContext(ctx, query, task)
	return wrap(err, "failed to create task")
}

func (r *taskRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	var task domain.Task
	if err := r.db.GetContext(ctx, &task, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id); err != nil {
		return nil, wrap(err, "failed to get task by id")
	}
	return &task, nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	task.UpdatedAt = time.Now()

	query := `
		UPDATE tasks
		SET title = :title,
			description = :description,
			status = :status,
			assignee_id = :assignee_id,
			due_date = :due_date,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, task)
	if err != nil {
		return wrap(err, "failed to update task")
	}
	return expectRows(result, "task not found")
}

func (r *taskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return wrap(err, "failed to delete task")
	}
	return expectRows(result, "task not found")
}

func (r *taskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Task, error) {
	tasks := []*domain.Task{}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &tasks, query, projectID); err != nil {
		return nil, wrap(err, "failed to list tasks")
	}
	return tasks, nil
}
