package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/policy"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository"
)

type CreateProjectRequest struct {
	Name        string     `json:"name" validate:"required,min=1,max=255"`
	Description *string    `json:"description,omitempty"`
	CompanyID   *uuid.UUID `json:"company_id,omitempty"`
}

type UpdateProjectRequest struct {
	Name        *string               `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string               `json:"description,omitempty"`
	Status      *domain.ProjectStatus `json:"status,omitempty" validate:"omitempty,oneof=active on_hold completed"`
}

type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=255"`
	Description *string    `json:"description,omitempty"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string            `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string            `json:"description,omitempty"`
	Status      *domain.TaskStatus `json:"status,omitempty" validate:"omitempty,oneof=todo in_progress done"`
	AssigneeID  *uuid.UUID         `json:"assignee_id,omitempty"`
	DueDate     *time.Time         `json:"due_date,omitempty"`
}

// onlyStatus reports whether the request changes nothing but the status
func (r UpdateTaskRequest) onlyStatus() bool {
	return r.Title == nil && r.Description == nil && r.AssigneeID == nil && r.DueDate == nil
}

// ProjectService manages projects and their tasks. Internal staff see every
// project; company principals see only their own company's.
type ProjectService struct {
	projectRepo repository.ProjectRepository
	taskRepo    repository.TaskRepository
	companyRepo repository.CompanyRepository
	userRepo    repository.UserRepository
	guard       *Guard
	logger      *zap.Logger
}

func NewProjectService(
	projectRepo repository.ProjectRepository,
	taskRepo repository.TaskRepository,
	companyRepo repository.CompanyRepository,
	userRepo repository.UserRepository,
	guard *Guard,
	logger *zap.Logger,
) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{
		projectRepo: projectRepo,
		taskRepo:    taskRepo,
		companyRepo: companyRepo,
		userRepo:    userRepo,
		guard:       guard,
		logger:      logger,
	}
}

func (s *ProjectService) CreateProject(ctx context.Context, actor Actor, req CreateProjectRequest) (*domain.Project, error) {
	if err := s.guard.Require(actor, policy.ProjectsManage); err != nil {
		return nil, err
	}

	companyID := req.CompanyID
	if actor.User.IsInternalStaff {
		if companyID != nil {
			if _, err := s.companyRepo.GetByID(ctx, *companyID); err != nil {
				return nil, notFound(err)
			}
		}
	} else {
		own := actorCompanyID(actor)
		if own == nil || (companyID != nil && *companyID != *own) {
			return nil, ErrForbidden
		}
		companyID = own
	}

	now := time.Now()
	p := &domain.Project{
		ID:          uuid.New(),
		CompanyID:   companyID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Status:      domain.ProjectStatusActive,
		CreatedBy:   actor.User.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projectRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjects lists visible projects. Internal staff may narrow by companyID.
func (s *ProjectService) ListProjects(ctx context.Context, actor Actor, companyID *uuid.UUID, limit, offset int) ([]*domain.Project, int, error) {
	if err := s.guard.Require(actor, policy.ProjectsView); err != nil {
		return nil, 0, err
	}
	if !actor.User.IsInternalStaff {
		companyID = actorCompanyID(actor)
		if companyID == nil {
			return nil, 0, ErrForbidden
		}
	}
	return s.projectRepo.List(ctx, companyID, limit, offset)
}

func (s *ProjectService) GetProject(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Project, error) {
	if err := s.guard.Require(actor, policy.ProjectsView); err != nil {
		return nil, err
	}
	return s.visibleProject(ctx, actor, id)
}

func (s *ProjectService) UpdateProject(ctx context.Context, actor Actor, id uuid.UUID, req UpdateProjectRequest) (*domain.Project, error) {
	if err := s.guard.Require(actor, policy.ProjectsManage); err != nil {
		return nil, err
	}
	p, err := s.visibleProject(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		p.Description = req.Description
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	p.UpdatedAt = time.Now()

	if err := s.projectRepo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProjectService) DeleteProject(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := s.guard.Require(actor, policy.ProjectsManage); err != nil {
		return err
	}
	if _, err := s.visibleProject(ctx, actor, id); err != nil {
		return err
	}
	return notFound(s.projectRepo.Delete(ctx, id))
}

func (s *ProjectService) CreateTask(ctx context.Context, actor Actor, projectID uuid.UUID, req CreateTaskRequest) (*domain.Task, error) {
	if err := s.guard.Require(actor, policy.TasksManage); err != nil {
		return nil, err
	}
	p, err := s.visibleProject(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, p, req.AssigneeID); err != nil {
		return nil, err
	}

	now := time.Now()
	t := &domain.Task{
		ID:          uuid.New(),
		ProjectID:   p.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      domain.TaskStatusTodo,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
		CreatedBy:   actor.User.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.taskRepo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *ProjectService) ListTasks(ctx context.Context, actor Actor, projectID uuid.UUID) ([]*domain.Task, error) {
	if err := s.guard.Require(actor, policy.ProjectsView); err != nil {
		return nil, err
	}
	if _, err := s.visibleProject(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.taskRepo.ListByProject(ctx, projectID)
}

// UpdateTask applies a full edit with tasks:manage. With only tasks:update
// an assignee may move the status of their own task.
func (s *ProjectService) UpdateTask(ctx context.Context, actor Actor, id uuid.UUID, req UpdateTaskRequest) (*domain.Task, error) {
	t, p, err := s.visibleTask(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	switch {
	case s.guard.Can(actor, policy.TasksManage):
		if err := s.checkAssignee(ctx, p, req.AssigneeID); err != nil {
			return nil, err
		}
	case s.guard.Can(actor, policy.TasksUpdate):
		own := t.AssigneeID != nil && *t.AssigneeID == actor.User.ID
		if !own || !req.onlyStatus() {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	if req.Title != nil {
		t.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		t.Description = req.Description
	}
	if req.Status != nil {
		t.Status = *req.Status
	}
	if req.AssigneeID != nil {
		t.AssigneeID = req.AssigneeID
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate
	}
	t.UpdatedAt = time.Now()

	if err := s.taskRepo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *ProjectService) DeleteTask(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := s.guard.Require(actor, policy.TasksManage); err != nil {
		return err
	}
	if _, _, err := s.visibleTask(ctx, actor, id); err != nil {
		return err
	}
	return notFound(s.taskRepo.Delete(ctx, id))
}

// visibleProject hides projects of other companies behind ErrNotFound
func (s *ProjectService) visibleProject(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Project, error) {
	p, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if actor.User.IsInternalStaff {
		return p, nil
	}
	own := actorCompanyID(actor)
	if own == nil || p.CompanyID == nil || *p.CompanyID != *own {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *ProjectService) visibleTask(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Task, *domain.Project, error) {
	t, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, notFound(err)
	}
	p, err := s.visibleProject(ctx, actor, t.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return t, p, nil
}

// checkAssignee allows internal staff on any project and company users only
// on their own company's projects.
func (s *ProjectService) checkAssignee(ctx context.Context, p *domain.Project, assigneeID *uuid.UUID) error {
	if assigneeID == nil {
		return nil
	}
	u, err := s.userRepo.GetByID(ctx, *assigneeID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidAssignee
	}
	if err != nil {
		return err
	}
	if u.Status != domain.StatusActive {
		return ErrInvalidAssignee
	}
	if u.IsInternalStaff {
		return nil
	}
	if p.CompanyID == nil || u.CompanyID == nil || *u.CompanyID != *p.CompanyID {
		return ErrInvalidAssignee
	}
	return nil
}

// actorCompanyID is the company of the host a company principal acts on
func actorCompanyID(actor Actor) *uuid.UUID {
	if actor.Context.IsTenant() && actor.Context.Company != nil {
		id := actor.Context.Company.ID
		return &id
	}
	return nil
}
