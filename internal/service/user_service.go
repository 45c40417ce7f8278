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
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/hash"
)

// UserDTO is the public shape of a principal
type UserDTO struct {
	ID              uuid.UUID            `json:"id"`
	Email           string               `json:"email"`
	FirstName       string               `json:"first_name"`
	LastName        string               `json:"last_name"`
	Role            domain.Role          `json:"role"`
	IsInternalStaff bool                 `json:"is_internal_staff"`
	CompanyID       *uuid.UUID           `json:"company_id,omitempty"`
	Subdomain       *string              `json:"subdomain,omitempty"`
	CompanyName     *string              `json:"company_name,omitempty"`
	Status          domain.AccountStatus `json:"status"`
	LastLoginAt     *time.Time           `json:"last_login_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

func NewUserDTO(u *domain.User) *UserDTO {
	return &UserDTO{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Role:            u.Role,
		IsInternalStaff: u.IsInternalStaff,
		CompanyID:       u.CompanyID,
		Subdomain:       u.Subdomain,
		CompanyName:     u.CompanyName,
		Status:          u.Status,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
	}
}

type CreateProductOwnerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"first_name" validate:"required,min=2"`
	LastName  string `json:"last_name" validate:"required,min=2"`
}

type SetStatusRequest struct {
	Status domain.AccountStatus `json:"status" validate:"required,oneof=active suspended blocked"`
}

type UserService struct {
	userRepo repository.UserRepository
	sessions *SessionService
	guard    *Guard
	hasher   *hash.Hasher
	logger   *zap.Logger
}

func NewUserService(userRepo repository.UserRepository, sessions *SessionService, guard *Guard, hasher *hash.Hasher, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{userRepo: userRepo, sessions: sessions, guard: guard, hasher: hasher, logger: logger}
}

// GetByID loads a principal fresh from the store
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// SetupRequired reports whether no product owner exists yet
func (s *UserService) SetupRequired(ctx context.Context) (bool, error) {
	exists, err := s.userRepo.ExistsWithRole(ctx, domain.RoleProductOwner)
	return !exists, err
}

// CreateProductOwner bootstraps the first internal principal. It works once.
func (s *UserService) CreateProductOwner(ctx context.Context, req CreateProductOwnerRequest) (*domain.User, error) {
	required, err := s.SetupRequired(ctx)
	if err != nil {
		return nil, err
	}
	if !required {
		return nil, ErrSetupCompleted
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:              uuid.New(),
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:    passwordHash,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		IsInternalStaff: true,
		Role:            domain.RoleProductOwner,
		Status:          domain.StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
		// a concurrent bootstrap won the single product owner slot
		if exists, lookupErr := s.userRepo.ExistsWithRole(ctx, domain.RoleProductOwner); lookupErr == nil && exists {
			return nil, ErrSetupCompleted
		}
		return nil, ErrEmailTaken
	}

	s.logger.Info("product owner created", zap.String("user_id", user.ID.String()))
	return user, nil
}

// List returns the principals of the actor's portal: internal staff on the
// internal roots, the company's users on a company host.
func (s *UserService) List(ctx context.Context, actor Actor, limit, offset int) ([]*domain.User, int, error) {
	switch {
	case actor.Context.IsNone() && actor.User.IsInternalStaff:
		return s.userRepo.ListStaff(ctx, limit, offset)
	case actor.Context.IsTenant() && actor.Context.Company != nil:
		return s.userRepo.ListByCompany(ctx, actor.Context.Company.ID, limit, offset)
	default:
		return nil, 0, ErrForbidden
	}
}

// Get returns a principal visible from the actor's portal
func (s *UserService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*domain.User, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inScope(actor, u) {
		return nil, ErrNotFound
	}
	return u, nil
}

// SetStatus suspends, blocks or reactivates a principal of the actor's
// portal. Leaving the active state ends every session of the target.
func (s *UserService) SetStatus(ctx context.Context, actor Actor, id uuid.UUID, req SetStatusRequest) (*domain.User, error) {
	if err := s.guard.Require(actor, policy.UsersManage); err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if id == actor.User.ID {
		return nil, ErrSelfStatusChange
	}

	target, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	// owners are only managed by their peers
	if (target.Role == domain.RoleProductOwner || target.Role == domain.RoleCompanyOwner) && actor.User.Role != target.Role {
		return nil, ErrForbidden
	}

	if target.Status == req.Status {
		return target, nil
	}

	target.Status = req.Status
	target.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, target); err != nil {
		return nil, err
	}

	if req.Status.IsBlocked() {
		if err := s.sessions.InvalidateUser(ctx, target.ID); err != nil {
			return nil, err
		}
	}

	s.logger.Info("user status changed",
		zap.String("user_id", target.ID.String()),
		zap.String("status", string(req.Status)),
		zap.String("by", actor.User.ID.String()),
	)
	return target, nil
}

// inScope reports whether u belongs to the portal the actor is acting on
func inScope(actor Actor, u *domain.User) bool {
	switch {
	case actor.Context.IsNone():
		return actor.User.IsInternalStaff && u.IsInternalStaff
	case actor.Context.IsTenant():
		c := actor.Context.Company
		return c != nil && !u.IsInternalStaff && u.CompanyID != nil && *u.CompanyID == c.ID
	default:
		return false
	}
}
