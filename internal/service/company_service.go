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
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/tenancy"
)

// reservedSubdomains can never be claimed by a company, on top of the
// labels the host parser itself reserves.
var reservedSubdomains = map[string]bool{
	"admin": true, "api": true, "app": true, "assets": true, "auth": true,
	"cdn": true, "dashboard": true, "dev": true, "docs": true, "help": true,
	"localhost": true, "mail": true, "metatech": true, "portal": true,
	"staging": true, "static": true, "status": true, "support": true,
	"test": true, "www": true,
}

type CreateCompanyRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=255"`
	Subdomain  string `json:"subdomain" validate:"required,subdomain"`
	OwnerEmail string `json:"owner_email,omitempty" validate:"omitempty,email"`
}

type UpdateCompanyRequest struct {
	Name string `json:"name" validate:"required,min=2,max=255"`
}

// CompanyCreated optionally carries the owner invitation issued with the company
type CompanyCreated struct {
	Company    *domain.Company   `json:"company"`
	Invitation *IssuedInvitation `json:"invitation,omitempty"`
}

type CompanyService struct {
	companyRepo repository.CompanyRepository
	invitations *InvitationService
	sessions    *SessionService
	parser      *tenancy.HostParser
	guard       *Guard
	logger      *zap.Logger
}

func NewCompanyService(
	companyRepo repository.CompanyRepository,
	invitations *InvitationService,
	sessions *SessionService,
	parser *tenancy.HostParser,
	guard *Guard,
	logger *zap.Logger,
) *CompanyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompanyService{
		companyRepo: companyRepo,
		invitations: invitations,
		sessions:    sessions,
		parser:      parser,
		guard:       guard,
		logger:      logger,
	}
}

// authorize allows company administration only on the admin root
func (s *CompanyService) authorize(actor Actor) error {
	if !actor.Context.IsAdminRoot() {
		return ErrForbidden
	}
	return s.guard.Require(actor, policy.CompaniesManage)
}

// IsReserved reports whether subdomain may never be assigned
func (s *CompanyService) IsReserved(subdomain string) bool {
	sub := strings.ToLower(subdomain)
	return reservedSubdomains[sub] || s.parser.IsReserved(sub)
}

func (s *CompanyService) Create(ctx context.Context, actor Actor, req CreateCompanyRequest) (*CompanyCreated, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}

	sub := strings.ToLower(strings.TrimSpace(req.Subdomain))
	if s.IsReserved(sub) {
		return nil, ErrSubdomainReserved
	}
	if _, err := s.companyRepo.GetBySubdomain(ctx, sub); err == nil {
		return nil, ErrSubdomainTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	createdBy := actor.User.ID
	company := &domain.Company{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(req.Name),
		Subdomain: sub,
		Status:    domain.StatusActive,
		CreatedBy: &createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.companyRepo.Create(ctx, company); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrSubdomainTaken
		}
		return nil, err
	}

	s.logger.Info("company created",
		zap.String("company_id", company.ID.String()),
		zap.String("subdomain", company.Subdomain),
		zap.String("by", actor.User.ID.String()),
	)

	out := &CompanyCreated{Company: company}
	if req.OwnerEmail == "" {
		return out, nil
	}

	issued, err := s.invitations.Create(ctx, actor, CreateInvitationRequest{
		Kind:      domain.InvitationKindCompanyOwner,
		Email:     req.OwnerEmail,
		CompanyID: &company.ID,
	})
	if err != nil {
		return nil, err
	}
	out.Invitation = issued
	return out, nil
}

func (s *CompanyService) List(ctx context.Context, actor Actor, limit, offset int) ([]*domain.Company, int, error) {
	if err := s.authorize(actor); err != nil {
		return nil, 0, err
	}
	return s.companyRepo.List(ctx, limit, offset)
}

func (s *CompanyService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Company, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	c, err := s.companyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// Rename changes the display name. The subdomain is immutable.
func (s *CompanyService) Rename(ctx context.Context, actor Actor, id uuid.UUID, req UpdateCompanyRequest) (*domain.Company, error) {
	c, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	c.Name = strings.TrimSpace(req.Name)
	c.UpdatedAt = time.Now()
	if err := s.companyRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SetStatus moves a company between active, suspended and blocked. Leaving
// the active state logs out every user of the company.
func (s *CompanyService) SetStatus(ctx context.Context, actor Actor, id uuid.UUID, req SetStatusRequest) (*domain.Company, error) {
	if !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	c, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if c.Status == req.Status {
		return c, nil
	}

	c.Status = req.Status
	c.UpdatedAt = time.Now()
	if err := s.companyRepo.Update(ctx, c); err != nil {
		return nil, err
	}

	if req.Status.IsBlocked() {
		if err := s.sessions.InvalidateCompany(ctx, c.ID); err != nil {
			s.logger.Error("company status changed but some sessions survived",
				zap.String("company_id", c.ID.String()), zap.Error(err))
			return nil, err
		}
	}

	s.logger.Info("company status changed",
		zap.String("company_id", c.ID.String()),
		zap.String("status", string(req.Status)),
		zap.String("by", actor.User.ID.String()),
	)
	return c, nil
}
