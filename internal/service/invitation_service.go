package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/policy"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/tenancy"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/email"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/hash"
)

const invitationTokenBytes = 32

type CreateInvitationRequest struct {
	Kind      domain.InvitationKind `json:"kind" validate:"required,oneof=staff company_owner company_user"`
	Email     string                `json:"email" validate:"required,email"`
	Role      domain.Role           `json:"role" validate:"omitempty"`
	CompanyID *uuid.UUID            `json:"company_id,omitempty"`
}

type AcceptInvitationRequest struct {
	Token     string `json:"token" validate:"required"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

// IssuedInvitation carries the plain token; it is never retrievable again
type IssuedInvitation struct {
	Invitation *domain.Invitation `json:"invitation"`
	Token      string             `json:"token"`
	AcceptURL  string             `json:"accept_url"`
}

// InvitationPreview is what an anonymous holder of the token may see
type InvitationPreview struct {
	Kind        domain.InvitationKind `json:"kind"`
	Email       string                `json:"email"`
	Role        domain.Role           `json:"role"`
	CompanyName string                `json:"company_name,omitempty"`
	AcceptURL   string                `json:"accept_url"`
	ExpiresAt   time.Time             `json:"expires_at"`
}

type InvitationService struct {
	invitationRepo repository.InvitationRepository
	userRepo       repository.UserRepository
	companyRepo    repository.CompanyRepository
	guard          *Guard
	urls           *tenancy.URLBuilder
	hasher         *hash.Hasher
	email          email.EmailService
	ttl            time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

func NewInvitationService(
	invitationRepo repository.InvitationRepository,
	userRepo repository.UserRepository,
	companyRepo repository.CompanyRepository,
	guard *Guard,
	urls *tenancy.URLBuilder,
	hasher *hash.Hasher,
	emailService email.EmailService,
	ttl time.Duration,
	logger *zap.Logger,
) *InvitationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &InvitationService{
		invitationRepo: invitationRepo,
		userRepo:       userRepo,
		companyRepo:    companyRepo,
		guard:          guard,
		urls:           urls,
		hasher:         hasher,
		email:          emailService,
		ttl:            ttl,
		logger:         logger,
		now:            time.Now,
	}
}

// Create issues an invitation of the requested kind from the actor's portal:
// staff from the staff root, company owners from the admin root and company
// users from the company's own host.
func (s *InvitationService) Create(ctx context.Context, actor Actor, req CreateInvitationRequest) (*IssuedInvitation, error) {
	company, role, err := s.authorizeCreate(ctx, actor, &req)
	if err != nil {
		return nil, err
	}

	addr := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.userRepo.GetByEmail(ctx, addr); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	token, tokenHash, err := newInvitationToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	inv := &domain.Invitation{
		ID:        uuid.New(),
		Kind:      req.Kind,
		Email:     addr,
		Role:      role,
		TokenHash: tokenHash,
		InvitedBy: actor.User.ID,
		Status:    domain.InvitationStatusActive,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if company != nil {
		inv.CompanyID = &company.ID
	}
	if err := s.invitationRepo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	issued := &IssuedInvitation{
		Invitation: inv,
		Token:      token,
		AcceptURL:  s.urls.InvitationURL(inv.Kind, company, token),
	}

	msg := email.InvitationMessage{
		Kind:        string(inv.Kind),
		Role:        string(inv.Role),
		InviterName: actor.User.FullName(),
		AcceptURL:   issued.AcceptURL,
		ExpiresAt:   inv.ExpiresAt,
	}
	if company != nil {
		msg.CompanyName = company.Name
	}
	if err := s.email.SendInvitationEmail(ctx, inv.Email, msg); err != nil {
		// the link is still returned to the inviter
		s.logger.Warn("failed to send invitation email", zap.String("invitation_id", inv.ID.String()), zap.Error(err))
	}

	s.logger.Info("invitation created",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("kind", string(inv.Kind)),
		zap.String("by", actor.User.ID.String()),
	)
	return issued, nil
}

func (s *InvitationService) authorizeCreate(ctx context.Context, actor Actor, req *CreateInvitationRequest) (*domain.Company, domain.Role, error) {
	rc := actor.Context

	switch req.Kind {
	case domain.InvitationKindStaff:
		if !rc.IsStaffRoot() {
			return nil, "", ErrForbidden
		}
		if err := s.guard.Require(actor, policy.StaffInvite); err != nil {
			return nil, "", err
		}
		role := req.Role
		if role == "" {
			role = domain.RoleStaffMember
		}
		if !role.IsInternal() || role == domain.RoleProductOwner {
			return nil, "", ErrInvalidRole
		}
		return nil, role, nil

	case domain.InvitationKindCompanyOwner:
		if !rc.IsAdminRoot() {
			return nil, "", ErrForbidden
		}
		if err := s.guard.Require(actor, policy.CompanyOwnerInvite); err != nil {
			return nil, "", err
		}
		if req.CompanyID == nil {
			return nil, "", ErrCompanyRequired
		}
		company, err := s.companyRepo.GetByID(ctx, *req.CompanyID)
		if err != nil {
			return nil, "", notFound(err)
		}
		return company, domain.RoleCompanyOwner, nil

	case domain.InvitationKindCompanyUser:
		if !rc.IsTenant() || rc.Company == nil {
			return nil, "", ErrForbidden
		}
		if err := s.guard.Require(actor, policy.CompanyUserInvite); err != nil {
			return nil, "", err
		}
		if req.CompanyID != nil && *req.CompanyID != rc.Company.ID {
			return nil, "", ErrForbidden
		}
		role := req.Role
		if role == "" {
			role = domain.RoleCompanyMember
		}
		if role != domain.RoleCompanyAdmin && role != domain.RoleCompanyMember {
			return nil, "", ErrInvalidRole
		}
		return rc.Company, role, nil
	}

	return nil, "", ErrInvalidRole
}

// Preview describes a live invitation to whoever holds its token
func (s *InvitationService) Preview(ctx context.Context, token string) (*InvitationPreview, error) {
	inv, company, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	p := &InvitationPreview{
		Kind:      inv.Kind,
		Email:     inv.Email,
		Role:      inv.Role,
		AcceptURL: s.urls.InvitationURL(inv.Kind, company, token),
		ExpiresAt: inv.ExpiresAt,
	}
	if company != nil {
		p.CompanyName = company.Name
	}
	return p, nil
}

// Accept turns an invitation into a principal. It must happen on the host
// the invitation belongs to.
func (s *InvitationService) Accept(ctx context.Context, rc tenancy.ResolvedContext, req AcceptInvitationRequest) (*domain.User, error) {
	if rc.IsInvalid() {
		return nil, rc.Err()
	}

	inv, company, err := s.lookup(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	if !acceptableOn(inv, company, rc) {
		return nil, &AccessError{
			Err:             tenancy.ErrAccessDenied,
			AllowedLoginURL: s.urls.InvitationURL(inv.Kind, company, req.Token),
		}
	}
	if company != nil && company.Status != domain.StatusActive {
		return nil, tenancy.ErrTenantBlocked
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        inv.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         inv.Role,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if inv.Kind == domain.InvitationKindStaff {
		user.IsInternalStaff = true
	} else {
		user.CompanyID = &company.ID
		user.Subdomain = &company.Subdomain
		user.CompanyName = &company.Name
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	inv.Status = domain.InvitationStatusAccepted
	inv.AcceptedAt = &now
	inv.UpdatedAt = now
	if err := s.invitationRepo.Update(ctx, inv); err != nil {
		return nil, err
	}

	if err := s.email.SendWelcomeEmail(ctx, user.Email, user.FullName(), s.urls.LoginURL(user)); err != nil {
		s.logger.Warn("failed to send welcome email", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	s.logger.Info("invitation accepted",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("user_id", user.ID.String()),
	)
	return user, nil
}

// List shows the invitations the actor may manage from the current portal
func (s *InvitationService) List(ctx context.Context, actor Actor, limit, offset int) ([]*domain.Invitation, int, error) {
	filter, err := s.scope(actor)
	if err != nil {
		return nil, 0, err
	}
	return s.invitationRepo.List(ctx, filter, limit, offset)
}

// Revoke cancels an active invitation within the actor's scope
func (s *InvitationService) Revoke(ctx context.Context, actor Actor, id uuid.UUID) error {
	filter, err := s.scope(actor)
	if err != nil {
		return err
	}

	inv, err := s.invitationRepo.GetByID(ctx, id)
	if err != nil {
		return notFound(err)
	}
	if !filter.Matches(inv) {
		return ErrNotFound
	}
	if inv.Status != domain.InvitationStatusActive {
		return ErrInvitationInactive
	}

	inv.Status = domain.InvitationStatusRevoked
	inv.UpdatedAt = s.now()
	return s.invitationRepo.Update(ctx, inv)
}

// scope maps the actor's portal to the invitations it manages
func (s *InvitationService) scope(actor Actor) (repository.InvitationFilter, error) {
	rc := actor.Context
	var (
		kind   domain.InvitationKind
		action policy.Action
		filter repository.InvitationFilter
	)

	switch {
	case rc.IsStaffRoot():
		kind, action = domain.InvitationKindStaff, policy.StaffInvite
	case rc.IsAdminRoot():
		kind, action = domain.InvitationKindCompanyOwner, policy.CompanyOwnerInvite
	case rc.IsTenant() && rc.Company != nil:
		kind, action = domain.InvitationKindCompanyUser, policy.CompanyUserInvite
		id := rc.Company.ID
		filter.CompanyID = &id
	default:
		return filter, ErrForbidden
	}

	if err := s.guard.Require(actor, action); err != nil {
		return filter, err
	}
	filter.Kind = &kind
	return filter, nil
}

// lookup finds a live invitation by its plain token, expiring it when its
// time has passed, and loads its company when it has one.
func (s *InvitationService) lookup(ctx context.Context, token string) (*domain.Invitation, *domain.Company, error) {
	if token == "" {
		return nil, nil, ErrInvitationInvalid
	}

	inv, err := s.invitationRepo.GetByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvitationInvalid
		}
		return nil, nil, err
	}

	now := s.now()
	if !inv.IsValid(now) {
		if inv.Status == domain.InvitationStatusActive {
			inv.Status = domain.InvitationStatusExpired
			inv.UpdatedAt = now
			_ = s.invitationRepo.Update(ctx, inv)
		}
		return nil, nil, ErrInvitationInvalid
	}

	if inv.CompanyID == nil {
		return inv, nil, nil
	}
	company, err := s.companyRepo.GetByID(ctx, *inv.CompanyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvitationInvalid
		}
		return nil, nil, err
	}
	return inv, company, nil
}

func acceptableOn(inv *domain.Invitation, company *domain.Company, rc tenancy.ResolvedContext) bool {
	if inv.Kind == domain.InvitationKindStaff {
		return rc.IsStaffRoot()
	}
	return company != nil && rc.IsTenant() && rc.Subdomain == company.Subdomain
}

// newInvitationToken returns a URL-safe random token and its SHA-256 hex digest
func newInvitationToken() (string, string, error) {
	b := make([]byte, invitationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	return token, hashToken(token), nil
}
