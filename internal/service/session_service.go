package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	ua "github.com/mileusna/useragent"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository"
)

// invalidationWorkers bounds concurrent per-user invalidations during a company-wide logout
const invalidationWorkers = 8

// TokenBlacklist is the subset of pkg/blacklist the services need
type TokenBlacklist interface {
	AddAccessToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	BlacklistUser(ctx context.Context, userID string, ttl time.Duration) error
}

// SessionView is a session as shown to its owner
type SessionView struct {
	ID        uuid.UUID `json:"id"`
	Host      string    `json:"host"`
	Browser   string    `json:"browser,omitempty"`
	OS        string    `json:"os,omitempty"`
	Device    string    `json:"device"`
	IPAddress *string   `json:"ip_address,omitempty"`
	Current   bool      `json:"current"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionService owns session rows and forced logouts
type SessionService struct {
	sessionRepo repository.SessionRepository
	userRepo    repository.UserRepository
	blacklist   TokenBlacklist
	markTTL     time.Duration
	logger      *zap.Logger
}

// NewSessionService keeps user-wide blacklist marks for markTTL, which must
// outlive the longest access token.
func NewSessionService(
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	blacklist TokenBlacklist,
	markTTL time.Duration,
	logger *zap.Logger,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		blacklist:   blacklist,
		markTTL:     markTTL,
		logger:      logger,
	}
}

// InvalidateUser deletes every session of the user and rejects every access
// token issued so far.
func (s *SessionService) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	if err := s.blacklist.BlacklistUser(ctx, userID.String(), s.markTTL); err != nil {
		return err
	}

	s.logger.Info("sessions invalidated", zap.String("user_id", userID.String()))
	return nil
}

// InvalidateCompany forces a logout of every user of the company. Every
// user is attempted; failures are joined.
func (s *SessionService) InvalidateCompany(ctx context.Context, companyID uuid.UUID) error {
	ids, err := s.userRepo.ListIDsByCompany(ctx, companyID)
	if err != nil {
		return fmt.Errorf("list company users: %w", err)
	}

	var (
		mu   sync.Mutex
		errs error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(invalidationWorkers)
	for _, id := range ids {
		g.Go(func() error {
			if err := s.InvalidateUser(gctx, id); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("user %s: %w", id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("company sessions invalidated",
		zap.String("company_id", companyID.String()),
		zap.Int("users", len(ids)),
		zap.Int("failures", len(multierr.Errors(errs))),
	)
	return errs
}

// List returns the user's sessions, newest first as stored, marking current
func (s *SessionService) List(ctx context.Context, userID uuid.UUID, current *uuid.UUID) ([]SessionView, error) {
	sessions, err := s.sessionRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, newSessionView(sess, current))
	}
	return views, nil
}

// Revoke deletes one of the user's own sessions
func (s *SessionService) Revoke(ctx context.Context, userID, sessionID uuid.UUID) error {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return notFound(err)
	}
	// someone else's session is reported as missing
	if sess.UserID != userID {
		return ErrNotFound
	}
	if err := s.sessionRepo.Delete(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}

// Prune deletes expired sessions
func (s *SessionService) Prune(ctx context.Context) (int64, error) {
	n, err := s.sessionRepo.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return n, nil
}

func newSessionView(sess *domain.Session, current *uuid.UUID) SessionView {
	v := SessionView{
		ID:        sess.ID,
		Host:      sess.Host,
		Device:    "unknown",
		IPAddress: sess.IPAddress,
		Current:   current != nil && *current == sess.ID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	}
	if sess.UserAgent == nil || *sess.UserAgent == "" {
		return v
	}

	agent := ua.Parse(*sess.UserAgent)
	v.Browser = agent.Name
	if agent.Version != "" && agent.Name != "" {
		v.Browser = agent.Name + " " + agent.Version
	}
	v.OS = agent.OS
	switch {
	case agent.Bot:
		v.Device = "bot"
	case agent.Tablet:
		v.Device = "tablet"
	case agent.Mobile:
		v.Device = "mobile"
	case agent.Desktop:
		v.Device = "desktop"
	}
	return v
}
