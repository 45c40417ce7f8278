package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/config"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/tenancy"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/email"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/hash"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/jwt"
)

type AuthService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	sessions    *SessionService
	tokens      *jwt.TokenService
	blacklist   TokenBlacklist
	verifier    *tenancy.Verifier
	hasher      *hash.Hasher
	email       email.EmailService
	cfg         config.AuthConfig
	logger      *zap.Logger
	now         func() time.Time
}

type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
}

// ClientInfo describes where a request came from; it is stored on the session
type ClientInfo struct {
	Host      string
	UserAgent string
	IPAddress string
}

type LoginResponse struct {
	Tokens *domain.TokenPair `json:"tokens"`
	User   *UserDTO          `json:"user"`
	Portal tenancy.Portal    `json:"portal"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	sessions *SessionService,
	tokens *jwt.TokenService,
	blacklist TokenBlacklist,
	verifier *tenancy.Verifier,
	hasher *hash.Hasher,
	emailService email.EmailService,
	cfg config.AuthConfig,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		sessions:    sessions,
		tokens:      tokens,
		blacklist:   blacklist,
		verifier:    verifier,
		hasher:      hasher,
		email:       emailService,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Login authenticates on the host described by rc. Credentials are checked
// before the portal so a refusal never reveals which accounts exist.
func (s *AuthService) Login(ctx context.Context, rc tenancy.ResolvedContext, req LoginRequest, client ClientInfo) (*LoginResponse, error) {
	if rc.IsInvalid() {
		return nil, rc.Err()
	}

	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	if user.IsLocked(now) {
		return nil, ErrAccountLocked
	}
	// lock period over: start counting again
	if user.LockedUntil != nil {
		if err := s.userRepo.ResetFailedLogins(ctx, user.ID); err != nil {
			return nil, err
		}
		user.FailedLogins = 0
		user.LockedUntil = nil
	}

	valid, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash is unreadable", zap.String("user_id", user.ID.String()), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if !valid {
		if err := s.handleFailedLogin(ctx, user, now); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.checkAccess(ctx, user, rc); err != nil {
		return nil, err
	}

	if user.FailedLogins > 0 {
		if err := s.userRepo.ResetFailedLogins(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	s.upgradeHash(ctx, user, req.Password)

	tokens, err := s.openSession(ctx, user, rc, client)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	s.logger.Info("login",
		zap.String("user_id", user.ID.String()),
		zap.String("portal", string(rc.Portal)),
		zap.String("host", client.Host),
	)

	return &LoginResponse{Tokens: tokens, User: NewUserDTO(user), Portal: rc.Portal}, nil
}

// Refresh rotates the refresh token of a live session after re-checking the
// principal against the current host.
func (s *AuthService) Refresh(ctx context.Context, rc tenancy.ResolvedContext, refreshToken string) (*domain.TokenPair, error) {
	if rc.IsInvalid() {
		return nil, rc.Err()
	}

	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil || claims.SessionID == nil {
		return nil, ErrInvalidToken
	}

	session, err := s.sessionRepo.GetByToken(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if session.ID != *claims.SessionID || session.UserID != claims.UserID {
		return nil, ErrInvalidToken
	}

	now := s.now()
	if now.After(session.ExpiresAt) {
		_ = s.sessionRepo.Delete(ctx, session.ID)
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if err := s.checkAccess(ctx, user, rc); err != nil {
		return nil, err
	}
	// a refresh token only renews tokens for the portal it was issued on
	if claims.Portal != string(rc.Portal) {
		return nil, ErrInvalidToken
	}

	tokens, err := s.tokens.GenerateTokenPair(user, string(rc.Portal), session.ID)
	if err != nil {
		return nil, err
	}

	session.RefreshTokenHash = hashToken(tokens.RefreshToken)
	session.ExpiresAt = now.Add(s.tokens.RefreshExpiry())
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, err
	}

	return tokens, nil
}

// Logout blacklists the presented access token and ends its session
func (s *AuthService) Logout(ctx context.Context, claims *domain.Claims) error {
	if claims.ID != "" && claims.ExpiresAt != nil {
		if err := s.blacklist.AddAccessToken(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			// the session is still removed below
			s.logger.Warn("failed to blacklist access token", zap.Error(err))
		}
	}

	if claims.SessionID != nil {
		if err := s.sessionRepo.Delete(ctx, *claims.SessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return nil
}

// ChangePassword replaces the password and logs the user out everywhere
func (s *AuthService) ChangePassword(ctx context.Context, user *domain.User, req ChangePasswordRequest) error {
	valid, err := s.hasher.Verify(req.CurrentPassword, user.PasswordHash)
	if err != nil || !valid {
		return ErrInvalidCredentials
	}

	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = newHash
	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	if err := s.sessions.InvalidateUser(ctx, user.ID); err != nil {
		return err
	}

	if err := s.email.SendPasswordChangedEmail(ctx, user.Email, user.FullName()); err != nil {
		s.logger.Warn("failed to send password changed email", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	return nil
}

// checkAccess runs the tenancy verifier. A blocked principal or company
// also loses every session it holds.
func (s *AuthService) checkAccess(ctx context.Context, user *domain.User, rc tenancy.ResolvedContext) error {
	err := s.verifier.Check(user, rc)
	if err == nil {
		return nil
	}

	if tenancy.IsBlocked(err) {
		if ierr := s.sessions.InvalidateUser(ctx, user.ID); ierr != nil {
			s.logger.Error("failed to invalidate sessions of blocked principal",
				zap.String("user_id", user.ID.String()), zap.Error(ierr))
		}
	}
	if tenancy.IsNotFound(err) {
		return err
	}

	s.logger.Info("login refused for portal",
		zap.String("user_id", user.ID.String()),
		zap.String("context", rc.String()),
		zap.Error(err),
	)
	return &AccessError{Err: err, AllowedLoginURL: s.verifier.AllowedLoginURL(user)}
}

func (s *AuthService) handleFailedLogin(ctx context.Context, user *domain.User, now time.Time) error {
	failed, err := s.userRepo.IncrementFailedLogins(ctx, user.ID)
	if err != nil {
		return err
	}
	if s.cfg.MaxFailedLogins <= 0 || failed < s.cfg.MaxFailedLogins {
		return nil
	}

	lockUntil := now.Add(s.cfg.LockDuration)
	user.FailedLogins = failed
	user.LockedUntil = &lockUntil
	user.UpdatedAt = now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	s.logger.Warn("account locked after failed logins",
		zap.String("user_id", user.ID.String()),
		zap.Int("failed_logins", failed),
		zap.Time("locked_until", lockUntil),
	)
	return nil
}

// upgradeHash rehashes with current parameters; failure is logged only
func (s *AuthService) upgradeHash(ctx context.Context, user *domain.User, password string) {
	if !s.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		return
	}
	user.PasswordHash = newHash
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Warn("failed to upgrade password hash", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
}

func (s *AuthService) openSession(ctx context.Context, user *domain.User, rc tenancy.ResolvedContext, client ClientInfo) (*domain.TokenPair, error) {
	sessionID := uuid.New()
	tokens, err := s.tokens.GenerateTokenPair(user, string(rc.Portal), sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &domain.Session{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: hashToken(tokens.RefreshToken),
		Host:             client.Host,
		UserAgent:        optional(client.UserAgent),
		IPAddress:        optional(client.IPAddress),
		ExpiresAt:        now.Add(s.tokens.RefreshExpiry()),
		CreatedAt:        now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}
	return tokens, nil
}

// hashToken creates a SHA-256 hash of the token
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
