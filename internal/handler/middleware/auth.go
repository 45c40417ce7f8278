package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/service"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/tenancy"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/jwt"
)

// RevocationChecker is the read side of the token blacklist
type RevocationChecker interface {
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)
	IsUserBlacklisted(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

// PrincipalLoader loads the principal behind a token
type PrincipalLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// SessionInvalidator ends every session of a principal
type SessionInvalidator interface {
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}

// Auth validates the Bearer access token and rejects revoked ones
func Auth(tokens *jwt.TokenService, revoked RevocationChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return abort(c, fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return abort(c, fiber.StatusUnauthorized, "invalid authorization header format")
		}
		token := strings.TrimSpace(parts[1])

		claims, err := tokens.ValidateAccessToken(token)
		if err != nil {
			return abort(c, fiber.StatusUnauthorized, "invalid token")
		}

		if claims.ID != "" {
			blacklisted, err := revoked.IsBlacklisted(c.UserContext(), claims.ID)
			if err != nil {
				return abort(c, fiber.StatusInternalServerError, "failed to verify token status")
			}
			if blacklisted {
				return abort(c, fiber.StatusUnauthorized, "token has been revoked")
			}
		}

		if claims.IssuedAt != nil {
			userBlacklisted, err := revoked.IsUserBlacklisted(c.UserContext(), claims.UserID.String(), claims.IssuedAt.Time)
			if err != nil {
				return abort(c, fiber.StatusInternalServerError, "failed to verify token status")
			}
			if userBlacklisted {
				return abort(c, fiber.StatusUnauthorized, "session has been terminated")
			}
		}

		c.Locals(localsClaims, claims)
		c.Locals(localsToken, token)
		return c.Next()
	}
}

// Access loads the principal fresh from the store and runs the access
// verifier against the request's resolved context. It must run after
// TenantResolver and Auth.
//
// A blocked principal or company loses all of its sessions. A principal on
// the wrong portal is told where to sign in instead.
func Access(users PrincipalLoader, verifier *tenancy.Verifier, sessions SessionInvalidator, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		claims := Claims(c)
		if claims == nil {
			return abort(c, fiber.StatusUnauthorized, "unauthorized")
		}
		rc := Context(c)

		// tokens are scoped to the portal they were issued on
		if claims.Portal != string(rc.Portal) {
			return abort(c, fiber.StatusUnauthorized, "token was issued for another portal")
		}

		user, err := users.GetByID(c.UserContext(), claims.UserID)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return abort(c, fiber.StatusUnauthorized, "account no longer exists")
			}
			logger.Error("failed to load principal", zap.String("user_id", claims.UserID.String()), zap.Error(err))
			return abort(c, fiber.StatusInternalServerError, "failed to load account")
		}

		err = verifier.Check(user, rc)
		switch {
		case err == nil:
			c.Locals(localsUser, user)
			return c.Next()

		case tenancy.IsBlocked(err):
			if ierr := sessions.InvalidateUser(c.UserContext(), user.ID); ierr != nil {
				logger.Error("failed to invalidate sessions of blocked principal",
					zap.String("user_id", user.ID.String()), zap.Error(ierr))
			}
			logger.Warn("blocked principal rejected",
				zap.String("user_id", user.ID.String()),
				zap.String("context", rc.String()),
				zap.Error(err),
			)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
				"logout":  true,
			})

		case tenancy.IsNotFound(err):
			return abort(c, fiber.StatusNotFound, "not found")

		default:
			logger.Info("access denied",
				zap.String("user_id", user.ID.String()),
				zap.String("context", rc.String()),
			)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":             true,
				"message":           err.Error(),
				"allowed_login_url": verifier.AllowedLoginURL(user),
			})
		}
	}
}
