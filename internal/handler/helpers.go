package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/handler/middleware"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/service"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/tenancy"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/validator"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func errorResponse(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

// statusFor maps service errors onto HTTP status codes. Unknown errors are
// left to the app's error handler.
var statusFor = []struct {
	err    error
	status int
}{
	{service.ErrInvalidCredentials, fiber.StatusUnauthorized},
	{service.ErrInvalidToken, fiber.StatusUnauthorized},
	{service.ErrAccountLocked, fiber.StatusLocked},
	{service.ErrForbidden, fiber.StatusForbidden},
	{service.ErrNotFound, fiber.StatusNotFound},
	{service.ErrSetupCompleted, fiber.StatusConflict},
	{service.ErrEmailTaken, fiber.StatusConflict},
	{service.ErrSubdomainTaken, fiber.StatusConflict},
	{service.ErrSubdomainReserved, fiber.StatusBadRequest},
	{service.ErrInvalidRole, fiber.StatusBadRequest},
	{service.ErrCompanyRequired, fiber.StatusBadRequest},
	{service.ErrInvitationInvalid, fiber.StatusBadRequest},
	{service.ErrInvitationInactive, fiber.StatusGone},
	{service.ErrSelfStatusChange, fiber.StatusBadRequest},
	{service.ErrInvalidStatus, fiber.StatusBadRequest},
	{service.ErrInvalidStage, fiber.StatusBadRequest},
	{service.ErrInvalidAssignee, fiber.StatusBadRequest},
	{tenancy.ErrAccessDenied, fiber.StatusForbidden},
}

// handleError writes the JSON error for err
func handleError(c *fiber.Ctx, err error) error {
	var accessErr *service.AccessError
	if errors.As(err, &accessErr) {
		body := fiber.Map{
			"error":             true,
			"message":           accessErr.Error(),
			"allowed_login_url": accessErr.AllowedLoginURL,
		}
		if tenancy.IsBlocked(err) {
			body["logout"] = true
		}
		return c.Status(fiber.StatusForbidden).JSON(body)
	}

	if tenancy.IsBlocked(err) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   true,
			"message": err.Error(),
			"logout":  true,
		})
	}

	// same answer as the tenant middleware for unresolvable hosts
	if errors.Is(err, tenancy.ErrInvalidHost) || errors.Is(err, tenancy.ErrTenantNotFound) {
		return errorResponse(c, fiber.StatusNotFound, "not found")
	}

	for _, m := range statusFor {
		if errors.Is(err, m.err) {
			return errorResponse(c, m.status, m.err.Error())
		}
	}

	return err
}

// parseBody decodes and validates the request body into req
func parseBody(c *fiber.Ctx, v *validator.Validator, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := v.Validate(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// page reads limit and offset query parameters
func page(c *fiber.Ctx) (int, int) {
	limit := c.QueryInt("limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func paginated(c *fiber.Ctx, key string, items interface{}, total, limit, offset int) error {
	return c.JSON(fiber.Map{
		key:      items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func clientInfo(c *fiber.Ctx) service.ClientInfo {
	return service.ClientInfo{
		Host:      c.Hostname(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		IPAddress: c.IP(),
	}
}

func actor(c *fiber.Ctx) service.Actor {
	return middleware.Actor(c)
}

func optionalUUID(c *fiber.Ctx, key string) (*uuid.UUID, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+key)
	}
	return &id, nil
}
