package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/handler/middleware"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/service"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/validator"
)

type UserHandler struct {
	userService *service.UserService
	guard       *service.Guard
	validator   *validator.Validator
}

func NewUserHandler(userService *service.UserService, guard *service.Guard, validator *validator.Validator) *UserHandler {
	return &UserHandler{
		userService: userService,
		guard:       guard,
		validator:   validator,
	}
}

// GetMe returns the current principal
// GET /api/v1/users/me
func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	rc := middleware.Context(c)
	return c.JSON(fiber.Map{
		"user":   service.NewUserDTO(middleware.User(c)),
		"portal": rc.Portal,
	})
}

// GetMyPermissions lists the actions the caller's role grants
// GET /api/v1/users/me/permissions
func (h *UserHandler) GetMyPermissions(c *fiber.Ctx) error {
	u := middleware.User(c)
	return c.JSON(fiber.Map{
		"role":        u.Role,
		"permissions": h.guard.Allowed(u.Role),
	})
}

// List returns the principals of the caller's portal
// GET /api/v1/users
func (h *UserHandler) List(c *fiber.Ctx) error {
	limit, offset := page(c)

	users, total, err := h.userService.List(c.UserContext(), actor(c), limit, offset)
	if err != nil {
		return handleError(c, err)
	}

	dtos := make([]*service.UserDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, service.NewUserDTO(u))
	}
	return paginated(c, "users", dtos, total, limit, offset)
}

// Get returns one principal of the caller's portal
// GET /api/v1/users/:id
func (h *UserHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	u, err := h.userService.Get(c.UserContext(), actor(c), id)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(service.NewUserDTO(u))
}

// SetStatus suspends, blocks or reactivates a principal
// POST /api/v1/users/:id/status
func (h *UserHandler) SetStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req service.SetStatusRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	u, err := h.userService.SetStatus(c.UserContext(), actor(c), id, req)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(service.NewUserDTO(u))
}
