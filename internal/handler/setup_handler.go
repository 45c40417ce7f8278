package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/service"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/validator"
)

type SetupHandler struct {
	userService *service.UserService
	validator   *validator.Validator
}

func NewSetupHandler(userService *service.UserService, validator *validator.Validator) *SetupHandler {
	return &SetupHandler{
		userService: userService,
		validator:   validator,
	}
}

// Status reports whether the first product owner still has to be created
// GET /api/v1/setup/status
func (h *SetupHandler) Status(c *fiber.Ctx) error {
	required, err := h.userService.SetupRequired(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"setup_required": required})
}

// CreateProductOwner creates the first product owner.
// This endpoint only works while no product owner exists.
// POST /api/v1/setup/product-owner
func (h *SetupHandler) CreateProductOwner(c *fiber.Ctx) error {
	var req service.CreateProductOwnerRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	user, err := h.userService.CreateProductOwner(c.UserContext(), req)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "product owner created successfully",
		"user":    service.NewUserDTO(user),
	})
}
