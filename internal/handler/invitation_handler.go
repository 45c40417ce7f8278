package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/handler/middleware"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/service"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/validator"
)

type InvitationHandler struct {
	invitations *service.InvitationService
	validator   *validator.Validator
}

func NewInvitationHandler(invitations *service.InvitationService, validator *validator.Validator) *InvitationHandler {
	return &InvitationHandler{
		invitations: invitations,
		validator:   validator,
	}
}

// Create issues an invitation of the requested kind
// POST /api/v1/invitations
func (h *InvitationHandler) Create(c *fiber.Ctx) error {
	var req service.CreateInvitationRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	issued, err := h.invitations.Create(c.UserContext(), actor(c), req)
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(issued)
}

// Preview describes an active invitation without signing in
// GET /api/v1/invitations/:token
func (h *InvitationHandler) Preview(c *fiber.Ctx) error {
	preview, err := h.invitations.Preview(c.UserContext(), c.Params("token"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(preview)
}

// Accept creates the invited principal on the matching host
// POST /api/v1/invitations/accept
func (h *InvitationHandler) Accept(c *fiber.Ctx) error {
	var req service.AcceptInvitationRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	user, err := h.invitations.Accept(c.UserContext(), middleware.Context(c), req)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "invitation accepted",
		"user":    service.NewUserDTO(user),
	})
}

// List returns the invitations visible to the caller
// GET /api/v1/invitations
func (h *InvitationHandler) List(c *fiber.Ctx) error {
	limit, offset := page(c)

	invitations, total, err := h.invitations.List(c.UserContext(), actor(c), limit, offset)
	if err != nil {
		return handleError(c, err)
	}
	return paginated(c, "invitations", invitations, total, limit, offset)
}

// Revoke cancels an active invitation
// DELETE /api/v1/invitations/:id
func (h *InvitationHandler) Revoke(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.invitations.Revoke(c.UserContext(), actor(c), id); err != nil {
		return handleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
