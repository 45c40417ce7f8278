package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/handler/middleware"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/service"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/validator"
)

type AuthHandler struct {
	authService *service.AuthService
	validator   *validator.Validator
}

func NewAuthHandler(authService *service.AuthService, validator *validator.Validator) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   validator,
	}
}

// Login authenticates against the portal addressed by the request host
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req service.LoginRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	resp, err := h.authService.Login(c.UserContext(), middleware.Context(c), req, clientInfo(c))
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshToken rotates the refresh token of the session
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	tokens, err := h.authService.Refresh(c.UserContext(), middleware.Context(c), req.RefreshToken)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(tokens)
}

// Logout revokes the presented access token and ends its session
// POST /api/v1/auth/logout (protected)
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims := middleware.Claims(c)
	if claims == nil {
		return errorResponse(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.authService.Logout(c.UserContext(), claims); err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "logged out successfully",
	})
}

// ChangePassword replaces the caller's password and ends all of its sessions
// POST /api/v1/users/me/password
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	var req service.ChangePasswordRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	if err := h.authService.ChangePassword(c.UserContext(), middleware.User(c), req); err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "password changed, please sign in again",
	})
}
