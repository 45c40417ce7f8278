package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/handler/middleware"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/service"
)

type SessionHandler struct {
	sessions *service.SessionService
}

func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
	}
}

// GetMySessions lists the caller's sessions with parsed device details
// GET /api/v1/users/me/sessions
func (h *SessionHandler) GetMySessions(c *fiber.Ctx) error {
	u := middleware.User(c)
	current := middleware.Claims(c).SessionID

	views, err := h.sessions.List(c.UserContext(), u.ID, current)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{
		"sessions": views,
		"count":    len(views),
	})
}

// DeleteSession ends one of the caller's sessions
// DELETE /api/v1/users/me/sessions/:id
func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.sessions.Revoke(c.UserContext(), middleware.User(c).ID, id); err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "session closed",
	})
}
