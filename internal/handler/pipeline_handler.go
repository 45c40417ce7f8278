package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/service"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/validator"
)

// PipelineHandler serves clients and deals on the staff root
type PipelineHandler struct {
	pipeline  *service.PipelineService
	validator *validator.Validator
}

func NewPipelineHandler(pipeline *service.PipelineService, validator *validator.Validator) *PipelineHandler {
	return &PipelineHandler{
		pipeline:  pipeline,
		validator: validator,
	}
}

// POST /api/v1/clients
func (h *PipelineHandler) CreateClient(c *fiber.Ctx) error {
	var req service.ClientRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	client, err := h.pipeline.CreateClient(c.UserContext(), actor(c), req)
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(client)
}

// ListClients supports ?search= on name, email and company
// GET /api/v1/clients
func (h *PipelineHandler) ListClients(c *fiber.Ctx) error {
	limit, offset := page(c)

	clients, total, err := h.pipeline.ListClients(c.UserContext(), actor(c), c.Query("search"), limit, offset)
	if err != nil {
		return handleError(c, err)
	}
	return paginated(c, "clients", clients, total, limit, offset)
}

// GET /api/v1/clients/:id
func (h *PipelineHandler) GetClient(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	detail, err := h.pipeline.GetClient(c.UserContext(), actor(c), id)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(detail)
}

// PUT /api/v1/clients/:id
func (h *PipelineHandler) UpdateClient(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req service.ClientRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	client, err := h.pipeline.UpdateClient(c.UserContext(), actor(c), id, req)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(client)
}

// DELETE /api/v1/clients/:id
func (h *PipelineHandler) DeleteClient(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.pipeline.DeleteClient(c.UserContext(), actor(c), id); err != nil {
		return handleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// POST /api/v1/deals
func (h *PipelineHandler) CreateDeal(c *fiber.Ctx) error {
	var req service.CreateDealRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	deal, err := h.pipeline.CreateDeal(c.UserContext(), actor(c), req)
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(deal)
}

// ListDeals supports ?client_id=
// GET /api/v1/deals
func (h *PipelineHandler) ListDeals(c *fiber.Ctx) error {
	clientID, err := optionalUUID(c, "client_id")
	if err != nil {
		return err
	}

	deals, err := h.pipeline.ListDeals(c.UserContext(), actor(c), clientID)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(fiber.Map{
		"deals": deals,
		"count": len(deals),
	})
}

// Board returns one column per stage in pipeline order
// GET /api/v1/deals/board
func (h *PipelineHandler) Board(c *fiber.Ctx) error {
	columns, err := h.pipeline.Board(c.UserContext(), actor(c))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(fiber.Map{"columns": columns})
}

// GET /api/v1/deals/:id
func (h *PipelineHandler) GetDeal(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	deal, err := h.pipeline.GetDeal(c.UserContext(), actor(c), id)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(deal)
}

// PATCH /api/v1/deals/:id
func (h *PipelineHandler) UpdateDeal(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req service.UpdateDealRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	deal, err := h.pipeline.UpdateDeal(c.UserContext(), actor(c), id, req)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(deal)
}

// MoveDeal changes stage and position on the board
// POST /api/v1/deals/:id/move
func (h *PipelineHandler) MoveDeal(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req service.MoveDealRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	deal, err := h.pipeline.MoveDeal(c.UserContext(), actor(c), id, req)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(deal)
}

// DELETE /api/v1/deals/:id
func (h *PipelineHandler) DeleteDeal(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.pipeline.DeleteDeal(c.UserContext(), actor(c), id); err != nil {
		return handleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
