package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/service"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/validator"
)

// CompanyHandler serves company administration on the admin root
type CompanyHandler struct {
	companyService *service.CompanyService
	validator      *validator.Validator
}

func NewCompanyHandler(companyService *service.CompanyService, validator *validator.Validator) *CompanyHandler {
	return &CompanyHandler{
		companyService: companyService,
		validator:      validator,
	}
}

// Create registers a company and optionally invites its owner
// POST /api/v1/admin/companies
func (h *CompanyHandler) Create(c *fiber.Ctx) error {
	var req service.CreateCompanyRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	created, err := h.companyService.Create(c.UserContext(), actor(c), req)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// List returns companies, newest first
// GET /api/v1/admin/companies
func (h *CompanyHandler) List(c *fiber.Ctx) error {
	limit, offset := page(c)

	companies, total, err := h.companyService.List(c.UserContext(), actor(c), limit, offset)
	if err != nil {
		return handleError(c, err)
	}
	return paginated(c, "companies", companies, total, limit, offset)
}

// Get returns one company
// GET /api/v1/admin/companies/:id
func (h *CompanyHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	company, err := h.companyService.Get(c.UserContext(), actor(c), id)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(company)
}

// Update renames a company. The subdomain never changes.
// PATCH /api/v1/admin/companies/:id
func (h *CompanyHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req service.UpdateCompanyRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	company, err := h.companyService.Rename(c.UserContext(), actor(c), id, req)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(company)
}

// SetStatus suspends, blocks or reactivates a company
// POST /api/v1/admin/companies/:id/status
func (h *CompanyHandler) SetStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req service.SetStatusRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	company, err := h.companyService.SetStatus(c.UserContext(), actor(c), id, req)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(company)
}
