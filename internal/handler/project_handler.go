package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/service"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/validator"
)

type ProjectHandler struct {
	projects  *service.ProjectService
	validator *validator.Validator
}

func NewProjectHandler(projects *service.ProjectService, validator *validator.Validator) *ProjectHandler {
	return &ProjectHandler{
		projects:  projects,
		validator: validator,
	}
}

// POST /api/v1/projects
func (h *ProjectHandler) CreateProject(c *fiber.Ctx) error {
	var req service.CreateProjectRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	project, err := h.projects.CreateProject(c.UserContext(), actor(c), req)
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(project)
}

// ListProjects lets internal staff narrow by ?company_id=
// GET /api/v1/projects
func (h *ProjectHandler) ListProjects(c *fiber.Ctx) error {
	companyID, err := optionalUUID(c, "company_id")
	if err != nil {
		return err
	}
	limit, offset := page(c)

	projects, total, err := h.projects.ListProjects(c.UserContext(), actor(c), companyID, limit, offset)
	if err != nil {
		return handleError(c, err)
	}
	return paginated(c, "projects", projects, total, limit, offset)
}

// GET /api/v1/projects/:id
func (h *ProjectHandler) GetProject(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	project, err := h.projects.GetProject(c.UserContext(), actor(c), id)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(project)
}

// PATCH /api/v1/projects/:id
func (h *ProjectHandler) UpdateProject(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req service.UpdateProjectRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	project, err := h.projects.UpdateProject(c.UserContext(), actor(c), id, req)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(project)
}

// DELETE /api/v1/projects/:id
func (h *ProjectHandler) DeleteProject(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.projects.DeleteProject(c.UserContext(), actor(c), id); err != nil {
		return handleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// POST /api/v1/projects/:id/tasks
func (h *ProjectHandler) CreateTask(c *fiber.Ctx) error {
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req service.CreateTaskRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	task, err := h.projects.CreateTask(c.UserContext(), actor(c), projectID, req)
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// GET /api/v1/projects/:id/tasks
func (h *ProjectHandler) ListTasks(c *fiber.Ctx) error {
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	tasks, err := h.projects.ListTasks(c.UserContext(), actor(c), projectID)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(fiber.Map{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// UpdateTask edits a task. Assignees without tasks:manage may only move its status.
// PATCH /api/v1/tasks/:id
func (h *ProjectHandler) UpdateTask(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req service.UpdateTaskRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	task, err := h.projects.UpdateTask(c.UserContext(), actor(c), id, req)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(task)
}

// DELETE /api/v1/tasks/:id
func (h *ProjectHandler) DeleteTask(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.projects.DeleteTask(c.UserContext(), actor(c), id); err != nil {
		return handleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
