package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/madeira/residential-services/internal/middleware"
	"github.com/madeira/residential-services/internal/repository"
)

// CategoryHandler serves the service category directory: residents read,
// content administrators manage.
type CategoryHandler struct {
	Categories *repository.CategoryRepo
}

type categoryReq struct {
	Name         string `json:"name" validate:"required"`
	Description  string `json:"description"`
	Icon         string `json:"icon"`
	DisplayOrder int    `json:"display_order"`
	Status       string `json:"status" validate:"omitempty,oneof=active pending rejected"`
}

// List returns categories in display order. Holders of MANAGE_CATEGORIES
// see every status; everyone else sees active categories only.
func (h *CategoryHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, _ := middleware.PrincipalFrom(c)
	activeOnly := !p.HasPermission(repository.PermManageCategories)

	items, err := h.Categories.List(ctx, activeOnly)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get returns one category.
func (h *CategoryHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	cat, err := h.Categories.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "category not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, cat)
}

// Create adds a category.
func (h *CategoryHandler) Create(c echo.Context) error {
	actor, _ := middleware.PrincipalFrom(c)

	var req categoryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	cat := repository.Category{
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Icon:         req.Icon,
		DisplayOrder: req.DisplayOrder,
		Status:       req.Status,
	}
	if err := h.Categories.Create(ctx, &cat, actor.ID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "category name already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	created, err := h.Categories.GetByID(ctx, cat.ID)
	if err != nil {
		return c.JSON(http.StatusCreated, cat)
	}
	return c.JSON(http.StatusCreated, created)
}

// Update rewrites a category.
func (h *CategoryHandler) Update(c echo.Context) error {
	actor, _ := middleware.PrincipalFrom(c)

	var req categoryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	status := req.Status
	if status == "" {
		status = repository.ContentStatusActive
	}
	cat := repository.Category{
		ID:           c.Param("id"),
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Icon:         req.Icon,
		DisplayOrder: req.DisplayOrder,
		Status:       status,
	}
	if err := h.Categories.Update(ctx, cat, actor.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrCategoryNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "category not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "category name already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	updated, err := h.Categories.GetByID(ctx, cat.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete soft-deletes a category.
func (h *CategoryHandler) Delete(c echo.Context) error {
	actor, _ := middleware.PrincipalFrom(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Categories.SoftDelete(ctx, c.Param("id"), actor.ID); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "category not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
