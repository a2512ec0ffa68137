package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/madeira/residential-services/internal/middleware"
	"github.com/madeira/residential-services/internal/repository"
)

// AuditHandler exposes the auth event trail written by the queue consumer.
type AuditHandler struct {
	Audit *repository.AuditRepo
}

// ListForUser returns a user's recent auth events. Admin report view.
func (h *AuditHandler) ListForUser(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.Audit.ListByUser(ctx, c.Param("id"), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListMine returns the caller's own recent auth events.
func (h *AuditHandler) ListMine(c echo.Context) error {
	actor, _ := middleware.PrincipalFrom(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.Audit.ListByUser(ctx, actor.ID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
