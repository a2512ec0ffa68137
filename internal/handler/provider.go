package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/madeira/residential-services/internal/middleware"
	"github.com/madeira/residential-services/internal/repository"
)

// ProviderHandler serves the provider directory. Residents browse and
// suggest providers; content administrators approve, edit and remove them.
type ProviderHandler struct {
	Providers *repository.ProviderRepo
	Log       zerolog.Logger
}

type providerReq struct {
	CategoryID   string `json:"category_id" validate:"required"`
	BusinessName string `json:"business_name" validate:"required"`
	ContactName  string `json:"contact_name"`
	Phone        string `json:"phone"`
	WhatsApp     string `json:"whatsapp"`
	Email        string `json:"email" validate:"omitempty,email"`
	Address      string `json:"address"`
	Website      string `json:"website" validate:"omitempty,url"`
	Description  string `json:"description"`
}

type providerStatusReq struct {
	Status string `json:"status" validate:"required,oneof=active pending rejected"`
}

// List returns providers filtered by category, status and search term.
// Without MANAGE_PROVIDERS the status filter is forced to active so
// residents never see pending or rejected submissions.
func (h *ProviderHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, _ := middleware.PrincipalFrom(c)
	f := repository.ListFilter{
		CategoryID: c.QueryParam("category_id"),
		Search:     c.QueryParam("search"),
	}
	if p.HasPermission(repository.PermManageProviders) || p.HasPermission(repository.PermApproveProviders) {
		f.Status = c.QueryParam("status")
	}

	items, err := h.Providers.List(ctx, f)
	if err != nil {
		h.Log.Error().Err(err).Msg("list providers")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get returns one provider. Residents only see active ones.
func (h *ProviderHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	prov, err := h.Providers.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}

	p, _ := middleware.PrincipalFrom(c)
	if prov.Status != repository.ContentStatusActive &&
		!p.HasPermission(repository.PermManageProviders) && !p.HasPermission(repository.PermApproveProviders) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
	}
	return c.JSON(http.StatusOK, prov)
}

// Suggest lets any resident submit a provider. The submission lands in
// pending status and only appears in the directory after approval.
func (h *ProviderHandler) Suggest(c echo.Context) error {
	return h.create(c, repository.ContentStatusPending)
}

// Create lets a content administrator add a provider directly as active.
func (h *ProviderHandler) Create(c echo.Context) error {
	return h.create(c, repository.ContentStatusActive)
}

func (h *ProviderHandler) create(c echo.Context, status string) error {
	actor, _ := middleware.PrincipalFrom(c)

	var req providerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	prov := repository.Provider{
		CategoryID:   req.CategoryID,
		BusinessName: strings.TrimSpace(req.BusinessName),
		ContactName:  req.ContactName,
		Phone:        req.Phone,
		WhatsApp:     req.WhatsApp,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Address:      req.Address,
		Website:      req.Website,
		Description:  req.Description,
		Status:       status,
	}
	if err := h.Providers.Create(ctx, &prov, actor.ID); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
		}
		h.Log.Error().Err(err).Msg("create provider")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	created, err := h.Providers.GetByID(ctx, prov.ID)
	if err != nil {
		return c.JSON(http.StatusCreated, prov)
	}
	return c.JSON(http.StatusCreated, created)
}

// Update rewrites a provider's editable fields.
func (h *ProviderHandler) Update(c echo.Context) error {
	actor, _ := middleware.PrincipalFrom(c)

	var req providerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	prov := repository.Provider{
		ID:           c.Param("id"),
		CategoryID:   req.CategoryID,
		BusinessName: strings.TrimSpace(req.BusinessName),
		ContactName:  req.ContactName,
		Phone:        req.Phone,
		WhatsApp:     req.WhatsApp,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Address:      req.Address,
		Website:      req.Website,
		Description:  req.Description,
	}
	if err := h.Providers.Update(ctx, prov, actor.ID); err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
		}
		h.Log.Error().Err(err).Msg("update provider")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	updated, err := h.Providers.GetByID(ctx, prov.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, updated)
}

// SetStatus approves or rejects a submission.
func (h *ProviderHandler) SetStatus(c echo.Context) error {
	actor, _ := middleware.PrincipalFrom(c)

	var req providerStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Providers.UpdateStatus(ctx, c.Param("id"), req.Status, actor.ID); err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "status": req.Status})
}

// Delete soft-deletes a provider.
func (h *ProviderHandler) Delete(c echo.Context) error {
	actor, _ := middleware.PrincipalFrom(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Providers.SoftDelete(ctx, c.Param("id"), actor.ID); err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
