package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/madeira/residential-services/internal/middleware"
	"github.com/madeira/residential-services/internal/repository"
)

// ReviewHandler serves provider reviews. A resident holds at most one
// review per provider; posting again rewrites the existing one. Edited
// and new reviews go back to pending until moderated.
type ReviewHandler struct {
	Reviews   *repository.ReviewRepo
	Providers *repository.ProviderRepo
	Log       zerolog.Logger
}

type reviewReq struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

type reviewStatusReq struct {
	Status string `json:"status" validate:"required,oneof=active pending rejected"`
}

// ListByProvider returns a provider's reviews. Moderators see every
// status; everyone else sees approved reviews only.
func (h *ReviewHandler) ListByProvider(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, _ := middleware.PrincipalFrom(c)
	activeOnly := !p.HasPermission(repository.PermManageProviders)

	items, err := h.Reviews.ListByProvider(ctx, c.Param("id"), activeOnly)
	if err != nil {
		h.Log.Error().Err(err).Msg("list reviews")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Upsert creates or rewrites the caller's review for a provider, then
// refreshes the provider's rating aggregate.
func (h *ReviewHandler) Upsert(c echo.Context) error {
	actor, _ := middleware.PrincipalFrom(c)

	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	prov, err := h.Providers.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	if prov.Status != repository.ContentStatusActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
	}

	rev := repository.Review{
		ProviderID: prov.ID,
		UserID:     actor.ID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		Status:     repository.ContentStatusPending,
	}
	if _, err := h.Reviews.Upsert(ctx, &rev); err != nil {
		h.Log.Error().Err(err).Msg("upsert review")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save failed"})
	}
	if err := h.Providers.RefreshRating(ctx, prov.ID); err != nil {
		h.Log.Warn().Err(err).Str("provider_id", prov.ID).Msg("refresh rating")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":      rev.ID,
		"status":  rev.Status,
		"message": "review submitted for moderation",
	})
}

// SetStatus moderates a review, then refreshes the provider aggregate
// since only active reviews count toward it.
func (h *ReviewHandler) SetStatus(c echo.Context) error {
	actor, _ := middleware.PrincipalFrom(c)

	var req reviewStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	rev, err := h.Reviews.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrReviewNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "review not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	if err := h.Reviews.UpdateStatus(ctx, rev.ID, req.Status, actor.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if err := h.Providers.RefreshRating(ctx, rev.ProviderID); err != nil {
		h.Log.Warn().Err(err).Str("provider_id", rev.ProviderID).Msg("refresh rating")
	}
	return c.JSON(http.StatusOK, echo.Map{"id": rev.ID, "status": req.Status})
}

// Delete soft-deletes a review. Authors may delete their own; holders of
// MANAGE_PROVIDERS may delete anyone's.
func (h *ReviewHandler) Delete(c echo.Context) error {
	actor, _ := middleware.PrincipalFrom(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	rev, err := h.Reviews.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrReviewNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "review not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	if rev.UserID != actor.ID && !actor.HasPermission(repository.PermManageProviders) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your review"})
	}
	if err := h.Reviews.SoftDelete(ctx, rev.ID, actor.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	if err := h.Providers.RefreshRating(ctx, rev.ProviderID); err != nil {
		h.Log.Warn().Err(err).Str("provider_id", rev.ProviderID).Msg("refresh rating")
	}
	return c.NoContent(http.StatusNoContent)
}
