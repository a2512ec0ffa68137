package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/madeira/residential-services/internal/middleware"
	"github.com/madeira/residential-services/internal/repository"
)

// FavoriteHandler serves per-user provider bookmarks.
type FavoriteHandler struct {
	Favorites *repository.FavoriteRepo
	Providers *repository.ProviderRepo
}

// Toggle bookmarks a provider for the caller or removes the bookmark.
func (h *FavoriteHandler) Toggle(c echo.Context) error {
	actor, _ := middleware.PrincipalFrom(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	prov, err := h.Providers.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}

	favorited, err := h.Favorites.Toggle(ctx, actor.ID, prov.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "toggle failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"provider_id": prov.ID, "favorited": favorited})
}

// List returns the caller's bookmarked providers, newest first.
func (h *FavoriteHandler) List(c echo.Context) error {
	actor, _ := middleware.PrincipalFrom(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	items, err := h.Favorites.ListByUser(ctx, actor.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
