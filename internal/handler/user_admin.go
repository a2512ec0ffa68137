package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/madeira/residential-services/internal/auth"
	"github.com/madeira/residential-services/internal/middleware"
	"github.com/madeira/residential-services/internal/repository"
)

// UserAdminHandler implements administrator user management: listing,
// approval, deactivation, role changes and soft deletion.
type UserAdminHandler struct {
	Users  *repository.UserRepo
	Roles  *repository.RoleRepo
	Tokens *auth.TokenManager
	Log    zerolog.Logger
}

// userView strips the password hash and audit columns from responses.
type userView struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Phone        string    `json:"phone,omitempty"`
	Unit         string    `json:"unit"`
	ResidentType string    `json:"resident_type"`
	RoleID       string    `json:"role_id"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func toUserView(u repository.User) userView {
	return userView{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		Phone:        u.Phone,
		Unit:         u.Unit,
		ResidentType: u.ResidentType,
		RoleID:       u.RoleID,
		Status:       u.Status,
		CreatedAt:    u.CreatedAt,
	}
}

// List returns users, optionally filtered by ?status=pending|active|inactive.
func (h *UserAdminHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Users.List(ctx, c.QueryParam("status"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	items := make([]userView, 0, len(users))
	for _, u := range users {
		items = append(items, toUserView(u))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Approve moves a pending user to active.
func (h *UserAdminHandler) Approve(c echo.Context) error {
	return h.setStatus(c, repository.UserStatusActive, false)
}

// Deactivate moves a user to inactive and revokes every refresh token the
// user holds, so no remembered device can mint a new session.
func (h *UserAdminHandler) Deactivate(c echo.Context) error {
	return h.setStatus(c, repository.UserStatusInactive, true)
}

// Reactivate moves an inactive user back to active.
func (h *UserAdminHandler) Reactivate(c echo.Context) error {
	return h.setStatus(c, repository.UserStatusActive, false)
}

func (h *UserAdminHandler) setStatus(c echo.Context, status string, revokeTokens bool) error {
	actor, _ := middleware.PrincipalFrom(c)
	id := c.Param("id")

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.UpdateStatus(ctx, id, status, actor.ID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if revokeTokens {
		if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
			// Deactivation already happened; the session artifact still
			// expires on its own. Log and carry on.
			h.Log.Warn().Err(err).Str("user_id", id).Msg("token revocation on deactivate failed")
		}
	}
	user, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, toUserView(user))
}

type changeRoleReq struct {
	Role string `json:"role" validate:"required"`
}

// ChangeRole assigns a different role by name. Takes effect on the user's
// next login or refresh; outstanding session artifacts keep their claims.
func (h *UserAdminHandler) ChangeRole(c echo.Context) error {
	actor, _ := middleware.PrincipalFrom(c)
	id := c.Param("id")

	var req changeRoleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	role, err := h.Roles.GetByName(ctx, req.Role)
	if err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	if err := h.Users.UpdateRole(ctx, id, role.ID, actor.ID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	user, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, toUserView(user))
}

// Delete soft-deletes a user and revokes their refresh tokens.
func (h *UserAdminHandler) Delete(c echo.Context) error {
	actor, _ := middleware.PrincipalFrom(c)
	id := c.Param("id")

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.SoftDelete(ctx, id, actor.ID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
		h.Log.Warn().Err(err).Str("user_id", id).Msg("token revocation on delete failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Roles lists the assignable roles.
func (h *UserAdminHandler) ListRoles(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	roles, err := h.Roles.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": roles})
}

// ListPermissions lists all grantable permission codes.
func (h *UserAdminHandler) ListPermissions(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	perms, err := h.Roles.ListPermissions(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": perms})
}

type grantReq struct {
	PermissionID string `json:"permission_id" validate:"required"`
}

// GrantPermission attaches a permission to a role.
func (h *UserAdminHandler) GrantPermission(c echo.Context) error {
	var req grantReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Roles.GrantPermission(ctx, c.Param("id"), req.PermissionID); err != nil {
		switch {
		case errors.Is(err, repository.ErrRoleNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
		case errors.Is(err, repository.ErrPermissionNotFound):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown permission"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "grant failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// RevokePermission revokes a role's permission grant (soft delete on the
// join row, so the permission itself is untouched).
func (h *UserAdminHandler) RevokePermission(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Roles.RevokePermission(ctx, c.Param("id"), c.Param("permissionId")); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// reqCtx bounds every handler's database work to a 5 second window.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}
