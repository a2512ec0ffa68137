package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/madeira/residential-services/internal/auth"
	"github.com/madeira/residential-services/internal/config"
	"github.com/madeira/residential-services/internal/middleware"
	"github.com/madeira/residential-services/internal/queue"
	"github.com/madeira/residential-services/internal/repository"
	"github.com/madeira/residential-services/internal/utils"
)

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg       config.Config
	Validator *auth.Validator
	Codec     *auth.SessionCodec
	Tokens    *auth.TokenManager
	Users     *repository.UserRepo
	Roles     *repository.RoleRepo
	Events    auth.EventPublisher
	Log       zerolog.Logger
}

// ----- DTOs -----

type registerReq struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	FullName     string `json:"full_name" validate:"required"`
	Phone        string `json:"phone"`
	NationalID   string `json:"national_id" validate:"required"`
	Unit         string `json:"unit" validate:"required"`
	ResidentType string `json:"resident_type" validate:"required,oneof=owner tenant family"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type loginResp struct {
	User         auth.Principal `json:"user"`
	Session      sessionPart    `json:"session"`
	RefreshToken string         `json:"refresh_token,omitempty"`
}

// Register creates a resident account in pending status. No session is
// issued; the account must be approved by an administrator first.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	role, err := h.Roles.GetByName(ctx, repository.RoleResident)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	user := repository.User{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Phone:        strings.TrimSpace(req.Phone),
		NationalID:   strings.TrimSpace(req.NationalID),
		Unit:         strings.TrimSpace(req.Unit),
		ResidentType: req.ResidentType,
		RoleID:       role.ID,
	}
	id, err := h.Users.Create(ctx, &user)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		case errors.Is(err, repository.ErrNationalIDExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "national id already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":      id,
		"status":  repository.UserStatusPending,
		"message": "account created, pending administrator approval",
	})
}

// Login validates credentials and mints the session artifact. With
// remember=true the session runs 30 days and a device-scoped refresh token
// is issued; otherwise the session runs 24 hours and no token is stored.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	principal, refreshToken, err := h.Validator.Validate(ctx, auth.Credentials{
		Email:     req.Email,
		Password:  req.Password,
		Remember:  req.Remember,
		DeviceID:  middleware.DeviceIDFrom(c),
		UserAgent: c.Request().UserAgent(),
		IPAddress: c.RealIP(),
	})
	if err != nil {
		var notActive *auth.AccountNotActiveError
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		case errors.As(err, &notActive):
			return c.JSON(http.StatusForbidden, echo.Map{
				"error":  notActive.Error(),
				"status": notActive.Status,
			})
		}
		h.Log.Error().Err(err).Msg("credential validation failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	ttl := time.Duration(h.Cfg.SessionTTLHours) * time.Hour
	if req.Remember {
		ttl = time.Duration(h.Cfg.RememberTTLDays) * 24 * time.Hour
	}
	artifact, exp, err := h.Codec.Encode(principal, refreshToken, ttl)
	if err != nil {
		h.Log.Error().Err(err).Msg("session encode failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	h.setSessionCookie(c, artifact, exp)
	return c.JSON(http.StatusOK, loginResp{
		User:         principal,
		Session:      sessionPart{Token: artifact, Expires: exp},
		RefreshToken: refreshToken,
	})
}

// Refresh exchanges a stored refresh token for a fresh 24h session
// artifact. Claims are rebuilt from the database so role or permission
// changes made since login take effect here.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Tokens.Validate(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}

	user, err := h.Users.GetByID(ctx, rec.UserID)
	if err != nil || user.Status != repository.UserStatusActive {
		// Token outlived the account; treat as invalid and clean up.
		_ = h.Tokens.Revoke(ctx, rec.Token)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	role, err := h.Roles.GetByID(ctx, user.RoleID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}
	codes, err := h.Roles.ResolvePermissions(ctx, user.RoleID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}

	principal := auth.Principal{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.FullName,
		Role:        role.Name,
		Permissions: codes,
		Status:      user.Status,
	}
	artifact, exp, err := h.Codec.Encode(principal, rec.Token, time.Duration(h.Cfg.SessionTTLHours)*time.Hour)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}

	h.publishEvent(ctx, user.ID, queue.EventTokenRefresh, c)
	h.setSessionCookie(c, artifact, exp)
	return c.JSON(http.StatusOK, loginResp{
		User:    principal,
		Session: sessionPart{Token: artifact, Expires: exp},
	})
}

// Logout is best-effort and multi-step: revoke the caller's refresh tokens,
// publish the logout event, clear the session cookies, and point the client
// at the login page. Each step is independently fault-tolerant: a failure
// is logged and the remaining steps still run, so the client always ends up
// logged out locally.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if principal, _, err := h.Codec.Decode(sessionArtifact(c)); err == nil && principal.ID != "" {
		if err := h.Tokens.RevokeAllForUser(ctx, principal.ID); err != nil {
			h.Log.Warn().Err(err).Str("user_id", principal.ID).Msg("logout: token revocation failed")
		}
		h.publishEvent(ctx, principal.ID, queue.EventLogout, c)
	}

	h.clearSessionCookie(c)
	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"redirect": "/auth/login",
	})
}

// LogoutAll signs the caller out everywhere: every refresh token is
// revoked, so no other device can mint a new session. Sessions already in
// flight on other devices remain valid until their artifacts expire.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Tokens.RevokeAllForUser(ctx, p.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not revoke tokens"})
	}
	h.publishEvent(ctx, p.ID, queue.EventLogout, c)
	h.clearSessionCookie(c)
	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"redirect": "/auth/login",
	})
}

// Me returns the request principal reconstructed by the session gate.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, p)
}

// Devices lists the caller's remembered devices, most recently used first.
func (h *AuthHandler) Devices(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	devices, err := h.Tokens.ListDevices(ctx, p.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list devices"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": devices})
}

// RevokeDevice signs out one of the caller's devices.
func (h *AuthHandler) RevokeDevice(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	deviceID := c.Param("id")
	if deviceID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "device id required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Tokens.RevokeDevice(ctx, p.ID, deviceID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not revoke device"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- helpers -----

func (h *AuthHandler) setSessionCookie(c echo.Context, artifact string, exp time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    artifact,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod",
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires every session-related cookie. The device_id
// cookie survives on purpose: the device identity outlives the session.
func (h *AuthHandler) clearSessionCookie(c echo.Context) {
	for _, name := range []string{middleware.SessionCookie} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.Cfg.Env == "prod",
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (h *AuthHandler) publishEvent(ctx context.Context, userID, event string, c echo.Context) {
	if h.Events == nil {
		return
	}
	ev := queue.AuthEvent{
		UserID:     userID,
		Event:      event,
		IPAddress:  c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
		DeviceName: auth.DeviceName(c.Request().UserAgent()),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.Events.PublishAuthEvent(ctx, ev); err != nil {
		h.Log.Warn().Err(err).Str("event", event).Msg("auth event publish failed")
	}
}

// sessionArtifact mirrors the extraction the session gate performs, for
// endpoints (logout) that run outside the gate.
func sessionArtifact(c echo.Context) string {
	if ck, err := c.Cookie(middleware.SessionCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	if hdr := c.Request().Header.Get("Authorization"); strings.HasPrefix(hdr, "Bearer ") {
		return strings.TrimPrefix(hdr, "Bearer ")
	}
	return ""
}
