package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// DeviceCookie is the long-lived cookie holding the opaque device
// identifier. It scopes refresh token uniqueness and carries no security
// properties of its own.
const DeviceCookie = "device_id"

// EnsureDeviceID guarantees every request carries a device identifier:
// when the cookie is absent a fresh UUID is set with a ~1 year lifetime,
// HttpOnly and SameSite=Lax (Secure outside dev). The identifier is stored
// in the request context under "device_id" for the auth handlers.
func EnsureDeviceID(lifetimeDays int, secure bool) echo.MiddlewareFunc {
	if lifetimeDays <= 0 {
		lifetimeDays = 365
	}
	maxAge := lifetimeDays * 24 * 60 * 60

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if ck, err := c.Cookie(DeviceCookie); err == nil && ck.Value != "" {
				id = ck.Value
			} else {
				id = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     DeviceCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   maxAge,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set("device_id", id)
			return next(c)
		}
	}
}

// DeviceIDFrom returns the device identifier the middleware stored in the
// request context.
func DeviceIDFrom(c echo.Context) string {
	if s, ok := c.Get("device_id").(string); ok {
		return s
	}
	return ""
}
