package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/madeira/residential-services/internal/auth"
)

func newTestCodec() *auth.SessionCodec {
	return auth.NewSessionCodec("gate-test-secret")
}

func artifactFor(t *testing.T, codec *auth.SessionCodec, p auth.Principal) string {
	t.Helper()
	artifact, _, err := codec.Encode(p, "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return artifact
}

// runGate pushes one request through the session gate and reports whether
// the wrapped handler ran.
func runGate(t *testing.T, codec *auth.SessionCodec, req *http.Request) (*httptest.ResponseRecorder, bool, echo.Context) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := SessionGate(GateConfig{Codec: codec})(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("gate returned error: %v", err)
	}
	return rec, called, c
}

func TestGatePublicPathSkipsDecode(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test-connection", nil)
	// Garbage session material on a public path must not matter.
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "garbage"})

	rec, called, _ := runGate(t, newTestCodec(), req)
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("public path blocked: called=%v code=%d", called, rec.Code)
	}
}

func TestGateProtectedWithoutSessionRedirectsBrowser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/dashboard/providers", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	rec, called, _ := runGate(t, newTestCodec(), req)
	if called {
		t.Fatal("handler should not run without a session")
	}
	if rec.Code != http.StatusFound {
		t.Fatalf("want 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/auth/login" {
		t.Errorf("want redirect to /auth/login, got %q", loc)
	}
}

func TestGateProtectedWithoutSessionDeniesAPIClient(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	req.Header.Set("Accept", "application/json")

	rec, called, _ := runGate(t, newTestCodec(), req)
	if called {
		t.Fatal("handler should not run without a session")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", rec.Code)
	}
}

func TestGateValidSessionPasses(t *testing.T) {
	codec := newTestCodec()
	p := auth.Principal{ID: "u1", Role: "resident", Permissions: []string{"VIEW_PROVIDERS"}}

	req := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: artifactFor(t, codec, p)})

	rec, called, c := runGate(t, codec, req)
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("valid session rejected: called=%v code=%d", called, rec.Code)
	}
	got, ok := PrincipalFrom(c)
	if !ok || got.ID != "u1" {
		t.Errorf("principal not stored in context: %+v ok=%v", got, ok)
	}
}

func TestGateBearerHeaderAccepted(t *testing.T) {
	codec := newTestCodec()
	p := auth.Principal{ID: "u1", Role: "resident"}

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+artifactFor(t, codec, p))

	_, called, _ := runGate(t, codec, req)
	if !called {
		t.Fatal("bearer artifact rejected")
	}
}

func TestGateAdminPrefixNarrowsByRole(t *testing.T) {
	codec := newTestCodec()

	resident := httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
	resident.AddCookie(&http.Cookie{Name: SessionCookie,
		Value: artifactFor(t, codec, auth.Principal{ID: "u1", Role: "resident"})})
	rec, called, _ := runGate(t, codec, resident)
	if called || rec.Code != http.StatusForbidden {
		t.Fatalf("resident on admin path: called=%v code=%d", called, rec.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
	admin.AddCookie(&http.Cookie{Name: SessionCookie,
		Value: artifactFor(t, codec, auth.Principal{ID: "u2", Role: "admin"})})
	if _, called, _ := runGate(t, codec, admin); !called {
		t.Fatal("admin role rejected on admin path")
	}
}

func TestGateLoginPageBouncesAuthenticatedUser(t *testing.T) {
	codec := newTestCodec()
	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie,
		Value: artifactFor(t, codec, auth.Principal{ID: "u1", Role: "resident"})})

	rec, called, _ := runGate(t, codec, req)
	if called {
		t.Fatal("login page handler should not run for an authenticated user")
	}
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("want bounce to /dashboard, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestGateExpiredSessionDenied(t *testing.T) {
	codec := newTestCodec()
	artifact, _, err := codec.Encode(auth.Principal{ID: "u1", Role: "resident"}, "", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: artifact})

	rec, called, _ := runGate(t, codec, req)
	if called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired session accepted: called=%v code=%d", called, rec.Code)
	}
}

func TestRequirePermission(t *testing.T) {
	e := echo.New()

	run := func(p auth.Principal, set bool) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/manage/categories", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if set {
			c.Set(principalKey, p)
		}
		h := RequirePermission("MANAGE_CATEGORIES")(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})
		if err := h(c); err != nil {
			t.Fatal(err)
		}
		return rec.Code
	}

	if code := run(auth.Principal{}, false); code != http.StatusForbidden {
		t.Errorf("no principal: want 403, got %d", code)
	}
	if code := run(auth.Principal{Permissions: []string{"VIEW_PROVIDERS"}}, true); code != http.StatusForbidden {
		t.Errorf("missing code: want 403, got %d", code)
	}
	if code := run(auth.Principal{Permissions: []string{"MANAGE_CATEGORIES"}}, true); code != http.StatusOK {
		t.Errorf("granted code: want 200, got %d", code)
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()

	run := func(role string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/reports", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(principalKey, auth.Principal{ID: "u1", Role: role})
		h := RequireRole("admin", "content_admin")(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})
		if err := h(c); err != nil {
			t.Fatal(err)
		}
		return rec.Code
	}

	if code := run("resident"); code != http.StatusForbidden {
		t.Errorf("resident: want 403, got %d", code)
	}
	if code := run("content_admin"); code != http.StatusOK {
		t.Errorf("content_admin: want 200, got %d", code)
	}
}
