package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/madeira/residential-services/internal/auth"
	"github.com/madeira/residential-services/internal/config"
)

func cacheCtx(target string, p *auth.Principal) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/providers")
	if p != nil {
		c.Set(principalKey, *p)
	}
	return c
}

// Browse responses are narrowed by the caller's grants, so a moderator and
// a resident must never share a cache entry: otherwise whoever populates
// the cache first leaks their projection (pending submissions included) to
// everyone else on the same route.
func TestCacheKeySeparatesPermissionSets(t *testing.T) {
	cfg := config.CacheConfig{KeyStrategy: "route_query", Prefix: "cache"}

	resident := cacheCtx("/v1/providers", &auth.Principal{ID: "u1", Role: "resident",
		Permissions: []string{"VIEW_PROVIDERS"}})
	moderator := cacheCtx("/v1/providers", &auth.Principal{ID: "u2", Role: "content_admin",
		Permissions: []string{"VIEW_PROVIDERS", "MANAGE_PROVIDERS"}})
	anonymous := cacheCtx("/v1/providers", nil)

	if cacheKey(cfg, resident) == cacheKey(cfg, moderator) {
		t.Error("moderator and resident share a cache key; pending content would leak")
	}
	if cacheKey(cfg, anonymous) == cacheKey(cfg, moderator) {
		t.Error("anonymous caller shares the moderator's cache key")
	}
}

// Principals with the same grants share an entry regardless of who they
// are or how the grant list happens to be ordered.
func TestCacheKeySharedWithinPermissionSet(t *testing.T) {
	cfg := config.CacheConfig{KeyStrategy: "route_query", Prefix: "cache"}

	a := cacheCtx("/v1/providers?category_id=c1", &auth.Principal{ID: "u1",
		Permissions: []string{"VIEW_PROVIDERS", "MANAGE_PROVIDERS"}})
	b := cacheCtx("/v1/providers?category_id=c1", &auth.Principal{ID: "u2",
		Permissions: []string{"MANAGE_PROVIDERS", "VIEW_PROVIDERS"}})

	if cacheKey(cfg, a) != cacheKey(cfg, b) {
		t.Error("identical grant sets should share one cache entry")
	}
}

func TestCacheKeyVariesByQuery(t *testing.T) {
	cfg := config.CacheConfig{KeyStrategy: "route_query", Prefix: "cache"}
	p := &auth.Principal{ID: "u1", Permissions: []string{"VIEW_PROVIDERS"}}

	all := cacheCtx("/v1/providers", p)
	filtered := cacheCtx("/v1/providers?search=plumber", p)

	if cacheKey(cfg, all) == cacheKey(cfg, filtered) {
		t.Error("different queries should not share a cache entry")
	}
}
