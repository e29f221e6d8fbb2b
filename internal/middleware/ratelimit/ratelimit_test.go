package ratelimit

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newApp(t *testing.T, perMinute int) (*fiber.App, *RateLimiter) {
	t.Helper()
	rl := New(Config{MaxRequestsPerMinute: perMinute, Logger: zaptest.NewLogger(t)})
	t.Cleanup(rl.Stop)

	app := fiber.New()
	app.Use(rl.Middleware())
	app.All("/*", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app, rl
}

func status(t *testing.T, app *fiber.App, tenant string) int {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/v1/query/history?tenant_id="+tenant, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestMiddleware_LimitsPerTenant(t *testing.T) {
	app, _ := newApp(t, 2)

	assert.Equal(t, fiber.StatusOK, status(t, app, "rest-001"))
	assert.Equal(t, fiber.StatusOK, status(t, app, "rest-001"))
	assert.Equal(t, fiber.StatusTooManyRequests, status(t, app, "rest-001"))

	// Another tenant has its own bucket.
	assert.Equal(t, fiber.StatusOK, status(t, app, "rest-002"))
}

func TestMiddleware_TenantFromBody(t *testing.T) {
	app, _ := newApp(t, 1)

	post := func() int {
		req := httptest.NewRequest("POST", "/api/v1/query", strings.NewReader(`{"question":"harina","tenant_id":"rest-009"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, post())
	assert.Equal(t, fiber.StatusTooManyRequests, post())
	assert.Equal(t, fiber.StatusOK, status(t, app, "rest-010"))
}

func TestAllow_Refills(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 1})
	defer rl.Stop()

	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("tenant:rest-001"))
	assert.False(t, rl.allow("tenant:rest-001"))

	now = now.Add(time.Minute)
	assert.True(t, rl.allow("tenant:rest-001"))
}

func TestEvictIdle(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 5})
	defer rl.Stop()

	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.allow("tenant:rest-001")

	now = now.Add(11 * time.Minute)
	rl.evictIdle(10 * time.Minute)

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	assert.Empty(t, rl.buckets)
}
