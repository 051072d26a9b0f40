package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), ContextTimeoutEnabled: true})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

var commentsRule = Rule{Name: "comments", Limit: 2, Window: time.Minute}

func TestLimiter_BypassedEnvironments(t *testing.T) {
	for _, env := range []string{"", "test", "development", "stress"} {
		d, err := NewLimiter(nil, env).Allow(context.Background(), commentsRule, "user:1")
		require.NoError(t, err, env)
		assert.True(t, d.Allowed, env)
		assert.Equal(t, 2, d.Remaining, env)
	}
}

func TestLimiter_NoStore(t *testing.T) {
	_, err := NewLimiter(nil, "production").Allow(context.Background(), commentsRule, "user:1")
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestLimiter_FixedWindow(t *testing.T) {
	rdb, mr := newTestRedis(t)
	l := NewLimiter(rdb, "production")
	ctx := context.Background()

	for want := 1; want >= 0; want-- {
		d, err := l.Allow(ctx, commentsRule, "user:1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, want, d.Remaining)
	}

	d, err := l.Allow(ctx, commentsRule, "user:1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.Minute, d.ResetIn)
	assert.Equal(t, time.Minute, mr.TTL("rl:comments:user:1"))

	other, err := l.Allow(ctx, commentsRule, "user:2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "callers are counted separately")

	mr.FastForward(time.Minute + time.Second)
	d, err = l.Allow(ctx, commentsRule, "user:1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestLimiter_RestoresLostExpiry(t *testing.T) {
	rdb, mr := newTestRedis(t)
	require.NoError(t, mr.Set("rl:comments:ip:1.2.3.4", "1"))

	d, err := NewLimiter(rdb, "production").Allow(context.Background(), commentsRule, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, time.Minute, mr.TTL("rl:comments:ip:1.2.3.4"))
}

func TestLimiter_Handler(t *testing.T) {
	rdb, mr := newTestRedis(t)
	l := NewLimiter(rdb, "production")
	ok := func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) }

	app := fiber.New()
	app.Get("/open", l.Handler(Rule{Name: "open", Limit: 1, Window: 90 * time.Second}), ok)
	app.Get("/closed", l.Handler(Rule{Name: "closed", Limit: 1, Window: time.Minute, Policy: FailClosed}), ok)
	get := func(path string) *http.Response {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		return resp
	}

	resp := get("/open")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	resp = get("/open")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "90", resp.Header.Get(fiber.HeaderRetryAfter))

	mr.Close()

	start := time.Now()
	assert.Equal(t, http.StatusOK, get("/open").StatusCode, "fail-open lets requests through")
	assert.Equal(t, http.StatusServiceUnavailable, get("/closed").StatusCode)
	assert.Less(t, time.Since(start), 2*time.Second, "an unreachable store must not stall requests")
}

func TestLimiter_StoreTimeout(t *testing.T) {
	rdb, mr := newTestRedis(t)
	mr.Close()
	l := NewLimiter(rdb, "production").WithStoreTimeout(50 * time.Millisecond)

	start := time.Now()
	_, err := l.Allow(context.Background(), commentsRule, "user:1")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
