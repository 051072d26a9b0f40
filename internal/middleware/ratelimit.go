// Package middleware provides the HTTP middleware chain: authentication,
// rate limiting, request logging, tracing and metrics.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when the counter store is
// unreachable.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// ErrNoStore is returned by Allow when limiting is active but Redis is not
// configured.
var ErrNoStore = errors.New("rate limit store not configured")

// Rule is a fixed-window quota: Limit hits per Window for each caller.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
	Policy FailPolicy
}

// Decision is the outcome of counting one hit.
type Decision struct {
	Allowed   bool
	Remaining int
	// ResetIn is how long until the window rolls over.
	ResetIn time.Duration
}

// DefaultStoreTimeout bounds each Redis round trip made by a Limiter.
const DefaultStoreTimeout = 200 * time.Millisecond

// Limiter counts hits in Redis. Environments without real traffic
// (test, development, stress and unset) are never limited.
type Limiter struct {
	rdb    *redis.Client
	bypass bool
	// timeout caps the time a request waits on the store before the rule's
	// FailPolicy applies.
	timeout time.Duration
}

// NewLimiter returns a Limiter for the APP_ENV value env.
func NewLimiter(rdb *redis.Client, env string) *Limiter {
	l := &Limiter{rdb: rdb, timeout: DefaultStoreTimeout}
	switch env {
	case "", "test", "development", "stress":
		l.bypass = true
	}
	return l
}

// WithStoreTimeout returns l with a different Redis deadline.
func (l *Limiter) WithStoreTimeout(d time.Duration) *Limiter {
	l.timeout = d
	return l
}

func rateLimitKey(rule, caller string) string {
	return "rl:" + rule + ":" + caller
}

// Allow counts one hit by caller against rule.
func (l *Limiter) Allow(ctx context.Context, rule Rule, caller string) (Decision, error) {
	if l.bypass {
		return Decision{Allowed: true, Remaining: rule.Limit, ResetIn: rule.Window}, nil
	}
	if l.rdb == nil {
		return Decision{}, ErrNoStore
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	key := rateLimitKey(rule.Name, caller)
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		RedisErrors.WithLabelValues("ratelimit").Inc()
		return Decision{}, err
	}

	resetIn := ttl.Val()
	if resetIn <= 0 {
		// First hit of a window, or a key that lost its expiry.
		if err := l.rdb.PExpire(ctx, key, rule.Window).Err(); err != nil {
			RedisErrors.WithLabelValues("ratelimit").Inc()
		}
		resetIn = rule.Window
	}

	count := int(incr.Val())
	return Decision{
		Allowed:   count <= rule.Limit,
		Remaining: max(rule.Limit-count, 0),
		ResetIn:   resetIn,
	}, nil
}

// callerID keys authenticated requests by user and the rest by client IP.
func callerID(c *fiber.Ctx) string {
	if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
		return fmt.Sprintf("user:%d", uid)
	}
	return "ip:" + c.IP()
}

// Handler enforces rule. It sets X-RateLimit-Limit and X-RateLimit-Remaining
// on counted requests and Retry-After on rejected ones.
func (l *Limiter) Handler(rule Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		d, err := l.Allow(ctx, rule, callerID(c))
		if err != nil {
			if rule.Policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(ctx, "rate limit store unavailable, rejecting",
				"rule", rule.Name, "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"message": "rate limit unavailable",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if d.Allowed {
			return c.Next()
		}

		retry := int(math.Ceil(d.ResetIn.Seconds()))
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(max(retry, 1)))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"message": "rate limit exceeded",
		})
	}
}
