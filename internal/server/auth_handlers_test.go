package server

import (
	"testing"

	"agora/internal/auth"
	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	h := newHarness(t, true)

	var created RegisterResponse
	resp := h.do("POST", "/api/register/", "", map[string]string{
		"username": "alice",
		"password": "correct-horse",
		"email":    "alice@example.com",
	}, &created)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "alice", created.Username)
	assert.Equal(t, "alice@example.com", created.Email)

	tests := []struct {
		name string
		body map[string]string
		msg  string
	}{
		{"duplicate username", map[string]string{"username": "alice", "password": "correct-horse"}, "Username already exists"},
		{"short password", map[string]string{"username": "bob", "password": "short"}, ""},
		{"bad username", map[string]string{"username": "no spaces", "password": "correct-horse"}, ""},
		{"bad email", map[string]string{"username": "carol", "password": "correct-horse", "email": "nope"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body models.ErrorResponse
			resp := h.do("POST", "/api/register", "", tt.body, &body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, models.CodeValidation, body.Code)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, body.Message)
			}
		})
	}
}

func TestTokenFlow(t *testing.T) {
	h := newHarness(t, true)
	resp := h.do("POST", "/api/register", "", map[string]string{
		"username": "dave", "password": "correct-horse",
	}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	t.Run("bad credentials", func(t *testing.T) {
		var body models.ErrorResponse
		resp := h.do("POST", "/api/token/pair/", "", map[string]string{
			"username": "dave", "password": "wrong-password",
		}, &body)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "No active account found with the given credentials", body.Message)

		resp = h.do("POST", "/api/token/pair/", "", map[string]string{"username": "ghost", "password": "x"}, nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing fields", func(t *testing.T) {
		resp := h.do("POST", "/api/token/pair/", "", map[string]string{"username": "dave"}, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	var pair TokenPairResponse
	resp = h.do("POST", "/api/token/pair/", "", map[string]string{
		"username": "dave", "password": "correct-horse",
	}, &pair)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "dave", pair.Username)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	t.Run("verify access and refresh", func(t *testing.T) {
		resp := h.do("POST", "/api/token/verify/", "", map[string]string{"token": pair.Access}, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		resp = h.do("POST", "/api/token/verify/", "", map[string]string{"token": pair.Refresh}, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		resp = h.do("POST", "/api/token/verify/", "", map[string]string{"token": "junk"}, nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("access token opens protected routes", func(t *testing.T) {
		resp := h.do("POST", "/api/posts/", pair.Access, map[string]any{
			"title": "hello", "content": "world",
		}, nil)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	})

	t.Run("refresh rotates and revokes", func(t *testing.T) {
		var next auth.Pair
		resp := h.do("POST", "/api/token/refresh/", "", map[string]string{"refresh": pair.Refresh}, &next)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, next.Access)
		assert.NotEqual(t, pair.Refresh, next.Refresh)

		var body models.ErrorResponse
		resp = h.do("POST", "/api/token/refresh/", "", map[string]string{"refresh": pair.Refresh}, &body)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Token is blacklisted", body.Message)

		resp = h.do("POST", "/api/token/verify/", "", map[string]string{"token": pair.Refresh}, nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("access token cannot refresh", func(t *testing.T) {
		resp := h.do("POST", "/api/token/refresh/", "", map[string]string{"refresh": pair.Access}, nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}
