package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"agora/internal/auth"
	"agora/internal/config"
	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// verifierFunc adapts a function to TokenVerifier.
type verifierFunc func(ctx context.Context, token string, want auth.TokenType) (*auth.Claims, error)

func (f verifierFunc) Verify(ctx context.Context, token string, want auth.TokenType) (*auth.Claims, error) {
	return f(ctx, token, want)
}

func claimsFor(subject string) *auth.Claims {
	return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject}, TokenType: auth.AccessToken}
}

func whoAmIApp(v TokenVerifier) *fiber.App {
	app := fiber.New()
	app.Get("/me", AuthRequired(v), func(c *fiber.Ctx) error {
		fromCtx, _ := c.UserContext().Value(UserIDKey).(uint)
		return c.JSON(fiber.Map{"local": c.Locals("userID"), "ctx": fromCtx})
	})
	return app
}

func call(t *testing.T, app *fiber.App, header string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set(fiber.HeaderAuthorization, header)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"Bearer abc":         "abc",
		"bearer  abc ":       "abc",
		"Basic dXNlcjpwYXNz": "",
		"Bearer":             "",
	}
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(BearerToken(c)) })
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(fiber.HeaderAuthorization, header)
		resp, err := app.Test(req)
		require.NoError(t, err)
		got, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, want, string(got), "header %q", header)
	}
}

func TestAuthRequired_StubVerifier(t *testing.T) {
	var gotWant auth.TokenType
	v := verifierFunc(func(_ context.Context, token string, want auth.TokenType) (*auth.Claims, error) {
		gotWant = want
		switch token {
		case "good":
			return claimsFor("7"), nil
		case "revoked":
			return nil, auth.ErrRevoked
		case "nosubject":
			return claimsFor("abc"), nil
		}
		return nil, auth.ErrInvalidToken
	})
	app := whoAmIApp(v)

	status, body := call(t, app, "Bearer good")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"local":7,"ctx":7}`, string(body))
	assert.Equal(t, auth.AccessToken, gotWant)

	for header, msg := range map[string]string{
		"":                 "Authorization required",
		"Token good":       "Authorization required",
		"Bearer revoked":   "Token has been revoked",
		"Bearer nosubject": "Invalid user ID in token",
		"Bearer whatever":  "Invalid or expired token",
	} {
		status, body := call(t, app, header)
		assert.Equal(t, http.StatusUnauthorized, status, header)
		var errResp models.ErrorResponse
		require.NoError(t, json.Unmarshal(body, &errResp))
		assert.Equal(t, msg, errResp.Message, header)
	}
}

func TestAuthRequired_TokenManager(t *testing.T) {
	tokens := auth.NewManager(&config.Config{JWTSecret: "test-secret-key-12345678901234567890123456789012"}, nil)
	pair, err := tokens.IssuePair(123, "alice")
	require.NoError(t, err)
	app := whoAmIApp(tokens)

	status, body := call(t, app, "Bearer "+pair.Access)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"local":123,"ctx":123}`, string(body))

	status, _ = call(t, app, "Bearer "+pair.Refresh)
	assert.Equal(t, http.StatusUnauthorized, status, "refresh tokens do not authenticate requests")
}
