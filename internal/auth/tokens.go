// Package auth issues and verifies the JWT access/refresh token pairs that
// identify API principals.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"agora/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	issuer   = "agora-api"
	audience = "agora-client"

	blacklistPrefix = "blacklist:"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrRevoked      = errors.New("token has been revoked")
	ErrWrongType    = errors.New("unexpected token type")
)

// Claims are the JWT claims carried by both token types.
type Claims struct {
	jwt.RegisteredClaims
	Username  string    `json:"username,omitempty"`
	TokenType TokenType `json:"token_type"`
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// Pair is an access token plus the refresh token that renews it.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Manager signs and verifies tokens with an HMAC secret. Revoked token IDs
// live in Redis; a nil client disables revocation checks.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	rdb        *redis.Client
	now        func() time.Time
}

// NewManager builds a Manager from configuration.
func NewManager(cfg *config.Config, rdb *redis.Client) *Manager {
	accessTTL := time.Duration(cfg.JWTAccessTTLMinutes) * time.Minute
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	refreshTTL := time.Duration(cfg.JWTRefreshTTLHours) * time.Hour
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Manager{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		rdb:        rdb,
		now:        time.Now,
	}
}

// IssuePair signs a fresh access/refresh pair for the user.
func (m *Manager) IssuePair(userID uint, username string) (Pair, error) {
	access, err := m.sign(userID, username, AccessToken, m.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := m.sign(userID, username, RefreshToken, m.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

func (m *Manager) sign(userID uint, username string, typ TokenType, ttl time.Duration) (string, error) {
	if len(m.secret) == 0 {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Username:  username,
		TokenType: typ,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify parses a token, checks signature, issuer, audience, type and
// revocation, and returns its claims.
func (m *Manager) Verify(ctx context.Context, tokenString string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != want {
		return nil, ErrWrongType
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}

	if m.rdb != nil && claims.ID != "" {
		n, err := m.rdb.Exists(ctx, blacklistPrefix+claims.ID).Result()
		if err == nil && n > 0 {
			return nil, ErrRevoked
		}
	}

	return claims, nil
}

// Revoke blacklists the token ID until the token would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, claims *Claims) error {
	if m.rdb == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Sub(m.now()); remaining > 0 {
			ttl = remaining
		}
	}
	return m.rdb.Set(ctx, blacklistPrefix+claims.ID, "1", ttl).Err()
}

// Refresh exchanges a valid refresh token for a new pair and revokes the old
// refresh token.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (Pair, error) {
	claims, err := m.Verify(ctx, refreshToken, RefreshToken)
	if err != nil {
		return Pair{}, err
	}
	userID, _ := claims.UserID()

	pair, err := m.IssuePair(userID, claims.Username)
	if err != nil {
		return Pair{}, err
	}
	if err := m.Revoke(ctx, claims); err != nil {
		return Pair{}, fmt.Errorf("revoke refresh token: %w", err)
	}
	return pair, nil
}
