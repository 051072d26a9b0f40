package server

import (
	"errors"
	"strings"

	"agora/internal/auth"
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// RegisterResponse is the public view of a newly created account.
type RegisterResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TokenPairResponse is returned by POST /api/token/pair.
type TokenPairResponse struct {
	Username string `json:"username"`
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
}

// Register handles POST /api/register
// @Summary Register
// @Description Create a non-staff account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration request"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Register(c.UserContext(), req)
	if err != nil {
		return respondError(c, err, fiber.StatusBadRequest)
	}

	return c.Status(fiber.StatusCreated).JSON(RegisterResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
}

// TokenPair handles POST /api/token/pair
// @Summary Obtain token pair
// @Description Exchange username and password for an access/refresh token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,password=string} true "Credentials"
// @Success 200 {object} TokenPairResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /token/pair [post]
func (s *Server) TokenPair(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Username and password are required"))
	}

	user, err := s.userService.Authenticate(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err, fiber.StatusUnauthorized)
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Username)
	if err != nil {
		return respondError(c, err, fiber.StatusUnauthorized)
	}

	return c.JSON(TokenPairResponse{
		Username: user.Username,
		Access:   pair.Access,
		Refresh:  pair.Refresh,
	})
}

// TokenRefresh handles POST /api/token/refresh
// @Summary Refresh tokens
// @Description Exchange a refresh token for a new pair; the old refresh token is revoked
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{refresh=string} true "Refresh token"
// @Success 200 {object} auth.Pair
// @Failure 401 {object} models.ErrorResponse
// @Router /token/refresh [post]
func (s *Server) TokenRefresh(c *fiber.Ctx) error {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	if req.Refresh == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("refresh: this field is required"))
	}

	pair, err := s.tokens.Refresh(c.UserContext(), req.Refresh)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized, tokenError(err))
	}
	return c.JSON(pair)
}

// TokenVerify handles POST /api/token/verify
// @Summary Verify a token
// @Description Check that an access or refresh token is valid and not revoked
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{token=string} true "Token"
// @Success 200 {object} object
// @Failure 401 {object} models.ErrorResponse
// @Router /token/verify [post]
func (s *Server) TokenVerify(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	if req.Token == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("token: this field is required"))
	}

	ctx := c.UserContext()
	_, err := s.tokens.Verify(ctx, req.Token, auth.AccessToken)
	if errors.Is(err, auth.ErrWrongType) {
		_, err = s.tokens.Verify(ctx, req.Token, auth.RefreshToken)
	}
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized, tokenError(err))
	}
	return c.JSON(fiber.Map{})
}

func tokenError(err error) *models.AppError {
	if errors.Is(err, auth.ErrRevoked) {
		return models.NewUnauthorizedError("Token is blacklisted")
	}
	return models.NewUnauthorizedError("Token is invalid or expired")
}
