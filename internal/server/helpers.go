package server

import (
	"errors"

	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const maxPageSize = 100

// pageParams reads ?limit and ?offset. Missing or non-positive limits fall
// back to def, and limits above maxPageSize are capped.
func pageParams(c *fiber.Ctx, def int) (limit, offset int) {
	limit = c.QueryInt("limit", def)
	switch {
	case limit <= 0:
		limit = def
	case limit > maxPageSize:
		limit = maxPageSize
	}
	return limit, max(c.QueryInt("offset", 0), 0)
}

// pathID reads a positive integer route parameter. On failure it writes a
// 400 naming what ("post", "comment") and returns errResponseWritten.
func pathID(c *fiber.Ctx, param, what string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+what+" ID"))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// userID returns the authenticated user set by AuthRequired.
func userID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// principal resolves the caller's identity and staff flag. On failure it
// writes the response and returns errResponseWritten.
func (s *Server) principal(c *fiber.Ctx) (models.Principal, error) {
	p, err := s.userService.Principal(c.UserContext(), userID(c))
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			_ = models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("User not found"))
		} else {
			_ = respondError(c, err, fiber.StatusUnauthorized)
		}
		return models.Principal{}, errResponseWritten
	}
	return p, nil
}

// statusFor maps an error code to an HTTP status. Ownership failures are
// reported with unauthorizedStatus, which differs between endpoints.
func statusFor(err error, unauthorizedStatus int) int {
	switch models.ErrorCode(err) {
	case models.CodeValidation, models.CodeModeration:
		return fiber.StatusBadRequest
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeUnauthorized:
		return unauthorizedStatus
	case models.CodeForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err with the status its code maps to. Errors that are
// not AppErrors are reported as internal errors without details.
func respondError(c *fiber.Ctx, err error, unauthorizedStatus int) error {
	if models.ErrorCode(err) == "" {
		err = models.NewInternalError(err)
	}
	return models.RespondWithError(c, statusFor(err, unauthorizedStatus), err)
}

// bindJSON parses the request body into dest, writing a 400 on failure.
func bindJSON(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}
