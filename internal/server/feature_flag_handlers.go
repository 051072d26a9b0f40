package server

import "github.com/gofiber/fiber/v2"

// FeatureFlagsResponse is the configured flags and how they evaluate for the
// calling user.
type FeatureFlagsResponse struct {
	UserID    uint              `json:"user_id"`
	Raw       map[string]string `json:"raw"`
	Evaluated map[string]bool   `json:"evaluated"`
}

// GetFeatureFlags reports FEATURE_FLAGS as seen by the caller.
// @Summary Feature flags
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} server.FeatureFlagsResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	uid := userID(c)
	return c.JSON(FeatureFlagsResponse{
		UserID:    uid,
		Raw:       s.featureFlags.Raw(),
		Evaluated: s.featureFlags.Snapshot(uid),
	})
}
