package server

import (
	"commentboard/internal/models"

	"github.com/gofiber/fiber/v2"
)

// FeatureFlagsResponse is the body of GET /api/feature-flags.
type FeatureFlagsResponse struct {
	Raw       map[string]string `json:"raw"`
	Evaluated map[string]bool   `json:"evaluated"`
}

// GetFeatureFlags returns the configured feature flags and their evaluated
// state for anonymous visitors.
// @Summary Feature flags
// @Tags operations
// @Produce json
// @Success 200 {object} models.APIResponse[FeatureFlagsResponse]
// @Router /feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	// A nil manager yields empty maps.
	return c.JSON(models.OK(FeatureFlagsResponse{
		Raw:       s.featureFlags.Raw(),
		Evaluated: s.featureFlags.Snapshot(0),
	}, ""))
}
