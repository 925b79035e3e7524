package server

import (
	"encoding/base64"

	"commentboard/internal/models"
	"commentboard/internal/validation"

	"github.com/gofiber/fiber/v2"
)

const pngDataURIPrefix = "data:image/png;base64,"

// GetCaptcha handles GET /api/captcha
// @Summary New CAPTCHA
// @Description Generates a single-use challenge and returns it as a PNG data URI
// @Tags captcha
// @Produce json
// @Success 200 {object} models.APIResponse[models.CaptchaResponse]
// @Failure 429 {object} models.APIResponse[any]
// @Router /captcha [get]
func (s *Server) GetCaptcha(c *fiber.Ctx) error {
	challenge, err := s.captchaService.Generate(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(models.OK(models.CaptchaResponse{
		CaptchaID: challenge.ID,
		ImageData: pngDataURIPrefix + base64.StdEncoding.EncodeToString(challenge.Image),
		ExpiresAt: challenge.ExpiresAt,
	}, ""))
}

// ValidateCaptcha handles POST /api/captcha/validate
// @Summary Check a CAPTCHA answer
// @Description Reports whether the code matches an unused, unexpired challenge. Does not consume it.
// @Tags captcha
// @Accept json
// @Produce json
// @Param request body models.ValidateCaptchaRequest true "Challenge and answer"
// @Success 200 {object} models.APIResponse[bool]
// @Failure 400 {object} models.APIResponse[any]
// @Router /captcha/validate [post]
func (s *Server) ValidateCaptcha(c *fiber.Ctx) error {
	var req models.ValidateCaptchaRequest
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, models.NewValidationError("Invalid request body"))
	}
	if err := validation.Struct(req); err != nil {
		return s.respondError(c, err)
	}

	valid := s.captchaService.Validate(c.UserContext(), req.CaptchaID, req.Code)
	return c.JSON(models.OK(valid, ""))
}
