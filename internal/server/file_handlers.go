package server

import (
	"commentboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFile handles GET /api/files/*
// @Summary Download an attachment
// @Description Streams an attachment or thumbnail by its stored path
// @Tags files
// @Produce octet-stream
// @Param path path string true "Stored path, e.g. uploads/<name>"
// @Success 200 {file} binary
// @Failure 404 {object} models.APIResponse[any]
// @Router /files/{path} [get]
func (s *Server) GetFile(c *fiber.Ctx) error {
	return s.sendAttachment(c, c.Params("*"))
}

// GetUpload serves /uploads/* when attachments are not on local disk.
func (s *Server) GetUpload(c *fiber.Ctx) error {
	return s.sendAttachment(c, service.PublicPrefix+c.Params("*"))
}

func (s *Server) sendAttachment(c *fiber.Ctx, path string) error {
	rc, contentType, err := s.fileService.Read(c.UserContext(), path)
	if err != nil {
		return s.respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	// fasthttp closes rc once the body is written.
	return c.SendStream(rc)
}
