package handlers

import (
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/social-scheduler/internal/service"
)

type UploadHandler struct {
	s service.MediaService
}

// NewUploadHandler accepts a nil service when no binary store is configured.
func NewUploadHandler(service service.MediaService) *UploadHandler {
	return &UploadHandler{s: service}
}

func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	if h.s == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Media storage is not configured",
		})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "No file provided")
	}
	if file.Size > service.MaxVideoSize {
		return badRequest(c, "File size exceeds 500MB limit")
	}

	content, err := file.Open()
	if err != nil {
		slog.Error(err.Error())
		return badRequest(c, "Unable to read file")
	}
	defer content.Close()

	data, err := io.ReadAll(content)
	if err != nil {
		slog.Error(err.Error())
		return badRequest(c, "Unable to read file")
	}

	res, err := h.s.Store(c.UserContext(), data, file.Filename)
	if err != nil {
		return errorResponse(c, err, "Failed to upload file")
	}

	return c.Status(fiber.StatusOK).JSON(res)
}
