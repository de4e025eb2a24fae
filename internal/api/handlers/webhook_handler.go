package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/social-scheduler/internal/service"
	"github.com/maheshrc27/social-scheduler/internal/transfer"
)

type WebhookHandler struct {
	s service.ReconcileService
}

func NewWebhookHandler(service service.ReconcileService) *WebhookHandler {
	return &WebhookHandler{s: service}
}

// PublishOutcome records the result the publishing workflow reports for a post.
func (h *WebhookHandler) PublishOutcome(c *fiber.Ctx) error {
	var cb transfer.OutcomeCallback
	if err := c.BodyParser(&cb); err != nil {
		slog.Info(err.Error())
		return badRequest(c, "Invalid request body")
	}

	if err := h.s.Reconcile(c.UserContext(), &cb); err != nil {
		return errorResponse(c, err, "Webhook processing failed")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok": true,
	})
}
