package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/social-scheduler/internal/service"
)

type CronHandler struct {
	s service.SweepService
}

func NewCronHandler(service service.SweepService) *CronHandler {
	return &CronHandler{s: service}
}

// Publish runs one sweep over the posts that are due right now.
func (h *CronHandler) Publish(c *fiber.Ctx) error {
	res, err := h.s.Sweep(c.UserContext())
	if err != nil {
		return errorResponse(c, err, "Sweep failed")
	}

	return c.Status(fiber.StatusOK).JSON(res)
}
