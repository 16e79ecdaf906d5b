package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-routing/internal/service"
)

// Sweeper runs an SLA sweep.
type Sweeper interface {
	OnDailySweep(ctx context.Context) (*service.SweepResult, error)
}

// SLAHandler triggers SLA sweeps on demand.
type SLAHandler struct {
	sweeper Sweeper
}

// NewSLAHandler constructs handler.
func NewSLAHandler(sweeper Sweeper) *SLAHandler {
	return &SLAHandler{sweeper: sweeper}
}

// Sweep handles POST /internal/sla/sweep.
func (h *SLAHandler) Sweep(c *fiber.Ctx) error {
	result, err := h.sweeper.OnDailySweep(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
