package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/hireboard/hireboard/internal/pkg/billing"
)

// ResetController serves the monthly quota reset sweep and its preview.
type ResetController struct {
	svc *billing.Service
	log zerolog.Logger
}

// NewResetController wires the quota reset endpoints.
func NewResetController(svc *billing.Service, log zerolog.Logger) *ResetController {
	return &ResetController{svc: svc, log: log}
}

// HandleResetSweep runs the sweep now. Row failures are reported in the
// response, they do not fail the request.
func (rc *ResetController) HandleResetSweep(c *fiber.Ctx) error {
	result, err := rc.svc.ResetDue(c.Context(), time.Now().UTC())
	if err != nil {
		rc.log.Error().Err(err).Msg("quota reset sweep failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reset_sweep_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// HandleResetPreview reports upcoming resets without mutating anything.
func (rc *ResetController) HandleResetPreview(c *fiber.Ctx) error {
	previews, err := rc.svc.PreviewResets(c.Context(), time.Now().UTC())
	if err != nil {
		rc.log.Error().Err(err).Msg("quota reset preview failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reset_preview_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"previews": previews})
}
