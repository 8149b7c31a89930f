package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/hireboard/hireboard/internal/pkg/billing"
)

// UsageController serves quota consumption and the dashboard summary.
type UsageController struct {
	svc      *billing.Service
	validate *validator.Validate
	log      zerolog.Logger
}

// NewUsageController wires the usage-gate endpoints.
func NewUsageController(svc *billing.Service, log zerolog.Logger) *UsageController {
	return &UsageController{
		svc:      svc,
		validate: validator.New(),
		log:      log,
	}
}

type consumeRequest struct {
	CustomerID uint `json:"customer_id" validate:"required,gt=0"`
	JobID      uint `json:"job_id" validate:"required,gt=0"`
}

// HandleConsumeQuota spends one quota unit for a job posting.
func (uc *UsageController) HandleConsumeQuota(c *fiber.Ctx) error {
	var req consumeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_request",
			"message": "Request body must be JSON with customer_id and job_id.",
		})
	}
	if err := uc.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation_failed",
			"message": "customer_id and job_id are required.",
		})
	}

	result, err := uc.svc.TryConsume(c.Context(), req.CustomerID, req.JobID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrNoActiveEntitlement):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "no_active_entitlement",
				"message": "No active plan found. Choose a plan on the pricing page to post jobs.",
			})
		case errors.Is(err, billing.ErrQuotaExceeded):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "quota_exhausted",
				"message": "Job limit reached for the current period. Upgrade your plan to post more jobs.",
			})
		default:
			uc.log.Error().Err(err).Uint("customer_id", req.CustomerID).Msg("quota consumption failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "usage_update_failed",
				"message": "Could not record the job posting. Please try again.",
			})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":        true,
		"used":      result.Used,
		"remaining": result.Remaining,
	})
}

// HandleQuotaSummary returns the read-only quota snapshot for a customer.
func (uc *UsageController) HandleQuotaSummary(c *fiber.Ctx) error {
	customerID, err := c.ParamsInt("customerID")
	if err != nil || customerID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_customer_id"})
	}

	sum, err := uc.svc.Summary(c.Context(), uint(customerID))
	if err != nil {
		if errors.Is(err, billing.ErrNoActiveEntitlement) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "no_active_entitlement",
				"message": "No active plan found. Choose a plan on the pricing page to post jobs.",
			})
		}
		uc.log.Error().Err(err).Int("customer_id", customerID).Msg("quota summary lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "summary_lookup_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(sum)
}
