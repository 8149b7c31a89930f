package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/hireboard/hireboard/internal/pkg/billing"
	"github.com/hireboard/hireboard/internal/pkg/plans"
)

const webhookTimeout = 25 * time.Second

// BillingController serves checkout creation, the processor webhook and
// the public plan catalog.
type BillingController struct {
	svc      *billing.Service
	stripe   *billing.Client
	validate *validator.Validate
	log      zerolog.Logger
}

// NewBillingController wires the billing endpoints. The service and
// processor client are constructed once at process start and injected.
func NewBillingController(svc *billing.Service, stripe *billing.Client, log zerolog.Logger) *BillingController {
	return &BillingController{
		svc:      svc,
		stripe:   stripe,
		validate: validator.New(),
		log:      log,
	}
}

// HandleCreateCheckout starts a hosted checkout session for a plan.
func (bc *BillingController) HandleCreateCheckout(c *fiber.Ctx) error {
	var in billing.CheckoutInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_request",
			"message": "Request body must be JSON with plan_id and customer_id.",
		})
	}
	if err := bc.validate.Struct(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation_failed",
			"message": "plan_id and customer_id are required.",
		})
	}

	result, err := bc.stripe.CreateCheckout(c.Context(), in)
	if err != nil {
		if errors.Is(err, plans.ErrPlanNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "invalid_plan",
				"message": "Unknown plan. See /api/v1/billing/plans for available plans.",
			})
		}
		bc.log.Error().Err(err).Str("plan_id", in.PlanID).Uint("customer_id", in.CustomerID).Msg("checkout session creation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "checkout_failed",
			"message": "Unable to start checkout. Please try again.",
		})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// HandleStripeWebhook verifies, journals and processes one processor
// event envelope. A non-200 response makes the processor redeliver.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	sigHeader := c.Get("Stripe-Signature")

	event, err := bc.stripe.VerifyEvent(rawBody, sigHeader)
	if err != nil {
		bc.log.Warn().Err(err).Msg("webhook rejected")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	created, stored, err := bc.svc.RecordEvent(event.ID, string(event.Type), rawBody)
	if err != nil {
		bc.log.Error().Err(err).Str("event_id", event.ID).Msg("webhook journaling failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	// Only short-circuit redeliveries that already processed cleanly;
	// a journaled-but-failed event must run again.
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	procErr := bc.svc.HandleEvent(ctx, string(event.Type), event.ID, event.Data.Raw)
	if err := bc.svc.MarkEventProcessed(stored.ID, procErr); err != nil {
		bc.log.Error().Err(err).Uint("webhook_event_id", stored.ID).Msg("marking webhook event failed")
	}
	if procErr != nil {
		bc.log.Error().Err(procErr).Str("event_id", event.ID).Str("type", string(event.Type)).Msg("webhook processing failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

// HandleListPlans returns the public plan catalog for the pricing page.
func (bc *BillingController) HandleListPlans(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"plans": plans.All()})
}

// HandleBillingHistory returns a customer's entitlement records,
// newest first.
func (bc *BillingController) HandleBillingHistory(c *fiber.Ctx) error {
	customerID, err := c.ParamsInt("customerID")
	if err != nil || customerID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_customer_id"})
	}

	ents, err := bc.svc.History(c.Context(), uint(customerID))
	if err != nil {
		bc.log.Error().Err(err).Int("customer_id", customerID).Msg("billing history lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "history_lookup_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"entitlements": ents})
}
