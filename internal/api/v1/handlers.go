package apiv1

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/hireboard/hireboard/app/controllers"
	"github.com/hireboard/hireboard/internal/pkg/billing"
	"github.com/hireboard/hireboard/internal/pkg/middleware"
)

// APIServer implements the ServerInterface
type APIServer struct {
	billing *controllers.BillingController
	usage   *controllers.UsageController
	reset   *controllers.ResetController
}

// NewAPIServer creates a new API server instance
func NewAPIServer(svc *billing.Service, stripe *billing.Client, log zerolog.Logger) *APIServer {
	return &APIServer{
		billing: controllers.NewBillingController(svc, stripe, log),
		usage:   controllers.NewUsageController(svc, log),
		reset:   controllers.NewResetController(svc, log),
	}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// PostCheckout starts a provider checkout session for a plan.
func (s *APIServer) PostCheckout(c *fiber.Ctx) error {
	return s.billing.HandleCreateCheckout(c)
}

// PostStripeWebhook ingests provider webhook events. Signature is verified
// inside the controller before anything is persisted.
func (s *APIServer) PostStripeWebhook(c *fiber.Ctx) error {
	return s.billing.HandleStripeWebhook(c)
}

// PostUsage consumes one unit of job posting quota.
func (s *APIServer) PostUsage(c *fiber.Ctx) error {
	return s.usage.HandleConsumeQuota(c)
}

// GetPlans lists the purchasable plan catalog.
func (s *APIServer) GetPlans(c *fiber.Ctx) error {
	return s.billing.HandleListPlans(c)
}

// GetSummary returns the quota summary for a customer.
func (s *APIServer) GetSummary(c *fiber.Ctx) error {
	return s.usage.HandleQuotaSummary(c)
}

// GetHistory returns all entitlements ever held by a customer.
func (s *APIServer) GetHistory(c *fiber.Ctx) error {
	return s.billing.HandleBillingHistory(c)
}

// PostQuotaReset runs the monthly reset sweep immediately.
func (s *APIServer) PostQuotaReset(c *fiber.Ctx) error {
	return s.reset.HandleResetSweep(c)
}

// GetQuotaReset previews upcoming resets without running them.
func (s *APIServer) GetQuotaReset(c *fiber.Ctx) error {
	return s.reset.HandleResetPreview(c)
}

// RegisterHandlers attaches the v1 routes to the given router group.
func RegisterHandlers(r fiber.Router, s *APIServer) {
	r.Get("/ping", s.GetPing)

	b := r.Group("/billing")
	b.Post("/checkout", s.PostCheckout)
	b.Post("/webhook/stripe", s.PostStripeWebhook)
	b.Post("/usage", s.PostUsage)
	b.Get("/plans", s.GetPlans)
	b.Get("/summary/:customerID", s.GetSummary)
	b.Get("/history/:customerID", s.GetHistory)
	// Operational endpoints, shared-key protected.
	adminKey := middleware.AdminKeyMiddleware()
	b.Post("/quota-reset", adminKey, s.PostQuotaReset)
	b.Get("/quota-reset", adminKey, s.GetQuotaReset)
}

// Pong is the ping response body.
type Pong struct {
	Ping string `json:"ping"`
}
