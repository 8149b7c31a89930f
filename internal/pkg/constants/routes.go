package constants

// Static route constants
const (
	APIRoute   = "/api"
	APIv1Route = "/v1"

	// Full webhook path as seen by middleware matching on c.Path()
	StripeWebhookRoute = "/api/v1/billing/webhook/stripe"
)
