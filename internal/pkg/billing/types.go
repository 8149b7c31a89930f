package billing

import (
	"strings"
	"time"
)

// Checkout kinds embedded in session metadata so the webhook reconciler
// can reconstruct the intended entitlement from the completion event.
const (
	KindOneOff       = "one_off"
	KindSubscription = "subscription"
)

// Processor event types the reconciler dispatches on. Anything else is
// acknowledged and ignored.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventInvoicePaid         = "invoice.payment_succeeded"
	EventInvoiceFailed       = "invoice.payment_failed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// CheckoutInput is the validated request to start a checkout.
type CheckoutInput struct {
	PlanID     string `json:"plan_id" validate:"required"`
	CustomerID uint   `json:"customer_id" validate:"required,gt=0"`
}

// CheckoutResult is the opaque session handle the caller redirects to.
type CheckoutResult struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// SubscriptionState is the normalized shape of a subscription fetched
// from the processor, the authority on period boundaries.
type SubscriptionState struct {
	Ref               string
	CustomerRef       string
	Status            string
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool
	PriceID           string
}

// checkoutSessionEvent is the minimal decoded checkout.session.completed
// payload. Fields outside this set are never read.
type checkoutSessionEvent struct {
	ID              string            `json:"id"`
	Mode            string            `json:"mode"`
	Customer        string            `json:"customer"`
	Subscription    string            `json:"subscription"`
	PaymentIntent   string            `json:"payment_intent"`
	AmountTotal     int64             `json:"amount_total"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

// subscriptionEvent is the minimal decoded customer.subscription.*
// payload. Period boundaries live on the items since the 2025 API
// versions; the top-level fields remain as a fallback for older
// payloads.
type subscriptionEvent struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// periodBounds returns the event's reported period, preferring the first
// subscription item over the legacy top-level fields.
func (s *subscriptionEvent) periodBounds() (*time.Time, *time.Time) {
	start, end := s.CurrentPeriodStart, s.CurrentPeriodEnd
	if len(s.Items.Data) > 0 && s.Items.Data[0].CurrentPeriodEnd > 0 {
		start = s.Items.Data[0].CurrentPeriodStart
		end = s.Items.Data[0].CurrentPeriodEnd
	}
	return unixToTime(start), unixToTime(end)
}

// invoiceEvent is the minimal decoded invoice.payment_* payload. Newer
// API versions moved the subscription reference under parent.
type invoiceEvent struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (i *invoiceEvent) subscriptionRef() string {
	if ref := strings.TrimSpace(i.Subscription); ref != "" {
		return ref
	}
	return strings.TrimSpace(i.Parent.SubscriptionDetails.Subscription)
}

// unixToTime converts processor epoch seconds to a nullable timestamp.
// Zero and negative values mean "unknown", never an error.
func unixToTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// ConsumeResult reports a successful quota consumption. Remaining is
// models.QuotaUnlimited for unlimited plans.
type ConsumeResult struct {
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// QuotaSummary is the read-only snapshot served to dashboards.
type QuotaSummary struct {
	EntitlementID uint       `json:"entitlement_id"`
	PlanID        string     `json:"plan_id"`
	Status        string     `json:"status"`
	Quota         int        `json:"quota"`
	Used          int        `json:"used"`
	Remaining     int        `json:"remaining"`
	PeriodEnd     *time.Time `json:"period_end,omitempty"`
}

// SweepResult summarizes a quota reset sweep. Errors holds per-row
// failures; a failed row never aborts the sweep.
type SweepResult struct {
	ResetCount    int      `json:"reset_count"`
	TotalEligible int      `json:"total_eligible"`
	Errors        []string `json:"errors"`
}

// ResetPreview reports the computed next reset for one entitlement
// without mutating anything.
type ResetPreview struct {
	EntitlementID uint      `json:"entitlement_id"`
	CustomerID    uint      `json:"customer_id"`
	PlanID        string    `json:"plan_id"`
	Used          int       `json:"used"`
	Quota         int       `json:"quota"`
	LastResetAt   time.Time `json:"last_reset_at"`
	NextResetAt   time.Time `json:"next_reset_at"`
	DaysRemaining int       `json:"days_remaining"`
}
