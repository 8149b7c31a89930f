package billing

import (
	"context"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	stripesub "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/hireboard/hireboard/internal/pkg/env"
)

// Client wraps the payment processor API behind injectable call points
// so service tests never hit the network.
type Client struct {
	webhookSecret string

	createCheckoutSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getSubscription       func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

// NewClientFromEnv configures the Stripe API key and webhook secret from
// the environment.
func NewClientFromEnv() *Client {
	stripe.Key = strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", ""))
	return &Client{
		webhookSecret:         strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		createCheckoutSession: stripesession.New,
		getSubscription:       stripesub.Get,
	}
}

// VerifyEvent checks the signature header against the raw request body
// and returns the decoded event envelope. Any verification failure maps
// to ErrInvalidSignature; callers must not process further.
func (c *Client) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if c.webhookSecret == "" {
		return stripe.Event{}, fmt.Errorf("%w: STRIPE_WEBHOOK_SECRET is not configured", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// FetchSubscription reads the live subscription object from the
// processor. The checkout completion event does not carry authoritative
// period boundaries, so the reconciler always fetches.
func (c *Client) FetchSubscription(ctx context.Context, ref string) (*SubscriptionState, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("subscription reference is required")
	}
	params := &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	}
	sub, err := c.getSubscription(ref, params)
	if err != nil {
		return nil, fmt.Errorf("fetch subscription %s: %w", ref, err)
	}
	return normalizeSubscription(sub), nil
}

// normalizeSubscription maps the SDK object into the reconciler's shape.
// Period boundaries live on the subscription items in current API
// versions.
func normalizeSubscription(sub *stripe.Subscription) *SubscriptionState {
	state := &SubscriptionState{
		Ref:               sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		state.CustomerRef = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		state.PeriodStart = unixToTime(item.CurrentPeriodStart)
		state.PeriodEnd = unixToTime(item.CurrentPeriodEnd)
		if item.Price != nil {
			state.PriceID = item.Price.ID
		}
	}
	return state
}
