package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/hireboard/hireboard/internal/pkg/env"
	"github.com/hireboard/hireboard/internal/pkg/plans"
)

// CreateCheckout validates the plan and opens a hosted checkout session
// with the processor. The session carries enough metadata to reconstruct
// the intended entitlement when the completion event arrives; nothing is
// written locally here because payment is not guaranteed until then.
func (c *Client) CreateCheckout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	plan, err := plans.Lookup(in.PlanID)
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000"), "/")
	params := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		SuccessURL: stripe.String(base + "/employer/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(base + "/pricing?cancelled=1"),
	}

	if plan.IsRecurring() {
		priceID, err := plans.StripePriceID(plan.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCheckoutCreation, err)
		}
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		params.AllowPromotionCodes = stripe.Bool(true)
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		}
		params.Metadata = checkoutMetadata(in.CustomerID, plan.ID, KindSubscription)
	} else {
		// Price comes from the catalog, never from client input.
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(plan.UnitPriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(plan.DisplayName),
					},
				},
			},
		}
		params.Metadata = checkoutMetadata(in.CustomerID, plan.ID, KindOneOff)
	}

	session, err := c.createCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckoutCreation, err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return nil, fmt.Errorf("%w: no checkout URL returned", ErrCheckoutCreation)
	}

	return &CheckoutResult{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	}, nil
}

func checkoutMetadata(customerID uint, planID, kind string) map[string]string {
	return map[string]string{
		"customer_id": strconv.FormatUint(uint64(customerID), 10),
		"plan_id":     planID,
		"kind":        kind,
	}
}
