package billing

import (
	"context"
	"errors"
	"testing"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/hireboard/hireboard/internal/pkg/plans"
)

func TestCreateCheckoutOneOffUsesCatalogPrice(t *testing.T) {
	var captured *stripe.CheckoutSessionParams
	client := &Client{
		createCheckoutSession: func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			captured = params
			return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
		},
	}

	res, err := client.CreateCheckout(context.Background(), CheckoutInput{PlanID: "single", CustomerID: 42})
	if err != nil {
		t.Fatal(err)
	}
	if res.SessionID != "cs_1" || res.CheckoutURL == "" {
		t.Errorf("result = %+v", res)
	}

	if captured == nil {
		t.Fatal("no session params captured")
	}
	if got := stripe.StringValue(captured.Mode); got != string(stripe.CheckoutSessionModePayment) {
		t.Errorf("mode = %s, want payment", got)
	}
	if len(captured.LineItems) != 1 || captured.LineItems[0].PriceData == nil {
		t.Fatal("one-off checkout must carry inline price data")
	}
	if got := stripe.Int64Value(captured.LineItems[0].PriceData.UnitAmount); got != 4900 {
		t.Errorf("unit amount = %d, want catalog price 4900", got)
	}
	if captured.Metadata["kind"] != KindOneOff || captured.Metadata["customer_id"] != "42" {
		t.Errorf("metadata = %v", captured.Metadata)
	}
}

func TestCreateCheckoutRecurringUsesConfiguredPrice(t *testing.T) {
	t.Setenv("STRIPE_PRICE_GROWTH", "price_growth_123")

	var captured *stripe.CheckoutSessionParams
	client := &Client{
		createCheckoutSession: func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			captured = params
			return &stripe.CheckoutSession{ID: "cs_2", URL: "https://checkout.example/cs_2"}, nil
		},
	}

	if _, err := client.CreateCheckout(context.Background(), CheckoutInput{PlanID: "growth", CustomerID: 7}); err != nil {
		t.Fatal(err)
	}
	if got := stripe.StringValue(captured.Mode); got != string(stripe.CheckoutSessionModeSubscription) {
		t.Errorf("mode = %s, want subscription", got)
	}
	if got := stripe.StringValue(captured.LineItems[0].Price); got != "price_growth_123" {
		t.Errorf("price = %s", got)
	}
	if captured.Metadata["kind"] != KindSubscription || captured.Metadata["plan_id"] != "growth" {
		t.Errorf("metadata = %v", captured.Metadata)
	}
}

func TestCreateCheckoutUnknownPlan(t *testing.T) {
	client := &Client{}
	_, err := client.CreateCheckout(context.Background(), CheckoutInput{PlanID: "enterprise", CustomerID: 7})
	if !errors.Is(err, plans.ErrPlanNotFound) {
		t.Fatalf("err = %v, want ErrPlanNotFound", err)
	}
}

func TestCreateCheckoutRecurringWithoutConfiguredPrice(t *testing.T) {
	t.Setenv("STRIPE_PRICE_STARTER", "")

	client := &Client{}
	_, err := client.CreateCheckout(context.Background(), CheckoutInput{PlanID: "starter", CustomerID: 7})
	if !errors.Is(err, ErrCheckoutCreation) {
		t.Fatalf("err = %v, want ErrCheckoutCreation", err)
	}
}

func TestCreateCheckoutProcessorFailure(t *testing.T) {
	client := &Client{
		createCheckoutSession: func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			return nil, errors.New("api down")
		},
	}
	_, err := client.CreateCheckout(context.Background(), CheckoutInput{PlanID: "single", CustomerID: 7})
	if !errors.Is(err, ErrCheckoutCreation) {
		t.Fatalf("err = %v, want ErrCheckoutCreation", err)
	}
}

func TestCreateCheckoutWithoutURL(t *testing.T) {
	client := &Client{
		createCheckoutSession: func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			return &stripe.CheckoutSession{ID: "cs_3"}, nil
		},
	}
	_, err := client.CreateCheckout(context.Background(), CheckoutInput{PlanID: "single", CustomerID: 7})
	if !errors.Is(err, ErrCheckoutCreation) {
		t.Fatalf("err = %v, want ErrCheckoutCreation", err)
	}
}
