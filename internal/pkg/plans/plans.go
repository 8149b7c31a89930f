package plans

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hireboard/hireboard/internal/pkg/env"
)

// ErrPlanNotFound is returned for plan identifiers not in the catalog.
var ErrPlanNotFound = errors.New("plan not found")

const (
	CadenceOneTime = "one_time"
	CadenceMonthly = "monthly"
)

// QuotaUnlimited marks a plan without a job limit.
const QuotaUnlimited = -1

// Plan is a static catalog entry. Entitlements snapshot the quota at
// creation time, so editing the catalog never changes existing rows.
type Plan struct {
	ID             string   `json:"id"`
	DisplayName    string   `json:"display_name"`
	UnitPriceCents int64    `json:"unit_price_cents"`
	JobQuota       int      `json:"job_quota"`
	Cadence        string   `json:"cadence"`
	Description    string   `json:"description"`
	Features       []string `json:"features"`
}

// IsRecurring reports whether the plan bills monthly.
func (p Plan) IsRecurring() bool {
	return p.Cadence == CadenceMonthly
}

var catalog = []Plan{
	{
		ID:             "single",
		DisplayName:    "Single Posting",
		UnitPriceCents: 4900,
		JobQuota:       1,
		Cadence:        CadenceOneTime,
		Description:    "One job posting, live for 30 days.",
		Features:       []string{"1 job posting", "30 days visibility", "Applicant inbox"},
	},
	{
		ID:             "starter",
		DisplayName:    "Starter",
		UnitPriceCents: 9900,
		JobQuota:       3,
		Cadence:        CadenceMonthly,
		Description:    "For teams hiring occasionally.",
		Features:       []string{"3 job postings per month", "Applicant inbox", "Company profile"},
	},
	{
		ID:             "growth",
		DisplayName:    "Growth",
		UnitPriceCents: 24900,
		JobQuota:       10,
		Cadence:        CadenceMonthly,
		Description:    "For teams hiring every month.",
		Features:       []string{"10 job postings per month", "Featured listings", "Candidate search", "Priority support"},
	},
	{
		ID:             "unlimited",
		DisplayName:    "Unlimited",
		UnitPriceCents: 49900,
		JobQuota:       QuotaUnlimited,
		Cadence:        CadenceMonthly,
		Description:    "No posting limits for high-volume recruiters.",
		Features:       []string{"Unlimited job postings", "Featured listings", "Candidate search", "Dedicated support"},
	},
}

// Lookup resolves a plan identifier against the catalog.
func Lookup(planID string) (Plan, error) {
	id := strings.ToLower(strings.TrimSpace(planID))
	for _, p := range catalog {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrPlanNotFound, planID)
}

// All returns the catalog in display order.
func All() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// StripePriceID resolves the pre-provisioned processor price for a
// recurring plan from the environment (STRIPE_PRICE_GROWTH etc).
// One-time plans have no mapping; their price comes from the catalog.
func StripePriceID(planID string) (string, error) {
	p, err := Lookup(planID)
	if err != nil {
		return "", err
	}
	if !p.IsRecurring() {
		return "", fmt.Errorf("plan %q is not recurring and has no processor price", p.ID)
	}
	key := "STRIPE_PRICE_" + strings.ToUpper(p.ID)
	priceID := strings.TrimSpace(env.GetEnv(key, ""))
	if priceID == "" {
		return "", fmt.Errorf("%s is not configured", key)
	}
	return priceID, nil
}
