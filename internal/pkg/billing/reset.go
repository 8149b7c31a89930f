package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/hireboard/hireboard/app/models"
	"github.com/hireboard/hireboard/internal/pkg/plans"
)

// ResetDue zeroes usage counters for active monthly entitlements whose
// cycle has elapsed. Rows are handled independently: one failing update
// is collected and the sweep continues.
func (s *Service) ResetDue(ctx context.Context, now time.Time) (*SweepResult, error) {
	_ = ctx
	ents, err := s.entitlements.ListDueForReset(monthlyPlanIDs())
	if err != nil {
		return nil, fmt.Errorf("list entitlements for reset: %w", err)
	}

	result := &SweepResult{Errors: []string{}}
	for i := range ents {
		ent := &ents[i]
		result.TotalEligible++
		if monthsBetween(resetBaseline(ent), now) < 1 {
			continue
		}
		if err := s.entitlements.ResetUsage(ent.ID, now); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("entitlement %d: %v", ent.ID, err))
			continue
		}
		s.invalidateSummary(ent.CustomerID)
		result.ResetCount++
		s.log.Info().Uint("entitlement_id", ent.ID).Uint("customer_id", ent.CustomerID).Int("previous_used", ent.Used).Msg("usage counter reset")
	}
	return result, nil
}

// PreviewResets reports, per eligible entitlement, the computed next
// reset date and days remaining. Read-only, used for display.
func (s *Service) PreviewResets(ctx context.Context, now time.Time) ([]ResetPreview, error) {
	_ = ctx
	ents, err := s.entitlements.ListDueForReset(monthlyPlanIDs())
	if err != nil {
		return nil, fmt.Errorf("list entitlements for preview: %w", err)
	}

	previews := make([]ResetPreview, 0, len(ents))
	for i := range ents {
		ent := &ents[i]
		baseline := resetBaseline(ent)
		next := baseline.AddDate(0, 1, 0)
		days := 0
		if next.After(now) {
			days = int(next.Sub(now).Hours() / 24)
		}
		previews = append(previews, ResetPreview{
			EntitlementID: ent.ID,
			CustomerID:    ent.CustomerID,
			PlanID:        ent.PlanID,
			Used:          ent.Used,
			Quota:         ent.Quota,
			LastResetAt:   baseline,
			NextResetAt:   next,
			DaysRemaining: days,
		})
	}
	return previews, nil
}

// resetBaseline is the last reset time, falling back to creation time
// for entitlements that were never reset.
func resetBaseline(ent *models.Entitlement) time.Time {
	if ent.LastResetAt != nil {
		return *ent.LastResetAt
	}
	return ent.CreatedAt
}

// monthsBetween computes elapsed whole calendar months ignoring the day
// of month. This intentionally tracks the calendar rather than the
// processor's billing anchor; the drift for non-aligned anchor dates is
// a documented trade-off.
func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// monthlyPlanIDs returns the catalog plans subject to usage resets.
// One-time purchases never reset.
func monthlyPlanIDs() []string {
	var ids []string
	for _, p := range plans.All() {
		if p.IsRecurring() {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
