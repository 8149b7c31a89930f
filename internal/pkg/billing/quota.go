package billing

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/hireboard/hireboard/app/models"
)

// TryConsume spends one unit of the customer's active entitlement for
// the given job. The increment is an atomic conditional update, so two
// concurrent calls cannot both take the last unit. The quota charge is
// authoritative even if the job annotation afterwards fails.
func (s *Service) TryConsume(ctx context.Context, customerID, jobID uint) (*ConsumeResult, error) {
	_ = ctx
	ent, err := s.entitlements.GetActiveByCustomer(customerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveEntitlement
	}
	if err != nil {
		return nil, fmt.Errorf("lookup active entitlement: %w", err)
	}

	// Cheap pre-check; the conditional update below is the real guard.
	if !ent.IsUnlimited() && ent.Used >= ent.Quota {
		return nil, ErrQuotaExceeded
	}

	ok, updated, err := s.entitlements.ConsumeQuota(ent.ID)
	if err != nil {
		return nil, fmt.Errorf("consume quota: %w", err)
	}
	if !ok {
		return nil, ErrQuotaExceeded
	}

	if jobID != 0 {
		if err := s.jobs.AnnotateEntitlement(jobID, updated.ID); err != nil {
			s.log.Warn().Err(err).Uint("job_id", jobID).Uint("entitlement_id", updated.ID).Msg("job annotation failed, quota charge stands")
		}
	}
	s.invalidateSummary(customerID)

	return &ConsumeResult{
		Used:      updated.Used,
		Remaining: updated.Remaining(),
	}, nil
}

// Summary returns the customer's current quota snapshot for display,
// served from cache when fresh.
func (s *Service) Summary(ctx context.Context, customerID uint) (*QuotaSummary, error) {
	_ = ctx
	if s.summaries != nil {
		if sum, ok := s.summaries.Get(customerID); ok {
			return sum, nil
		}
	}

	ent, err := s.entitlements.GetActiveByCustomer(customerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveEntitlement
	}
	if err != nil {
		return nil, fmt.Errorf("lookup active entitlement: %w", err)
	}

	sum := &QuotaSummary{
		EntitlementID: ent.ID,
		PlanID:        ent.PlanID,
		Status:        ent.Status,
		Quota:         ent.Quota,
		Used:          ent.Used,
		Remaining:     ent.Remaining(),
		PeriodEnd:     ent.PeriodEnd,
	}
	if s.summaries != nil {
		s.summaries.Set(customerID, sum)
	}
	return sum, nil
}

// History returns the customer's entitlement records, newest first, for
// the billing dashboard.
func (s *Service) History(ctx context.Context, customerID uint) ([]models.Entitlement, error) {
	_ = ctx
	return s.entitlements.ListByCustomer(customerID)
}
