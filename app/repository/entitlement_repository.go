package repository

import (
	"time"

	"github.com/hireboard/hireboard/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// entitlementRepository implements the EntitlementRepository interface
type entitlementRepository struct {
	db *gorm.DB
}

// NewEntitlementRepository creates a new entitlement repository instance
func NewEntitlementRepository(db *gorm.DB) EntitlementRepository {
	return &entitlementRepository{db: db}
}

// CreateFromSubscription inserts a subscription-backed entitlement. The
// insert is idempotent per external_subscription_ref; when a row already
// exists its status and period are refreshed instead. Any other active
// row for the customer is superseded in the same transaction so at most
// one active entitlement per customer survives.
func (r *entitlementRepository) CreateFromSubscription(ent *models.Entitlement) error {
	if ent.ExternalSubscriptionRef == nil || *ent.ExternalSubscriptionRef == "" {
		return gorm.ErrInvalidData
	}
	ref := *ent.ExternalSubscriptionRef
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := supersedeActive(tx, ent.CustomerID, ref); err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "external_subscription_ref"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"status",
				"period_start",
				"period_end",
				"cancel_at_period_end",
				"updated_at",
			}),
		}).Create(ent).Error; err != nil {
			return err
		}
		// Ensure ID is populated after upsert.
		return tx.Where("external_subscription_ref = ?", ref).
			First(ent).Error
	})
}

// CreateFromPurchase inserts a one-time purchase and its synthetic
// entitlement. The purchase row's unique external_payment_ref is the
// idempotency key: a replayed event inserts nothing.
func (r *entitlementRepository) CreateFromPurchase(ent *models.Entitlement, purchase *models.Purchase) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "external_payment_ref"},
			},
			DoNothing: true,
		}).Create(purchase)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Redelivered event, entitlement was already created.
			return nil
		}
		if err := supersedeActive(tx, ent.CustomerID, ""); err != nil {
			return err
		}
		return tx.Create(ent).Error
	})
}

// supersedeActive cancels all active rows for the customer except the one
// matching keepRef (empty keepRef cancels every active row).
func supersedeActive(tx *gorm.DB, customerID uint, keepRef string) error {
	q := tx.Model(&models.Entitlement{}).
		Where("customer_id = ? AND status = ?", customerID, models.EntitlementStatusActive)
	if keepRef != "" {
		q = q.Where("external_subscription_ref IS NULL OR external_subscription_ref <> ?", keepRef)
	}
	return q.Updates(map[string]interface{}{
		"status":     models.EntitlementStatusCancelled,
		"updated_at": time.Now(),
	}).Error
}

// GetByID retrieves an entitlement by its ID
func (r *entitlementRepository) GetByID(id uint) (*models.Entitlement, error) {
	var ent models.Entitlement
	err := r.db.First(&ent, id).Error
	if err != nil {
		return nil, err
	}
	return &ent, nil
}

// GetByExternalSubscriptionRef resolves the processor's subscription
// reference to the local entitlement row.
func (r *entitlementRepository) GetByExternalSubscriptionRef(ref string) (*models.Entitlement, error) {
	var ent models.Entitlement
	err := r.db.Where("external_subscription_ref = ?", ref).First(&ent).Error
	if err != nil {
		return nil, err
	}
	return &ent, nil
}

// GetActiveByCustomer returns the customer's current active entitlement.
// Ordering by recency keeps behavior deterministic if supersession ever
// left more than one active row behind.
func (r *entitlementRepository) GetActiveByCustomer(customerID uint) (*models.Entitlement, error) {
	var ent models.Entitlement
	err := r.db.
		Where("customer_id = ? AND status = ?", customerID, models.EntitlementStatusActive).
		Order("created_at DESC").
		First(&ent).Error
	if err != nil {
		return nil, err
	}
	return &ent, nil
}

// UpdateFromSubscription overwrites status, period boundaries and the
// cancel flag for the row matching the subscription reference. Overwrites
// are last-write-wins, which keeps redelivered updates idempotent.
func (r *entitlementRepository) UpdateFromSubscription(ref string, status string, periodStart, periodEnd *time.Time, cancelAtPeriodEnd bool) error {
	updates := map[string]interface{}{
		"status":               status,
		"cancel_at_period_end": cancelAtPeriodEnd,
		"updated_at":           time.Now(),
	}
	if periodStart != nil {
		updates["period_start"] = periodStart
	}
	if periodEnd != nil {
		updates["period_end"] = periodEnd
	}
	res := r.db.Model(&models.Entitlement{}).
		Where("external_subscription_ref = ?", ref).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateStatus performs a status-only transition keyed by the
// subscription reference, leaving period and cancel flag untouched.
func (r *entitlementRepository) UpdateStatus(ref string, status string) error {
	res := r.db.Model(&models.Entitlement{}).
		Where("external_subscription_ref = ?", ref).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ConsumeQuota performs the atomic conditional increment guarding job
// postings. The WHERE clause closes the check-then-increment race: two
// concurrent calls for the last quota unit cannot both match.
func (r *entitlementRepository) ConsumeQuota(id uint) (bool, *models.Entitlement, error) {
	res := r.db.Model(&models.Entitlement{}).
		Where("id = ? AND status = ? AND (quota = ? OR used < quota)",
			id, models.EntitlementStatusActive, models.QuotaUnlimited).
		Updates(map[string]interface{}{
			"used":       gorm.Expr("used + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, nil, res.Error
	}
	ent, err := r.GetByID(id)
	if err != nil {
		return false, nil, err
	}
	return res.RowsAffected > 0, ent, nil
}

// ListDueForReset returns active entitlements on the given monthly plans.
// Month arithmetic happens in the caller; the query only narrows the scan.
func (r *entitlementRepository) ListDueForReset(planIDs []string) ([]models.Entitlement, error) {
	var ents []models.Entitlement
	err := r.db.
		Where("status = ? AND plan_id IN ?", models.EntitlementStatusActive, planIDs).
		Find(&ents).Error
	return ents, err
}

// ResetUsage zeroes the usage counter and stamps the reset time.
func (r *entitlementRepository) ResetUsage(id uint, now time.Time) error {
	return r.db.Model(&models.Entitlement{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"used":          0,
			"last_reset_at": now,
			"updated_at":    now,
		}).Error
}

// ListByCustomer returns the customer's full entitlement history,
// newest first.
func (r *entitlementRepository) ListByCustomer(customerID uint) ([]models.Entitlement, error) {
	var ents []models.Entitlement
	err := r.db.
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&ents).Error
	return ents, err
}
