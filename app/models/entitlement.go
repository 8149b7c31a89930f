package models

import "time"

const (
	EntitlementStatusActive    = "active"
	EntitlementStatusPastDue   = "past_due"
	EntitlementStatusCancelled = "cancelled"
)

// QuotaUnlimited marks an entitlement without a job limit.
const QuotaUnlimited = -1

// Entitlement is the durable record of what a customer is currently allowed
// to do. One row per acquisition; cancellation is a status transition, the
// row is never deleted.
type Entitlement struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	CustomerID              uint       `gorm:"not null;index:idx_entitlements_customer_status,priority:1" json:"customer_id"`
	ExternalCustomerRef     string     `gorm:"type:varchar(191);default:''" json:"external_customer_ref"`
	ExternalSubscriptionRef *string    `gorm:"type:varchar(191);default:null;index:ux_entitlements_external_sub,unique" json:"external_subscription_ref,omitempty"`
	PlanID                  string     `gorm:"type:varchar(50);not null" json:"plan_id"`
	Status                  string     `gorm:"type:varchar(32);not null;default:'active';index:idx_entitlements_customer_status,priority:2" json:"status"`
	Quota                   int        `gorm:"not null" json:"quota"`
	Used                    int        `gorm:"not null;default:0" json:"used"`
	PeriodStart             *time.Time `gorm:"type:timestamp;default:null" json:"period_start,omitempty"`
	PeriodEnd               *time.Time `gorm:"type:timestamp;default:null" json:"period_end,omitempty"`
	LastResetAt             *time.Time `gorm:"type:timestamp;default:null" json:"last_reset_at,omitempty"`
	CancelAtPeriodEnd       bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CreatedAt               time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsUnlimited reports whether the entitlement has no job limit.
func (e *Entitlement) IsUnlimited() bool {
	return e.Quota == QuotaUnlimited
}

// Remaining returns the number of jobs still postable, or QuotaUnlimited.
func (e *Entitlement) Remaining() int {
	if e.IsUnlimited() {
		return QuotaUnlimited
	}
	if r := e.Quota - e.Used; r > 0 {
		return r
	}
	return 0
}
