package models

import "time"

// Purchase records a completed one-time checkout. The unique
// external_payment_ref makes replayed checkout events idempotent.
type Purchase struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	CustomerID         uint      `gorm:"not null;index" json:"customer_id"`
	ExternalPaymentRef string    `gorm:"type:varchar(191);not null;index:ux_purchases_external_payment,unique" json:"external_payment_ref"`
	PlanID             string    `gorm:"type:varchar(50);not null" json:"plan_id"`
	AmountCents        int64     `gorm:"not null;default:0" json:"amount_cents"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
