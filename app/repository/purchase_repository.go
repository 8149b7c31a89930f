package repository

import (
	"github.com/hireboard/hireboard/app/models"
	"gorm.io/gorm"
)

// purchaseRepository implements the PurchaseRepository interface
type purchaseRepository struct {
	db *gorm.DB
}

// NewPurchaseRepository creates a new purchase repository instance
func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

// GetByExternalPaymentRef retrieves a purchase by the processor's
// payment reference.
func (r *purchaseRepository) GetByExternalPaymentRef(ref string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.Where("external_payment_ref = ?", ref).First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// CountByCustomer counts one-time purchases made by a customer.
func (r *purchaseRepository) CountByCustomer(customerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Purchase{}).Where("customer_id = ?", customerID).Count(&count).Error
	return count, err
}
