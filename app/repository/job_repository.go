package repository

import (
	"github.com/hireboard/hireboard/app/models"
	"gorm.io/gorm"
)

// jobRepository implements the JobRepository interface
type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository instance
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

// Create creates a new job posting in the database
func (r *jobRepository) Create(job *models.Job) error {
	return r.db.Create(job).Error
}

// GetByID retrieves a job by its ID
func (r *jobRepository) GetByID(id uint) (*models.Job, error) {
	var job models.Job
	err := r.db.First(&job, id).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetByUUID retrieves a job by its UUID
func (r *jobRepository) GetByUUID(uuid string) (*models.Job, error) {
	var job models.Job
	err := r.db.Where("uuid = ?", uuid).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetByCustomerID retrieves jobs for a customer with pagination
func (r *jobRepository) GetByCustomerID(customerID uint, offset, limit int) ([]models.Job, error) {
	var jobs []models.Job
	err := r.db.
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// AnnotateEntitlement links a job to the entitlement whose quota it
// consumed. The link is an audit trail only.
func (r *jobRepository) AnnotateEntitlement(jobID, entitlementID uint) error {
	return r.db.Model(&models.Job{}).
		Where("id = ?", jobID).
		Update("entitlement_id", entitlementID).Error
}

// CountByCustomerID counts jobs posted by a customer
func (r *jobRepository) CountByCustomerID(customerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Job{}).Where("customer_id = ?", customerID).Count(&count).Error
	return count, err
}
