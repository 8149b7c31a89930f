package repository

import (
	"time"

	"github.com/hireboard/hireboard/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Count() (int64, error)
}

// EntitlementRepository defines the database operations backing the
// entitlement store. Creating transitions are idempotent per natural key
// and supersede any prior active row for the same customer.
type EntitlementRepository interface {
	CreateFromSubscription(ent *models.Entitlement) error
	CreateFromPurchase(ent *models.Entitlement, purchase *models.Purchase) error
	GetByID(id uint) (*models.Entitlement, error)
	GetByExternalSubscriptionRef(ref string) (*models.Entitlement, error)
	GetActiveByCustomer(customerID uint) (*models.Entitlement, error)
	UpdateFromSubscription(ref string, status string, periodStart, periodEnd *time.Time, cancelAtPeriodEnd bool) error
	UpdateStatus(ref string, status string) error
	ConsumeQuota(id uint) (bool, *models.Entitlement, error)
	ListDueForReset(planIDs []string) ([]models.Entitlement, error)
	ResetUsage(id uint, now time.Time) error
	ListByCustomer(customerID uint) ([]models.Entitlement, error)
}

// PurchaseRepository defines operations for one-time purchase records.
type PurchaseRepository interface {
	GetByExternalPaymentRef(ref string) (*models.Purchase, error)
	CountByCustomer(customerID uint) (int64, error)
}

// JobRepository defines the interface for job-posting operations.
type JobRepository interface {
	Create(job *models.Job) error
	GetByID(id uint) (*models.Job, error)
	GetByUUID(uuid string) (*models.Job, error)
	GetByCustomerID(customerID uint, offset, limit int) ([]models.Job, error)
	AnnotateEntitlement(jobID, entitlementID uint) error
	CountByCustomerID(customerID uint) (int64, error)
}

// WebhookEventRepository journals inbound processor events.
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Entitlement  EntitlementRepository
	Purchase     PurchaseRepository
	Job          JobRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Entitlement:  NewEntitlementRepository(db),
		Purchase:     NewPurchaseRepository(db),
		Job:          NewJobRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
