package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	JobStatusDraft     = "draft"
	JobStatusPublished = "published"
	JobStatusClosed    = "closed"
)

// Job is a job posting created by an employer. EntitlementID links the
// posting to the entitlement whose quota it consumed; the link is a
// best-effort audit trail, not a billing source of truth.
type Job struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UUID          string         `gorm:"type:varchar(36);not null;index:ux_jobs_uuid,unique" json:"uuid"`
	CustomerID    uint           `gorm:"not null;index" json:"customer_id"`
	Title         string         `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=3,max=200"`
	Description   string         `gorm:"type:text" json:"description"`
	Location      string         `gorm:"type:varchar(150);default:''" json:"location"`
	Status        string         `gorm:"type:varchar(20);not null;default:'draft'" json:"status"`
	EntitlementID *uint          `gorm:"default:null;index" json:"entitlement_id,omitempty"`
	PublishedAt   *time.Time     `gorm:"type:timestamp;default:null" json:"published_at,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a UUID when none was set by the caller.
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.UUID == "" {
		j.UUID = uuid.New().String()
	}
	return nil
}
