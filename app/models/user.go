package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	RoleEmployer  = "employer"
	RoleCandidate = "candidate"
	RoleAdmin     = "admin"

	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDisabled = "disabled"
)

// User is an account on the marketplace. Employers own entitlements and
// job postings; authentication itself is handled by the session layer
// and is not modeled here.
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email       string         `gorm:"uniqueIndex;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin" json:"email" validate:"required,email,min=5,max=200"`
	CompanyName string         `gorm:"type:varchar(200);default:''" json:"company_name" validate:"max=200"`
	Role        string         `gorm:"type:varchar(50);default:'employer'" json:"role" validate:"oneof=employer candidate admin"`
	Status      string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	LastLoginAt *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}
