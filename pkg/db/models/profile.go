package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront/pkg/enums"
)

// Profile is the canonical identity record; its role gates every protected route.
type Profile struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email        string     `gorm:"column:email;type:text;not null;uniqueIndex:profiles_email_key"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Role         enums.Role `gorm:"column:role;type:text;not null;default:'customer'"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Profile) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
