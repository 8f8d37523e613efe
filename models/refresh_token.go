package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefreshToken tracks one issued refresh token for rotation and revocation.
// A revoked or expired row must never yield a new token pair. Rows are marked
// revoked on rotation or logout, never deleted.
type RefreshToken struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
	Token     string    `gorm:"size:512;not null;uniqueIndex"`
	UserID    string    `gorm:"type:uuid;not null;index"`
	ExpiresAt time.Time `gorm:"not null;index"`
	IsRevoked bool      `gorm:"default:false;not null"`
}

func (r *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
