package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account identified by phone number. Rows are never hard-deleted
// by the auth flow; OtpRequests and RefreshTokens keep pointing at them for
// auditing.
type User struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Name            string  `gorm:"size:100;not null"`
	Email           string  `gorm:"size:255;not null;uniqueIndex"`
	Phone           string  `gorm:"size:15;not null;uniqueIndex:idx_phone_country"`
	CountryCode     string  `gorm:"size:5;not null;uniqueIndex:idx_phone_country"`
	WhatsappNumber  *string `gorm:"size:20"`
	Address         *string `gorm:"size:500"`
	City            *string `gorm:"size:100"`
	State           *string `gorm:"size:100"`
	IsPhoneVerified bool    `gorm:"default:false;not null"`
	// IsProfileComplete flips to true once name, email, address, city and
	// state are all non-empty. Recomputed on every profile update.
	IsProfileComplete bool           `gorm:"default:false;not null"`
	RefreshTokens     []RefreshToken `gorm:"foreignKey:UserID"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
