package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OtpPurpose distinguishes login codes from signup codes.
type OtpPurpose string

const (
	OtpPurposeLogin  OtpPurpose = "LOGIN"
	OtpPurposeSignup OtpPurpose = "SIGNUP"
)

// SignupData is the payload carried by a SIGNUP code until the user row is
// created on verification. Stored as jsonb alongside the code.
type SignupData struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	CountryCode string `json:"countryCode"`
}

func (s SignupData) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *SignupData) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("unsupported type for SignupData")
	}
}

// OtpRequest is one issued code. Rows are never deleted; a row is inert once
// IsUsed is set or ExpiresAt has passed. At most one unused row per
// (phone, country_code) is considered active: issuing a new code marks all
// prior unused rows used first.
type OtpRequest struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	CreatedAt   time.Time
	Phone       string      `gorm:"size:15;not null;index:idx_otp_phone_country"`
	CountryCode string      `gorm:"size:5;not null;index:idx_otp_phone_country"`
	OtpHash     string      `gorm:"size:128;not null"`
	Purpose     OtpPurpose  `gorm:"size:10;not null;default:LOGIN"`
	SignupData  *SignupData `gorm:"type:jsonb"`
	ExpiresAt   time.Time   `gorm:"not null;index"`
	Attempts    int         `gorm:"default:0;not null"`
	IsUsed      bool        `gorm:"default:false;not null;index"`
	UserID      *string     `gorm:"type:uuid;index"`
}

func (o *OtpRequest) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
