package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"masjidflow/models"
)

type Otps struct {
	db *gorm.DB
}

func NewOtps(db *gorm.DB) *Otps {
	return &Otps{db: db}
}

func (s *Otps) Create(req *models.OtpRequest) error {
	return s.db.Create(req).Error
}

// LatestUnusedSince returns the newest unused request for the pair created at
// or after the given instant. Used for the resend-cooldown check.
func (s *Otps) LatestUnusedSince(phone, countryCode string, since time.Time) (*models.OtpRequest, error) {
	var req models.OtpRequest
	err := s.db.
		Where("phone = ? AND country_code = ? AND is_used = ? AND created_at >= ?", phone, countryCode, false, since).
		Order("created_at desc").
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// LatestActive returns the newest unused, unexpired request for the pair.
func (s *Otps) LatestActive(phone, countryCode string, now time.Time) (*models.OtpRequest, error) {
	var req models.OtpRequest
	err := s.db.
		Where("phone = ? AND country_code = ? AND is_used = ? AND expires_at >= ?", phone, countryCode, false, now).
		Order("created_at desc").
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// InvalidateUnused marks every unused request for the pair as used, keeping
// the at-most-one-active invariant when a new code is issued.
func (s *Otps) InvalidateUnused(phone, countryCode string) error {
	return s.db.Model(&models.OtpRequest{}).
		Where("phone = ? AND country_code = ? AND is_used = ?", phone, countryCode, false).
		Update("is_used", true).Error
}

// IncrementAttempts bumps the attempt counter in a single statement so
// concurrent wrong guesses cannot lose an increment.
func (s *Otps) IncrementAttempts(id string) error {
	return s.db.Model(&models.OtpRequest{}).
		Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1")).Error
}

// Consume marks the request used, guarded on it still being unused. The false
// return means another request consumed it first; the code must not be
// accepted twice.
func (s *Otps) Consume(id string) (bool, error) {
	res := s.db.Model(&models.OtpRequest{}).
		Where("id = ? AND is_used = ?", id, false).
		Update("is_used", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
