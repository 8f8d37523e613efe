package store

import (
	"errors"

	"gorm.io/gorm"

	"masjidflow/models"
)

type RefreshTokens struct {
	db *gorm.DB
}

func NewRefreshTokens(db *gorm.DB) *RefreshTokens {
	return &RefreshTokens{db: db}
}

func (s *RefreshTokens) Create(token *models.RefreshToken) error {
	return s.db.Create(token).Error
}

func (s *RefreshTokens) FindByToken(token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	err := s.db.Where("token = ?", token).First(&rt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// Revoke marks the row revoked, guarded on it not being revoked yet. The
// false return means a concurrent rotation already spent it.
func (s *RefreshTokens) Revoke(id string) (bool, error) {
	res := s.db.Model(&models.RefreshToken{}).
		Where("id = ? AND is_revoked = ?", id, false).
		Update("is_revoked", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RevokeByToken revokes whatever rows match the token string. Idempotent; a
// missing token is not an error.
func (s *RefreshTokens) RevokeByToken(token string) error {
	return s.db.Model(&models.RefreshToken{}).
		Where("token = ?", token).
		Update("is_revoked", true).Error
}

// RevokeAllForUser revokes every token issued to the user (global logout).
func (s *RefreshTokens) RevokeAllForUser(userID string) error {
	return s.db.Model(&models.RefreshToken{}).
		Where("user_id = ?", userID).
		Update("is_revoked", true).Error
}
