// Package store holds the gorm-backed persistence for users, OTP requests and
// refresh tokens. Lookups that miss return (nil, nil) so services can branch
// without importing gorm.
package store

import (
	"errors"

	"gorm.io/gorm"

	"masjidflow/models"
)

type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (s *Users) FindByID(id string) (*models.User, error) {
	var user models.User
	err := s.db.Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Users) FindByPhone(phone, countryCode string) (*models.User, error) {
	var user models.User
	err := s.db.Where("phone = ? AND country_code = ?", phone, countryCode).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Users) FindByEmail(email string) (*models.User, error) {
	var user models.User
	err := s.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Users) Create(user *models.User) error {
	return s.db.Create(user).Error
}

func (s *Users) Save(user *models.User) error {
	return s.db.Save(user).Error
}
