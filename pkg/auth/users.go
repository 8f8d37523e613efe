package auth

import (
	"masjidflow/models"
	"masjidflow/pkg/apperr"
)

// UserService covers the profile reads and writes behind /users.
type UserService struct {
	users UserStore
}

func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Get(userID string) (*models.User, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("User not found", "")
	}
	return user, nil
}

// ProfileUpdate carries the optional profile fields. Nil means "leave alone".
type ProfileUpdate struct {
	Name           *string
	Email          *string
	WhatsappNumber *string
	Address        *string
	City           *string
	State          *string
}

// UpdateProfile applies the partial update and recomputes the
// profile-complete flag: it is true only when name, email, address, city and
// state are all non-empty after the merge.
func (s *UserService) UpdateProfile(userID string, update ProfileUpdate) (*models.User, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("User not found", "")
	}

	if update.Email != nil && *update.Email != "" && *update.Email != user.Email {
		existing, err := s.users.FindByEmail(*update.Email)
		if err != nil {
			return nil, apperr.Internal("failed to look up user by email", err)
		}
		if existing != nil {
			return nil, apperr.Conflict("A user with this email already exists")
		}
		user.Email = *update.Email
	}
	if update.Name != nil && *update.Name != "" {
		user.Name = *update.Name
	}
	if update.WhatsappNumber != nil {
		user.WhatsappNumber = update.WhatsappNumber
	}
	if update.Address != nil {
		user.Address = update.Address
	}
	if update.City != nil {
		user.City = update.City
	}
	if update.State != nil {
		user.State = update.State
	}

	user.IsProfileComplete = user.Name != "" && user.Email != "" &&
		hasValue(user.Address) && hasValue(user.City) && hasValue(user.State)

	if err := s.users.Save(user); err != nil {
		return nil, apperr.Internal("failed to update profile", err)
	}
	return user, nil
}

func hasValue(s *string) bool {
	return s != nil && *s != ""
}
