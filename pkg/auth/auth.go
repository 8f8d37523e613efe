// Package auth composes the OTP and token services into the login, signup,
// verification, refresh and logout use cases.
package auth

import (
	"context"
	"strings"
	"time"

	"masjidflow/models"
	"masjidflow/pkg/apperr"
	"masjidflow/pkg/otp"
	"masjidflow/pkg/token"
)

// UserStore is the account persistence the orchestrator needs.
type UserStore interface {
	FindByID(id string) (*models.User, error)
	FindByPhone(phone, countryCode string) (*models.User, error)
	FindByEmail(email string) (*models.User, error)
	Create(user *models.User) error
	Save(user *models.User) error
}

// OtpService issues and consumes one-time codes.
type OtpService interface {
	Issue(ctx context.Context, phone, countryCode string, purpose models.OtpPurpose, signupData *models.SignupData, userID *string) (time.Time, error)
	Verify(phone, countryCode, submitted string) (*otp.Result, error)
}

// TokenService mints and rotates the access/refresh pair.
type TokenService interface {
	IssuePair(userID string) (*token.Pair, error)
	Rotate(tokenString string) (*token.Pair, error)
	Revoke(tokenString string) error
	RevokeAllForUser(userID string) error
}

type Service struct {
	users  UserStore
	otp    OtpService
	tokens TokenService
}

func NewService(users UserStore, otp OtpService, tokens TokenService) *Service {
	return &Service{users: users, otp: otp, tokens: tokens}
}

// SendLoginOTP issues a login code for an existing account. A missing account
// is reported as such: the product deliberately tells callers whether a phone
// number is registered.
func (s *Service) SendLoginOTP(ctx context.Context, phone, countryCode string) (time.Time, error) {
	user, err := s.users.FindByPhone(phone, countryCode)
	if err != nil {
		return time.Time{}, apperr.Internal("failed to look up user", err)
	}
	if user == nil {
		return time.Time{}, apperr.NotFound("No account found with this phone number. Please sign up first.", apperr.CodeUserNotFound)
	}
	return s.otp.Issue(ctx, phone, countryCode, models.OtpPurposeLogin, nil, &user.ID)
}

// SendSignupOTP issues a signup code carrying the signup payload. The user
// row is only created once the code is verified.
func (s *Service) SendSignupOTP(ctx context.Context, data models.SignupData) (time.Time, error) {
	existing, err := s.users.FindByPhone(data.Phone, data.CountryCode)
	if err != nil {
		return time.Time{}, apperr.Internal("failed to look up user by phone", err)
	}
	if existing != nil {
		return time.Time{}, apperr.BadRequest("An account with this phone number already exists. Please login.", "")
	}
	existing, err = s.users.FindByEmail(data.Email)
	if err != nil {
		return time.Time{}, apperr.Internal("failed to look up user by email", err)
	}
	if existing != nil {
		return time.Time{}, apperr.BadRequest("An account with this email already exists.", "")
	}
	return s.otp.Issue(ctx, data.Phone, data.CountryCode, models.OtpPurposeSignup, &data, nil)
}

// VerifyResult is the outcome of a successful verification.
type VerifyResult struct {
	IsNewUser bool
	User      *models.User
	Tokens    *token.Pair
}

// VerifyOTP consumes the code and completes either signup (creating the user
// from the carried payload) or login (marking the phone verified if needed),
// then issues the first token pair of the session.
func (s *Service) VerifyOTP(ctx context.Context, phone, countryCode, code string) (*VerifyResult, error) {
	res, err := s.otp.Verify(phone, countryCode, code)
	if err != nil {
		return nil, err
	}

	var user *models.User
	isNewUser := false

	switch {
	case res.Purpose == models.OtpPurposeSignup && res.SignupData != nil:
		user, err = s.createUser(*res.SignupData)
		if err != nil {
			return nil, err
		}
		isNewUser = true
	case res.Purpose == models.OtpPurposeLogin && res.UserID != nil:
		user, err = s.users.FindByID(*res.UserID)
		if err != nil {
			return nil, apperr.Internal("failed to load user", err)
		}
		if user == nil {
			return nil, apperr.NotFound("User not found", "")
		}
		if !user.IsPhoneVerified {
			user.IsPhoneVerified = true
			if err := s.users.Save(user); err != nil {
				return nil, apperr.Internal("failed to mark phone verified", err)
			}
		}
	default:
		// Should not happen: a code always carries either a payload or a
		// user id. Resolve by phone as a last resort.
		user, err = s.users.FindByPhone(phone, countryCode)
		if err != nil {
			return nil, apperr.Internal("failed to look up user", err)
		}
		if user == nil {
			return nil, apperr.BadRequest("Unable to complete verification. Please try signing up again.", "")
		}
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{IsNewUser: isNewUser, User: user, Tokens: pair}, nil
}

// Refresh rotates the presented refresh token into a new pair.
func (s *Service) Refresh(refreshToken string) (*token.Pair, error) {
	return s.tokens.Rotate(refreshToken)
}

// Logout revokes the presented refresh token. Always succeeds for unknown
// tokens.
func (s *Service) Logout(refreshToken string) error {
	return s.tokens.Revoke(refreshToken)
}

// LogoutAll revokes every refresh token the user holds.
func (s *Service) LogoutAll(userID string) error {
	return s.tokens.RevokeAllForUser(userID)
}

func (s *Service) createUser(data models.SignupData) (*models.User, error) {
	existing, err := s.users.FindByPhone(data.Phone, data.CountryCode)
	if err != nil {
		return nil, apperr.Internal("failed to look up user by phone", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("A user with this phone number already exists")
	}
	existing, err = s.users.FindByEmail(data.Email)
	if err != nil {
		return nil, apperr.Internal("failed to look up user by email", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("A user with this email already exists")
	}
	user := models.User{
		Name:        data.Name,
		Email:       data.Email,
		Phone:       data.Phone,
		CountryCode: data.CountryCode,
		// Phone is verified: the user just proved it by consuming the code.
		IsPhoneVerified: true,
	}
	if err := s.users.Create(&user); err != nil {
		if isUniqueConstraintError(err) {
			// Lost a race against a concurrent signup after the pre-checks.
			return nil, apperr.Conflict("A user with this phone number or email already exists")
		}
		return nil, apperr.Internal("failed to create user", err)
	}
	return &user, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "already exists")
}
