// Package token mints and validates the access/refresh JWT pair and tracks
// refresh tokens for single-use rotation and revocation.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"masjidflow/models"
	"masjidflow/pkg/apperr"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// Store is the persistence the service needs for refresh-token bookkeeping.
type Store interface {
	Create(token *models.RefreshToken) error
	FindByToken(token string) (*models.RefreshToken, error)
	Revoke(id string) (bool, error)
	RevokeByToken(token string) error
	RevokeAllForUser(userID string) error
}

// Pair is one freshly issued access/refresh token pair.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type claims struct {
	UserID string `json:"userId"`
	Kind   string `json:"type"`
	jwt.RegisteredClaims
}

type Service struct {
	store         Store
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewService(store Store, accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		store:         store,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// IssuePair signs a new access and refresh token for the user and persists
// the refresh token row so it can be rotated and revoked later.
func (s *Service) IssuePair(userID string) (*Pair, error) {
	access, err := s.sign(userID, kindAccess, s.accessSecret, s.accessTTL)
	if err != nil {
		return nil, apperr.Internal("failed to sign access token", err)
	}
	refresh, err := s.sign(userID, kindRefresh, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return nil, apperr.Internal("failed to sign refresh token", err)
	}
	row := models.RefreshToken{
		Token:     refresh,
		UserID:    userID,
		ExpiresAt: s.now().Add(s.refreshTTL),
	}
	if err := s.store.Create(&row); err != nil {
		return nil, apperr.Internal("failed to persist refresh token", err)
	}
	return &Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess checks signature, expiry and token kind and returns the user
// id the token was issued for.
func (s *Service) VerifyAccess(tokenString string) (string, error) {
	return s.verify(tokenString, kindAccess, s.accessSecret,
		apperr.Unauthorized("Token expired", apperr.CodeTokenExpired),
		apperr.Unauthorized("Invalid token", apperr.CodeInvalidToken))
}

// VerifyRefresh is VerifyAccess against the refresh signing key, with the
// refresh-specific failure codes.
func (s *Service) VerifyRefresh(tokenString string) (string, error) {
	return s.verify(tokenString, kindRefresh, s.refreshSecret,
		apperr.Unauthorized("Refresh token expired", apperr.CodeRefreshTokenExpired),
		apperr.Unauthorized("Invalid refresh token", apperr.CodeInvalidRefreshToken))
}

// Rotate exchanges a valid refresh token for a brand-new pair. The presented
// token is revoked in the same step; the revocation is conditional on the row
// still being live, so a token can be rotated exactly once even under
// concurrent requests.
func (s *Service) Rotate(tokenString string) (*Pair, error) {
	if _, err := s.VerifyRefresh(tokenString); err != nil {
		return nil, err
	}
	stored, err := s.store.FindByToken(tokenString)
	if err != nil {
		return nil, apperr.Internal("failed to load refresh token", err)
	}
	if stored == nil || stored.IsRevoked {
		return nil, apperr.Unauthorized("Invalid refresh token", apperr.CodeInvalidRefreshToken)
	}
	if stored.ExpiresAt.Before(s.now()) {
		return nil, apperr.Unauthorized("Refresh token expired", apperr.CodeRefreshTokenExpired)
	}
	revoked, err := s.store.Revoke(stored.ID)
	if err != nil {
		return nil, apperr.Internal("failed to revoke refresh token", err)
	}
	if !revoked {
		// Lost the race against a concurrent rotation of the same token.
		return nil, apperr.Unauthorized("Invalid refresh token", apperr.CodeInvalidRefreshToken)
	}
	return s.IssuePair(stored.UserID)
}

// Revoke marks the token revoked. Idempotent; unknown tokens are ignored.
func (s *Service) Revoke(tokenString string) error {
	if err := s.store.RevokeByToken(tokenString); err != nil {
		return apperr.Internal("failed to revoke refresh token", err)
	}
	return nil
}

// RevokeAllForUser revokes every refresh token issued to the user.
func (s *Service) RevokeAllForUser(userID string) error {
	if err := s.store.RevokeAllForUser(userID); err != nil {
		return apperr.Internal("failed to revoke refresh tokens", err)
	}
	return nil
}

func (s *Service) sign(userID, kind string, secret []byte, ttl time.Duration) (string, error) {
	now := s.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti keeps two tokens minted in the same second distinct,
			// which the unique token column relies on.
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return t.SignedString(secret)
}

func (s *Service) verify(tokenString, kind string, secret []byte, expiredErr, invalidErr *apperr.Error) (string, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", expiredErr
		}
		return "", invalidErr
	}
	if !parsed.Valid || c.Kind != kind || c.UserID == "" {
		return "", invalidErr
	}
	return c.UserID, nil
}
