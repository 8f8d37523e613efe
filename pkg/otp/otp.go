// Package otp issues and verifies the one-time codes behind phone login and
// signup. Codes are stored bcrypt-hashed with an expiry, an attempt counter
// and a used flag; the plaintext only ever leaves through the SMS transport
// (and the log, outside production).
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"masjidflow/models"
	"masjidflow/pkg/apperr"
	"masjidflow/pkg/metrics"
	"masjidflow/pkg/sms"
)

// Store is the persistence the service needs for OTP rows.
type Store interface {
	Create(req *models.OtpRequest) error
	LatestUnusedSince(phone, countryCode string, since time.Time) (*models.OtpRequest, error)
	LatestActive(phone, countryCode string, now time.Time) (*models.OtpRequest, error)
	InvalidateUnused(phone, countryCode string) error
	IncrementAttempts(id string) error
	Consume(id string) (bool, error)
}

// Config carries the tunables of the code lifecycle.
type Config struct {
	Length         int
	TTL            time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
	BcryptCost     int
}

type Service struct {
	store  Store
	sender sms.Sender
	log    *zap.Logger
	cfg    Config
	// logPlaintext mirrors issued codes into the log for manual testing.
	// Must stay off in production.
	logPlaintext bool
	now          func() time.Time
}

func NewService(store Store, sender sms.Sender, log *zap.Logger, cfg Config, logPlaintext bool) *Service {
	return &Service{
		store:        store,
		sender:       sender,
		log:          log,
		cfg:          cfg,
		logPlaintext: logPlaintext,
		now:          time.Now,
	}
}

// Result is what a consumed code resolves to.
type Result struct {
	Purpose    models.OtpPurpose
	SignupData *models.SignupData
	UserID     *string
}

// Issue generates, stores and dispatches a fresh code for the pair. Issuing
// marks every prior unused code for the pair used, so at most one code is
// active at a time. A second request inside the resend cooldown fails with
// the remaining wait time.
func (s *Service) Issue(ctx context.Context, phone, countryCode string, purpose models.OtpPurpose, signupData *models.SignupData, userID *string) (time.Time, error) {
	now := s.now()
	recent, err := s.store.LatestUnusedSince(phone, countryCode, now.Add(-s.cfg.ResendCooldown))
	if err != nil {
		return time.Time{}, apperr.Internal("failed to check recent otp requests", err)
	}
	if recent != nil {
		wait := int((s.cfg.ResendCooldown - now.Sub(recent.CreatedAt) + time.Second - 1) / time.Second)
		return time.Time{}, apperr.TooManyRequests(fmt.Sprintf("Please wait %d seconds before requesting another OTP", wait))
	}

	code, err := generateCode(s.cfg.Length)
	if err != nil {
		return time.Time{}, apperr.Internal("failed to generate otp", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.BcryptCost)
	if err != nil {
		return time.Time{}, apperr.Internal("failed to hash otp", err)
	}

	if err := s.store.InvalidateUnused(phone, countryCode); err != nil {
		return time.Time{}, apperr.Internal("failed to invalidate prior otp requests", err)
	}

	expiresAt := now.Add(s.cfg.TTL)
	req := models.OtpRequest{
		Phone:       phone,
		CountryCode: countryCode,
		OtpHash:     string(hash),
		Purpose:     purpose,
		SignupData:  signupData,
		ExpiresAt:   expiresAt,
		UserID:      userID,
	}
	if err := s.store.Create(&req); err != nil {
		return time.Time{}, apperr.Internal("failed to store otp request", err)
	}

	message := sms.OtpMessage(code, int(s.cfg.TTL.Minutes()))
	if err := s.sender.SendSMS(ctx, countryCode+phone, message); err != nil {
		s.log.Error("otp delivery failed", zap.String("phone", countryCode+phone), zap.Error(err))
		return time.Time{}, apperr.BadRequest("Failed to send OTP. Please try again.", "")
	}

	if s.logPlaintext {
		s.log.Info("otp issued", zap.String("phone", countryCode+phone), zap.String("otp", code))
	}
	metrics.OtpIssued.WithLabelValues(string(purpose)).Inc()
	return expiresAt, nil
}

// Verify resolves the newest active code for the pair against the submitted
// value. It is the single consumption point: a matching code is marked used
// in a conditional update, so it can be accepted exactly once even under
// concurrent requests.
func (s *Service) Verify(phone, countryCode, submitted string) (*Result, error) {
	req, err := s.store.LatestActive(phone, countryCode, s.now())
	if err != nil {
		return nil, apperr.Internal("failed to look up otp request", err)
	}
	if req == nil {
		return nil, apperr.BadRequest("No valid OTP found. Please request a new one.", apperr.CodeOtpNotFound)
	}

	if req.Attempts >= s.cfg.MaxAttempts {
		// Terminal state: burn the code so later retries with the correct
		// value keep failing.
		if _, err := s.store.Consume(req.ID); err != nil {
			return nil, apperr.Internal("failed to burn otp request", err)
		}
		metrics.OtpVerifications.WithLabelValues("burned").Inc()
		return nil, apperr.TooManyRequests("Maximum OTP attempts exceeded. Please request a new code.")
	}

	if bcrypt.CompareHashAndPassword([]byte(req.OtpHash), []byte(submitted)) != nil {
		if err := s.store.IncrementAttempts(req.ID); err != nil {
			return nil, apperr.Internal("failed to record otp attempt", err)
		}
		remaining := s.cfg.MaxAttempts - req.Attempts - 1
		metrics.OtpVerifications.WithLabelValues("mismatch").Inc()
		return nil, apperr.BadRequest(fmt.Sprintf("Invalid OTP. %d attempt(s) remaining.", remaining), apperr.CodeInvalidOtp)
	}

	consumed, err := s.store.Consume(req.ID)
	if err != nil {
		return nil, apperr.Internal("failed to consume otp request", err)
	}
	if !consumed {
		// A concurrent request spent this code between lookup and consume.
		return nil, apperr.BadRequest("No valid OTP found. Please request a new one.", apperr.CodeOtpNotFound)
	}
	metrics.OtpVerifications.WithLabelValues("ok").Inc()
	return &Result{Purpose: req.Purpose, SignupData: req.SignupData, UserID: req.UserID}, nil
}

// generateCode returns a uniformly random decimal code with a non-zero first
// digit, so the code always has exactly the configured number of digits.
func generateCode(length int) (string, error) {
	min := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	span := new(big.Int).Mul(min, big.NewInt(9))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	return n.Add(n, min).String(), nil
}
