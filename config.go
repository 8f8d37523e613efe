package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration, read from the environment with a
// .env file as fallback. Defaults mirror the product's shipped values.
type Config struct {
	Env  string
	Port int

	DBDSN         string
	DBAutoMigrate bool

	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration

	OTPLength         int
	OTPTTL            time.Duration
	OTPMaxAttempts    int
	OTPResendCooldown time.Duration
	BcryptCost        int

	SMSProvider      string // "mock" or "twilio"
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSOrigin string

	AuthRateLimit  int
	AuthRateWindow time.Duration
}

func (c Config) IsProduction() bool { return c.Env == "production" }

func loadConfig() (Config, error) {
	// Values already present in the environment win over the .env file.
	_ = godotenv.Load()

	cfg := Config{
		Env:               envOr("APP_ENV", "development"),
		Port:              envIntOr("PORT", 3001),
		DBDSN:             os.Getenv("DB_DSN"),
		DBAutoMigrate:     envBoolOr("DB_AUTO_MIGRATE", true),
		JWTAccessSecret:   os.Getenv("JWT_ACCESS_SECRET"),
		JWTRefreshSecret:  os.Getenv("JWT_REFRESH_SECRET"),
		AccessTTL:         envDurationOr("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:        envDurationOr("JWT_REFRESH_TTL", 7*24*time.Hour),
		OTPLength:         envIntOr("OTP_LENGTH", 6),
		OTPTTL:            envDurationOr("OTP_TTL", 5*time.Minute),
		OTPMaxAttempts:    envIntOr("OTP_MAX_ATTEMPTS", 3),
		OTPResendCooldown: envDurationOr("OTP_RESEND_COOLDOWN", 30*time.Second),
		BcryptCost:        envIntOr("OTP_BCRYPT_COST", 10),
		SMSProvider:       envOr("SMS_PROVIDER", "mock"),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:  os.Getenv("TWILIO_PHONE_NUMBER"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           envIntOr("REDIS_DB", 0),
		CORSOrigin:        envOr("CORS_ORIGIN", "http://localhost:5173"),
		AuthRateLimit:     envIntOr("AUTH_RATE_LIMIT", 30),
		AuthRateWindow:    envDurationOr("AUTH_RATE_WINDOW", time.Minute),
	}

	for name, value := range map[string]string{
		"DB_DSN":             cfg.DBDSN,
		"JWT_ACCESS_SECRET":  cfg.JWTAccessSecret,
		"JWT_REFRESH_SECRET": cfg.JWTRefreshSecret,
	} {
		if value == "" {
			return Config{}, fmt.Errorf("missing required environment variable: %s", name)
		}
	}
	if cfg.SMSProvider == "twilio" && (cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromNumber == "") {
		return Config{}, fmt.Errorf("SMS_PROVIDER=twilio requires TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_PHONE_NUMBER")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
