package main

import (
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"masjidflow/pkg/auth"
	"masjidflow/pkg/logger"
	"masjidflow/pkg/otp"
	"masjidflow/pkg/ratelimit"
	"masjidflow/pkg/sms"
	"masjidflow/pkg/store"
	"masjidflow/pkg/token"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Env)
	defer log.Sync()

	db, err := initDB(cfg, log)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}

	var sender sms.Sender
	if cfg.SMSProvider == "twilio" {
		sender = sms.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	} else {
		sender = sms.NewMockSender(log)
	}

	users := store.NewUsers(db)
	otps := store.NewOtps(db)
	refreshTokens := store.NewRefreshTokens(db)

	tokens := token.NewService(refreshTokens, cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	otpService := otp.NewService(otps, sender, log, otp.Config{
		Length:         cfg.OTPLength,
		TTL:            cfg.OTPTTL,
		MaxAttempts:    cfg.OTPMaxAttempts,
		ResendCooldown: cfg.OTPResendCooldown,
		BcryptCost:     cfg.BcryptCost,
	}, !cfg.IsProduction())
	authService := auth.NewService(users, otpService, tokens)
	userService := auth.NewUserService(users)

	var limiter ratelimit.Limiter = ratelimit.NewMemory()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		limiter = ratelimit.NewRedis(client)
		log.Info("using redis rate limiter", zap.String("addr", cfg.RedisAddr))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	srv := &server{
		cfg:    cfg,
		log:    log,
		auth:   authService,
		users:  userService,
		tokens: tokens,
	}
	srv.setupRoutes(r, limiter)

	log.Info("server starting", zap.Int("port", cfg.Port), zap.String("env", cfg.Env))
	if err := r.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
