package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"masjidflow/pkg/auth"
	"masjidflow/pkg/metrics"
	"masjidflow/pkg/ratelimit"
	"masjidflow/pkg/token"
)

type server struct {
	cfg    Config
	log    *zap.Logger
	auth   *auth.Service
	users  *auth.UserService
	tokens *token.Service
}

func (s *server) setupRoutes(r *gin.Engine, limiter ratelimit.Limiter) {
	r.Use(metrics.Middleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.Use(rateLimit(limiter, s.cfg.AuthRateLimit, s.cfg.AuthRateWindow))
	authGroup.POST("/send-otp", s.sendOtpHandler)
	authGroup.POST("/signup", s.signupHandler)
	authGroup.POST("/verify-otp", s.verifyOtpHandler)
	authGroup.POST("/refresh", s.refreshHandler)
	authGroup.POST("/logout", s.logoutHandler)
	authGroup.POST("/logout-all", s.authRequired(), s.logoutAllHandler)

	userGroup := v1.Group("/users")
	userGroup.Use(s.authRequired())
	userGroup.GET("/me", s.meHandler)
	userGroup.PUT("/profile", s.updateProfileHandler)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, apiResponse{
			Success: false,
			Message: "Cannot " + c.Request.Method + " " + c.Request.URL.Path,
			Code:    "NOT_FOUND",
		})
	})
}
