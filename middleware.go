package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"masjidflow/pkg/apperr"
	"masjidflow/pkg/ratelimit"
)

const ctxUserID = "userID"

// authRequired parses the bearer access token and puts the user id on the
// context.
func (s *server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiResponse{
				Success: false,
				Message: "No token provided",
				Code:    apperr.CodeNoToken,
			})
			return
		}
		userID, err := s.tokens.VerifyAccess(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			var e *apperr.Error
			if errors.As(err, &e) {
				c.AbortWithStatusJSON(e.Status(), apiResponse{Success: false, Message: e.Message, Code: e.Code})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiResponse{
				Success: false,
				Message: "Invalid token",
				Code:    apperr.CodeInvalidToken,
			})
			return
		}
		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// rateLimit rejects requests once the per-IP fixed window is exhausted. A nil
// limiter disables limiting.
func rateLimit(limiter ratelimit.Limiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		if !limiter.Allow(c.ClientIP(), limit, window) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apiResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
			})
			return
		}
		c.Next()
	}
}
