package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"masjidflow/models"
)

const refreshCookieName = "refreshToken"

type sendOtpRequest struct {
	Phone       string `json:"phone" binding:"required,phone"`
	CountryCode string `json:"countryCode" binding:"required,countrycode"`
}

type signupRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Email       string `json:"email" binding:"required,email"`
	Phone       string `json:"phone" binding:"required,phone"`
	CountryCode string `json:"countryCode" binding:"required,countrycode"`
}

type verifyOtpRequest struct {
	Phone       string `json:"phone" binding:"required,phone"`
	CountryCode string `json:"countryCode" binding:"required,countrycode"`
	Otp         string `json:"otp" binding:"required,number,len=6"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *server) sendOtpHandler(c *gin.Context) {
	var req sendOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.failValidation(c, err)
		return
	}
	expiresAt, err := s.auth.SendLoginOTP(c.Request.Context(), req.Phone, req.CountryCode)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, "OTP sent successfully", gin.H{"expiresAt": expiresAt})
}

func (s *server) signupHandler(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.failValidation(c, err)
		return
	}
	expiresAt, err := s.auth.SendSignupOTP(c.Request.Context(), models.SignupData{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		CountryCode: req.CountryCode,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, "OTP sent to your phone number", gin.H{"expiresAt": expiresAt})
}

func (s *server) verifyOtpHandler(c *gin.Context) {
	var req verifyOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.failValidation(c, err)
		return
	}
	result, err := s.auth.VerifyOTP(c.Request.Context(), req.Phone, req.CountryCode, req.Otp)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.setRefreshCookie(c, result.Tokens.RefreshToken)
	s.ok(c, "OTP verified successfully", gin.H{
		"isNewUser": result.IsNewUser,
		"user":      userPayload(result.User),
		// The refresh token also rides in the body for mobile clients that
		// cannot use the cookie.
		"accessToken":  result.Tokens.AccessToken,
		"refreshToken": result.Tokens.RefreshToken,
	})
}

func (s *server) refreshHandler(c *gin.Context) {
	refreshToken := s.refreshTokenFromRequest(c)
	if refreshToken == "" {
		c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "Refresh token is required"})
		return
	}
	pair, err := s.auth.Refresh(refreshToken)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.setRefreshCookie(c, pair.RefreshToken)
	s.ok(c, "Tokens refreshed successfully", gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (s *server) logoutHandler(c *gin.Context) {
	if refreshToken := s.refreshTokenFromRequest(c); refreshToken != "" {
		if err := s.auth.Logout(refreshToken); err != nil {
			s.fail(c, err)
			return
		}
	}
	s.clearRefreshCookie(c)
	s.ok(c, "Logged out successfully", nil)
}

func (s *server) logoutAllHandler(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	if err := s.auth.LogoutAll(userID); err != nil {
		s.fail(c, err)
		return
	}
	s.clearRefreshCookie(c)
	s.ok(c, "Logged out everywhere", nil)
}

// refreshTokenFromRequest prefers the HttpOnly cookie and falls back to the
// request body.
func (s *server) refreshTokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(refreshCookieName); err == nil && cookie != "" {
		return cookie
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func (s *server) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, token, int(s.cfg.RefreshTTL/time.Second), "/", "", s.cfg.IsProduction(), true)
}

func (s *server) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, "/", "", s.cfg.IsProduction(), true)
}

func userPayload(u *models.User) gin.H {
	return gin.H{
		"id":                u.ID,
		"name":              u.Name,
		"email":             u.Email,
		"phone":             u.Phone,
		"countryCode":       u.CountryCode,
		"whatsappNumber":    u.WhatsappNumber,
		"address":           u.Address,
		"city":              u.City,
		"state":             u.State,
		"isPhoneVerified":   u.IsPhoneVerified,
		"isProfileComplete": u.IsProfileComplete,
		"createdAt":         u.CreatedAt,
	}
}
