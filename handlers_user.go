package main

import (
	"github.com/gin-gonic/gin"

	"masjidflow/pkg/auth"
)

type updateProfileRequest struct {
	Name           *string `json:"name" binding:"omitempty,min=2,max=100"`
	Email          *string `json:"email" binding:"omitempty,email"`
	WhatsappNumber *string `json:"whatsappNumber" binding:"omitempty,max=20"`
	Address        *string `json:"address" binding:"omitempty,max=500"`
	City           *string `json:"city" binding:"omitempty,max=100"`
	State          *string `json:"state" binding:"omitempty,max=100"`
}

func (s *server) meHandler(c *gin.Context) {
	user, err := s.users.Get(c.GetString(ctxUserID))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, "", userPayload(user))
}

func (s *server) updateProfileHandler(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.failValidation(c, err)
		return
	}
	user, err := s.users.UpdateProfile(c.GetString(ctxUserID), auth.ProfileUpdate{
		Name:           req.Name,
		Email:          req.Email,
		WhatsappNumber: req.WhatsappNumber,
		Address:        req.Address,
		City:           req.City,
		State:          req.State,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, "Profile updated successfully", userPayload(user))
}
