package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"masjidflow/pkg/apperr"
)

// apiResponse is the uniform envelope every endpoint answers with.
type apiResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    interface{}         `json:"data,omitempty"`
	Code    string              `json:"code,omitempty"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

func (s *server) ok(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, apiResponse{Success: true, Message: message, Data: data})
}

// fail translates a service error into the envelope. This is the only place
// that maps error kinds to HTTP statuses.
func (s *server) fail(c *gin.Context, err error) {
	var e *apperr.Error
	if errors.As(err, &e) {
		message := e.Message
		if e.Kind == apperr.KindInternal {
			s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
			if s.cfg.IsProduction() {
				message = "An unexpected error occurred"
			}
		}
		c.JSON(e.Status(), apiResponse{Success: false, Message: message, Code: e.Code, Errors: e.Fields})
		return
	}
	s.log.Error("unexpected error", zap.String("path", c.FullPath()), zap.Error(err))
	message := err.Error()
	if s.cfg.IsProduction() {
		message = "An unexpected error occurred"
	}
	c.JSON(http.StatusInternalServerError, apiResponse{Success: false, Message: message})
}

func (s *server) failValidation(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]apperr.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, apperr.FieldError{Field: fe.Field(), Message: bindingMessage(fe)})
		}
		e := apperr.Validation("Validation failed", fields)
		c.JSON(http.StatusBadRequest, apiResponse{
			Success: false,
			Message: e.Message,
			Code:    e.Code,
			Errors:  e.Fields,
		})
		return
	}
	// Malformed JSON and other non-field binding failures.
	c.JSON(http.StatusBadRequest, apiResponse{
		Success: false,
		Message: err.Error(),
		Code:    apperr.CodeValidation,
	})
}

func bindingMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "phone":
		return "Phone number must be 10-15 digits"
	case "countrycode":
		return "Invalid country code format"
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fe.Field() + " is too long"
	case "len":
		return fmt.Sprintf("%s must be %s digits", fe.Field(), fe.Param())
	case "number":
		return fe.Field() + " must contain only digits"
	default:
		return fe.Field() + " is invalid"
	}
}
