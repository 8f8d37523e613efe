package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind enumerates the failure classes the service layer can raise. Every kind
// maps to exactly one HTTP status; the wire translation happens once at the
// handler boundary, never inside services.
type Kind int

const (
	KindBadRequest Kind = iota
	KindUnauthorized
	KindNotFound
	KindConflict
	KindTooManyRequests
	KindInternal
)

// Stable machine-readable codes surfaced in the response envelope.
const (
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeOtpNotFound         = "OTP_NOT_FOUND"
	CodeInvalidOtp          = "INVALID_OTP"
	CodeNoToken             = "NO_TOKEN"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeRefreshTokenExpired = "REFRESH_TOKEN_EXPIRED"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeValidation          = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
)

// FieldError reports a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the single error value used across the service layer. Kind, status
// and code travel as data so callers can branch without string matching.
type Error struct {
	Kind    Kind
	Message string
	Code    string
	Fields  []FieldError
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Status maps the kind to its HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func BadRequest(message, code string) *Error {
	return &Error{Kind: KindBadRequest, Message: message, Code: code}
}

func Unauthorized(message, code string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message, Code: code}
}

func NotFound(message, code string) *Error {
	return &Error{Kind: KindNotFound, Message: message, Code: code}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func TooManyRequests(message string) *Error {
	return &Error{Kind: KindTooManyRequests, Message: message}
}

func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, cause: cause}
}

func Validation(message string, fields []FieldError) *Error {
	return &Error{Kind: KindBadRequest, Message: message, Code: CodeValidation, Fields: fields}
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
