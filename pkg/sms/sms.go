// Package sms delivers one-time codes to phones. The Sender interface is
// injected at wiring time so handlers and services never know which transport
// is behind it.
package sms

import (
	"context"
	"fmt"
)

// Sender sends a text message to an E.164-ish destination number.
type Sender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// OtpMessage renders the verification text sent for a code.
func OtpMessage(code string, ttlMinutes int) string {
	return fmt.Sprintf("Your MasjidFlow verification code is: %s. This code expires in %d minutes.", code, ttlMinutes)
}
