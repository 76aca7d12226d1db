// Package mailer dispatches OTP codes over SMTP.
package mailer

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/gomail.v2"
)

// ErrNotConfigured means the SMTP settings are missing from .env.
var ErrNotConfigured = errors.New("SMTP is not configured (set SMTP_HOST, SMTP_PORT, SMTP_USER, SMTP_PASS)")

// SendOTP emails a one-time passcode to the user. Dispatch failure is
// returned to the caller so the user can manually retry; there is no
// automatic retry here.
func SendOTP(toEmail, code string) error {
	host := os.Getenv("SMTP_HOST")
	portStr := os.Getenv("SMTP_PORT")
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASS")

	if host == "" || portStr == "" {
		return ErrNotConfigured
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid SMTP_PORT %q: %w", portStr, err)
	}

	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = user
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Your pharmacy PoS verification code")
	m.SetBody("text/plain", fmt.Sprintf(
		"Your one-time verification code is %s.\n\nIt expires in 5 minutes. If you did not try to log in, ignore this email.", code))

	return gomail.NewDialer(host, port, user, pass).DialAndSend(m)
}
