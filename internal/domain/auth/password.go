package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"
)

const (
	MinPasswordLength = 8
	ResetTokenTTL     = 2 * time.Hour
	defaultResetBase  = "http://localhost:8080"
)

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return errors.New("password must contain upper and lower case letters and a digit")
	}
	return nil
}

// BuildResetLink appends /reset?token=... to the public base URL.
func BuildResetLink(baseURL, token string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = defaultResetBase
	}
	return base + "/reset?token=" + url.QueryEscape(token)
}

func BuildResetEmailBody(link string, ttl time.Duration) string {
	hours := int(ttl.Hours())
	if hours < 1 {
		hours = 1
	}
	return fmt.Sprintf("A password reset was requested for your account.\n\nUse the link below to choose a new password:\n%s\n\nThe link expires in %d hour(s). If you did not request a reset, ignore this message.\n", link, hours)
}
