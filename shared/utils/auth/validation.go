package utils

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"transparencia-backend/shared/catalog"
)

// MinPasswordLength is enforced on every password set through the API
const MinPasswordLength = 6

var phonePattern = regexp.MustCompile(`^\+?[0-9 ()-]{7,20}$`)

// Field rules below return a *catalog.ValidationError naming the field, or a
// nil error. The result is always the error interface so callers can compare
// against nil safely.

func invalid(field, format string, args ...interface{}) error {
	return &catalog.ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateEmail accepts a single bare address, "Name <addr>" forms are rejected
func ValidateEmail(field, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid(field, "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid(field, "is not a valid email address")
	}
	return nil
}

// ValidatePhone is optional: an empty phone passes
func ValidatePhone(field, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone != "" && !phonePattern.MatchString(phone) {
		return invalid(field, "is not a valid phone number")
	}
	return nil
}

func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "is required")
	}
	return nil
}

// ValidateLength counts runes of the trimmed value. max <= 0 means unbounded.
func ValidateLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	switch {
	case n < min && n == 0:
		return invalid(field, "is required")
	case n < min:
		return invalid(field, "must be at least %d characters", min)
	case max > 0 && n > max:
		return invalid(field, "must be at most %d characters", max)
	}
	return nil
}

func ValidatePassword(field, password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return invalid(field, "must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// FirstInvalid returns the first non-nil error of checks
func FirstInvalid(checks ...error) error {
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

// FieldOf reports the field a validation error points at
func FieldOf(err error) string {
	var ve *catalog.ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}
