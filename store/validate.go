package store

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrInvalidEmail is returned for addresses that are not local@domain.tld shaped.
var ErrInvalidEmail = errors.New("store: invalid email address")

// emailPattern is a shape check only; it makes no RFC 5322 claims.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Default required fields per registration kind.
var (
	TeamRequiredFields    = []string{"teamName", "captainName", FieldEmail, "phone", FieldState}
	FanRequiredFields     = []string{"firstName", "lastName", FieldEmail, FieldState}
	SponsorRequiredFields = []string{"companyName", "contactName", FieldEmail}
)

// ValidationError carries the messages of a rejected record.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "store: validation failed: " + strings.Join(e.Messages, "; ")
}

// Validate returns "<field> is required" for every required field that is
// absent or blank after trimming, in the order of requiredFields.
func Validate(record Record, requiredFields []string) []string {
	var messages []string
	for _, field := range requiredFields {
		value := strings.TrimSpace(record.String(field))
		if err := validation.Validate(value, validation.Required.Error(field+" is required")); err != nil {
			messages = append(messages, err.Error())
		}
	}
	return messages
}

// ValidateEmail checks the address shape.
func ValidateEmail(email string) error {
	err := validation.Validate(email,
		validation.Required,
		validation.Match(emailPattern),
	)
	if err != nil {
		return ErrInvalidEmail
	}
	return nil
}
