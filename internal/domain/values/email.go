package values

import (
	"fmt"
	"net/mail"
	"strings"
)

// Email is a validated, normalised submitter email address
type Email struct {
	address string
}

// NewEmail validates and normalises an email address. Addresses are
// lowercased; display names are not accepted.
func NewEmail(address string) (Email, error) {
	if address == "" {
		return Email{}, fmt.Errorf("email address cannot be empty")
	}

	normalized := strings.TrimSpace(strings.ToLower(address))
	parsed, err := mail.ParseAddress(normalized)
	if err != nil {
		return Email{}, fmt.Errorf("invalid email format: %w", err)
	}
	if parsed.Address != normalized {
		return Email{}, fmt.Errorf("email must be a bare address")
	}
	if len(parsed.Address) > 254 {
		return Email{}, fmt.Errorf("email address too long (max 254 characters)")
	}

	return Email{address: parsed.Address}, nil
}

// String returns the normalised address
func (e Email) String() string {
	return e.address
}

// IsEmpty checks if the email is the zero value
func (e Email) IsEmpty() bool {
	return e.address == ""
}

// Equal checks if two Email values are equal
func (e Email) Equal(other Email) bool {
	return e.address == other.address
}
