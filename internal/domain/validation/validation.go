package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/values"
)

var (
	// Licence numbers follow the NALD regional format, e.g. 03/28/78/0033
	licenceRegex = regexp.MustCompile(`^[0-9A-Z]{1,8}(/[0-9A-Z]{1,8}){1,5}$`)

	// Return IDs: v1:<region>:<licence>:<return reference>:<start>:<end>
	returnIDRegex = regexp.MustCompile(`^v1:[1-8]:[^:]+:[0-9]+:\d{4}-\d{2}-\d{2}:\d{4}-\d{2}-\d{2}$`)
)

// ValidateEmail validates email format
func ValidateEmail(email string) error {
	_, err := values.NewEmail(email)
	return err
}

// ValidateEntityID validates a CRM entity identifier (UUID format)
func ValidateEntityID(entityID string) error {
	if entityID == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	if _, err := uuid.Parse(entityID); err != nil {
		return fmt.Errorf("invalid entity ID format: %w", err)
	}

	return nil
}

// ValidateLicenceNumber validates an abstraction licence number
func ValidateLicenceNumber(licenceNumber string) error {
	if licenceNumber == "" {
		return fmt.Errorf("licence number cannot be empty")
	}

	if !licenceRegex.MatchString(strings.TrimSpace(licenceNumber)) {
		return fmt.Errorf("invalid licence number format")
	}

	return nil
}

// ValidateReturnID validates a return identifier
func ValidateReturnID(returnID string) error {
	if returnID == "" {
		return fmt.Errorf("return ID cannot be empty")
	}

	if !returnIDRegex.MatchString(returnID) {
		return fmt.Errorf("invalid return ID format")
	}

	return nil
}
