package validation

import (
	"fmt"

	dErrors "didlab/pkg/domain-errors"
)

// HTTP body limits
const (
	// MaxBodySize caps the whole request body (64 KiB). Must stay above the
	// resolver payload ceiling.
	MaxBodySize = 64 * 1024
)

// String element length limits
const (
	// MaxFriendlyNameLength bounds the optional display name of a record.
	MaxFriendlyNameLength = 200

	// MaxDescriptionLength bounds the optional record description.
	MaxDescriptionLength = 2000

	// MaxFingerprintInputLength bounds a client-supplied fingerprint before
	// format parsing. A valid one is exactly 66 characters.
	MaxFingerprintInputLength = 80
)

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}
