// internal/utils/validators.go
// Validation utility functions

package utils

import (
	"fmt"
	"regexp"
)

var didPattern = regexp.MustCompile(`^[a-zA-Z0-9:._-]{1,256}$`)

// ValidateDID checks a participant identifier. DIDs are opaque, but the
// wire forbids whitespace and control characters so match ids stay stable.
func ValidateDID(did string) error {
	if !didPattern.MatchString(did) {
		return fmt.Errorf("invalid participant id")
	}
	return nil
}

// ValidateTournamentID checks a tournament identifier
func ValidateTournamentID(tid string) error {
	if len(tid) < 1 || len(tid) > 128 {
		return fmt.Errorf("tournament id must be 1-128 characters")
	}
	return nil
}
