package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var pmcidPattern = regexp.MustCompile(`^PMC[0-9]+$`)

// NormalizeID accepts a PMC identifier with or without the "PMC" prefix
// and returns the canonical prefixed form.
func NormalizeID(raw string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if id == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidID)
	}

	if !strings.HasPrefix(id, "PMC") {
		id = "PMC" + id
	}
	if !pmcidPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %s", ErrInvalidID, raw)
	}

	return id, nil
}

// NumericID strips the canonical prefix, returning the digit suffix.
func NumericID(pmcid string) string {
	return strings.TrimPrefix(pmcid, "PMC")
}
