package util

import (
	"fmt"
	"regexp"
	"strings"
)

// validZoneChars matches only upper-case letters, digits, and hyphens.
var validZoneChars = regexp.MustCompile(`^[A-Z0-9\-]+$`)

// NormalizeZone upper-cases and trims a grid zone identifier.
func NormalizeZone(zone string) string {
	return strings.ToUpper(strings.TrimSpace(zone))
}

// ValidateZone checks that a normalized zone identifier has the shape used
// by Electricity Maps (e.g. "GB", "DE", "US-CAL-CISO"):
//   - At least 2 characters
//   - Only upper-case letters, digits, and hyphens
//   - First character must be a letter
//   - Last character must not be a hyphen
func ValidateZone(zone string) error {
	if len(zone) < 2 {
		return fmt.Errorf("zone must be at least 2 characters, got %d", len(zone))
	}

	if !validZoneChars.MatchString(zone) {
		return fmt.Errorf("zone %q contains invalid characters (only A-Z, 0-9, and hyphens are allowed)", zone)
	}

	if first := zone[0]; first < 'A' || first > 'Z' {
		return fmt.Errorf("zone must start with a letter, got %q", string(first))
	}

	if zone[len(zone)-1] == '-' {
		return fmt.Errorf("zone must not end with a hyphen")
	}

	return nil
}
