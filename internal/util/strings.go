package util

import "strings"

// NormalizeKey folds config keys and provider names to the form they are
// registered under, so "Carbon_API.Zone " finds carbon_api.zone.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
