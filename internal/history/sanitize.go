package history

import (
	"strings"
	"unicode/utf8"
)

// maxSQLLength bounds the stored query text.
const maxSQLLength = 4096

// NormalizeSQL collapses runs of whitespace and truncates long queries so
// history rows stay readable in a table.
func NormalizeSQL(query string) string {
	normalized := strings.Join(strings.Fields(query), " ")
	if len(normalized) <= maxSQLLength {
		return normalized
	}
	cut := maxSQLLength
	for cut > 0 && !utf8.RuneStart(normalized[cut]) {
		cut--
	}
	return normalized[:cut] + "…"
}
