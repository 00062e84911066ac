package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseAge parses a retention age such as "30d" or "72h". A "d" suffix is
// whole days; anything else goes through time.ParseDuration.
func ParseAge(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if before, ok := strings.CutSuffix(input, "d"); ok {
		days, err := strconv.Atoi(before)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", input)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be positive")
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(input)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", input)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return d, nil
}
