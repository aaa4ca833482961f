package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses the spec's `<int><unit>` duration grammar
// (unit in ms, s, m, h, d), grounded on the original implementation's
// utils/parse_time.rs: split at the first alphabetic character, parse
// the numeric prefix, then map the unit suffix.
func ParseDuration(s string) (time.Duration, error) {
	idx := strings.IndexFunc(s, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	})
	if idx < 0 {
		return 0, fmt.Errorf("config: duration %q: missing unit", s)
	}

	amount, err := strconv.ParseInt(s[:idx], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: duration %q: invalid number: %w", s, err)
	}
	if amount < 0 {
		return 0, fmt.Errorf("config: duration %q: must be non-negative", s)
	}

	switch unit := s[idx:]; unit {
	case "ms":
		return time.Duration(amount) * time.Millisecond, nil
	case "s":
		return time.Duration(amount) * time.Second, nil
	case "m":
		return time.Duration(amount) * time.Minute, nil
	case "h":
		return time.Duration(amount) * time.Hour, nil
	case "d":
		return time.Duration(amount) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("config: duration %q: unknown unit %q", s, unit)
	}
}
