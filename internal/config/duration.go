package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDuration is wrapped by every duration field error.
var ErrInvalidDuration = errors.New("invalid duration")

// ParseDurationField parses a config duration. Go syntax ("90s", "2m") and
// bare seconds ("30") are accepted; empty means 0. Errors carry path.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	var d time.Duration
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		d = time.Duration(n) * time.Second
	} else {
		d, err = time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("%s: %w %q (use e.g. 30s or 2m)", path, ErrInvalidDuration, raw)
		}
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: %w %q: must be >= 0", path, ErrInvalidDuration, raw)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// ParseDurationUpTo is ParseDurationOrDefault rejecting values above limit.
func ParseDurationUpTo(path, raw string, def, limit time.Duration) (time.Duration, error) {
	d, err := ParseDurationOrDefault(path, raw, def)
	if err != nil {
		return 0, err
	}
	if d > limit {
		return 0, fmt.Errorf("%s: %w %q: exceeds %s", path, ErrInvalidDuration, raw, limit)
	}
	return d, nil
}
