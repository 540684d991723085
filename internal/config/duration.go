package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration knobs (poll timeout, throttle intervals, sqlite busy timeout)
// are YAML strings like "600ms" or "3s"; empty means "use the default".

// ParseDurationField parses one such knob. path names the config field
// in errors, e.g. "watch.change_interval".
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration (want e.g. \"600ms\", \"3s\"): %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: %q is negative; intervals must be >= 0", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with a fallback for
// empty or zero values.
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
