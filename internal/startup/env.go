package startup

import (
	"os"
	"strconv"
	"strings"
	"time"

	"datecreated-fixer/internal/logging"
)

// getEnv returns the variable's value, or defaultValue when it is unset or
// empty.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envParsed parses a variable with parse. Unset or empty values yield the
// default silently; unparsable values yield it with a warning.
func envParsed[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := parse(value)
	if err != nil {
		logging.Warn("Invalid value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	return envParsed(key, defaultValue, strconv.ParseBool)
}

func getEnvInt(key string, defaultValue int) int {
	return envParsed(key, defaultValue, strconv.Atoi)
}

// getEnvDuration parses a Go duration. "0" disables the feature the duration
// controls; negative durations are rejected.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return envParsed(key, defaultValue, func(s string) (time.Duration, error) {
		if s == "0" {
			return 0, nil
		}
		d, err := time.ParseDuration(s)
		if err == nil && d < 0 {
			return 0, strconv.ErrRange
		}
		return d, err
	})
}
