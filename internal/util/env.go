package util

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// GetEnv returns the value of key or defaultVal when unset.
func GetEnv(key string, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}

	return defaultVal
}

func GetEnvAsInt(key string, defaultVal int) int {
	strVal := GetEnv(key, "")

	if val, err := strconv.Atoi(strVal); err == nil {
		return val
	}

	return defaultVal
}

func GetEnvAsFloat(key string, defaultVal float64) float64 {
	strVal := GetEnv(key, "")

	if val, err := strconv.ParseFloat(strVal, 64); err == nil {
		return val
	}

	return defaultVal
}

func GetEnvAsBool(key string, defaultVal bool) bool {
	strVal := GetEnv(key, "")

	if val, err := strconv.ParseBool(strVal); err == nil {
		return val
	}

	return defaultVal
}

// GetEnvAsDuration parses values such as "2s" or "500ms".
func GetEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	strVal := GetEnv(key, "")
	if strVal == "" {
		return defaultVal
	}

	val, err := time.ParseDuration(strVal)
	if err != nil {
		log.Warn().Str("key", key).Str("value", strVal).Err(err).Msg("Failed to parse duration from env, using default")
		return defaultVal
	}

	return val
}

// GetEnvAsStringArr splits a comma separated value, dropping empty entries.
func GetEnvAsStringArr(key string, defaultVal []string) []string {
	strVal := GetEnv(key, "")
	if len(strVal) == 0 {
		return defaultVal
	}

	parts := strings.Split(strVal, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}

	return result
}
