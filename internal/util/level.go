package util

import (
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
)

// LogLevelFromString parses s, falling back to info on unknown input.
func LogLevelFromString(s string) zerolog.Level {
	l, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}

	return l
}

// ZerologLevelHook decodes level names in config files into zerolog.Level.
func ZerologLevelHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(zerolog.Level(0)) {
			return data, nil
		}

		return LogLevelFromString(data.(string)), nil //nolint:forcetypeassert
	}
}
