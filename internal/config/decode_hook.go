package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// logLevels mirrors the set internal/logger.levelFor accepts.
var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

// levelDecodeHook rejects a log.level value internal/logger can't
// map to an slog.Level, the same early-validation role
// cfg/decode_hook.go's hookFunc plays for LogSeverity.
func levelDecodeHook() mapstructure.DecodeHookFuncType {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(LogLevel("")) {
			return data, nil
		}
		s, _ := data.(string)
		if s == "" {
			return LogLevel(""), nil
		}
		if !logLevels[strings.ToLower(s)] {
			return nil, fmt.Errorf("invalid log.level: %s", s)
		}
		return LogLevel(s), nil
	}
}
