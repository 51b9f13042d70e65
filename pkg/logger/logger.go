// Package logger provides the component-tagged logging facade used across
// rule-mirror. Every log line carries a component name so that the web
// receiver, the bot process, and the bus consumers can share one output
// stream without losing attribution.
package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	root = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
)

// Init configures the global logger. Level is one of debug/info/warn/error;
// an unknown level falls back to info. With json=true the output is
// machine-readable JSON instead of the human console format.
func Init(level string, json bool) {
	lvl := zerolog.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	}

	var l zerolog.Logger
	if json {
		l = zerolog.New(os.Stderr)
	} else {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	mu.Lock()
	root = l.Level(lvl).With().Timestamp().Logger()
	mu.Unlock()
}

func logger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := root
	return &l
}

// DebugC logs a debug message for a component.
func DebugC(component, msg string) {
	logger().Debug().Str("component", component).Msg(msg)
}

// DebugCF logs a debug message with structured fields.
func DebugCF(component, msg string, fields map[string]interface{}) {
	logger().Debug().Str("component", component).Fields(fields).Msg(msg)
}

// InfoC logs an info message for a component.
func InfoC(component, msg string) {
	logger().Info().Str("component", component).Msg(msg)
}

// InfoCF logs an info message with structured fields.
func InfoCF(component, msg string, fields map[string]interface{}) {
	logger().Info().Str("component", component).Fields(fields).Msg(msg)
}

// WarnC logs a warning for a component.
func WarnC(component, msg string) {
	logger().Warn().Str("component", component).Msg(msg)
}

// WarnCF logs a warning with structured fields.
func WarnCF(component, msg string, fields map[string]interface{}) {
	logger().Warn().Str("component", component).Fields(fields).Msg(msg)
}

// ErrorC logs an error for a component.
func ErrorC(component, msg string) {
	logger().Error().Str("component", component).Msg(msg)
}

// ErrorCF logs an error with structured fields.
func ErrorCF(component, msg string, fields map[string]interface{}) {
	logger().Error().Str("component", component).Fields(fields).Msg(msg)
}
