// Package logging builds the service's zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// EnvDevelopment switches on debug level and human-readable output
const EnvDevelopment = "development"

// New returns a JSON logger on stdout at info level, or a debug console
// logger when appEnv is development.
func New(appEnv, service string) zerolog.Logger {
	return newLogger(os.Stdout, appEnv, service)
}

func newLogger(out io.Writer, appEnv, service string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == EnvDevelopment {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if service != "" {
		ctx = ctx.Str("service", service)
	}
	return ctx.Logger()
}
