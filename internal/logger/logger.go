package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds the process logger and installs it as the zerolog global.
// DEV gets a human readable console writer on stderr, every other environment JSON.
func New(level, env string) zerolog.Logger {
	var w io.Writer = os.Stderr
	if strings.EqualFold(env, "DEV") {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	l := zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
	log.Logger = l
	return l
}

// ParseLevel maps a textual level to zerolog, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	}
	return zerolog.InfoLevel
}
