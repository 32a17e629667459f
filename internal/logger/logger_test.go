package logger_test

import (
	"testing"

	"github.com/jrsteele09/go-rag-client/internal/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		require.Equal(t, want, logger.ParseLevel(in), in)
	}
}

func TestNew_SetsLevel(t *testing.T) {
	l := logger.New("error", "PROD")
	require.Equal(t, zerolog.ErrorLevel, l.GetLevel())
}
