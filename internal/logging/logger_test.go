package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestInitEnvFallback(t *testing.T) {
	t.Setenv(EnvVar, "debug")
	Init("")
	assert.True(t, Logger().Enabled(context.Background(), slog.LevelDebug))

	Init("error")
	assert.False(t, Logger().Enabled(context.Background(), slog.LevelDebug))
}
