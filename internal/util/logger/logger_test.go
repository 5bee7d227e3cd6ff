package logger

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	Logger("test/output").Info("test message", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "test message")
	assert.Contains(t, out, "key=value")
	assert.Contains(t, out, "subsystem=test/output")
}

func TestSetOutput_ExistingLogger(t *testing.T) {
	log := Logger("test/existing")

	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	log.Info("after switch")
	assert.Contains(t, buf.String(), "after switch")
}

func TestSetLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	log := Logger("test/level")
	SetLevel("test/level", slog.LevelError)
	log.Warn("hidden")
	assert.NotContains(t, buf.String(), "hidden")

	SetLevel("test/level", slog.LevelDebug)
	log.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestParseConfig(t *testing.T) {
	env := map[string]string{
		EnvLevel:     "core/link=debug, core=warn ,error",
		EnvFormat:    "JSON",
		EnvAddSource: "1",
	}
	cfg := parseConfig(func(k string) string { return env[k] })

	require.NotNil(t, cfg)
	assert.Equal(t, slog.LevelError, cfg.DefaultLevel)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.True(t, cfg.AddSource)

	assert.Equal(t, slog.LevelDebug, cfg.LevelForSubsystem("core/link"))
	assert.Equal(t, slog.LevelDebug, cfg.LevelForSubsystem("core/link/trainer"))
	assert.Equal(t, slog.LevelWarn, cfg.LevelForSubsystem("core/engine"))
	assert.Equal(t, slog.LevelError, cfg.LevelForSubsystem("sim"))
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg := parseConfig(func(string) string { return "" })
	assert.Equal(t, slog.LevelInfo, cfg.DefaultLevel)
	assert.Equal(t, FormatText, cfg.Format)
	assert.False(t, cfg.AddSource)
}

func TestParseLevel(t *testing.T) {
	level, ok := ParseLevel("Warning")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelWarn, level)

	_, ok = ParseLevel("verbose")
	assert.False(t, ok)
}
