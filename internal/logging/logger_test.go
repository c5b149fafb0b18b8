package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "debug", Format: FormatJSON}, WithWriter(&buf))
	require.NoError(t, err)

	l.Debug().Str("function", "add").Msg("attached")
	assert.Contains(t, buf.String(), `"function":"add"`)
	assert.Contains(t, buf.String(), `"level":"debug"`)
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Format: FormatJSON}, WithWriter(&buf))
	require.NoError(t, err)

	l.Info().Msg("hidden")
	l.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Format: FormatConsole}, WithWriter(&buf))
	require.NoError(t, err)

	l.Info().Msg("ready")
	assert.Contains(t, buf.String(), "ready")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Format: FormatJSON}, WithWriter(&buf))
	require.NoError(t, err)

	c := l.Component("plan")
	c.Info().Msg("applied")
	assert.Contains(t, buf.String(), `"component":"plan"`)
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hook.log")
	l, err := New(Config{Format: FormatJSON, Output: path})
	require.NoError(t, err)

	l.Info().Msg("to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"empty", Config{}, false},
		{"upper level", Config{Level: "DEBUG"}, false},
		{"bad level", Config{Level: "loud"}, true},
		{"bad format", Config{Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	got := DefaultConfig().Merge(Config{Level: "debug"})
	assert.Equal(t, Config{Level: "debug", Format: FormatConsole, Output: "stderr"}, got)
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error().Msg("discarded")
	assert.NoError(t, l.Close())
}
