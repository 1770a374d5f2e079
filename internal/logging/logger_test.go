package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriter_RenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, slog.LevelInfo).Error("define failed", "error", errors.New("boom"))
	assert.Contains(t, buf.String(), "err=boom")
	assert.NotContains(t, buf.String(), "error=boom")
}

func TestLevel_EnvOverride(t *testing.T) {
	t.Setenv(EnvLevel, "")
	lvl, err := Level("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	t.Setenv(EnvLevel, "DEBUG")
	lvl, err = Level("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	t.Setenv(EnvLevel, "loud")
	_, err = Level("info")
	assert.Error(t, err)
}
