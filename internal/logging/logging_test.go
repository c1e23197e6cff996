package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/newsdigest/internal/model"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_WritesStreamAndFile(t *testing.T) {
	dir := t.TempDir()
	var stream bytes.Buffer

	logger, closer, err := New(&stream, model.LogConfig{Level: "info", Dir: dir, File: "digest.log"})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("newsletter found", slog.String("subject", "TLDR AI"))
	require.NoError(t, closer.Close())

	assert.Contains(t, stream.String(), "newsletter found")
	assert.Contains(t, stream.String(), "subject=\"TLDR AI\"")
	assert.NotContains(t, stream.String(), "hidden")

	data, err := os.ReadFile(filepath.Join(dir, "digest.log"))
	require.NoError(t, err)
	assert.Equal(t, stream.String(), string(data))
}

func TestNew_JSONWithoutFile(t *testing.T) {
	var stream bytes.Buffer

	logger, closer, err := New(&stream, model.LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug("extracting", slog.Int("articles", 3))

	assert.Contains(t, stream.String(), `"msg":"extracting"`)
	assert.Contains(t, stream.String(), `"articles":3`)
}
