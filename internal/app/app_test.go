package app

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/newsdigest/internal/model"
)

type fakeSecrets struct {
	calls int
}

func (f *fakeSecrets) Resolve(cfg *model.AppConfig, _ *slog.Logger) error {
	f.calls++
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = "from-keyring"
	}
	return nil
}

func testConfig(t *testing.T) *model.AppConfig {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "runs.db")
	cfg.LLM.Provider = model.ProviderAnthropic
	return cfg
}

func TestNew_WiresPipeline(t *testing.T) {
	cfg := testConfig(t)
	secrets := &fakeSecrets{}

	a, err := New(cfg, nil, Options{Secrets: secrets})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, 1, secrets.calls)
	assert.Equal(t, "from-keyring", cfg.LLM.APIKey)
	assert.NotNil(t, a.Pipeline)
	assert.NotNil(t, a.Mailbox)
	assert.FileExists(t, cfg.Store.Path)
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "mystery"

	_, err := New(cfg, nil, Options{Secrets: &fakeSecrets{}})
	require.Error(t, err)
	assert.NoFileExists(t, cfg.Store.Path, "nothing is opened when the model cannot be built")
}

func TestClose_Nil(t *testing.T) {
	var a *App
	assert.NoError(t, a.Close())
}
