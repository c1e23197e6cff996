package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/newsdigest/internal/model"
)

func TestParseKey(t *testing.T) {
	tests := map[string]Key{
		"imap": KeyIMAP,
		"smtp": KeySMTP,
		"llm":  KeyLLM,
	}
	for name, want := range tests {
		got, err := ParseKey(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseKey("jira")
	assert.Error(t, err)
}

func TestStore_SetGetDelete(t *testing.T) {
	s := New(keyring.NewArrayKeyring(nil))

	require.NoError(t, s.Set(KeyLLM, "sk-test"))

	got, err := s.Get(KeyLLM)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", got)

	require.NoError(t, s.Delete(KeyLLM))

	_, err = s.Get(KeyLLM)
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)
}

func TestStore_Resolve(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{
		{Key: string(KeyIMAP), Data: []byte("app-password")},
		{Key: string(KeyLLM), Data: []byte("from-keyring")},
	})
	s := New(ring)

	cfg := model.DefaultConfig()
	cfg.IMAP.Username = "me@gmail.com"
	cfg.SMTP.Username = "me@gmail.com"
	cfg.LLM.APIKey = "from-env"

	require.NoError(t, s.Resolve(cfg, nil))

	assert.Equal(t, "app-password", cfg.IMAP.Password)
	assert.Equal(t, "app-password", cfg.SMTP.Password, "SMTP shares the IMAP password for the same account")
	assert.Equal(t, "from-env", cfg.LLM.APIKey, "configured secrets win over the keyring")
}

func TestStore_ResolveSeparateSMTPAccount(t *testing.T) {
	s := New(keyring.NewArrayKeyring([]keyring.Item{
		{Key: string(KeyIMAP), Data: []byte("imap-secret")},
	}))

	cfg := model.DefaultConfig()
	cfg.IMAP.Username = "reader@gmail.com"
	cfg.SMTP.Username = "sender@example.com"

	require.NoError(t, s.Resolve(cfg, nil))
	assert.Equal(t, "imap-secret", cfg.IMAP.Password)
	assert.Empty(t, cfg.SMTP.Password)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestStore_ResolveSecret(t *testing.T) {
	s := New(keyring.NewArrayKeyring([]keyring.Item{
		{Key: string(KeySMTP), Data: []byte("from-ring")},
	}))

	got, err := s.ResolveSecret("from-config", KeySMTP)
	require.NoError(t, err)
	assert.Equal(t, "from-config", got)

	got, err = s.ResolveSecret("", KeySMTP)
	require.NoError(t, err)
	assert.Equal(t, "from-ring", got)

	got, err = s.ResolveSecret("", KeyLLM)
	require.NoError(t, err)
	assert.Empty(t, got)
}
