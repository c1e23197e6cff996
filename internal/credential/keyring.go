package credential

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/99designs/keyring"

	"github.com/nhle/newsdigest/internal/model"
)

const serviceName = "newsdigest"

// Key names a secret kept in the keyring.
type Key string

const (
	KeyIMAP Key = "imap-password"
	KeySMTP Key = "smtp-password"
	KeyLLM  Key = "llm-api-key"
)

// ParseKey maps the short names used on the command line to keys.
func ParseKey(name string) (Key, error) {
	switch name {
	case "imap":
		return KeyIMAP, nil
	case "smtp":
		return KeySMTP, nil
	case "llm":
		return KeyLLM, nil
	default:
		return "", fmt.Errorf("unknown credential %q (want imap, smtp or llm)", name)
	}
}

// Store reads and writes secrets in a keyring.
type Store struct {
	ring keyring.Keyring
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open returns a Store backed by the system keyring.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/newsdigest/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("newsdigest-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return New(ring), nil
}

// Get retrieves a credential value by key.
func (s *Store) Get(key Key) (string, error) {
	item, err := s.ring.Get(string(key))
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key.
func (s *Store) Set(key Key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:   string(key),
		Data:  []byte(value),
		Label: serviceName + " " + string(key),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key.
func (s *Store) Delete(key Key) error {
	if err := s.ring.Remove(string(key)); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// ResolveSecret returns value when it is set and otherwise the keyring
// entry for key. A missing entry yields "".
func (s *Store) ResolveSecret(value string, key Key) (string, error) {
	if value != "" {
		return value, nil
	}

	secret, err := s.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return secret, nil
}

// Resolve fills every secret the configuration leaves empty from the
// keyring. Secrets set in the file or environment win. Missing entries are
// left empty for Validate or the remote server to reject.
func (s *Store) Resolve(cfg *model.AppConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	targets := []struct {
		key Key
		dst *string
	}{
		{KeyIMAP, &cfg.IMAP.Password},
		{KeySMTP, &cfg.SMTP.Password},
		{KeyLLM, &cfg.LLM.APIKey},
	}

	for _, t := range targets {
		if *t.dst != "" {
			continue
		}

		value, err := s.ResolveSecret("", t.key)
		if err != nil {
			return err
		}
		if value != "" {
			*t.dst = value
			logger.Debug("credential loaded from keyring", slog.String("key", string(t.key)))
		}
	}

	// One Gmail app password serves both IMAP and SMTP.
	if cfg.SMTP.Password == "" && cfg.SMTP.Username == cfg.IMAP.Username {
		cfg.SMTP.Password = cfg.IMAP.Password
	}

	return nil
}
