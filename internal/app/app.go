// Package app assembles the digest pipeline from configuration.
package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/nhle/newsdigest/internal/ai"
	"github.com/nhle/newsdigest/internal/credential"
	"github.com/nhle/newsdigest/internal/digest"
	"github.com/nhle/newsdigest/internal/model"
	"github.com/nhle/newsdigest/internal/source/email"
	"github.com/nhle/newsdigest/internal/store"
)

// SecretResolver fills secrets the configuration leaves empty.
type SecretResolver interface {
	Resolve(cfg *model.AppConfig, logger *slog.Logger) error
}

// Options tune how an App is assembled.
type Options struct {
	// Secrets overrides the system keyring; nil opens it.
	Secrets SecretResolver

	// Out receives the article list and summary.
	Out io.Writer
}

// App holds the long-lived collaborators behind every command.
type App struct {
	Config   *model.AppConfig
	Logger   *slog.Logger
	Store    *store.SQLiteStore
	Mailbox  *email.IMAPClient
	Pipeline *digest.Pipeline
}

// OpenStore opens only the run history, for commands that never touch
// the network.
func OpenStore(cfg *model.AppConfig) (*store.SQLiteStore, error) {
	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening run history: %w", err)
	}
	return s, nil
}

// New resolves secrets and builds the full pipeline. The caller must Close
// the returned App.
func New(cfg *model.AppConfig, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	secrets := opts.Secrets
	if secrets == nil {
		ring, err := credential.Open()
		if err != nil {
			// Env and file secrets still work without a keyring.
			logger.Warn("keyring unavailable", slog.String("error", err.Error()))
		} else {
			secrets = ring
		}
	}
	if secrets != nil {
		if err := secrets.Resolve(cfg, logger); err != nil {
			return nil, err
		}
	}

	summarizer, err := ai.New(cfg.LLM, cfg.Digest, logger)
	if err != nil {
		return nil, err
	}

	s, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	mailbox := email.NewIMAPClient(
		cfg.IMAP.Host, cfg.IMAP.Port,
		cfg.IMAP.Username, cfg.IMAP.Password,
		cfg.IMAP.TLS, cfg.IMAP.Mailbox,
		logger.With(slog.String("component", "imap")),
	)

	sender := email.NewSender(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		Security: cfg.SMTP.Security,
	}, logger.With(slog.String("component", "smtp")))

	pipeline := digest.New(cfg, digest.Deps{
		Mailbox:    mailbox,
		Summarizer: summarizer,
		Sender:     sender,
		Store:      s,
		Out:        opts.Out,
	}, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    s,
		Mailbox:  mailbox,
		Pipeline: pipeline,
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
