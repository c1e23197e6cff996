// Command newsdigest mails a curated summary of the newest AI newsletter.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/newsdigest/internal/logging"
	"github.com/nhle/newsdigest/internal/model"
)

var (
	cfgFile  string
	logLevel string
)

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return model.DefaultConfigPath()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "newsdigest",
		Short: "Summarize the newest TLDR AI newsletter and mail the digest",
		Long: `newsdigest finds the newest newsletter in your mailbox, extracts its
articles, asks a language model to pick and rewrite the best few, and
emails the result to your recipients.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.config/newsdigest/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(articlesCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(credentialsCmd())

	return rootCmd
}

// loadConfig reads the configuration and builds the logger every command
// shares. The returned closer flushes the log file.
func loadConfig(stderr io.Writer) (*model.AppConfig, *slog.Logger, io.Closer, error) {
	path := resolveConfigPath()
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, closer, err := logging.New(stderr, cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)
	logger.Debug("configuration loaded", slog.String("path", path))

	return cfg, logger, closer, nil
}
