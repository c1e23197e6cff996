package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/newsdigest/internal/credential"
	"github.com/nhle/newsdigest/internal/theme"
)

func credentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Store or remove secrets in the system keyring",
		Long: `Secrets are read from the config file or NEWSDIGEST_* environment
variables first and from the keyring otherwise. Names: imap, smtp, llm.`,
	}
	cmd.AddCommand(credentialsSetCmd())
	cmd.AddCommand(credentialsDeleteCmd())
	return cmd
}

func credentialsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set <imap|smtp|llm>",
		Short:     "Prompt for a secret and save it",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"imap", "smtp", "llm"},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := credential.ParseKey(args[0])
			if err != nil {
				return err
			}

			secret, err := promptSecret(key)
			if err != nil {
				return err
			}

			ring, err := credential.Open()
			if err != nil {
				return err
			}
			if err := ring.Set(key, secret); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), theme.SuccessStyle.Render(fmt.Sprintf("Saved %s", key)))
			return nil
		},
	}
}

func credentialsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "delete <imap|smtp|llm>",
		Short:     "Remove a secret from the keyring",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"imap", "smtp", "llm"},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := credential.ParseKey(args[0])
			if err != nil {
				return err
			}

			ring, err := credential.Open()
			if err != nil {
				return err
			}
			if err := ring.Delete(key); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), theme.SuccessStyle.Render(fmt.Sprintf("Deleted %s", key)))
			return nil
		},
	}
}

var credentialTitles = map[credential.Key]string{
	credential.KeyIMAP: "IMAP password",
	credential.KeySMTP: "SMTP password",
	credential.KeyLLM:  "LLM API key",
}

func promptSecret(key credential.Key) (string, error) {
	var secret string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(credentialTitles[key]).
				Description("Gmail users: use an app password, not the account password").
				EchoMode(huh.EchoModePassword).
				Value(&secret).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("value is required")
					}
					return nil
				}),
		),
	)

	if err := form.Run(); err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return secret, nil
}
