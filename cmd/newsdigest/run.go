package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/newsdigest/internal/app"
	"github.com/nhle/newsdigest/internal/digest"
	"github.com/nhle/newsdigest/internal/theme"
)

func runCmd() *cobra.Command {
	var (
		dryRun  bool
		force   bool
		hours   int
		preview string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, summarize and send today's digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, closer, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := app.New(cfg, logger, app.Options{Out: cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.Pipeline.Run(cmd.Context(), digest.RunOptions{
				DryRun:      dryRun,
				Force:       force,
				Window:      time.Duration(hours) * time.Hour,
				PreviewPath: preview,
			})
			if run != nil {
				fmt.Fprintln(cmd.OutOrStdout(), theme.RenderRun(run))
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Render the digest without sending it")
	cmd.Flags().BoolVar(&force, "force", false, "Digest the newsletter even if it was sent before")
	cmd.Flags().IntVar(&hours, "hours", 0, "Search window in hours (default from config)")
	cmd.Flags().StringVar(&preview, "preview", "", "Write the rendered HTML to this file")

	return cmd
}

func articlesCmd() *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:   "articles",
		Short: "Print the articles of the newest newsletter without summarizing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, closer, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			a, err := app.New(cfg, logger, app.Options{Out: cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			defer a.Close()

			msg, articles, err := a.Pipeline.Articles(cmd.Context(), time.Duration(hours)*time.Hour)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, theme.TitleStyle.Render(msg.Envelope.Subject))
			fmt.Fprintln(out, theme.MutedStyle.Render(msg.Envelope.From+" · "+msg.Envelope.Date.Format(time.RFC1123Z)))
			fmt.Fprint(out, theme.RenderArticles(articles))
			return nil
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 0, "Search window in hours (default from config)")

	return cmd
}
