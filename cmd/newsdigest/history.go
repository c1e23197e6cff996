package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/newsdigest/internal/app"
	"github.com/nhle/newsdigest/internal/theme"
)

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent digest runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, closer, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			s, err := app.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.GetRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), theme.RenderRuns(runs))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent runs to show")
	cmd.AddCommand(historyShowCmd())

	return cmd
}

func historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its articles and summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, closer, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			s, err := app.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.GetRunByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, theme.RenderRun(run))
			if len(run.Articles) > 0 {
				fmt.Fprint(out, theme.RenderArticles(run.Articles))
			}
			if run.Summary != "" {
				fmt.Fprint(out, theme.RenderSummary(run.Summary))
			}
			return nil
		},
	}
}
