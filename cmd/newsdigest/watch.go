package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/newsdigest/internal/app"
	"github.com/nhle/newsdigest/internal/digest"
	"github.com/nhle/newsdigest/internal/schedule"
	"github.com/nhle/newsdigest/internal/theme"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the digest on a schedule until interrupted",
		Long: `Run the digest every schedule.interval_min minutes. Send SIGHUP to
trigger a run immediately; SIGINT or SIGTERM stops the watcher.`,
		Args: cobra.NoArgs,
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

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := schedule.New(func(ctx context.Context) error {
				_, err := a.Pipeline.Run(ctx, digest.RunOptions{})
				return err
			}, schedule.Options{
				Interval:   cfg.Schedule.Interval(),
				RunOnStart: cfg.Schedule.RunOnStart,
				RunTimeout: cfg.Schedule.RunTimeout(),
			}, logger.With(slog.String("component", "scheduler")))

			go forwardTriggers(ctx, s, logger)
			go reportResults(ctx, cmd.OutOrStdout(), s)

			logger.Info("watching for newsletters",
				slog.Duration("interval", cfg.Schedule.Interval()),
				slog.Bool("run_on_start", cfg.Schedule.RunOnStart),
				slog.Duration("run_timeout", cfg.Schedule.RunTimeout()))

			err = s.Start(ctx)
			logger.Info("watcher stopped", slog.Int("runs", s.Status().Runs))
			return err
		},
	}
}

// forwardTriggers turns SIGHUP into a manual run.
func forwardTriggers(ctx context.Context, s *schedule.Scheduler, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if s.Trigger() {
				logger.Info("manual run requested")
			}
		}
	}
}

// reportResults prints one line per finished run until ctx ends.
func reportResults(ctx context.Context, w io.Writer, s *schedule.Scheduler) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-s.Results():
			fmt.Fprintln(w, resultLine(r, s.Status().NextRun))
		}
	}
}

func resultLine(r schedule.Result, next time.Time) string {
	kind := "scheduled"
	if r.Manual {
		kind = "manual"
	}
	took := r.Finished.Sub(r.Started).Round(time.Second)

	var line string
	if r.Err != nil {
		line = theme.ErrorStyle.Render(fmt.Sprintf("%s run failed after %s: %v", kind, took, r.Err))
	} else {
		line = theme.SuccessStyle.Render(fmt.Sprintf("%s run finished in %s", kind, took))
	}
	return line + " " + theme.MutedStyle.Render("next run "+next.Format("2006-01-02 15:04"))
}
