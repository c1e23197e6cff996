// Package digest wires the newsletter pipeline together: fetch the newest
// newsletter, pull out its articles, have the model curate them, and mail
// the result.
package digest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nhle/newsdigest/internal/ai"
	"github.com/nhle/newsdigest/internal/extract"
	"github.com/nhle/newsdigest/internal/model"
	"github.com/nhle/newsdigest/internal/render"
	"github.com/nhle/newsdigest/internal/source"
	"github.com/nhle/newsdigest/internal/source/email"
	"github.com/nhle/newsdigest/internal/theme"
)

// Mailbox finds newsletters.
type Mailbox interface {
	FetchLatestNewsletter(ctx context.Context, senders []string, since time.Time) (*email.ParsedMessage, error)
	MarkSeen(ctx context.Context, uid uint32) error
}

// Sender delivers a rendered digest.
type Sender interface {
	Send(ctx context.Context, out email.Outgoing) error
}

// RunStore records runs and remembers digested newsletters.
type RunStore interface {
	CreateRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, run *model.Run) error
	SaveArticles(ctx context.Context, runID string, articles []model.Article) error
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, messageID string) error
}

// Deps are the collaborators a Pipeline needs.
type Deps struct {
	Mailbox    Mailbox
	Summarizer ai.Summarizer
	Sender     Sender
	Store      RunStore

	// Out receives the human-readable article list and summary; nil
	// discards them.
	Out io.Writer
}

// RunOptions tune a single run.
type RunOptions struct {
	// DryRun renders the digest without sending it.
	DryRun bool

	// Force digests a newsletter even if it was digested before.
	Force bool

	// Window overrides the configured search window when positive.
	Window time.Duration

	// PreviewPath, when set, receives the rendered HTML.
	PreviewPath string
}

// Pipeline runs the digest end to end.
type Pipeline struct {
	cfg    *model.AppConfig
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Pipeline.
func New(cfg *model.AppConfig, deps Deps, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes the pipeline once and records the outcome. Runs that find
// nothing to do, or whose summary fails, finish without an error; the
// returned Run carries the status. Fetch, extraction, and send failures
// are returned as errors.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (run *model.Run, err error) {
	run = &model.Run{
		StartedAt:  p.now().UTC(),
		Status:     model.RunStatusRunning,
		Recipients: strings.Join(p.cfg.Digest.Recipients, ", "),
	}
	if err := p.deps.Store.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	log := p.logger.With(slog.String("run", run.ID))
	log.Info("digest run started",
		slog.Bool("dry_run", opts.DryRun),
		slog.Bool("force", opts.Force))

	defer func() {
		if err != nil && run.Status == model.RunStatusRunning {
			run.Status = model.RunStatusFailed
		}
		if err != nil && run.Error == "" {
			run.Error = err.Error()
		}
		// Record the outcome even when ctx was cancelled mid-run.
		if ferr := p.deps.Store.FinishRun(context.WithoutCancel(ctx), run); ferr != nil {
			log.Error("recording run failed", slog.String("error", ferr.Error()))
		}
		log.Info("digest run finished",
			slog.String("status", run.Status),
			slog.Int("articles", run.ArticleCount))
	}()

	msg, articles, err := p.collect(ctx, log, opts.Window)
	if errors.Is(err, source.ErrNoNewsletter) {
		log.Warn("no newsletter in search window")
		p.skip(run, err.Error())
		return run, nil
	}
	if err != nil {
		return run, err
	}

	run.MessageID = msg.Envelope.MessageID
	run.NewsletterSubject = msg.Envelope.Subject

	if !opts.Force {
		done, err := p.deps.Store.IsProcessed(ctx, run.MessageID)
		if err != nil {
			return run, err
		}
		if done {
			log.Info("newsletter already digested", slog.String("message_id", run.MessageID))
			p.skip(run, "newsletter already digested")
			return run, nil
		}
	}

	if len(articles) == 0 {
		log.Warn("no articles extracted", slog.String("subject", run.NewsletterSubject))
		p.skip(run, "no articles extracted")
		return run, nil
	}

	run.Articles = articles
	run.ArticleCount = len(articles)
	if err := p.deps.Store.SaveArticles(ctx, run.ID, articles); err != nil {
		return run, err
	}

	fmt.Fprint(p.deps.Out, theme.RenderArticles(articles))

	summary, err := p.deps.Summarizer.Summarize(ctx, articles)
	if err != nil {
		log.Error("summarizing failed, digest not sent", slog.String("error", err.Error()))
		run.Status = model.RunStatusSummaryFailed
		run.Error = err.Error()
		return run, nil
	}
	run.Summary = summary

	fmt.Fprint(p.deps.Out, theme.RenderSummary(summary))

	now := p.now()
	out, err := p.compose(summary, now)
	if err != nil {
		return run, err
	}

	if opts.PreviewPath != "" {
		if err := writePreview(opts.PreviewPath, out.HTMLBody); err != nil {
			return run, err
		}
		log.Info("preview written", slog.String("path", opts.PreviewPath))
	}

	if opts.DryRun {
		log.Info("dry run, digest not sent", slog.String("subject", out.Subject))
		run.Status = model.RunStatusDryRun
		return run, nil
	}

	log.Info("sending digest",
		slog.String("subject", out.Subject),
		slog.Int("recipients", len(out.Recipients)))

	if err := p.deps.Sender.Send(ctx, out); err != nil {
		run.Status = model.RunStatusSendFailed
		return run, err
	}
	run.Status = model.RunStatusSent

	if err := p.deps.Store.MarkProcessed(ctx, run.MessageID); err != nil {
		log.Warn("marking newsletter processed failed", slog.String("error", err.Error()))
	}

	if p.cfg.Newsletter.MarkSeen && msg.Envelope.UID != 0 {
		if err := p.deps.Mailbox.MarkSeen(ctx, msg.Envelope.UID); err != nil {
			log.Warn("marking newsletter seen failed", slog.String("error", err.Error()))
		}
	}

	return run, nil
}

// Articles fetches the newest newsletter and returns its articles without
// summarizing or sending anything.
func (p *Pipeline) Articles(ctx context.Context, window time.Duration) (*email.ParsedMessage, []model.Article, error) {
	return p.collect(ctx, p.logger, window)
}

// collect fetches the newest newsletter and extracts its articles.
func (p *Pipeline) collect(
	ctx context.Context, log *slog.Logger, window time.Duration,
) (*email.ParsedMessage, []model.Article, error) {
	if window <= 0 {
		window = p.cfg.Newsletter.Window()
	}
	since := p.now().Add(-window)

	log.Info("searching for newsletter",
		slog.Any("senders", p.cfg.Newsletter.Senders),
		slog.Time("since", since))

	msg, err := p.deps.Mailbox.FetchLatestNewsletter(ctx, p.cfg.Newsletter.Senders, since)
	if err != nil {
		return nil, nil, err
	}

	log.Info("newsletter found",
		slog.String("subject", msg.Envelope.Subject),
		slog.String("from", msg.Envelope.From),
		slog.Time("date", msg.Envelope.Date))

	if strings.TrimSpace(msg.HTMLBody) == "" {
		log.Warn("newsletter has no HTML body")
		return msg, nil, nil
	}

	articles, err := extract.Articles(msg.HTMLBody, extract.FromConfig(p.cfg.Newsletter))
	if err != nil {
		return msg, nil, err
	}

	log.Info("articles extracted", slog.Int("count", len(articles)))
	return msg, articles, nil
}

// compose renders the digest into a ready-to-send message.
func (p *Pipeline) compose(summary string, now time.Time) (email.Outgoing, error) {
	htmlBody, err := render.Email(summary, render.Meta{
		Title:  p.cfg.Digest.Title,
		Footer: p.cfg.Digest.Footer,
		Date:   now,
	})
	if err != nil {
		return email.Outgoing{}, err
	}

	return email.Outgoing{
		From:       p.cfg.SMTP.Sender(),
		Recipients: p.cfg.Digest.Recipients,
		Subject:    render.Subject(p.cfg.Digest.SubjectPrefix, now),
		TextBody:   render.PlainText(summary),
		HTMLBody:   htmlBody,
		Date:       now,
	}, nil
}

func (p *Pipeline) skip(run *model.Run, reason string) {
	run.Status = model.RunStatusSkipped
	run.Error = reason
}

func writePreview(path, body string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating preview directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("writing preview %s: %w", path, err)
	}
	return nil
}
