package digest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/newsdigest/internal/model"
	"github.com/nhle/newsdigest/internal/source"
	"github.com/nhle/newsdigest/internal/source/email"
	"github.com/nhle/newsdigest/internal/store"
	"github.com/nhle/newsdigest/tests/testutil"
)

const newsletterHTML = `<html><body>
<div><p><a href="https://example.com/agents">OpenAI ships new agents toolkit</a></p><p>Agents for everyone.</p></div>
<div><p><a href="https://example.com/gpu">GPU prices are finally dropping</a></p><p>Cheaper compute.</p></div>
</body></html>`

type fakeMailbox struct {
	msg      *email.ParsedMessage
	err      error
	senders  []string
	since    time.Time
	seenUIDs []uint32
}

func (f *fakeMailbox) FetchLatestNewsletter(_ context.Context, senders []string, since time.Time) (*email.ParsedMessage, error) {
	f.senders = senders
	f.since = since
	return f.msg, f.err
}

func (f *fakeMailbox) MarkSeen(_ context.Context, uid uint32) error {
	f.seenUIDs = append(f.seenUIDs, uid)
	return nil
}

type fakeSummarizer struct {
	summary string
	err     error
	calls   int
	got     []model.Article
}

func (f *fakeSummarizer) Summarize(_ context.Context, articles []model.Article) (string, error) {
	f.calls++
	f.got = articles
	return f.summary, f.err
}

type fakeSender struct {
	sent []email.Outgoing
	err  error
}

func (f *fakeSender) Send(_ context.Context, out email.Outgoing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, out)
	return nil
}

type fixture struct {
	cfg        *model.AppConfig
	mailbox    *fakeMailbox
	summarizer *fakeSummarizer
	sender     *fakeSender
	store      *store.SQLiteStore
	out        *bytes.Buffer
	pipeline   *Pipeline
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := model.DefaultConfig()
	cfg.IMAP.Username = "me@gmail.com"
	cfg.SMTP.Username = "me@gmail.com"
	cfg.Digest.Recipients = []string{"a@example.com", "b@example.com"}
	cfg.Newsletter.MarkSeen = true

	f := &fixture{
		cfg: cfg,
		mailbox: &fakeMailbox{msg: &email.ParsedMessage{
			Envelope: email.Envelope{
				MessageID: "<issue-1@tldrnewsletter.com>",
				Subject:   "TLDR AI 2025-03-07",
				From:      "dan@tldrnewsletter.com",
				UID:       42,
			},
			HTMLBody: newsletterHTML,
		}},
		summarizer: &fakeSummarizer{summary: "# 🎯 오늘 챙겨볼 AI 소식 (2-3선)\n\n## 첫 기사\n본문\n🔗 [원문](https://example.com/agents)"},
		sender:     &fakeSender{},
		store:      testutil.NewTestStore(t),
		out:        &bytes.Buffer{},
		now:        time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC),
	}

	f.pipeline = New(cfg, Deps{
		Mailbox:    f.mailbox,
		Summarizer: f.summarizer,
		Sender:     f.sender,
		Store:      f.store,
		Out:        f.out,
	}, nil)
	f.pipeline.now = func() time.Time { return f.now }

	return f
}

func (f *fixture) storedRun(t *testing.T) model.Run {
	t.Helper()
	runs, err := f.store.GetRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	return runs[0]
}

func TestRun_SendsDigest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	run, err := f.pipeline.Run(ctx, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusSent, run.Status)
	assert.Equal(t, 2, run.ArticleCount)
	assert.Equal(t, "<issue-1@tldrnewsletter.com>", run.MessageID)

	assert.Equal(t, []string{"dan@tldrnewsletter.com"}, f.mailbox.senders)
	assert.True(t, f.mailbox.since.Equal(f.now.Add(-72*time.Hour)))
	assert.Equal(t, []uint32{42}, f.mailbox.seenUIDs)

	require.Len(t, f.summarizer.got, 2)
	assert.Equal(t, "https://example.com/agents", f.summarizer.got[0].Link)
	assert.Equal(t, "Agents for everyone.", f.summarizer.got[0].Summary)

	require.Len(t, f.sender.sent, 1)
	out := f.sender.sent[0]
	assert.Equal(t, "🤖 TLDR AI 뉴스레터 요약 - 2025년 03월 07일", out.Subject)
	assert.Equal(t, "me@gmail.com", out.From)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, out.Recipients)
	assert.Contains(t, out.HTMLBody, "2025년 03월 07일 (Friday)")
	assert.Contains(t, out.HTMLBody, `href="https://example.com/agents"`)
	assert.Contains(t, out.TextBody, "원문: https://example.com/agents")

	assert.Contains(t, f.out.String(), "OpenAI ships new agents toolkit")
	assert.Contains(t, f.out.String(), "첫 기사")

	stored := f.storedRun(t)
	assert.Equal(t, model.RunStatusSent, stored.Status)
	assert.Equal(t, "a@example.com, b@example.com", stored.Recipients)
	assert.NotNil(t, stored.FinishedAt)

	articles, err := f.store.GetArticles(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, articles, 2)

	done, err := f.store.IsProcessed(ctx, run.MessageID)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRun_SkipsAlreadyDigested(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.Run(ctx, RunOptions{})
	require.NoError(t, err)

	run, err := f.pipeline.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSkipped, run.Status)
	assert.Equal(t, "newsletter already digested", run.Error)
	assert.Len(t, f.sender.sent, 1)
	assert.Equal(t, 1, f.summarizer.calls)

	run, err = f.pipeline.Run(ctx, RunOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSent, run.Status)
	assert.Len(t, f.sender.sent, 2)
}

func TestRun_NoNewsletter(t *testing.T) {
	f := newFixture(t)
	f.mailbox.msg = nil
	f.mailbox.err = source.ErrNoNewsletter

	run, err := f.pipeline.Run(context.Background(), RunOptions{Window: 24 * time.Hour})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusSkipped, run.Status)
	assert.True(t, f.mailbox.since.Equal(f.now.Add(-24*time.Hour)))
	assert.Zero(t, f.summarizer.calls)
	assert.Equal(t, model.RunStatusSkipped, f.storedRun(t).Status)
}

func TestRun_NoArticles(t *testing.T) {
	f := newFixture(t)
	f.mailbox.msg.HTMLBody = `<p><a href="https://x.example">short</a></p>`

	run, err := f.pipeline.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusSkipped, run.Status)
	assert.Equal(t, "no articles extracted", run.Error)
	assert.Zero(t, f.summarizer.calls)
}

func TestRun_SummaryFailureSendsNothing(t *testing.T) {
	f := newFixture(t)
	f.summarizer.err = errors.New("rate limited")

	run, err := f.pipeline.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusSummaryFailed, run.Status)
	assert.Equal(t, "rate limited", run.Error)
	assert.Empty(t, f.sender.sent)
	assert.Contains(t, f.out.String(), "OpenAI ships new agents toolkit", "articles are still shown")

	done, err := f.store.IsProcessed(context.Background(), run.MessageID)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestRun_SendFailure(t *testing.T) {
	f := newFixture(t)
	f.sender.err = errors.New("sending digest to b@example.com: 550 mailbox unavailable")

	run, err := f.pipeline.Run(context.Background(), RunOptions{})
	require.Error(t, err)

	assert.Equal(t, model.RunStatusSendFailed, run.Status)
	stored := f.storedRun(t)
	assert.Equal(t, model.RunStatusSendFailed, stored.Status)
	assert.Contains(t, stored.Error, "b@example.com")
	assert.Empty(t, f.mailbox.seenUIDs)
}

func TestRun_FetchFailure(t *testing.T) {
	f := newFixture(t)
	f.mailbox.msg = nil
	f.mailbox.err = &source.AuthError{Service: source.ServiceIMAP, Message: "bad password"}

	run, err := f.pipeline.Run(context.Background(), RunOptions{})
	require.Error(t, err)
	assert.True(t, source.IsAuthError(err))
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Equal(t, model.RunStatusFailed, f.storedRun(t).Status)
}

func TestRun_DryRunWritesPreview(t *testing.T) {
	f := newFixture(t)
	preview := filepath.Join(t.TempDir(), "preview", "digest.html")

	run, err := f.pipeline.Run(context.Background(), RunOptions{DryRun: true, PreviewPath: preview})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusDryRun, run.Status)
	assert.Empty(t, f.sender.sent)
	assert.Empty(t, f.mailbox.seenUIDs)

	data, err := os.ReadFile(preview)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<!DOCTYPE html>"))

	done, err := f.store.IsProcessed(context.Background(), run.MessageID)
	require.NoError(t, err)
	assert.False(t, done, "dry runs do not consume the newsletter")
}

func TestArticles(t *testing.T) {
	f := newFixture(t)

	msg, articles, err := f.pipeline.Articles(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "TLDR AI 2025-03-07", msg.Envelope.Subject)
	assert.Len(t, articles, 2)
	assert.Zero(t, f.summarizer.calls)
}
