package theme

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/newsdigest/internal/model"
)

func TestRenderArticles(t *testing.T) {
	out := RenderArticles([]model.Article{
		{Title: "OpenAI ships agents toolkit", Summary: strings.Repeat("a", 150), Link: "https://example.com/a"},
		{Title: "GPU prices drop", Link: "https://example.com/b"},
	})

	assert.Contains(t, out, "추출된 기사: 2개")
	assert.Contains(t, out, "OpenAI ships agents toolkit")
	assert.Contains(t, out, "https://example.com/b")
	assert.Contains(t, out, strings.Repeat("a", 100)+"...")
	assert.NotContains(t, out, strings.Repeat("a", 101))
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary("# 오늘의 소식\n\n## 첫 기사\n본문")

	assert.Contains(t, out, "오늘의 소식")
	assert.Contains(t, out, "첫 기사")
	assert.Contains(t, out, "본문")
	assert.NotContains(t, out, "## ")
}

func TestRenderRuns(t *testing.T) {
	assert.Contains(t, RenderRuns(nil), "No runs recorded yet.")

	out := RenderRuns([]model.Run{{
		ID:                "0123456789abcdef",
		StartedAt:         time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC),
		Status:            model.RunStatusSent,
		ArticleCount:      12,
		NewsletterSubject: "TLDR AI 2025-03-07",
	}})

	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "sent")
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "TLDR AI 2025-03-07")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "abc", preview("abc", 3))
	assert.Equal(t, "ab...", preview("abc", 2))
	assert.Equal(t, "한국...", preview("한국어", 2))
}
