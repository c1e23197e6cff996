package theme

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nhle/newsdigest/internal/model"
)

const (
	articleSummaryPreview = 100
	ruleWidth             = 80
)

func rule() string {
	return MutedStyle.Render(strings.Repeat("─", ruleWidth))
}

// RenderArticles lists extracted articles with their link and a summary
// preview.
func RenderArticles(articles []model.Article) string {
	var sb strings.Builder

	sb.WriteString(HeaderStyle.Render(fmt.Sprintf("추출된 기사: %d개", len(articles))))
	sb.WriteString("\n")

	for i, a := range articles {
		sb.WriteString("\n")
		sb.WriteString(IndexStyle.Render(fmt.Sprintf("%d.", i+1)))
		sb.WriteString(" ")
		sb.WriteString(TitleStyle.Render(a.Title))
		sb.WriteString("\n   ")
		sb.WriteString(LinkStyle.Render(a.Link))
		if a.Summary != "" {
			sb.WriteString("\n   ")
			sb.WriteString(MutedStyle.Render(preview(a.Summary, articleSummaryPreview)))
		}
		sb.WriteString("\n")
		sb.WriteString(rule())
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderSummary shows the model's markdown in a bordered panel with the
// heading lines highlighted.
func RenderSummary(md string) string {
	lines := strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "## "):
			lines[i] = Heading2Style.Render(strings.TrimPrefix(line, "## "))
		case strings.HasPrefix(line, "# "):
			lines[i] = Heading1Style.Render(strings.TrimPrefix(line, "# "))
		}
	}

	return HeaderStyle.Render("📰 요약 결과") + "\n" +
		PanelStyle.Render(strings.Join(lines, "\n")) + "\n"
}

// RenderRuns renders the run history as a table, newest first.
func RenderRuns(runs []model.Run) string {
	if len(runs) == 0 {
		return MutedStyle.Render("No runs recorded yet.") + "\n"
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers("ID", "STARTED", "STATUS", "ARTICLES", "NEWSLETTER", "ERROR").
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Bold(true).Foreground(ColorBlue)
			}
			if col == 2 && row >= 0 && row < len(runs) {
				return StatusStyle(runs[row].Status).Padding(0, 1)
			}
			return style
		})

	for _, r := range runs {
		t.Row(
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Status,
			fmt.Sprintf("%d", r.ArticleCount),
			preview(r.NewsletterSubject, 40),
			preview(r.Error, 40),
		)
	}

	return t.Render() + "\n"
}

// RenderRun shows one run with its summary and articles.
func RenderRun(r *model.Run) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %s\n", TitleStyle.Render("Run"), r.ID)
	fmt.Fprintf(&sb, "  status:     %s\n", StatusStyle(r.Status).Render(r.Status))
	fmt.Fprintf(&sb, "  started:    %s\n", r.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if r.FinishedAt != nil {
		fmt.Fprintf(&sb, "  finished:   %s\n", r.FinishedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if r.NewsletterSubject != "" {
		fmt.Fprintf(&sb, "  newsletter: %s\n", r.NewsletterSubject)
	}
	if r.Recipients != "" {
		fmt.Fprintf(&sb, "  recipients: %s\n", r.Recipients)
	}
	if r.Error != "" {
		fmt.Fprintf(&sb, "  error:      %s\n", ErrorStyle.Render(r.Error))
	}
	sb.WriteString("\n")

	if r.Summary != "" {
		sb.WriteString(RenderSummary(r.Summary))
	}
	if len(r.Articles) > 0 {
		sb.WriteString(RenderArticles(r.Articles))
	}

	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func preview(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}
