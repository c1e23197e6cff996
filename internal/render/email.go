package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/email.html
var templateFS embed.FS

var emailTmpl = template.Must(template.ParseFS(templateFS, "templates/email.html"))

const (
	headerDateLayout  = "2006년 01월 02일 (Monday)"
	subjectDateLayout = "2006년 01월 02일"
)

// Meta carries the per-send values around the digest body.
type Meta struct {
	Title  string
	Footer string
	Date   time.Time
}

type emailData struct {
	Title   string
	Date    string
	Content template.HTML
	Footer  string
}

// Email renders the complete HTML document for a markdown digest.
func Email(summaryMarkdown string, meta Meta) (string, error) {
	date := meta.Date
	if date.IsZero() {
		date = time.Now()
	}

	data := emailData{
		Title: meta.Title,
		Date:  date.Format(headerDateLayout),
		// MarkdownToHTML escapes all user text itself.
		Content: template.HTML(MarkdownToHTML(summaryMarkdown)),
		Footer:  meta.Footer,
	}

	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering email: %w", err)
	}
	return buf.String(), nil
}

// Subject returns the digest subject line for the given day.
func Subject(prefix string, now time.Time) string {
	return fmt.Sprintf("🤖 %s - %s", prefix, now.Format(subjectDateLayout))
}
