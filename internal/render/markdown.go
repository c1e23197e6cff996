// Package render turns the model's markdown digest into the email bodies
// and subject line.
package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

const (
	h1Style    = `color: #4CAF50; font-size: 24px; margin: 20px 0;`
	h2Style    = `color: #2196F3; font-size: 20px; margin: 25px 0 10px; padding: 10px; background: linear-gradient(90deg, #E3F2FD 0%, #FFFFFF 100%); border-left: 4px solid #2196F3;`
	linkPStyle = `margin: 10px 0;`
	linkStyle  = `color: #4CAF50; text-decoration: none; padding: 8px 15px; background: #E8F5E9; border-radius: 5px; display: inline-block;`
	paraStyle  = `margin: 15px 0; line-height: 1.9; color: #333; font-size: 16px;`
)

var (
	linkLine   = regexp.MustCompile(`^🔗\s*\[([^\]]+)\]\(([^)\s]+)\)\s*$`)
	inlineLink = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	bold       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
)

// MarkdownToHTML converts the small markdown subset the summarizer emits
// into inline-styled HTML suitable for email clients. Headings (# and ##)
// and 🔗 link lines become their own elements; runs of other lines become
// paragraphs, with single newlines kept as <br>. All text is escaped, and
// only http(s) links turn into anchors.
func MarkdownToHTML(md string) string {
	md = strings.ReplaceAll(md, "\r\n", "\n")

	var out []string
	for _, block := range strings.Split(md, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		out = append(out, renderBlock(block)...)
	}

	return strings.Join(out, "\n")
}

func renderBlock(block string) []string {
	var (
		out  []string
		para []string
	)

	flush := func() {
		if len(para) == 0 {
			return
		}
		out = append(out, fmt.Sprintf(`<p style="%s">%s</p>`, paraStyle, strings.Join(para, "<br>\n")))
		para = nil
	}

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "## "):
			flush()
			out = append(out, fmt.Sprintf(`<h2 style="%s">%s</h2>`, h2Style, inline(strings.TrimPrefix(line, "## "))))
		case strings.HasPrefix(line, "# "):
			flush()
			out = append(out, fmt.Sprintf(`<h1 style="%s">%s</h1>`, h1Style, inline(strings.TrimPrefix(line, "# "))))
		case linkLine.MatchString(line):
			m := linkLine.FindStringSubmatch(line)
			if !safeURL(m[2]) {
				para = append(para, inline(line))
				continue
			}
			flush()
			out = append(out, fmt.Sprintf(`<p style="%s"><a href="%s" style="%s">🔗 %s</a></p>`,
				linkPStyle, html.EscapeString(m[2]), linkStyle, html.EscapeString(m[1])))
		default:
			para = append(para, inline(line))
		}
	}
	flush()

	return out
}

// inline escapes s and then applies bold and http(s) link markup.
func inline(s string) string {
	var sb strings.Builder
	last := 0
	for _, m := range inlineLink.FindAllStringSubmatchIndex(s, -1) {
		text, href := s[m[2]:m[3]], s[m[4]:m[5]]
		sb.WriteString(emphasis(html.EscapeString(s[last:m[0]])))
		if safeURL(href) {
			fmt.Fprintf(&sb, `<a href="%s" style="color: #4CAF50;">%s</a>`,
				html.EscapeString(href), emphasis(html.EscapeString(text)))
		} else {
			sb.WriteString(emphasis(html.EscapeString(s[m[0]:m[1]])))
		}
		last = m[1]
	}
	sb.WriteString(emphasis(html.EscapeString(s[last:])))
	return sb.String()
}

func emphasis(escaped string) string {
	return bold.ReplaceAllString(escaped, "<strong>$1</strong>")
}

func safeURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// PlainText flattens the markdown for the text/plain alternative: link
// syntax becomes "text: url" and bold markers are dropped.
func PlainText(md string) string {
	md = strings.ReplaceAll(md, "\r\n", "\n")
	md = inlineLink.ReplaceAllString(md, "$1: $2")
	md = bold.ReplaceAllString(md, "$1")
	return strings.TrimSpace(md) + "\n"
}
