// Package extract pulls article entries out of newsletter HTML.
package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/nhle/newsdigest/internal/model"
)

// fallbackSummaryLength is how much of the title stands in for a missing
// summary.
const fallbackSummaryLength = 100

// Options tunes which anchors count as articles.
type Options struct {
	// MinTitleLength is the exclusive lower bound on anchor text length,
	// counted in characters.
	MinTitleLength int

	// SummarySiblings is how many non-empty nodes after the anchor's
	// parent are joined into the summary.
	SummarySiblings int

	// SummaryMaxLength caps the summary, counted in characters.
	SummaryMaxLength int

	// MaxArticles caps the number of returned articles.
	MaxArticles int

	// ExcludePatterns drops links whose href or text contains any entry,
	// case-insensitively.
	ExcludePatterns []string
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MinTitleLength:   10,
		SummarySiblings:  3,
		SummaryMaxLength: 200,
		MaxArticles:      20,
	}
}

// FromConfig builds Options from the newsletter configuration.
func FromConfig(cfg model.NewsletterConfig) Options {
	return Options{
		MinTitleLength:   cfg.MinTitleLength,
		SummarySiblings:  cfg.SummarySiblings,
		SummaryMaxLength: cfg.SummaryMaxLength,
		MaxArticles:      cfg.MaxArticles,
		ExcludePatterns:  cfg.ExcludePatterns,
	}
}

// Articles walks every anchor with an href and keeps the ones that look
// like article links: long enough text and an http(s) target. The summary
// comes from the nodes that follow the anchor's parent. Links are
// deduplicated by exact href, first occurrence wins, and the result is
// capped at opts.MaxArticles.
func Articles(html string, opts Options) ([]model.Article, error) {
	if strings.TrimSpace(html) == "" {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing newsletter html: %w", err)
	}

	var articles []model.Article
	seen := make(map[string]bool)

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if opts.MaxArticles > 0 && len(articles) >= opts.MaxArticles {
			return false
		}

		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		title := cleanText(a.Text())

		if utf8.RuneCountInString(title) <= opts.MinTitleLength {
			return true
		}
		if !strings.Contains(href, "http") {
			return true
		}
		if excluded(href, title, opts.ExcludePatterns) {
			return true
		}
		if seen[href] {
			return true
		}
		seen[href] = true

		summary := truncate(siblingText(a, opts.SummarySiblings), opts.SummaryMaxLength)
		if summary == "" {
			summary = truncate(title, fallbackSummaryLength)
		}

		articles = append(articles, model.Article{
			Title:   title,
			Summary: summary,
			Link:    href,
		})
		return true
	})

	return articles, nil
}

// siblingText joins the text of the first n nodes following the anchor's
// parent. Text nodes and elements both count, blank ones included, so in
// indented markup the whitespace between tags takes up slots.
func siblingText(a *goquery.Selection, n int) string {
	parent := a.Parent()
	if parent.Length() == 0 || n <= 0 {
		return ""
	}

	var parts []string
	taken := 0
	for node := parent.Get(0).NextSibling; node != nil && taken < n; node = node.NextSibling {
		taken++
		if text := cleanText(goquery.NewDocumentFromNode(node).Text()); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " ")
}

// excluded reports whether href or text contains any pattern.
func excluded(href, text string, patterns []string) bool {
	lh := strings.ToLower(href)
	lt := strings.ToLower(text)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.Contains(lh, p) || strings.Contains(lt, p) {
			return true
		}
	}
	return false
}

// cleanText collapses whitespace, including non-breaking spaces.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most max characters without splitting a rune.
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}
