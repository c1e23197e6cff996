package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/newsdigest/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for section banners.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// TitleStyle renders article headlines.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// LinkStyle renders URLs.
var LinkStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Underline(true)

// MutedStyle is used for secondary text such as summaries and hints.
var MutedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// IndexStyle renders the article number in the list.
var IndexStyle = lipgloss.NewStyle().
	Foreground(ColorOrange).
	Bold(true)

// PanelStyle wraps the summary output.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// Heading1Style and Heading2Style mirror the markdown heading levels.
var (
	Heading1Style = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)
	Heading2Style = lipgloss.NewStyle().Bold(true).Foreground(ColorBlue)
)

// SuccessStyle and ErrorStyle mark command outcomes.
var (
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
)

// StatusStyle returns a color-coded style for the given run status.
func StatusStyle(status string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch status {
	case model.RunStatusSent:
		return base.Foreground(ColorGreen)
	case model.RunStatusDryRun:
		return base.Foreground(ColorBlue)
	case model.RunStatusRunning:
		return base.Foreground(ColorYellow)
	case model.RunStatusSkipped:
		return base.Foreground(ColorGray)
	case model.RunStatusSummaryFailed:
		return base.Foreground(ColorMagenta)
	case model.RunStatusSendFailed, model.RunStatusFailed:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}
