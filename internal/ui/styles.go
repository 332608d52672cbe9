package ui

import "github.com/charmbracelet/lipgloss"

// Palette: a lime accent over grays, yellow and red for trouble.
const (
	ColorLime     = "154"
	ColorGray     = "245"
	ColorDarkGray = "238"
	ColorRed      = "196"
	ColorYellow   = "220"
)

// Styles are the lipgloss styles shared by the TUI and the status view.
type Styles struct {
	Header, Active     lipgloss.Style
	Success            lipgloss.Style
	Warning, Error     lipgloss.Style
	Dim, Label, Border lipgloss.Style
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

// DefaultStyles is the colored palette.
func DefaultStyles() Styles {
	return Styles{
		Header:  fg(ColorLime).Bold(true),
		Active:  fg(ColorLime).Bold(true),
		Success: fg(ColorLime),
		Warning: fg(ColorYellow),
		Error:   fg(ColorRed),
		Dim:     fg(ColorDarkGray),
		Label:   fg(ColorGray),
		Border:  fg(ColorDarkGray),
	}
}

// NoColorStyles renders every element as plain text.
func NoColorStyles() Styles {
	p := lipgloss.NewStyle()
	return Styles{p, p, p, p, p, p, p, p}
}

// GetStyles picks NoColorStyles when noColor is set.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
