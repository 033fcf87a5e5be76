package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// The TUI must stay readable on both light and dark terminal backgrounds, so
// every color goes through lipgloss.AdaptiveColor.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

var (
	colorMuted    lipgloss.TerminalColor = ac("240", "243")
	colorAccent   lipgloss.TerminalColor = ac("27", "62") // blue
	colorMember   lipgloss.TerminalColor = ac("28", "40") // green
	colorErrorFg  lipgloss.TerminalColor = ac("160", "203")
	colorHeaderFg lipgloss.TerminalColor = ac("235", "252")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorHeaderFg)
	tabStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	tabActive   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	footerStyle = lipgloss.NewStyle().Foreground(colorMuted)
	statusStyle = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle  = lipgloss.NewStyle().Foreground(colorErrorFg)
	memberStyle = lipgloss.NewStyle().Foreground(colorMember)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	promptStyle = lipgloss.NewStyle().Foreground(colorAccent)
)

// hasColor reports whether the terminal supports color at all; glyph-only
// fallbacks keep membership markers visible on dumb terminals.
func hasColor() bool {
	return termenv.ColorProfile() != termenv.Ascii
}
