package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
)

// Storefront teal for kiosk branding.
const kioskTeal = "#2BB3A3"

// KIOSK ASCII art (filled block style).
var kioskArt = []string{
	"    ██╗  ██╗██╗ ██████╗ ███████╗██╗  ██╗",
	"    ██║ ██╔╝██║██╔═══██╗██╔════╝██║ ██╔╝",
	"    █████╔╝ ██║██║   ██║███████╗█████╔╝ ",
	"    ██╔═██╗ ██║██║   ██║╚════██║██╔═██╗ ",
	"    ██║  ██╗██║╚██████╔╝███████║██║  ██╗",
	"    ╚═╝  ╚═╝╚═╝ ╚═════╝ ╚══════╝╚═╝  ╚═╝",
}

// Styles contains all lipgloss styles for the TUI.
type Styles struct {
	Banner    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Tips      lipgloss.Style
	Error     lipgloss.Style
	Prompt    lipgloss.Style
	Separator lipgloss.Style
	StatusBar lipgloss.Style

	// Component card rendering
	Card      lipgloss.Style
	CardTitle lipgloss.Style
	CardField lipgloss.Style
	CardValue lipgloss.Style
	Button    lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Banner:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(kioskTeal)),
		User:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		System:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		Tips:      lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Prompt:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		StatusBar: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),

		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		CardTitle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(kioskTeal)),
		CardField: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		CardValue: lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		Button: lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("238")).
			Padding(0, 1),
	}
}

// RenderBanner returns the KIOSK ASCII art banner as a styled string.
func (s Styles) RenderBanner() string {
	var b strings.Builder
	for _, line := range kioskArt {
		_, _ = b.WriteString(s.Banner.Render(line))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}

// welcomeTips are displayed under the banner.
var welcomeTips = []string{
	"Tips for getting started:",
	"  • Ask about products, orders, returns, or store policies",
	"  • Use /help to see available commands, /new for a fresh session",
	"  • Press Ctrl+C to cancel, Ctrl+D to exit",
	"  • Up/Down arrows navigate input history",
}

// RenderWelcomeTips returns styled welcome tips.
func (s Styles) RenderWelcomeTips() string {
	var b strings.Builder
	for _, tip := range welcomeTips {
		_, _ = b.WriteString(s.Tips.Render(tip))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}
