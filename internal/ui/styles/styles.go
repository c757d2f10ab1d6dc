// Package styles contains Lip Gloss style definitions for the command line
// front end.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Semantic color names - Text hierarchy
	TextPrimaryColor = lipgloss.AdaptiveColor{Light: "#333333", Dark: "#CCCCCC"} // Main/primary text
	TextMutedColor   = lipgloss.AdaptiveColor{Light: "#888888", Dark: "#696969"} // Ids, hints, field names

	// Semantic color names - Status
	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"} // Clean exits
	StatusWarningColor = lipgloss.AdaptiveColor{Light: "#C78C00", Dark: "#FECA57"} // Disconnects, signals
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"} // Errors

	// Channel direction colors
	ChannelInColor  = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"} // child -> parent
	ChannelOutColor = lipgloss.AdaptiveColor{Light: "#8839EF", Dark: "#CBA6F7"} // parent -> child

	LabelStyle   = lipgloss.NewStyle().Bold(true).Foreground(TextPrimaryColor)
	MutedStyle   = lipgloss.NewStyle().Foreground(TextMutedColor)
	SuccessStyle = lipgloss.NewStyle().Bold(true).Foreground(StatusSuccessColor)
	WarningStyle = lipgloss.NewStyle().Bold(true).Foreground(StatusWarningColor)
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(StatusErrorColor)
	InStyle      = lipgloss.NewStyle().Foreground(ChannelInColor)
	OutStyle     = lipgloss.NewStyle().Foreground(ChannelOutColor)
)
