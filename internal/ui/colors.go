package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Semantic colors using ANSI codes for terminal compatibility.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// DisableColors switches lipgloss to plain ASCII output.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// ColorsFromEnv disables colors when NO_COLOR is set.
func ColorsFromEnv() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		DisableColors()
	}
}

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

// SuccessStyle, ErrorStyle, WarningStyle and MutedStyle are the text styles
// used across commands.
func SuccessStyle() lipgloss.Style { return fg(ColorSuccess) }
func ErrorStyle() lipgloss.Style   { return fg(ColorError) }
func WarningStyle() lipgloss.Style { return fg(ColorWarning) }
func MutedStyle() lipgloss.Style   { return fg(ColorMuted) }

// HeaderStyle styles the "==== name ====" border line.
func HeaderStyle() lipgloss.Style {
	return fg(ColorInfo).Bold(true)
}
