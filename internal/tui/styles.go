package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/smileynet/dualotp/internal/flow"
)

// labelWidth is the column width of field labels.
const labelWidth = 12

var (
	titleStyle = lipgloss.NewStyle().Bold(true)

	labelStyle = lipgloss.NewStyle().
			Width(labelWidth).
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})

	focusedLabelStyle = labelStyle.
				Foreground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})

	buttonStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.AdaptiveColor{Light: "15", Dark: "15"}).
			Background(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})

	disabledButtonStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Foreground(lipgloss.AdaptiveColor{Light: "250", Dark: "240"})

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "2", Dark: "10"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "1", Dark: "9"})
)

// StatusStyle returns the style for a status line of the given kind.
// Pending statuses share the success color.
func StatusStyle(k flow.Kind) lipgloss.Style {
	if k == flow.KindError {
		return errorStyle
	}
	return successStyle
}

// Button renders a trigger label, dimmed when disabled.
func Button(label string, enabled bool) string {
	if enabled {
		return buttonStyle.Render(label)
	}
	return disabledButtonStyle.Render(label)
}
