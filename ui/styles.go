// Package ui renders the terminal summaries printed after each stage.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("110"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// Error renders a fatal message.
func Error(msg string) string {
	return errorStyle.Render(msg)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("… %d %s", n, noun)
	}
	return fmt.Sprintf("… %d %ss", n, noun)
}
