package cmd

import "github.com/charmbracelet/lipgloss"

var (
	// Colors (muted/Nord-inspired)
	colorGreen  = lipgloss.Color("#a3be8c")
	colorCyan   = lipgloss.Color("#88c0d0")
	colorBlue   = lipgloss.Color("#81a1c1")
	colorYellow = lipgloss.Color("#ebcb8b")
	colorRed    = lipgloss.Color("#bf616a")
	colorGray   = lipgloss.Color("#4c566a")

	// Styles
	styleSuccess = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	styleError = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	styleHeader = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true).
			Underline(true)

	styleBranch = lipgloss.NewStyle().
			Foreground(colorCyan)

	stylePath = lipgloss.NewStyle().
			Foreground(colorBlue)

	styleDim = lipgloss.NewStyle().
			Foreground(colorGray)
)

func successMsg(msg string) string {
	return styleSuccess.Render("✓ ") + msg
}

func errorMsg(msg string) string {
	return styleError.Render("✗ ") + msg
}

func warnMsg(msg string) string {
	return styleWarning.Render("! ") + msg
}
