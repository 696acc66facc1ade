// SPDX-License-Identifier: MIT

// Package tui holds the Bubble Tea screens: an input device picker and a
// live feature monitor.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C6C6C"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E8A33D"))
)
