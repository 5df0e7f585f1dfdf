// Package style renders strings for the terminal with lipgloss.
package style

import (
	"github.com/boxrelay/boxrelay/color"
	"github.com/charmbracelet/lipgloss"
)

// New returns an empty style.
func New() lipgloss.Style {
	return lipgloss.NewStyle()
}

// Fg returns a function coloring its argument with c.
func Fg(c lipgloss.Color) func(string) string {
	return func(s string) string { return New().Foreground(c).Render(s) }
}

var (
	Faint  = func(s string) string { return New().Faint(true).Render(s) }
	Bold   = func(s string) string { return New().Bold(true).Render(s) }
	Italic = func(s string) string { return New().Italic(true).Render(s) }
)

// Quality colors a resolution label by tier: full HD and up, HD, and the rest.
func Quality(quality int) func(string) string {
	switch {
	case quality >= 1080:
		return Fg(color.Green)
	case quality >= 720:
		return Fg(color.Yellow)
	default:
		return Fg(color.Gray)
	}
}
