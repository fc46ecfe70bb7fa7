package main

import "github.com/charmbracelet/lipgloss"

// styles is empty (plain text) when output is not a terminal.
type styles struct {
	heading lipgloss.Style
	label   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	dim     lipgloss.Style
}

func newStyles(tty bool) styles {
	if !tty {
		return styles{}
	}
	return styles{
		heading: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "12", Dark: "12"}),
		label:   lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "8", Dark: "7"}),
		ok:      lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "10", Dark: "10"}),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "8", Dark: "7"}),
	}
}

func (s styles) onOff(on bool) string {
	if on {
		return s.ok.Render("on")
	}
	return s.dim.Render("off")
}
