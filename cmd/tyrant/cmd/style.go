package cmd

import (
	"github.com/charmbracelet/lipgloss"

	"tyrant/src/personality"
)

var (
	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	defaultVoiceStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
)

// voiceStyle colors a personality's label with its display color
func voiceStyle(p *personality.Pack) lipgloss.Style {
	if p == nil || p.Display.Color == "" {
		return defaultVoiceStyle
	}
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Display.Color))
}

// voiceLabel is the prompt prefix for replies in p's voice
func voiceLabel(p *personality.Pack) string {
	if p == nil {
		return voiceStyle(nil).Render("GPTyrant")
	}
	label := p.Name
	if p.Display.Icon != "" {
		label = "[" + p.Display.Icon + "] " + label
	}
	return voiceStyle(p).Render(label)
}
