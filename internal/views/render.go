package views

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Screen is one frame of the planner: the timeline on the left and at most
// one overlay (details, menu, form, palette, help) on the right.
type Screen struct {
	Header        string
	Timeline      string
	Overlay       string
	Status        string
	StatusIsError bool
	LastReminder  string
	Footer        string
}

const (
	timelineWidth = 62
	overlayWidth  = 58
	notesWrap     = overlayWidth - 6
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	reminderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func RenderScreen(s Screen) string {
	body := panelStyle.Width(timelineWidth).Render(s.Timeline)
	if strings.TrimSpace(s.Overlay) != "" {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, panelStyle.Width(overlayWidth).Render(s.Overlay))
	}

	lines := []string{headerStyle.Render(s.Header), body}
	if s.Status != "" {
		style := statusStyle
		if s.StatusIsError {
			style = errorStyle
		}
		lines = append(lines, style.Render(s.Status))
	}
	if s.LastReminder != "" {
		lines = append(lines, reminderStyle.Render("⏰ "+s.LastReminder))
	}
	if s.Footer != "" {
		lines = append(lines, footerStyle.Render(s.Footer))
	}
	return strings.Join(lines, "\n")
}

// RenderMarkdown renders task notes, or returns them unchanged if glamour
// cannot.
func RenderMarkdown(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(notesWrap))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}
