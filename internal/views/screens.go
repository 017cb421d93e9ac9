package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type TimelineRow struct {
	Position int
	Start    string
	End      string
	Minutes  int
	Name     string
	Type     string
	Done     bool
	Boundary bool
	Recurs   bool
	Reminder bool
	Selected bool
}

type TimelineData struct {
	Date string
	Rows []TimelineRow
}

type DetailsData struct {
	Name       string
	Type       string
	Start      string
	End        string
	Minutes    int
	Reminder   string
	Done       bool
	Recurrence string
	Upcoming   []string
	Notes      string
}

type MenuData struct {
	Title  string
	Items  []string
	Cursor int
}

type FormData struct {
	Title     string
	Fields    []string
	ErrorText string
}

type HelpPanelData struct {
	Component string
	Bindings  []string
	HelpView  string
}

var (
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	boundaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	doneStyle     = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("8"))
	typeStyles    = map[string]lipgloss.Style{
		"main":   lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		"helper": lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		"quick":  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		"basics": lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	}
)

func RenderTimeline(data TimelineData) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("day %s:\n", data.Date))
	if len(data.Rows) == 0 {
		b.WriteString("(nothing planned)")
		return b.String()
	}
	for _, row := range data.Rows {
		cursor := " "
		if row.Selected {
			cursor = ">"
		}
		check := "[ ]"
		if row.Done {
			check = "[x]"
		}
		flags := ""
		if row.Recurs {
			flags += " ↻"
		}
		if row.Reminder {
			flags += " ⏰"
		}
		name := row.Name
		switch {
		case row.Done:
			name = doneStyle.Render(name)
		case row.Selected:
			name = selectedStyle.Render(name)
		case row.Boundary:
			name = boundaryStyle.Render(name)
		}
		line := fmt.Sprintf("%s %s %s-%s %4dm %s %s%s", cursor, check, row.Start, row.End, row.Minutes, typeBadge(row.Type), name, flags)
		b.WriteString(line + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func typeBadge(kind string) string {
	label := fmt.Sprintf("%-7s", "["+kind+"]")
	if style, ok := typeStyles[kind]; ok {
		return style.Render(label)
	}
	return label
}

func RenderDetails(data DetailsData) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("details: %s\n", data.Name))
	b.WriteString(fmt.Sprintf("when: %s-%s (%d min)\n", data.Start, data.End, data.Minutes))
	b.WriteString(fmt.Sprintf("type: %s\n", data.Type))
	if data.Reminder != "" {
		b.WriteString(fmt.Sprintf("reminder: %s\n", data.Reminder))
	}
	if data.Done {
		b.WriteString("state: done\n")
	}
	b.WriteString(fmt.Sprintf("repeats: %s\n", data.Recurrence))
	if len(data.Upcoming) > 0 {
		b.WriteString("next:\n")
		for _, d := range data.Upcoming {
			b.WriteString("- " + d + "\n")
		}
	}
	if notes := RenderMarkdown(data.Notes); notes != "" {
		b.WriteString("\n" + notes)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func RenderMenu(data MenuData) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("actions: %s\n", data.Title))
	for i, item := range data.Items {
		cursor := " "
		if i == data.Cursor {
			cursor = ">"
		}
		b.WriteString(fmt.Sprintf("%s %s\n", cursor, item))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func RenderForm(data FormData) string {
	var b strings.Builder
	b.WriteString(data.Title + ":\n")
	for _, f := range data.Fields {
		b.WriteString(f + "\n")
	}
	if data.ErrorText != "" {
		b.WriteString(errorStyle.Render("error: "+data.ErrorText) + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func RenderHelpPanel(data HelpPanelData) string {
	return fmt.Sprintf("help (%s):\n%s\n%s",
		strings.ReplaceAll(data.Component, "_", " "),
		strings.Join(data.Bindings, "\n"),
		data.HelpView,
	)
}
