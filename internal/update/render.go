package update

import (
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/views"
)

func (m Model) renderTimeline() string {
	rows := make([]views.TimelineRow, 0, len(m.Tasks))
	for i, t := range m.Tasks {
		rows = append(rows, views.TimelineRow{
			Position: t.Position,
			Start:    t.StartTime.String(),
			End:      t.EndTime.String(),
			Minutes:  t.Duration,
			Name:     t.Name,
			Type:     string(t.Type),
			Done:     m.Completed[t.ID],
			Boundary: t.IsSentinel(),
			Recurs:   t.IsRecurring,
			Reminder: t.ReminderTime != nil,
			Selected: i == m.Cursor,
		})
	}
	return views.RenderTimeline(views.TimelineData{Date: m.Date.String(), Rows: rows})
}

func (m Model) renderDetails(t model.Task) string {
	summary, preview := m.recurrenceSummary(t)
	reminder := ""
	if t.ReminderTime != nil {
		reminder = t.ReminderTime.String()
	}
	return views.RenderDetails(views.DetailsData{
		Name:       t.Name,
		Type:       string(t.Type),
		Start:      t.StartTime.String(),
		End:        t.EndTime.String(),
		Minutes:    t.Duration,
		Reminder:   reminder,
		Done:       m.Completed[t.ID],
		Recurrence: summary,
		Upcoming:   preview,
		Notes:      t.Notes,
	})
}

func (m Model) renderMenu() string {
	actions := menuActionsFor(m.Menu.Task)
	labels := make([]string, 0, len(actions))
	for _, a := range actions {
		labels = append(labels, string(a))
	}
	return views.RenderMenu(views.MenuData{Title: m.Menu.Task.Name, Items: labels, Cursor: m.Menu.Cursor})
}

func (m Model) renderFullEdit() string {
	title := "edit " + m.Form.Task.Name
	if m.Form.Mode == formInsert {
		title = "insert after " + m.Form.Task.Name
	}
	fields := make([]string, 0, formFieldCount+1)
	for i := range m.formInputs {
		fields = append(fields, m.formInputs[i].View())
	}
	fields = append(fields, m.notesArea.View())
	return views.RenderForm(views.FormData{Title: title, Fields: fields, ErrorText: m.Form.ErrMsg})
}

func (m Model) renderQuickEdit() string {
	return views.RenderForm(views.FormData{
		Title:     "duration of " + m.Form.Task.Name,
		Fields:    []string{m.durationInput.View()},
		ErrorText: m.Form.ErrMsg,
	})
}
