package update

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/dayplan/internal/reminder"
)

const reminderLogSize = 20

type ReminderDueMsg struct {
	Event reminder.Event
}

func waitForReminderCmd(ch <-chan reminder.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return ReminderDueMsg{Event: ev}
	}
}

func (m Model) onReminder(ev reminder.Event) (Model, tea.Cmd) {
	m.ReminderLog = append(m.ReminderLog, ev)
	if len(m.ReminderLog) > reminderLogSize {
		m.ReminderLog = m.ReminderLog[len(m.ReminderLog)-reminderLogSize:]
	}
	text := fmt.Sprintf("reminder: %s at %s", ev.Name, ev.At.Format("15:04"))
	isErr := false
	if m.DesktopEnabled && m.notifier != nil {
		if err := m.notifier.Notify(ev); err != nil {
			text = fmt.Sprintf("%s (desktop notification failed: %v)", text, err)
			isErr = true
		}
	}
	m, statusCmd := m.setStatus(text, isErr)
	return m, tea.Batch(statusCmd, waitForReminderCmd(m.reminders))
}
