package update

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/dayplan/internal/feed"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/views"
)

type SetStatusMsg struct {
	Text    string
	IsError bool
}

// ClearStatusMsg clears the status line if it still shows status Seq.
// A zero Seq always clears.
type ClearStatusMsg struct {
	Seq int
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(subscribeCmd(m.planner, m.Date), waitForReminderCmd(m.reminders))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		if typed.String() == "ctrl+c" {
			return m.quit()
		}
		if m.Palette.Active {
			return m.handlePaletteKey(typed)
		}
		switch m.Active {
		case ComponentQuickEdit:
			return m.handleQuickEditKey(typed)
		case ComponentFullEdit:
			return m.handleFullEditKey(typed)
		case ComponentLongPressMenu:
			return m.handleMenuKey(typed)
		case ComponentDetails:
			return m.handleDetailsKey(typed)
		}
		return m.handleTimelineKey(typed)
	case spinner.TickMsg:
		if m.Busy > 0 {
			var cmd tea.Cmd
			m.busySpinner, cmd = m.busySpinner.Update(typed)
			return m, cmd
		}
		return m, nil
	case subscribedMsg:
		if typed.date != m.Date {
			typed.stop()
			return m, nil
		}
		if m.stopFeed != nil {
			m.stopFeed()
		}
		m.snapshots, m.stopFeed = typed.snapshots, typed.stop
		return m, waitForSnapshotCmd(m.snapshots)
	case SnapshotMsg:
		if typed.Snapshot.Date == m.Date {
			m = m.applySnapshot(typed.Snapshot)
		}
		return m, waitForSnapshotCmd(m.snapshots)
	case OpResultMsg:
		if m.Busy > 0 {
			m.Busy--
		}
		if typed.Err != nil {
			m.LastError = typed.Err
			return m.setStatus(errorText(typed.Err), true)
		}
		return m.setStatus(typed.Text, false)
	case SetStatusMsg:
		return m.setStatus(typed.Text, typed.IsError)
	case ClearStatusMsg:
		if typed.Seq == 0 || typed.Seq == m.Status.seq {
			m.Status = StatusBar{seq: m.Status.seq}
		}
		return m, nil
	case ReminderDueMsg:
		return m.onReminder(typed.Event)
	}
	return m, nil
}

func (m Model) handleTimelineKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case m.Keys.Quit:
		return m.quit()
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
		}
	case "down", "j":
		if m.Cursor < len(m.Tasks)-1 {
			m.Cursor++
		}
	case m.Keys.Palette:
		m.Palette.Active = true
		m.Palette.Input = ""
		m.commandInput.SetValue("")
		m.commandInput.Focus()
		m.Status = StatusBar{Text: "command palette active", seq: m.Status.seq}
	case m.Keys.Help:
		m.HelpVisible = !m.HelpVisible
	case m.Keys.PrevDay:
		return m.switchDate(m.Date.AddDays(-1))
	case m.Keys.NextDay:
		return m.switchDate(m.Date.AddDays(1))
	case m.Keys.Today:
		return m.switchDate(m.today())
	}

	t, ok := m.Selected()
	if !ok {
		return m, nil
	}
	switch msg.String() {
	case m.Keys.Details:
		return m.openDetails(t), nil
	case m.Keys.Menu:
		return m.openMenu(t), nil
	case m.Keys.Quick:
		return m.openQuickEdit(t), nil
	case m.Keys.Full:
		return m.openFullEdit(t, formEdit), nil
	case m.Keys.Insert:
		if t.IsLast() {
			return m.setStatus("nothing can follow the end of the day", true)
		}
		return m.openFullEdit(t, formInsert), nil
	case m.Keys.Toggle, " ":
		return m.startOp(toggleCmd(m.planner, m.timeout, m.Date, t))
	case m.Keys.Delete:
		return m.startOp(deleteCmd(m.planner, m.timeout, m.Date, t))
	}
	return m, nil
}

func (m Model) openDetails(t model.Task) Model {
	m.Active = ComponentDetails
	m.Menu = MenuState{Task: t}
	m.detailView.SetContent(m.renderDetails(t))
	m.detailView.GotoTop()
	return m
}

func (m Model) handleDetailsKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc", m.Keys.Details, m.Keys.Quit:
		return m.closeOverlay(), nil
	case m.Keys.Full:
		return m.openFullEdit(m.Menu.Task, formEdit), nil
	case m.Keys.Menu:
		return m.openMenu(m.Menu.Task), nil
	}
	var cmd tea.Cmd
	m.detailView, cmd = m.detailView.Update(msg)
	return m, cmd
}

func (m Model) closeOverlay() Model {
	m.Active = ComponentNone
	m.Form = FormState{}
	m.Menu = MenuState{}
	m.durationInput.Blur()
	for i := range m.formInputs {
		m.formInputs[i].Blur()
	}
	m.notesArea.Blur()
	return m
}

// switchDate drops the feed of the shown date and subscribes to date.
func (m Model) switchDate(date model.Date) (Model, tea.Cmd) {
	if m.stopFeed != nil {
		m.stopFeed()
	}
	m.snapshots, m.stopFeed = nil, nil
	m.Date = date
	m.Tasks = nil
	m.Completed = make(map[int64]bool)
	m.Cursor = 0
	m = m.closeOverlay()
	return m, subscribeCmd(m.planner, date)
}

func (m Model) applySnapshot(snap feed.Snapshot) Model {
	selected, hadSelection := m.Selected()
	m.Tasks = snap.Tasks
	m.Completed = snap.Completed
	if m.Completed == nil {
		m.Completed = make(map[int64]bool)
	}
	if hadSelection {
		for i, t := range m.Tasks {
			if t.ID == selected.ID {
				m.Cursor = i
			}
		}
	}
	if m.Cursor >= len(m.Tasks) {
		m.Cursor = len(m.Tasks) - 1
	}
	if m.Cursor < 0 {
		m.Cursor = 0
	}
	if m.Active == ComponentDetails {
		for _, t := range m.Tasks {
			if t.ID == m.Menu.Task.ID {
				m.Menu.Task = t
				m.detailView.SetContent(m.renderDetails(t))
			}
		}
	}
	return m
}

func (m Model) setStatus(text string, isErr bool) (Model, tea.Cmd) {
	seq := m.Status.seq + 1
	m.Status = StatusBar{Text: text, IsError: isErr, seq: seq}
	if m.statusTTL <= 0 || text == "" {
		return m, nil
	}
	return m, tea.Tick(m.statusTTL, func(time.Time) tea.Msg { return ClearStatusMsg{Seq: seq} })
}

func (m Model) quit() (Model, tea.Cmd) {
	m.Quitting = true
	if m.stopFeed != nil {
		m.stopFeed()
	}
	return m, tea.Quit
}

func (m Model) View() string {
	status := ""
	if m.Status.Text != "" {
		if m.Status.IsError {
			status = fmt.Sprintf("status: error: %s", m.Status.Text)
		} else {
			status = fmt.Sprintf("status: %s", m.Status.Text)
		}
	}
	if m.Busy > 0 {
		status = strings.TrimSpace(m.busySpinner.View() + " " + status)
	}

	right := ""
	switch m.Active {
	case ComponentDetails:
		right = m.detailView.View()
	case ComponentLongPressMenu:
		right = m.renderMenu()
	case ComponentFullEdit:
		right = m.renderFullEdit()
	case ComponentQuickEdit:
		right = m.renderQuickEdit()
	}
	if m.Palette.Active {
		right = strings.TrimSpace(right + "\n" + m.commandInput.View())
	}
	if m.HelpVisible {
		right = strings.TrimSpace(right + "\n" + m.renderHelpView())
	}

	lastReminder := ""
	if len(m.ReminderLog) > 0 {
		last := m.ReminderLog[len(m.ReminderLog)-1]
		lastReminder = fmt.Sprintf("%s @ %s", last.Name, last.At.Format("15:04"))
	}

	return views.RenderScreen(views.Screen{
		Header:        fmt.Sprintf("dayplan | %s %s | %s", m.Date.Weekday().String()[:3], m.Date, m.Active),
		Timeline:      m.renderTimeline(),
		Overlay:       right,
		Status:        status,
		StatusIsError: m.Status.IsError,
		LastReminder:  lastReminder,
		Footer:        fmt.Sprintf("keys: enter details | %s menu | %s/%s edit | %s add | %s done | %s/%s day | %s cmd | %s help | %s quit", m.Keys.Menu, m.Keys.Quick, m.Keys.Full, m.Keys.Insert, m.Keys.Toggle, m.Keys.PrevDay, m.Keys.NextDay, m.Keys.Palette, m.Keys.Help, m.Keys.Quit),
	})
}
