package update

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/dayplan/internal/model"
)

type menuAction string

const (
	menuInsert menuAction = "Insert after"
	menuEdit   menuAction = "Edit"
	menuDelete menuAction = "Delete"
	menuToggle menuAction = "Toggle done"
)

var menuActions = []menuAction{menuInsert, menuEdit, menuDelete, menuToggle}

// MenuState is the long-press menu of one task.
type MenuState struct {
	Task   model.Task
	Cursor int
}

// menuActionsFor hides what the engine would reject for t anyway.
func menuActionsFor(t model.Task) []menuAction {
	out := make([]menuAction, 0, len(menuActions))
	for _, a := range menuActions {
		if t.IsLast() && a == menuInsert {
			continue
		}
		if t.IsSentinel() && a == menuDelete {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (m Model) openMenu(t model.Task) Model {
	m.Menu = MenuState{Task: t}
	m.Active = ComponentLongPressMenu
	return m
}

func (m Model) handleMenuKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	actions := menuActionsFor(m.Menu.Task)
	switch msg.String() {
	case "esc", m.Keys.Menu:
		return m.closeOverlay(), nil
	case "up", "k":
		if m.Menu.Cursor > 0 {
			m.Menu.Cursor--
		}
	case "down", "j":
		if m.Menu.Cursor < len(actions)-1 {
			m.Menu.Cursor++
		}
	case "enter":
		if m.Menu.Cursor < len(actions) {
			return m.runMenuAction(actions[m.Menu.Cursor])
		}
	case m.Keys.Insert:
		return m.runMenuAction(menuInsert)
	case m.Keys.Quick, m.Keys.Full:
		return m.runMenuAction(menuEdit)
	case m.Keys.Delete:
		return m.runMenuAction(menuDelete)
	case m.Keys.Toggle:
		return m.runMenuAction(menuToggle)
	}
	return m, nil
}

func (m Model) runMenuAction(a menuAction) (Model, tea.Cmd) {
	t := m.Menu.Task
	allowed := false
	for _, candidate := range menuActionsFor(t) {
		if candidate == a {
			allowed = true
		}
	}
	if !allowed {
		return m, nil
	}
	m = m.closeOverlay()
	switch a {
	case menuInsert:
		return m.openFullEdit(t, formInsert), nil
	case menuEdit:
		return m.openFullEdit(t, formEdit), nil
	case menuDelete:
		return m.startOp(deleteCmd(m.planner, m.timeout, m.Date, t))
	case menuToggle:
		return m.startOp(toggleCmd(m.planner, m.timeout, m.Date, t))
	}
	return m, nil
}
