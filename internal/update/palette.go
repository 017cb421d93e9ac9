package update

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/dayplan/internal/commands"
	"github.com/sandeepkv93/dayplan/internal/model"
)

func (m Model) handlePaletteKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.Palette.Active = false
		m.Palette.Input = ""
		m.commandInput.SetValue("")
		m.commandInput.Blur()
		m.Status = StatusBar{Text: "command palette closed"}
		return m, nil
	case "enter":
		m.Palette.Input = m.commandInput.Value()
		return m.executePaletteCommand()
	}
	var cmd tea.Cmd
	m.commandInput, cmd = m.commandInput.Update(msg)
	m.Palette.Input = m.commandInput.Value()
	return m, cmd
}

func (m Model) executePaletteCommand() (Model, tea.Cmd) {
	raw := strings.TrimSpace(m.Palette.Input)
	m.Palette.Active = false
	m.Palette.Input = ""
	m.commandInput.SetValue("")
	m.commandInput.Blur()

	cmd, err := commands.Parse(raw, m.today())
	if err != nil {
		return m.setStatus(err.Error(), true)
	}

	var followUp tea.Cmd
	next := m
	res, err := commands.Execute(cmd, commands.Handlers{
		Add: func(a commands.AddArgs) (commands.Result, error) {
			ref, err := m.paletteTarget(a.After)
			if err != nil {
				return commands.Result{}, err
			}
			draft := model.Task{Name: a.Name, Type: model.TaskTypeUndefined, Duration: a.Minutes}
			followUp = insertCmd(m.planner, m.timeout, m.Date, ref.ID, draft)
			return commands.Result{Message: fmt.Sprintf("adding %q after %q", a.Name, ref.Name)}, nil
		},
		Delete: func(d commands.DeleteArgs) (commands.Result, error) {
			t, err := m.paletteTarget(d.Target)
			if err != nil {
				return commands.Result{}, err
			}
			followUp = deleteCmd(m.planner, m.timeout, m.Date, t)
			return commands.Result{Message: fmt.Sprintf("deleting %q", t.Name)}, nil
		},
		Done: func(d commands.DoneArgs) (commands.Result, error) {
			t, err := m.paletteTarget(d.Target)
			if err != nil {
				return commands.Result{}, err
			}
			followUp = toggleCmd(m.planner, m.timeout, m.Date, t)
			return commands.Result{Message: fmt.Sprintf("toggling %q", t.Name)}, nil
		},
		Goto: func(g commands.GotoArgs) (commands.Result, error) {
			next, followUp = m.switchDate(g.Date)
			return commands.Result{Message: "showing " + g.Date.String()}, nil
		},
		Reset: func() (commands.Result, error) {
			followUp = resetCmd(m.planner, m.timeout, m.Date)
			return commands.Result{Message: "resetting " + m.Date.String()}, nil
		},
	})
	if err != nil {
		return m.setStatus(err.Error(), true)
	}
	next, statusCmd := next.setStatus(res.Message, false)
	if cmd.Type == commands.TypeGoto {
		return next, tea.Batch(followUp, statusCmd)
	}
	next, opCmd := next.startOp(followUp)
	return next, tea.Batch(opCmd, statusCmd)
}

func (m Model) paletteTarget(t commands.Target) (model.Task, error) {
	task, ok := m.taskAt(t.Position)
	if !ok {
		return model.Task{}, &commands.CommandError{
			Code:    commands.ErrCodeInvalidArgument,
			Message: fmt.Sprintf("no task at position %s on %s", t, m.Date),
		}
	}
	return task, nil
}
