package update

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/dayplan/internal/engine"
	"github.com/sandeepkv93/dayplan/internal/feed"
	"github.com/sandeepkv93/dayplan/internal/model"
)

// OpResultMsg reports the outcome of one engine call.
type OpResultMsg struct {
	Op   string
	Text string
	Err  error
}

type SnapshotMsg struct {
	Snapshot feed.Snapshot
}

type subscribedMsg struct {
	date      model.Date
	snapshots <-chan feed.Snapshot
	stop      func()
}

func (m Model) startOp(cmd tea.Cmd) (Model, tea.Cmd) {
	if cmd == nil {
		return m, nil
	}
	m.Busy++
	if m.Busy == 1 {
		return m, tea.Batch(cmd, m.busySpinner.Tick)
	}
	return m, cmd
}

func opResult(op, text string, err error) OpResultMsg {
	if err != nil {
		return OpResultMsg{Op: op, Err: err}
	}
	return OpResultMsg{Op: op, Text: text}
}

func withTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func insertCmd(p Planner, timeout time.Duration, date model.Date, referenceID int64, draft model.Task) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		t, err := p.Insert(ctx, date, referenceID, draft)
		return opResult("insert", fmt.Sprintf("added %q %s-%s", t.Name, t.StartTime, t.EndTime), err)
	}
}

func editCmd(p Planner, timeout time.Duration, date model.Date, t model.Task) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		return opResult("edit", fmt.Sprintf("saved %q", t.Name), p.Edit(ctx, date, t))
	}
}

func deleteCmd(p Planner, timeout time.Duration, date model.Date, t model.Task) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		return opResult("delete", fmt.Sprintf("deleted %q", t.Name), p.Delete(ctx, date, t.ID))
	}
}

func toggleCmd(p Planner, timeout time.Duration, date model.Date, t model.Task) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		done, err := p.ToggleCompletion(ctx, date, t.ID)
		state := "open"
		if done {
			state = "done"
		}
		return opResult("toggle", fmt.Sprintf("%q marked %s", t.Name, state), err)
	}
}

func resetCmd(p Planner, timeout time.Duration, date model.Date) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout(timeout)
		defer cancel()
		return opResult("reset", "day reset to the default routine", p.BulkReplace(ctx, date, model.DefaultDay(date)))
	}
}

func subscribeCmd(p Planner, date model.Date) tea.Cmd {
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		ch, stop := p.ObserveResolvedTasks(context.Background(), date)
		return subscribedMsg{date: date, snapshots: ch, stop: stop}
	}
}

func waitForSnapshotCmd(ch <-chan feed.Snapshot) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

// errorText prefers the engine's short message.
func errorText(err error) string {
	var engineErr *engine.Error
	if errors.As(err, &engineErr) {
		return fmt.Sprintf("%s failed: %s", engineErr.Op, engineErr.UserMessage())
	}
	return err.Error()
}
