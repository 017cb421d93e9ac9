// Package engine keeps a day's task list gapless while tasks are inserted,
// edited, and deleted. Every operation runs in one store transaction and
// returns an *Error on failure.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/dayplan/internal/feed"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/storage"
)

var ErrStoreNil = errors.New("engine: store is nil")

// ReminderSink receives reminder changes after a transaction commits.
type ReminderSink interface {
	ScheduleReminder(taskID int64, name string, at time.Time) error
	CancelReminder(taskID int64) error
}

type Engine struct {
	store     storage.Repository
	logger    *slog.Logger
	reminders ReminderSink
	feed      feed.Publisher
	now       func() time.Time
	loc       *time.Location
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithReminders(sink ReminderSink) Option {
	return func(e *Engine) { e.reminders = sink }
}

func WithPublisher(p feed.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.feed = p
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the zone task times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func New(store storage.Repository, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	e := &Engine{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.feed == nil {
		e.feed = feed.NewMemoryPublisher()
	}
	return e, nil
}

// Insert places draft directly after the task referenceID on date. The new
// task takes its time from the front of the displaced successor, which
// shrinks by the same amount.
func (e *Engine) Insert(ctx context.Context, date model.Date, referenceID int64, draft model.Task) (model.Task, error) {
	const op = "insert"
	var inserted model.Task
	err := e.run(ctx, op, func(ctx context.Context, tx storage.Tx) error {
		tasks, err := tx.ListForDate(ctx, date)
		if err != nil {
			return err
		}
		refIdx := indexOf(tasks, referenceID)
		if refIdx < 0 {
			return newError(CodeNotFound, op, "reference task %d is not scheduled on %s", referenceID, date)
		}
		ref := tasks[refIdx]
		if ref.IsLast() || refIdx == len(tasks)-1 {
			return newError(CodeNoSuccessor, op, "%q has no task after it", ref.Name)
		}
		displaced := tasks[refIdx+1]
		if draft.Duration <= 0 || draft.Duration >= displaced.Duration {
			return newError(CodeInvalidDuration, op, "%d minutes does not fit inside %q (%d minutes)", draft.Duration, displaced.Name, displaced.Duration)
		}

		// Shift followers down from the bottom so each position is free
		// before it is taken.
		taken := map[int]bool{}
		for i := len(tasks) - 1; i >= 0; i-- {
			t := tasks[i]
			if i > refIdx && !t.IsLast() && t.Position > ref.Position {
				t.Position++
				if t.Position >= model.LastPosition {
					return newError(CodeConstraintViolation, op, "position of %q overflows", t.Name)
				}
				if err := tx.Place(ctx, date, t); err != nil {
					return err
				}
				tasks[i] = t
			}
			taken[t.Position] = true
		}

		draft.ID = 0
		draft.Position = ref.Position + 1
		draft = draft.Span(ref.EndTime, draft.Duration)
		if draft.Type == "" {
			draft.Type = model.TaskTypeUndefined
		}
		if !draft.IsRecurring && draft.StartDate.IsZero() {
			draft.StartDate = date
		}
		if err := draft.Validate(); err != nil {
			return invalidTask(op, err)
		}
		if taken[draft.Position] {
			return newError(CodeConstraintViolation, op, "position %d is already taken", draft.Position)
		}

		id, err := tx.AddOn(ctx, date, draft)
		if err != nil {
			return err
		}
		draft.ID = id

		displaced = tasks[refIdx+1]
		displaced = displaced.Span(draft.EndTime, displaced.Duration-draft.Duration)
		if !displaced.IsLast() {
			displaced.Position = draft.Position + 1
		}
		if err := tx.Place(ctx, date, displaced); err != nil {
			return err
		}
		inserted = draft
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	e.logger.Info("task inserted", "date", date.String(), "id", inserted.ID, "after", referenceID, "minutes", inserted.Duration)
	e.syncReminder(date, inserted)
	e.publish(ctx, date)
	return inserted, nil
}

// Edit stores edited and moves the start of its successor to the new end.
// The successor keeps its own end, so nothing past it moves. Position, start
// time and recurrence are owned by the engine and taken from the stored
// task.
func (e *Engine) Edit(ctx context.Context, date model.Date, edited model.Task) error {
	const op = "edit"
	var saved model.Task
	err := e.run(ctx, op, func(ctx context.Context, tx storage.Tx) error {
		tasks, err := tx.ListForDate(ctx, date)
		if err != nil {
			return err
		}
		idx := indexOf(tasks, edited.ID)
		if idx < 0 {
			return newError(CodeNotFound, op, "task %d is not scheduled on %s", edited.ID, date)
		}
		current := tasks[idx]

		edited.Position = current.Position
		start := current.StartTime
		if current.IsFirst() {
			start = model.DayStart
		}
		end := edited.EndTime
		if end == current.EndTime {
			if edited.Duration <= 0 {
				return newError(CodeInvalidDuration, op, "duration must be positive, got %d", edited.Duration)
			}
			if int(start)+edited.Duration > int(model.DayEnd) {
				return newError(CodeInvalidDuration, op, "%d minutes from %s runs past the end of the day", edited.Duration, start)
			}
			end = start.Add(edited.Duration)
		}
		if current.IsLast() {
			end = model.DayEnd
		}
		if end <= start {
			return newError(CodeInvalidDuration, op, "%q would end at %s, before it starts at %s", edited.Name, end, start)
		}
		edited = edited.Span(start, start.Until(end))
		edited.IsRecurring = current.IsRecurring
		edited.RecurrenceType = current.RecurrenceType
		edited.RecurrenceInterval = current.RecurrenceInterval
		edited.StartDate = current.StartDate
		edited.RecurrenceEndDate = current.RecurrenceEndDate
		if !edited.IsRecurring && edited.StartDate.IsZero() {
			edited.StartDate = date
		}
		if err := edited.Validate(); err != nil {
			return invalidTask(op, err)
		}

		if current.IsLast() || idx == len(tasks)-1 {
			saved = edited
			return tx.Place(ctx, date, edited)
		}

		successor := tasks[idx+1]
		if successor.EndTime <= edited.EndTime {
			return newError(CodeInvalidDuration, op, "%q would swallow %q", edited.Name, successor.Name)
		}
		successor = successor.Span(edited.EndTime, edited.EndTime.Until(successor.EndTime))
		if err := tx.Place(ctx, date, edited); err != nil {
			return err
		}
		if err := tx.Place(ctx, date, successor); err != nil {
			return err
		}
		saved = edited
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("task edited", "date", date.String(), "id", saved.ID, "end", saved.EndTime.String())
	e.syncReminder(date, saved)
	e.publish(ctx, date)
	return nil
}

// Delete takes a task off date and closes the position gap it leaves. Times
// of the neighbors are not touched; a recurring task stays on its other
// dates.
func (e *Engine) Delete(ctx context.Context, date model.Date, id int64) error {
	const op = "delete"
	if id == model.FirstTaskID || id == model.LastTaskID {
		return newError(CodeCannotDeleteSentinel, op, "the day boundary tasks cannot be deleted")
	}
	err := e.run(ctx, op, func(ctx context.Context, tx storage.Tx) error {
		tasks, err := tx.ListForDate(ctx, date)
		if err != nil {
			return err
		}
		idx := indexOf(tasks, id)
		if idx < 0 {
			return newError(CodeNotFound, op, "task %d is not scheduled on %s", id, date)
		}
		removed := tasks[idx]
		if err := tx.RemoveFrom(ctx, date, removed); err != nil {
			return err
		}
		for _, t := range tasks[idx+1:] {
			if t.IsLast() || t.Position <= removed.Position {
				continue
			}
			t.Position--
			if err := tx.Place(ctx, date, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("task deleted", "date", date.String(), "id", id)
	e.cancelReminder(id)
	e.publish(ctx, date)
	return nil
}

// BulkReplace swaps the whole resolved set of date for tasks, in order.
// Recurring tasks that were on date are only excluded from it.
func (e *Engine) BulkReplace(ctx context.Context, date model.Date, tasks []model.Task) error {
	const op = "bulk replace"
	var removed []int64
	stored := make([]model.Task, 0, len(tasks))
	err := e.run(ctx, op, func(ctx context.Context, tx storage.Tx) error {
		previous, err := tx.ListForDate(ctx, date)
		if err != nil {
			return err
		}
		removed = removed[:0]
		for _, t := range previous {
			removed = append(removed, t.ID)
		}
		if err := tx.ClearDate(ctx, date); err != nil {
			return err
		}

		stored = stored[:0]
		for i, t := range tasks {
			if !t.IsRecurring && t.StartDate.IsZero() {
				t.StartDate = date
			}
			if t.Type == "" {
				t.Type = model.TaskTypeUndefined
			}
			if err := t.Validate(); err != nil {
				return &Error{Code: CodeInsertionFailed, Op: op, Message: fmt.Sprintf("task #%d %q is invalid", i+1, t.Name), Cause: err}
			}
			id, err := tx.AddOn(ctx, date, t)
			if err != nil {
				return &Error{Code: CodeInsertionFailed, Op: op, Message: fmt.Sprintf("task #%d %q could not be stored", i+1, t.Name), Cause: err}
			}
			t.ID = id
			stored = append(stored, t)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("day replaced", "date", date.String(), "removed", len(removed), "inserted", len(stored))
	for _, id := range removed {
		e.cancelReminder(id)
	}
	for _, t := range stored {
		e.syncReminder(date, t)
	}
	e.publish(ctx, date)
	return nil
}

// ToggleCompletion flips the done flag of a task on date and returns the
// new value.
func (e *Engine) ToggleCompletion(ctx context.Context, date model.Date, id int64) (bool, error) {
	const op = "toggle completion"
	var done bool
	err := e.run(ctx, op, func(ctx context.Context, tx storage.Tx) error {
		tasks, err := tx.ListForDate(ctx, date)
		if err != nil {
			return err
		}
		if indexOf(tasks, id) < 0 {
			return newError(CodeNotFound, op, "task %d is not scheduled on %s", id, date)
		}
		completed, err := tx.ListCompletions(ctx, date)
		if err != nil {
			return err
		}
		done = !completed[id]
		return tx.SetCompletion(ctx, model.Completion{TaskID: id, Date: date, IsCompleted: done})
	})
	if err != nil {
		return false, err
	}
	e.publish(ctx, date)
	return done, nil
}

// Snapshot reads the resolved set and completion flags of date.
func (e *Engine) Snapshot(ctx context.Context, date model.Date) (feed.Snapshot, error) {
	tasks, err := e.store.ListForDate(ctx, date)
	if err != nil {
		return feed.Snapshot{}, classify("snapshot", err)
	}
	completed, err := e.store.ListCompletions(ctx, date)
	if err != nil {
		return feed.Snapshot{}, classify("snapshot", err)
	}
	return feed.Snapshot{Date: date, Tasks: tasks, Completed: completed, At: e.now()}, nil
}

// ObserveResolvedTasks streams snapshots of date: the current one right
// away, then one after every committed change to that date. The returned
// func stops the stream; cancelling ctx does the same.
func (e *Engine) ObserveResolvedTasks(ctx context.Context, date model.Date) (<-chan feed.Snapshot, func()) {
	ch := e.feed.Subscribe(date)
	var once sync.Once
	stop := func() {
		once.Do(func() { e.feed.Unsubscribe(date, ch) })
	}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			stop()
		}()
	}
	e.publish(ctx, date)
	return ch, stop
}

func (e *Engine) publish(ctx context.Context, date model.Date) {
	snap, err := e.Snapshot(context.WithoutCancel(ctx), date)
	if err != nil {
		e.logger.Warn("snapshot after commit failed", "date", date.String(), "error", err)
		return
	}
	e.feed.Publish(snap)
}

// ArmReminders schedules every future reminder of date and returns how many
// were armed.
func (e *Engine) ArmReminders(ctx context.Context, date model.Date) (int, error) {
	if e.reminders == nil {
		return 0, nil
	}
	tasks, err := e.store.ListForDate(ctx, date)
	if err != nil {
		return 0, classify("arm reminders", err)
	}
	armed := 0
	for _, t := range tasks {
		if t.ReminderTime == nil || !date.At(*t.ReminderTime, e.loc).After(e.now()) {
			continue
		}
		e.syncReminder(date, t)
		armed++
	}
	return armed, nil
}

// SeedIfEmpty fills date with model.DefaultDay when the store holds no
// templates at all. It reports whether it seeded.
func (e *Engine) SeedIfEmpty(ctx context.Context, date model.Date) (bool, error) {
	templates, err := e.store.ListTemplates(ctx)
	if err != nil {
		return false, classify("seed", err)
	}
	if len(templates) > 0 {
		return false, nil
	}
	if err := e.BulkReplace(ctx, date, model.DefaultDay(date)); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) syncReminder(date model.Date, t model.Task) {
	if e.reminders == nil {
		return
	}
	if t.ReminderTime == nil {
		e.cancelReminder(t.ID)
		return
	}
	at := date.At(*t.ReminderTime, e.loc)
	if !at.After(e.now()) {
		e.cancelReminder(t.ID)
		return
	}
	if err := e.reminders.ScheduleReminder(t.ID, t.Name, at); err != nil {
		e.logger.Warn("schedule reminder failed", "id", t.ID, "at", at, "error", err)
	}
}

func (e *Engine) cancelReminder(id int64) {
	if e.reminders == nil {
		return
	}
	if err := e.reminders.CancelReminder(id); err != nil {
		e.logger.Warn("cancel reminder failed", "id", id, "error", err)
	}
}

// run executes fn in one transaction and converts whatever escapes it,
// panics included, into an *Error. Once begun, the transaction ignores
// cancellation of ctx.
func (e *Engine) run(ctx context.Context, op string, fn func(context.Context, storage.Tx) error) (err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &Error{Code: CodeTransactionAborted, Op: op, Message: "not started", Cause: ctxErr}
	}
	txCtx := context.WithoutCancel(ctx)
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("transaction panicked", "op", op, "panic", p)
			err = &Error{Code: CodeTransactionAborted, Op: op, Message: fmt.Sprintf("rolled back after panic: %v", p)}
		}
	}()
	if txErr := e.store.RunInTx(txCtx, func(tx storage.Tx) error { return fn(txCtx, tx) }); txErr != nil {
		err = classify(op, txErr)
		e.logger.Debug("transaction rolled back", "op", op, "error", err)
		return err
	}
	return nil
}

func classify(op string, err error) error {
	var engineErr *Error
	switch {
	case errors.As(err, &engineErr):
		if engineErr.Op == "" {
			engineErr.Op = op
		}
		return engineErr
	case errors.Is(err, storage.ErrConstraintViolation):
		return &Error{Code: CodeConstraintViolation, Op: op, Message: "the store rejected the change", Cause: err}
	case errors.Is(err, storage.ErrNotFound):
		return &Error{Code: CodeNotFound, Op: op, Message: "task no longer exists", Cause: err}
	default:
		return &Error{Code: CodeTransactionAborted, Op: op, Message: "rolled back", Cause: err}
	}
}

func invalidTask(op string, err error) *Error {
	code := CodeInvalidTask
	if errors.Is(err, model.ErrInvalidDuration) {
		code = CodeInvalidDuration
	}
	return &Error{Code: code, Op: op, Message: "task is invalid", Cause: err}
}

func indexOf(tasks []model.Task, id int64) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
