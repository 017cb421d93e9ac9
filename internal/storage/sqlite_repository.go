package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/recurrence"
)

// Driver names registered with database/sql.
const (
	DriverCGO  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPure = "sqlite"  // modernc.org/sqlite
)

const taskColumns = `id, position, name, notes, type, start_time, end_time, duration, reminder_time,
	main_task_id, is_recurring, recurrence_type, recurrence_interval, start_date, recurrence_end_date`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteRepository struct {
	queries
	db   *sql.DB
	path string
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{queries: queries{q: db}, db: db}, nil
}

// OpenSQLite opens (creating if needed) the database at path with the given
// driver and applies migrations. The pool is limited to one connection so
// transactions serialize every write.
func OpenSQLite(driver, path string) (*SQLiteRepository, error) {
	dsn, err := sqliteDSN(driver, path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	repo.path = path
	return repo, nil
}

func sqliteDSN(driver, path string) (string, error) {
	switch driver {
	case DriverCGO:
		return "file:" + path + "?_foreign_keys=on&_busy_timeout=5000", nil
	case DriverPure:
		return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	default:
		return "", fmt.Errorf("storage: unknown sqlite driver %q", driver)
	}
}

func (r *SQLiteRepository) Path() string {
	return r.path
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) RunInTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(&queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Snapshot(ctx context.Context, destPath string) error {
	if err := os.Remove(destPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear snapshot target: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `VACUUM INTO ?`, destPath); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}
	return nil
}

// queries implements Tx over either the pool or an open transaction.
type queries struct {
	q querier
}

func (s *queries) Get(ctx context.Context, id int64) (model.Task, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, ErrNotFound
		}
		return model.Task{}, err
	}
	return task, nil
}

func (s *queries) GetAtPosition(ctx context.Context, date model.Date, position int) (model.Task, error) {
	tasks, err := s.ListForDate(ctx, date)
	if err != nil {
		return model.Task{}, err
	}
	for _, t := range tasks {
		if t.Position == position {
			return t, nil
		}
	}
	return model.Task{}, ErrNotFound
}

func (s *queries) ListNamesAndPositions(ctx context.Context, date model.Date) ([]NamePosition, error) {
	tasks, err := s.ListForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	out := make([]NamePosition, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, NamePosition{ID: t.ID, Name: t.Name, Position: t.Position})
	}
	return out, nil
}

func (s *queries) ListForDate(ctx context.Context, date model.Date) ([]model.Task, error) {
	return recurrence.ResolveActiveTasks(ctx, s, date)
}

func (s *queries) ListTemplates(ctx context.Context) ([]model.Task, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY position ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Task, 0)
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (s *queries) PinnedTaskIDs(ctx context.Context, date model.Date) (map[int64]bool, error) {
	return s.idSet(ctx, `SELECT task_id FROM task_dates WHERE date = ?`, date.String())
}

func (s *queries) ListCompletions(ctx context.Context, date model.Date) (map[int64]bool, error) {
	return s.idSet(ctx, `SELECT task_id FROM completions WHERE date = ? AND is_completed = 1`, date.String())
}

func (s *queries) idSet(ctx context.Context, query string, args ...any) (map[int64]bool, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (s *queries) Insert(ctx context.Context, task model.Task) (int64, error) {
	cols := `position, name, notes, type, start_time, end_time, duration, reminder_time,
		main_task_id, is_recurring, recurrence_type, recurrence_interval, start_date, recurrence_end_date`
	args := taskArgs(task)
	if task.ID != 0 {
		cols = "id, " + cols
		args = append([]any{task.ID}, args...)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	res, err := s.q.ExecContext(ctx, `INSERT INTO tasks (`+cols+`) VALUES (`+placeholders+`)`, args...)
	if err != nil {
		return 0, mapConstraint(err)
	}
	if task.ID != 0 {
		return task.ID, nil
	}
	return res.LastInsertId()
}

func (s *queries) Update(ctx context.Context, task model.Task) error {
	args := append(taskArgs(task), task.ID)
	res, err := s.q.ExecContext(ctx, `
		UPDATE tasks
		SET position = ?, name = ?, notes = ?, type = ?, start_time = ?, end_time = ?, duration = ?,
			reminder_time = ?, main_task_id = ?, is_recurring = ?, recurrence_type = ?,
			recurrence_interval = ?, start_date = ?, recurrence_end_date = ?
		WHERE id = ?`, args...)
	if err != nil {
		return mapConstraint(err)
	}
	return checkRowsAffected(res)
}

func (s *queries) Delete(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

// ClearDate takes every task of the resolved set off date. One-off tasks
// are removed; recurring tasks are excluded from date and keep recurring
// elsewhere. The boundary tasks lose their slot on date and fall back to
// their templates.
func (s *queries) ClearDate(ctx context.Context, date model.Date) error {
	tasks, err := s.ListForDate(ctx, date)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		switch {
		case t.IsSentinel():
			if _, err := s.q.ExecContext(ctx, `DELETE FROM slots WHERE task_id = ? AND date = ?`, t.ID, date.String()); err != nil {
				return err
			}
		case t.IsRecurring:
			if err := s.putSlot(ctx, date, t.ID, model.Slot{Position: t.Position, StartTime: t.StartTime, Duration: t.Duration, Excluded: true}); err != nil {
				return err
			}
		default:
			if err := s.Delete(ctx, t.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddOn stores task as a new entry of date. A one-off task is inserted and
// pinned. A recurring task reuses its template when task.ID already exists
// and gets a slot on date; a second slot for the same task and date is a
// constraint violation.
func (s *queries) AddOn(ctx context.Context, date model.Date, task model.Task) (int64, error) {
	if !task.IsRecurring {
		id, err := s.Insert(ctx, task)
		if err != nil {
			return 0, err
		}
		return id, s.PinToDate(ctx, id, date)
	}
	id, err := s.templateFor(ctx, task)
	if err != nil {
		return 0, err
	}
	_, err = s.q.ExecContext(ctx, `INSERT INTO slots (task_id, date, position, start_time, duration) VALUES (?, ?, ?, ?, ?)`,
		id, date.String(), task.Position, int(task.StartTime), task.Duration)
	if err != nil {
		return 0, mapConstraint(err)
	}
	return id, nil
}

// templateFor updates the template of task when it exists and inserts it
// otherwise.
func (s *queries) templateFor(ctx context.Context, task model.Task) (int64, error) {
	if task.ID != 0 {
		_, err := s.Get(ctx, task.ID)
		if err == nil {
			return task.ID, s.updateContent(ctx, task)
		}
		if !errors.Is(err, ErrNotFound) {
			return 0, err
		}
	}
	return s.Insert(ctx, task)
}

// Place stores task as it sits on date. One-off tasks are updated in place.
// A recurring task shares its name, notes, type and reminder with every
// date; its position and times are kept for date only.
func (s *queries) Place(ctx context.Context, date model.Date, task model.Task) error {
	if !task.IsRecurring {
		if err := s.Update(ctx, task); err != nil {
			return err
		}
		return s.PinToDate(ctx, task.ID, date)
	}
	if err := s.updateContent(ctx, task); err != nil {
		return err
	}
	return s.putSlot(ctx, date, task.ID, model.SlotOf(task))
}

// RemoveFrom takes task off date. Only one-off tasks are deleted.
func (s *queries) RemoveFrom(ctx context.Context, date model.Date, task model.Task) error {
	if !task.IsRecurring {
		return s.Delete(ctx, task.ID)
	}
	slot := model.SlotOf(task)
	slot.Excluded = true
	return s.putSlot(ctx, date, task.ID, slot)
}

func (s *queries) SlotsOn(ctx context.Context, date model.Date) (map[int64]model.Slot, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT task_id, position, start_time, duration, removed FROM slots WHERE date = ?`, date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]model.Slot)
	for rows.Next() {
		var id int64
		var slot model.Slot
		var start, excluded int
		if err := rows.Scan(&id, &slot.Position, &start, &slot.Duration, &excluded); err != nil {
			return nil, err
		}
		slot.StartTime = model.Clock(start)
		slot.Excluded = excluded == 1
		out[id] = slot
	}
	return out, rows.Err()
}

func (s *queries) putSlot(ctx context.Context, date model.Date, id int64, slot model.Slot) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO slots (task_id, date, position, start_time, duration, removed) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (task_id, date) DO UPDATE SET
			position = excluded.position, start_time = excluded.start_time,
			duration = excluded.duration, removed = excluded.removed`,
		id, date.String(), slot.Position, int(slot.StartTime), slot.Duration, boolInt(slot.Excluded))
	return mapConstraint(err)
}

// updateContent writes the date-independent fields of a recurring task.
func (s *queries) updateContent(ctx context.Context, task model.Task) error {
	var reminder any
	if task.ReminderTime != nil {
		reminder = int(*task.ReminderTime)
	}
	var mainID any
	if task.MainTaskID != nil {
		mainID = *task.MainTaskID
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE tasks SET name = ?, notes = ?, type = ?, reminder_time = ?, main_task_id = ?
		WHERE id = ?`,
		task.Name, task.Notes, string(task.Type), reminder, mainID, task.ID)
	if err != nil {
		return mapConstraint(err)
	}
	return checkRowsAffected(res)
}

func (s *queries) PinToDate(ctx context.Context, id int64, date model.Date) error {
	_, err := s.q.ExecContext(ctx, `INSERT OR IGNORE INTO task_dates (task_id, date) VALUES (?, ?)`, id, date.String())
	return mapConstraint(err)
}

func (s *queries) SetCompletion(ctx context.Context, c model.Completion) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO completions (task_id, date, is_completed) VALUES (?, ?, ?)
		ON CONFLICT (task_id, date) DO UPDATE SET is_completed = excluded.is_completed`,
		c.TaskID, c.Date.String(), boolInt(c.IsCompleted))
	return mapConstraint(err)
}

func taskArgs(t model.Task) []any {
	var reminder any
	if t.ReminderTime != nil {
		reminder = int(*t.ReminderTime)
	}
	var mainID any
	if t.MainTaskID != nil {
		mainID = *t.MainTaskID
	}
	var endDate any
	if t.RecurrenceEndDate != nil {
		endDate = t.RecurrenceEndDate.String()
	}
	return []any{
		t.Position, t.Name, t.Notes, string(t.Type), int(t.StartTime), int(t.EndTime), t.Duration,
		reminder, mainID, boolInt(t.IsRecurring), string(t.RecurrenceType), t.RecurrenceInterval,
		t.StartDate.String(), endDate,
	}
}

// mapConstraint turns driver constraint failures into ErrConstraintViolation.
func mapConstraint(err error) error {
	if err == nil {
		return nil
	}
	var cgoErr sqlite3.Error
	if errors.As(err, &cgoErr) && cgoErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
	}
	var pureErr *sqlite.Error
	if errors.As(err, &pureErr) && pureErr.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT {
		return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
	}
	return err
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (model.Task, error) {
	var out model.Task
	var taskType, recurrenceType, startDate string
	var startTime, endTime, recurring int
	var reminder, mainID sql.NullInt64
	var endDate sql.NullString
	if err := s.Scan(
		&out.ID, &out.Position, &out.Name, &out.Notes, &taskType, &startTime, &endTime, &out.Duration,
		&reminder, &mainID, &recurring, &recurrenceType, &out.RecurrenceInterval, &startDate, &endDate,
	); err != nil {
		return model.Task{}, err
	}
	out.Type = model.TaskType(taskType)
	out.StartTime = model.Clock(startTime)
	out.EndTime = model.Clock(endTime)
	out.IsRecurring = recurring == 1
	out.RecurrenceType = model.RecurrenceType(recurrenceType)
	if reminder.Valid {
		c := model.Clock(reminder.Int64)
		out.ReminderTime = &c
	}
	if mainID.Valid {
		id := mainID.Int64
		out.MainTaskID = &id
	}
	if startDate != "" {
		d, err := model.ParseDate(startDate)
		if err != nil {
			return model.Task{}, err
		}
		out.StartDate = d
	}
	if endDate.Valid && endDate.String != "" {
		d, err := model.ParseDate(endDate.String)
		if err != nil {
			return model.Task{}, err
		}
		out.RecurrenceEndDate = &d
	}
	return out, nil
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
