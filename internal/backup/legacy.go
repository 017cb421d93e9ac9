package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sandeepkv93/dayplan/internal/model"
	_ "modernc.org/sqlite"
)

// ErrInvalidSnapshot is returned for a snapshot file that cannot be restored.
var ErrInvalidSnapshot = errors.New("backup: invalid snapshot")

// The snapshot format is a single SQLite table with every column stored as
// text and times written as HH:MM. Older desktop builds read the same file.
const legacySchema = `CREATE TABLE tasks (
	id TEXT,
	name TEXT,
	notes TEXT,
	duration TEXT,
	startTime TEXT,
	endTime TEXT,
	reminder TEXT,
	type TEXT,
	position TEXT
)`

// ReadSnapshot decodes the tasks of a snapshot file ordered by position.
// Boundary rows come back as the daily boundary templates; every other row
// gets a zero id so it is stored as a new task.
func ReadSnapshot(ctx context.Context, path string) ([]model.Task, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT id, name, notes, duration, startTime, endTime, reminder, type, position FROM tasks`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var id, name, notes, duration, start, end, reminder, kind, position sql.NullString
		if err := rows.Scan(&id, &name, &notes, &duration, &start, &end, &reminder, &kind, &position); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
		t, err := decodeLegacyRow(legacyRow{
			id: id.String, name: name.String, notes: notes.String, duration: duration.String,
			start: start.String, end: end.String, reminder: reminder.String, kind: kind.String, position: position.String,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidSnapshot, len(tasks)+1, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	sortByPosition(tasks)
	return tasks, nil
}

// WriteSnapshot writes tasks to a new snapshot file at path, replacing any
// file already there.
func WriteSnapshot(ctx context.Context, path string, tasks []model.Task) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, legacySchema); err != nil {
		return fmt.Errorf("create snapshot schema: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot write: %w", err)
	}
	for _, t := range tasks {
		reminder := ""
		if t.ReminderTime != nil {
			reminder = t.ReminderTime.String()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (id, name, notes, duration, startTime, endTime, reminder, type, position) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			strconv.FormatInt(t.ID, 10), t.Name, t.Notes, strconv.Itoa(t.Duration),
			t.StartTime.String(), t.EndTime.String(), reminder, string(t.Type), strconv.Itoa(t.Position),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("write snapshot row %q: %w", t.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

type legacyRow struct {
	id, name, notes, duration, start, end, reminder, kind, position string
}

func decodeLegacyRow(r legacyRow) (model.Task, error) {
	var id int64
	if raw := strings.TrimSpace(r.id); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return model.Task{}, fmt.Errorf("id %q: %w", r.id, err)
		}
		id = parsed
	}
	position, err := strconv.Atoi(strings.TrimSpace(r.position))
	if err != nil {
		return model.Task{}, fmt.Errorf("position %q: %w", r.position, err)
	}
	start, err := model.ParseClock(strings.TrimSpace(r.start))
	if err != nil {
		return model.Task{}, fmt.Errorf("start time: %w", err)
	}
	minutes, err := legacyMinutes(start, r.end, r.duration)
	if err != nil {
		return model.Task{}, err
	}
	kind, err := model.ParseTaskType(r.kind)
	if err != nil {
		kind = model.TaskTypeUndefined
	}

	var t model.Task
	switch {
	case id == model.FirstTaskID || position == model.FirstPosition:
		t = model.FirstTask(r.name, start.Add(minutes))
	case id == model.LastTaskID || position == model.LastPosition:
		t = model.LastTask(r.name, start)
	default:
		t = model.Task{Position: position, Name: r.name}.Span(start, minutes)
	}
	t.Notes = r.notes
	t.Type = kind
	if raw := strings.TrimSpace(r.reminder); raw != "" {
		at, err := model.ParseClock(raw)
		if err != nil {
			return model.Task{}, fmt.Errorf("reminder: %w", err)
		}
		t.ReminderTime = &at
	}
	return t, nil
}

// legacyMinutes prefers the span between start and end; duration is only
// consulted when no end time was written.
func legacyMinutes(start model.Clock, rawEnd, rawDuration string) (int, error) {
	if raw := strings.TrimSpace(rawEnd); raw != "" {
		end, err := model.ParseClock(raw)
		if err != nil {
			return 0, fmt.Errorf("end time: %w", err)
		}
		if m := start.Until(end); m > 0 {
			return m, nil
		}
	}
	m, err := strconv.Atoi(strings.TrimSpace(rawDuration))
	if err != nil || m <= 0 {
		return 0, fmt.Errorf("duration %q: %w", rawDuration, model.ErrInvalidDuration)
	}
	return m, nil
}

func sortByPosition(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Position < tasks[j].Position })
}
