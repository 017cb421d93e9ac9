package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sandeepkv93/dayplan/internal/model"
)

var drivers = []string{DriverCGO, DriverPure}

func setupRepo(t *testing.T, driver string) *SQLiteRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "dayplan-test.db")
	repo, err := OpenSQLite(driver, dbPath)
	if err != nil {
		t.Fatalf("open sqlite (%s): %v", driver, err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func forEachDriver(t *testing.T, fn func(t *testing.T, repo *SQLiteRepository)) {
	t.Helper()
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			fn(t, setupRepo(t, driver))
		})
	}
}

func oneOff(name string, position int, start model.Clock, minutes int) model.Task {
	return model.Task{Name: name, Position: position, Type: model.TaskTypeQuick}.Span(start, minutes)
}

func TestTaskCRUD(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo *SQLiteRepository) {
		ctx := t.Context()
		reminder := model.NewClock(8, 55)
		mainID := int64(42)
		end := model.NewDate(2024, 12, 31)
		task := model.Task{
			Position:           3,
			Name:               "Review notes",
			Notes:              "chapter *4*",
			Type:               model.TaskTypeHelper,
			ReminderTime:       &reminder,
			MainTaskID:         &mainID,
			IsRecurring:        true,
			RecurrenceType:     model.RecurrenceWeekly,
			RecurrenceInterval: 2,
			StartDate:          model.NewDate(2024, 1, 1),
			RecurrenceEndDate:  &end,
		}.Span(model.NewClock(9, 0), 45)

		id, err := repo.Insert(ctx, task)
		if err != nil {
			t.Fatalf("insert task: %v", err)
		}
		if id <= 0 {
			t.Fatalf("expected positive generated id, got %d", id)
		}

		got, err := repo.Get(ctx, id)
		if err != nil {
			t.Fatalf("get task: %v", err)
		}
		if got.Name != task.Name || got.EndTime != model.NewClock(9, 45) || got.Duration != 45 {
			t.Fatalf("unexpected task: %#v", got)
		}
		if got.ReminderTime == nil || *got.ReminderTime != reminder {
			t.Fatalf("unexpected reminder: %v", got.ReminderTime)
		}
		if got.MainTaskID == nil || *got.MainTaskID != mainID {
			t.Fatalf("unexpected main task id: %v", got.MainTaskID)
		}
		if got.RecurrenceEndDate == nil || *got.RecurrenceEndDate != end || got.StartDate != task.StartDate {
			t.Fatalf("unexpected recurrence window: %v-%v", got.StartDate, got.RecurrenceEndDate)
		}

		got.Name = "Review all notes"
		got.ReminderTime = nil
		if err := repo.Update(ctx, got); err != nil {
			t.Fatalf("update task: %v", err)
		}
		updated, err := repo.Get(ctx, id)
		if err != nil {
			t.Fatalf("get updated task: %v", err)
		}
		if updated.Name != "Review all notes" || updated.ReminderTime != nil {
			t.Fatalf("unexpected updated task: %#v", updated)
		}

		if err := repo.Delete(ctx, id); err != nil {
			t.Fatalf("delete task: %v", err)
		}
		if _, err := repo.Get(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got: %v", err)
		}
		if err := repo.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got: %v", err)
		}
		if err := repo.Update(ctx, got); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound on update of missing task, got: %v", err)
		}
	})
}

func TestInsertExplicitIDCollision(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo *SQLiteRepository) {
		ctx := t.Context()
		first := model.FirstTask("Sleep", model.NewClock(6, 0))
		id, err := repo.Insert(ctx, first)
		if err != nil {
			t.Fatalf("insert sentinel: %v", err)
		}
		if id != model.FirstTaskID {
			t.Fatalf("expected sentinel id %d, got %d", model.FirstTaskID, id)
		}
		if _, err := repo.Insert(ctx, first); !errors.Is(err, ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got: %v", err)
		}

		// Generated ids stay positive even when only negative ids exist.
		next, err := repo.Insert(ctx, oneOff("Coffee", 1, model.NewClock(6, 0), 15))
		if err != nil {
			t.Fatalf("insert task: %v", err)
		}
		if next <= 0 {
			t.Fatalf("expected positive id, got %d", next)
		}
	})
}

func TestListForDateResolvesPinsAndRecurrence(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo *SQLiteRepository) {
		ctx := t.Context()
		day := model.NewDate(2024, 1, 15)

		for _, task := range model.DefaultDay(day) {
			id, err := repo.Insert(ctx, task)
			if err != nil {
				t.Fatalf("insert %q: %v", task.Name, err)
			}
			if !task.IsRecurring {
				if err := repo.PinToDate(ctx, id, day); err != nil {
					t.Fatalf("pin %q: %v", task.Name, err)
				}
			}
		}
		otherID, err := repo.Insert(ctx, oneOff("Other day", 2, model.NewClock(10, 0), 30))
		if err != nil {
			t.Fatalf("insert other: %v", err)
		}
		if err := repo.PinToDate(ctx, otherID, day.AddDays(1)); err != nil {
			t.Fatalf("pin other: %v", err)
		}

		tasks, err := repo.ListForDate(ctx, day)
		if err != nil {
			t.Fatalf("list for date: %v", err)
		}
		if len(tasks) != 9 {
			t.Fatalf("expected 9 tasks, got %d", len(tasks))
		}
		if !tasks[0].IsFirst() || !tasks[len(tasks)-1].IsLast() {
			t.Fatalf("expected sentinels at both ends: %v ... %v", tasks[0].Name, tasks[len(tasks)-1].Name)
		}
		for i := 1; i < len(tasks); i++ {
			if tasks[i-1].Position >= tasks[i].Position {
				t.Fatalf("tasks not sorted by position at %d", i)
			}
		}

		next, err := repo.ListForDate(ctx, day.AddDays(1))
		if err != nil {
			t.Fatalf("list next day: %v", err)
		}
		if len(next) != 3 || next[1].ID != otherID {
			t.Fatalf("unexpected next day set: %#v", next)
		}

		got, err := repo.GetAtPosition(ctx, day, 2)
		if err != nil {
			t.Fatalf("get at position: %v", err)
		}
		if got.Name != "Deep work" {
			t.Fatalf("unexpected task at position 2: %q", got.Name)
		}
		if _, err := repo.GetAtPosition(ctx, day, 99); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got: %v", err)
		}

		names, err := repo.ListNamesAndPositions(ctx, day)
		if err != nil {
			t.Fatalf("list names: %v", err)
		}
		if len(names) != len(tasks) || names[1].Name != "Morning routine" || names[1].Position != 1 {
			t.Fatalf("unexpected names: %#v", names)
		}
	})
}

func TestPinToMissingTaskFails(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo *SQLiteRepository) {
		err := repo.PinToDate(t.Context(), 12345, model.NewDate(2024, 1, 1))
		if !errors.Is(err, ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got: %v", err)
		}
	})
}

func daily(name string, position int, start model.Clock, minutes int, from model.Date) model.Task {
	t := oneOff(name, position, start, minutes)
	t.IsRecurring = true
	t.RecurrenceType = model.RecurrenceDaily
	t.RecurrenceInterval = 1
	t.StartDate = from
	return t
}

func TestClearDateOnlyTouchesThatDate(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo *SQLiteRepository) {
		ctx := t.Context()
		day := model.NewDate(2024, 3, 1)
		keepDay := day.AddDays(3)

		todayID, err := repo.AddOn(ctx, day, oneOff("Today", 1, model.NewClock(8, 0), 30))
		if err != nil {
			t.Fatalf("add today: %v", err)
		}
		laterID, err := repo.AddOn(ctx, keepDay, oneOff("Later", 1, model.NewClock(8, 0), 30))
		if err != nil {
			t.Fatalf("add later: %v", err)
		}
		walkID, err := repo.Insert(ctx, daily("Walk", 2, model.NewClock(9, 0), 30, day))
		if err != nil {
			t.Fatalf("insert walk: %v", err)
		}

		if err := repo.ClearDate(ctx, day); err != nil {
			t.Fatalf("clear date: %v", err)
		}
		if _, err := repo.Get(ctx, todayID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected today's task removed, got: %v", err)
		}
		if _, err := repo.Get(ctx, laterID); err != nil {
			t.Fatalf("expected other day's task kept, got: %v", err)
		}
		if _, err := repo.Get(ctx, walkID); err != nil {
			t.Fatalf("expected recurring template kept, got: %v", err)
		}

		cleared, err := repo.ListForDate(ctx, day)
		if err != nil {
			t.Fatalf("list cleared day: %v", err)
		}
		if len(cleared) != 0 {
			t.Fatalf("expected an empty day, got %#v", cleared)
		}
		kept, err := repo.ListForDate(ctx, keepDay)
		if err != nil {
			t.Fatalf("list kept day: %v", err)
		}
		if len(kept) != 2 || kept[0].ID != laterID || kept[1].ID != walkID {
			t.Fatalf("unexpected kept day: %#v", kept)
		}
	})
}

func TestPlaceKeepsRecurringLayoutPerDate(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo *SQLiteRepository) {
		ctx := t.Context()
		day := model.NewDate(2024, 3, 1)
		walk := daily("Walk", 1, model.NewClock(9, 0), 30, day)
		id, err := repo.Insert(ctx, walk)
		if err != nil {
			t.Fatalf("insert walk: %v", err)
		}
		walk.ID = id

		moved := walk.Span(model.NewClock(10, 0), 45)
		moved.Position = 4
		moved.Notes = "bring water"
		if err := repo.Place(ctx, day, moved); err != nil {
			t.Fatalf("place: %v", err)
		}

		got, err := repo.GetAtPosition(ctx, day, 4)
		if err != nil {
			t.Fatalf("get moved walk: %v", err)
		}
		if got.StartTime != model.NewClock(10, 0) || got.Duration != 45 || got.Notes != "bring water" {
			t.Fatalf("unexpected walk on %s: %+v", day, got)
		}

		next, err := repo.GetAtPosition(ctx, day.AddDays(1), 1)
		if err != nil {
			t.Fatalf("get walk next day: %v", err)
		}
		if next.StartTime != model.NewClock(9, 0) || next.Duration != 30 {
			t.Fatalf("layout leaked into the next day: %+v", next)
		}
		if next.Notes != "bring water" {
			t.Fatalf("expected shared notes, got %q", next.Notes)
		}

		if err := repo.RemoveFrom(ctx, day.AddDays(1), next); err != nil {
			t.Fatalf("remove from next day: %v", err)
		}
		slots, err := repo.SlotsOn(ctx, day.AddDays(1))
		if err != nil {
			t.Fatalf("slots: %v", err)
		}
		if !slots[id].Excluded {
			t.Fatalf("expected walk excluded on the next day: %#v", slots)
		}
		if _, err := repo.GetAtPosition(ctx, day, 4); err != nil {
			t.Fatalf("walk should stay on %s: %v", day, err)
		}
	})
}

func TestAddOnRejectsSecondSlotForSameDate(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo *SQLiteRepository) {
		ctx := t.Context()
		day := model.NewDate(2024, 3, 1)
		if _, err := repo.AddOn(ctx, day, model.FirstTask("Sleep", model.NewClock(6, 0))); err != nil {
			t.Fatalf("add boundary: %v", err)
		}
		if _, err := repo.AddOn(ctx, day.AddDays(1), model.FirstTask("Sleep", model.NewClock(5, 0))); err != nil {
			t.Fatalf("add boundary on another day: %v", err)
		}
		_, err := repo.AddOn(ctx, day, model.FirstTask("Nap", model.NewClock(7, 0)))
		if !errors.Is(err, ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got: %v", err)
		}
	})
}

func TestCompletionUpsertAndCascade(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo *SQLiteRepository) {
		ctx := t.Context()
		day := model.NewDate(2024, 5, 5)
		id, err := repo.Insert(ctx, oneOff("Walk", 1, model.NewClock(7, 0), 30))
		if err != nil {
			t.Fatalf("insert: %v", err)
		}

		if err := repo.SetCompletion(ctx, model.Completion{TaskID: id, Date: day, IsCompleted: true}); err != nil {
			t.Fatalf("set completion: %v", err)
		}
		done, err := repo.ListCompletions(ctx, day)
		if err != nil {
			t.Fatalf("list completions: %v", err)
		}
		if !done[id] {
			t.Fatalf("expected task %d completed", id)
		}
		other, err := repo.ListCompletions(ctx, day.AddDays(1))
		if err != nil {
			t.Fatalf("list completions: %v", err)
		}
		if other[id] {
			t.Fatal("completion leaked to another date")
		}

		if err := repo.SetCompletion(ctx, model.Completion{TaskID: id, Date: day, IsCompleted: false}); err != nil {
			t.Fatalf("clear completion: %v", err)
		}
		done, err = repo.ListCompletions(ctx, day)
		if err != nil {
			t.Fatalf("list completions: %v", err)
		}
		if done[id] {
			t.Fatal("expected completion cleared")
		}

		if err := repo.SetCompletion(ctx, model.Completion{TaskID: id + 100, Date: day, IsCompleted: true}); !errors.Is(err, ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation for unknown task, got: %v", err)
		}
	})
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo *SQLiteRepository) {
		ctx := t.Context()
		boom := errors.New("boom")
		var insertedID int64
		err := repo.RunInTx(ctx, func(tx Tx) error {
			id, err := tx.Insert(ctx, oneOff("Ghost", 1, model.NewClock(8, 0), 10))
			if err != nil {
				return err
			}
			insertedID = id
			if _, err := tx.Get(ctx, id); err != nil {
				t.Fatalf("expected insert visible inside tx, got: %v", err)
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got: %v", err)
		}
		if _, err := repo.Get(ctx, insertedID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected rollback, got: %v", err)
		}
	})
}

func TestRunInTxRollsBackOnPanic(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo *SQLiteRepository) {
		ctx := t.Context()
		func() {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic to propagate")
				}
			}()
			_ = repo.RunInTx(ctx, func(tx Tx) error {
				if _, err := tx.Insert(ctx, oneOff("Ghost", 1, model.NewClock(8, 0), 10)); err != nil {
					return err
				}
				panic("mid-transaction failure")
			})
		}()

		templates, err := repo.ListTemplates(ctx)
		if err != nil {
			t.Fatalf("list templates after panic: %v", err)
		}
		if len(templates) != 0 {
			t.Fatalf("expected rollback after panic, got %d rows", len(templates))
		}
	})
}

func TestSnapshotWritesReadableCopy(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo *SQLiteRepository) {
		ctx := t.Context()
		if _, err := repo.Insert(ctx, model.FirstTask("Sleep", model.NewClock(6, 0))); err != nil {
			t.Fatalf("insert: %v", err)
		}
		dest := filepath.Join(t.TempDir(), "snapshot.db")
		if err := os.WriteFile(dest, []byte("stale"), 0o600); err != nil {
			t.Fatalf("write stale file: %v", err)
		}
		if err := repo.Snapshot(ctx, dest); err != nil {
			t.Fatalf("snapshot: %v", err)
		}

		copyRepo, err := OpenSQLite(DriverPure, dest)
		if err != nil {
			t.Fatalf("open snapshot: %v", err)
		}
		defer copyRepo.Close()
		got, err := copyRepo.Get(context.Background(), model.FirstTaskID)
		if err != nil {
			t.Fatalf("get from snapshot: %v", err)
		}
		if got.Name != "Sleep" {
			t.Fatalf("unexpected snapshot row: %#v", got)
		}
	})
}

func TestOpenSQLiteRejectsUnknownDriver(t *testing.T) {
	if _, err := OpenSQLite("postgres", filepath.Join(t.TempDir(), "x.db")); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
