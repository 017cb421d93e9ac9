package reminder

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// Many goroutines re-arm and cancel the same tasks at once, the way edits
// from the UI and a sync restore can race. Only the last word per task may
// fire.
func TestConcurrentRescheduleAndCancelOnSharedTasks(t *testing.T) {
	engine := NewEngine(64)
	engine.Start()
	defer engine.Stop()

	const tasks = 32
	const schedulers = 6
	const cancellers = 3
	const rounds = 50

	later := time.Now().Add(time.Hour)
	var wg sync.WaitGroup
	for w := 0; w < schedulers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				for id := int64(0); id < tasks; id++ {
					name := fmt.Sprintf("w%d-r%d", w, r)
					if err := engine.ScheduleReminder(id, name, later.Add(time.Duration(r)*time.Second)); err != nil {
						t.Errorf("schedule %d: %v", id, err)
						return
					}
				}
			}
		}()
	}
	for c := 0; c < cancellers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				for id := int64(1); id < tasks; id += 2 {
					if err := engine.CancelReminder(id); err != nil {
						t.Errorf("cancel %d: %v", id, err)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	if got := engine.Pending(); got > tasks {
		t.Fatalf("pending reminders exceed tasks: %d", got)
	}

	soon := time.Now().Add(40 * time.Millisecond)
	for id := int64(0); id < tasks; id++ {
		if id%2 == 1 {
			if err := engine.CancelReminder(id); err != nil {
				t.Fatalf("cancel %d: %v", id, err)
			}
			continue
		}
		if err := engine.ScheduleReminder(id, "final", soon); err != nil {
			t.Fatalf("schedule %d: %v", id, err)
		}
	}
	if got := engine.Pending(); got != tasks/2 {
		t.Fatalf("expected %d pending reminders, got %d", tasks/2, got)
	}

	seen := map[int64]bool{}
	for len(seen) < tasks/2 {
		ev := waitEvent(t, engine.C(), 2*time.Second)
		if ev.Name != "final" || ev.TaskID%2 == 1 {
			t.Fatalf("stale or cancelled reminder fired: %+v", ev)
		}
		if seen[ev.TaskID] {
			t.Fatalf("task %d fired twice", ev.TaskID)
		}
		seen[ev.TaskID] = true
	}
	expectSilence(t, engine.C(), 100*time.Millisecond)

	if engine.Pending() != 0 {
		t.Fatalf("expected no pending reminders, got %d", engine.Pending())
	}
	if engine.Dropped() != 0 {
		t.Fatalf("expected zero drops with an active consumer, got %d", engine.Dropped())
	}
}
