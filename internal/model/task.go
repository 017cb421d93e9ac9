package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrInvalidTaskType       = errors.New("model: invalid task type")
	ErrInvalidRecurrenceType = errors.New("model: invalid recurrence type")
	ErrInvalidInterval       = errors.New("model: invalid recurrence interval")
	ErrInvalidDuration       = errors.New("model: invalid duration")
)

// Reserved identities of the day boundary tasks. Auto-increment ids are
// always positive, so these never collide with user tasks.
const (
	FirstTaskID int64 = -1
	LastTaskID  int64 = -2
)

const (
	FirstPosition = 0
	LastPosition  = math.MaxInt32
)

type TaskType string

const (
	TaskTypeMain      TaskType = "main"
	TaskTypeBasics    TaskType = "basics"
	TaskTypeHelper    TaskType = "helper"
	TaskTypeQuick     TaskType = "quick"
	TaskTypeUndefined TaskType = "undefined"
)

func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypeMain, TaskTypeBasics, TaskTypeHelper, TaskTypeQuick, TaskTypeUndefined:
		return true
	default:
		return false
	}
}

func ParseTaskType(raw string) (TaskType, error) {
	t := TaskType(strings.ToLower(strings.TrimSpace(raw)))
	if t == "" {
		return TaskTypeUndefined, nil
	}
	if !t.IsValid() {
		return TaskTypeUndefined, fmt.Errorf("%w: %q", ErrInvalidTaskType, raw)
	}
	return t, nil
}

func TaskTypes() []TaskType {
	return []TaskType{TaskTypeMain, TaskTypeBasics, TaskTypeHelper, TaskTypeQuick, TaskTypeUndefined}
}

type RecurrenceType string

const (
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
	RecurrenceYearly  RecurrenceType = "yearly"
	RecurrenceCustom  RecurrenceType = "custom"
)

func (r RecurrenceType) IsValid() bool {
	switch r {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly, RecurrenceCustom:
		return true
	default:
		return false
	}
}

// Task is one time block of a day. For recurring tasks the times are the
// template's daily time of day.
type Task struct {
	ID           int64
	Position     int
	Name         string
	Notes        string
	Type         TaskType
	StartTime    Clock
	EndTime      Clock
	Duration     int
	ReminderTime *Clock
	MainTaskID   *int64

	IsRecurring        bool
	RecurrenceType     RecurrenceType
	RecurrenceInterval int
	StartDate          Date
	RecurrenceEndDate  *Date
}

func (t Task) IsFirst() bool    { return t.ID == FirstTaskID }
func (t Task) IsLast() bool     { return t.ID == LastTaskID }
func (t Task) IsSentinel() bool { return t.IsFirst() || t.IsLast() }

// Span sets the start time and duration and derives the end time.
func (t Task) Span(start Clock, minutes int) Task {
	t.StartTime = start
	t.Duration = minutes
	t.EndTime = start.Add(minutes)
	return t
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("model: task name is required")
	}
	if !t.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTaskType, t.Type)
	}
	if t.Duration <= 0 || t.Duration >= minutesPerDay {
		return fmt.Errorf("%w: %d minutes", ErrInvalidDuration, t.Duration)
	}
	if got := t.StartTime.Until(t.EndTime); got != t.Duration {
		return fmt.Errorf("%w: %s-%s spans %d minutes, duration says %d", ErrInvalidDuration, t.StartTime, t.EndTime, got, t.Duration)
	}
	if t.MainTaskID != nil && t.Type != TaskTypeHelper {
		return errors.New("model: only helper tasks may reference a main task")
	}
	if t.IsRecurring {
		if !t.RecurrenceType.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidRecurrenceType, t.RecurrenceType)
		}
		if t.RecurrenceInterval <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidInterval, t.RecurrenceInterval)
		}
		if t.StartDate.IsZero() {
			return errors.New("model: recurring task requires a start date")
		}
		if t.RecurrenceEndDate != nil && t.RecurrenceEndDate.Before(t.StartDate) {
			return errors.New("model: recurrence end date precedes start date")
		}
	}
	return nil
}

// Completion records whether a task was done on a given date.
type Completion struct {
	TaskID      int64
	Date        Date
	IsCompleted bool
}

// Slot is where a recurring task sits on one date. Excluded drops the task
// from that date only.
type Slot struct {
	Position  int
	StartTime Clock
	Duration  int
	Excluded  bool
}

func SlotOf(t Task) Slot {
	return Slot{Position: t.Position, StartTime: t.StartTime, Duration: t.Duration}
}

// In moves t into s.
func (t Task) In(s Slot) Task {
	t.Position = s.Position
	return t.Span(s.StartTime, s.Duration)
}
