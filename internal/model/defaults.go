package model

// sentinelEpoch is the start date of the boundary templates; they recur daily
// from here on.
var sentinelEpoch = NewDate(2000, 1, 1)

// FirstTask returns the day-start boundary template ending at end.
func FirstTask(name string, end Clock) Task {
	t := Task{
		ID:                 FirstTaskID,
		Position:           FirstPosition,
		Name:               name,
		Type:               TaskTypeBasics,
		IsRecurring:        true,
		RecurrenceType:     RecurrenceDaily,
		RecurrenceInterval: 1,
		StartDate:          sentinelEpoch,
	}
	return t.Span(DayStart, DayStart.Until(end))
}

// LastTask returns the day-end boundary template starting at start.
func LastTask(name string, start Clock) Task {
	t := Task{
		ID:                 LastTaskID,
		Position:           LastPosition,
		Name:               name,
		Type:               TaskTypeBasics,
		IsRecurring:        true,
		RecurrenceType:     RecurrenceDaily,
		RecurrenceInterval: 1,
		StartDate:          sentinelEpoch,
	}
	return t.Span(start, start.Until(DayEnd))
}

// DefaultDay is the demo routine used to seed or reset a date.
func DefaultDay(date Date) []Task {
	blocks := []struct {
		name    string
		kind    TaskType
		minutes int
		notes   string
	}{
		{"Morning routine", TaskTypeBasics, 60, "Stretch, shower, breakfast."},
		{"Deep work", TaskTypeMain, 240, "Hardest task of the day first."},
		{"Lunch", TaskTypeBasics, 60, ""},
		{"Inbox zero", TaskTypeQuick, 30, ""},
		{"Project work", TaskTypeMain, 240, ""},
		{"Dinner", TaskTypeBasics, 60, ""},
		{"Wind down", TaskTypeHelper, 150, "Read, plan *tomorrow*."},
	}

	out := make([]Task, 0, len(blocks)+2)
	first := FirstTask("Sleep", NewClock(6, 0))
	out = append(out, first)
	cursor := first.EndTime
	for i, b := range blocks {
		t := Task{
			Position:  i + 1,
			Name:      b.name,
			Notes:     b.notes,
			Type:      b.kind,
			StartDate: date,
		}
		t = t.Span(cursor, b.minutes)
		out = append(out, t)
		cursor = t.EndTime
	}
	return append(out, LastTask("Sleep", cursor))
}
