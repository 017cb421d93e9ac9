// Package recurrence decides which stored task templates are active on a
// calendar date.
package recurrence

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sandeepkv93/dayplan/internal/model"
)

// openEndedYears bounds a rule without an explicit end date.
const openEndedYears = 100

type Rule struct {
	Type     model.RecurrenceType
	Interval int
	Start    model.Date
	End      *model.Date
}

func RuleOf(t model.Task) Rule {
	return Rule{
		Type:     t.RecurrenceType,
		Interval: t.RecurrenceInterval,
		Start:    t.StartDate,
		End:      t.RecurrenceEndDate,
	}
}

func (r Rule) Validate() error {
	if !r.Type.IsValid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidRecurrenceType, r.Type)
	}
	if r.Interval <= 0 {
		return fmt.Errorf("%w: %d", model.ErrInvalidInterval, r.Interval)
	}
	if r.Start.IsZero() {
		return errors.New("recurrence: start date is required")
	}
	return nil
}

func (r Rule) until() model.Date {
	if r.End != nil {
		return *r.End
	}
	return r.Start.AddYears(openEndedYears)
}

// ActiveOn reports whether date falls inside the rule window and the number
// of whole periods since the start is a multiple of the interval.
func (r Rule) ActiveOn(date model.Date) bool {
	if r.Start.IsZero() || date.Before(r.Start) || date.After(r.until()) {
		return false
	}
	interval := r.Interval
	if interval <= 0 {
		interval = 1
	}
	return r.periodsUntil(date)%interval == 0
}

// periodsUntil counts whole recurrence units between the start and date.
func (r Rule) periodsUntil(date model.Date) int {
	switch r.Type {
	case model.RecurrenceWeekly:
		return r.Start.DaysUntil(date) / 7
	case model.RecurrenceMonthly:
		months := (date.Year-r.Start.Year)*12 + int(date.Month) - int(r.Start.Month)
		if date.Day < r.Start.Day {
			months--
		}
		return months
	case model.RecurrenceYearly:
		years := date.Year - r.Start.Year
		if date.Month < r.Start.Month || (date.Month == r.Start.Month && date.Day < r.Start.Day) {
			years--
		}
		return years
	case model.RecurrenceDaily, model.RecurrenceCustom:
		// TODO: custom rules have no parameters of their own yet and recur daily.
		return r.Start.DaysUntil(date)
	default:
		return r.Start.DaysUntil(date)
	}
}

// Preview lists up to count active dates on or after from.
func (r Rule) Preview(from model.Date, count int) ([]model.Date, error) {
	if count <= 0 {
		return []model.Date{}, nil
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	cursor := from
	if cursor.Before(r.Start) {
		cursor = r.Start
	}
	end := r.until()
	out := make([]model.Date, 0, count)
	for !cursor.After(end) && len(out) < count {
		if r.ActiveOn(cursor) {
			out = append(out, cursor)
		}
		cursor = cursor.AddDays(1)
	}
	return out, nil
}

// TemplateSource is the read side of the task store the resolver needs.
type TemplateSource interface {
	ListTemplates(ctx context.Context) ([]model.Task, error)
	PinnedTaskIDs(ctx context.Context, date model.Date) (map[int64]bool, error)
	SlotsOn(ctx context.Context, date model.Date) (map[int64]model.Slot, error)
}

// Resolve picks the templates active on date: recurring tasks by rule,
// one-off tasks by an explicit pin to that date. A recurring task with a
// slot on date takes its place and times from the slot. Output is sorted by
// position.
//
// An end-of-day boundary without a slot of its own starts where the task
// before it ends, so a date nobody has planned yet is still gapless.
func Resolve(templates []model.Task, pinned map[int64]bool, slots map[int64]model.Slot, date model.Date) []model.Task {
	out := make([]model.Task, 0, len(templates))
	for _, t := range templates {
		if t.IsRecurring {
			if !RuleOf(t).ActiveOn(date) {
				continue
			}
			if s, ok := slots[t.ID]; ok {
				if s.Excluded {
					continue
				}
				t = t.In(s)
			}
			out = append(out, t)
			continue
		}
		if pinned[t.ID] {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})

	if n := len(out); n >= 2 && out[n-1].IsLast() {
		if _, placed := slots[out[n-1].ID]; !placed {
			prev := out[n-2].EndTime
			if minutes := prev.Until(model.DayEnd); minutes > 0 {
				out[n-1] = out[n-1].Span(prev, minutes)
			}
		}
	}
	return out
}

func ResolveActiveTasks(ctx context.Context, src TemplateSource, date model.Date) ([]model.Task, error) {
	templates, err := src.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	pinned, err := src.PinnedTaskIDs(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list pinned tasks for %s: %w", date, err)
	}
	slots, err := src.SlotsOn(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list slots for %s: %w", date, err)
	}
	return Resolve(templates, pinned, slots, date), nil
}
