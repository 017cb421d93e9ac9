package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

var (
	ErrInvalidClock = errors.New("model: invalid time of day")
	ErrInvalidDate  = errors.New("model: invalid date")
)

// Clock is a wall-clock time of day in minutes after midnight. It carries no
// date; arithmetic wraps around midnight.
type Clock int

const (
	DayStart Clock = 1
	DayEnd   Clock = minutesPerDay - 1
)

func NewClock(hour, minute int) Clock {
	return Clock(0).Add(hour*60 + minute)
}

func ParseClock(raw string) (Clock, error) {
	tm, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	return NewClock(tm.Hour(), tm.Minute()), nil
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Add moves the clock by minutes, modulo 24h.
func (c Clock) Add(minutes int) Clock {
	return Clock(((int(c)+minutes)%minutesPerDay + minutesPerDay) % minutesPerDay)
}

// Until returns the minutes from c forward to end, modulo 24h.
func (c Clock) Until(end Clock) int {
	return ((int(end)-int(c))%minutesPerDay + minutesPerDay) % minutesPerDay
}

// Date is a calendar date without a time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(raw string) (Date, error) {
	tm, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return DateOf(tm), nil
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.utc().Format(time.DateOnly)
}

func (d Date) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date       { return DateOf(d.utc().AddDate(0, 0, n)) }
func (d Date) AddYears(n int) Date      { return DateOf(d.utc().AddDate(n, 0, 0)) }
func (d Date) Before(other Date) bool   { return d.utc().Before(other.utc()) }
func (d Date) After(other Date) bool    { return d.utc().After(other.utc()) }
func (d Date) Weekday() time.Weekday    { return d.utc().Weekday() }
func (d Date) DaysUntil(other Date) int { return int(other.utc().Sub(d.utc()).Hours() / 24) }

func (d Date) At(c Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, c.Hour(), c.Minute(), 0, 0, loc)
}
