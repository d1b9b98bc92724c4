package core

import (
	"errors"
	"time"
)

// dayLayout is the wire and storage format for calendar days.
const dayLayout = "2006-01-02"

var ErrInvalidDay = errors.New("invalid day, want YYYY-MM-DD")

// Day is a calendar date with no time-of-day and no timezone. All ledger
// arithmetic (previous day, range bounds) operates on whole days.
type Day struct {
	t time.Time
}

// NewDay builds a Day from its components.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, ErrInvalidDay
	}
	return Day{t: t}, nil
}

// DayOf truncates an instant to its UTC calendar day.
func DayOf(t time.Time) Day {
	y, m, d := t.UTC().Date()
	return NewDay(y, m, d)
}

func (d Day) String() string {
	return d.t.Format(dayLayout)
}

// Prev returns the previous calendar day.
func (d Day) Prev() Day {
	return Day{t: d.t.AddDate(0, 0, -1)}
}

// Next returns the following calendar day.
func (d Day) Next() Day {
	return Day{t: d.t.AddDate(0, 0, 1)}
}

func (d Day) Before(other Day) bool { return d.t.Before(other.t) }
func (d Day) After(other Day) bool  { return d.t.After(other.t) }
func (d Day) Equal(other Day) bool  { return d.t.Equal(other.t) }
func (d Day) IsZero() bool          { return d.t.IsZero() }

// Time exposes the underlying UTC midnight instant for storage drivers.
func (d Day) Time() time.Time { return d.t }
