package daterange

import (
	"errors"
	"time"
)

var ErrInvalidRange = errors.New("daterange: from must be before to")

// DateRange is a half-open calendar interval [From, To). Both bounds are
// normalized to UTC midnight; To is the check-out day and is never occupied.
type DateRange struct {
	From time.Time
	To   time.Time
}

// New builds a normalized range, rejecting empty or inverted intervals.
func New(from, to time.Time) (DateRange, error) {
	from = Day(from)
	to = Day(to)
	if !from.Before(to) {
		return DateRange{}, ErrInvalidRange
	}
	return DateRange{From: from, To: to}, nil
}

// Must is a fixture helper that panics on invalid input.
func Must(from, to time.Time) DateRange {
	dr, err := New(from, to)
	if err != nil {
		panic(err)
	}
	return dr
}

// Day truncates a timestamp to its UTC calendar date.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Nights returns the number of occupied nights in the range.
func (r DateRange) Nights() int {
	return int(r.To.Sub(r.From) / (24 * time.Hour))
}

// Overlaps reports whether two half-open ranges share at least one night.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.From.Before(other.To) && other.From.Before(r.To)
}

// Clip bounds the range to the given window, returning false when the
// intersection is empty.
func (r DateRange) Clip(window DateRange) (DateRange, bool) {
	if !r.Overlaps(window) {
		return DateRange{}, false
	}
	out := r
	if window.From.After(out.From) {
		out.From = window.From
	}
	if window.To.Before(out.To) {
		out.To = window.To
	}
	return out, true
}

func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}
