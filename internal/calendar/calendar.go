package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTimestamp is returned when an origin timestamp cannot be used
// as the base for elapsed-day computation. Callers are expected to skip
// the offending record and continue.
var ErrInvalidTimestamp = errors.New("invalid origin timestamp")

// Clock computes whole-calendar-day differences in a single fixed civil
// timezone, independent of the process's local timezone. The zero hour of
// each civil date is rebuilt in UTC before subtracting so DST transitions
// never skew the count.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

func New(timezone string) (*Clock, error) {
	return NewWithNow(timezone, time.Now)
}

// NewWithNow builds a clock with an injected time source, used by tests
// and by the scheduler for deterministic next-fire computation.
func NewWithNow(timezone string, now func() time.Time) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	return &Clock{loc: loc, now: now}, nil
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// ElapsedDays returns the number of whole calendar days between origin and
// now, both projected into the clock's timezone. Future origins clamp to 0.
func (c *Clock) ElapsedDays(origin time.Time) (int, error) {
	if origin.IsZero() {
		return 0, ErrInvalidTimestamp
	}

	days := int(civilMidnightUTC(c.Now()).Sub(civilMidnightUTC(origin.In(c.loc))).Hours() / 24)
	if days < 0 {
		return 0, nil
	}
	return days, nil
}

// civilMidnightUTC projects an instant's civil date onto UTC midnight.
// UTC midnights are exactly 24h apart, which keeps day subtraction exact.
func civilMidnightUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
