package hours

import (
	"fmt"
	"strings"
	"time"

	"github.com/angas/imbalance-go/types"
)

const (
	DateLayout  = "2006-01-02"
	clockLayout = "15:04"
	intervalSep = " - "
)

func LoadLocation(timezone string) (*time.Location, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %v", timezone, err)
	}
	return loc, nil
}

// Date is a calendar day in a location, used to anchor clock times.
type Date struct {
	Year  int
	Month time.Month
	Day   int
	Loc   *time.Location
}

func ParseDate(str string, loc *time.Location) (Date, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, str, loc)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", str, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day(), Loc: loc}, nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) location() *time.Location {
	if d.Loc == nil {
		return time.UTC
	}
	return d.Loc
}

// At combines the date with a clock time at minute precision.
func (d Date) At(c Clock) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, d.location())
}

// Clock is a wall clock time of day, "HH:MM".
type Clock struct {
	Hour   int
	Minute int
}

func ParseClock(str string) (Clock, error) {
	t, err := time.Parse(clockLayout, str)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid clock time %q: %w", str, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Interval is a settlement period given by a label like "08:00 - 08:15".
type Interval struct {
	Start time.Time
	End   time.Time
}

// ParseInterval anchors both halves of label to ref. The end is not rolled
// over to the next day, "23:45 - 00:00" yields an end before its start.
func ParseInterval(label string, ref Date) (Interval, error) {
	parts := strings.Split(label, intervalSep)
	if len(parts) != 2 {
		return Interval{}, fmt.Errorf("%w: %q does not split into two halves", types.ErrMalformedInterval, label)
	}

	start, err := ParseClock(parts[0])
	if err != nil {
		return Interval{}, fmt.Errorf("%w: %v", types.ErrMalformedInterval, err)
	}
	end, err := ParseClock(parts[1])
	if err != nil {
		return Interval{}, fmt.Errorf("%w: %v", types.ErrMalformedInterval, err)
	}

	return Interval{Start: ref.At(start), End: ref.At(end)}, nil
}

func (i Interval) Label() string {
	return ClockOf(i.Start).String() + intervalSep + ClockOf(i.End).String()
}

// HourLabel is the x-axis label used for hour-of-day charts, "7:00".
func HourLabel(hour int) string {
	return fmt.Sprintf("%d:00", hour)
}
