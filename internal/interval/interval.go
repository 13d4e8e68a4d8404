// Package interval implements half-open day ranges used for every availability decision.
package interval

import (
	"fmt"
	"sort"
	"time"

	apperrors "fleetbook/internal/errors"
)

// DateLayout is the wire format of a day.
const DateLayout = "2006-01-02"

// Interval is a half-open range of days [Start, End). Both bounds are UTC midnights.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// New normalises both bounds to days and rejects empty or inverted ranges.
func New(start, end time.Time) (Interval, error) {
	s, e := Day(start), Day(end)
	if !s.Before(e) {
		return Interval{}, apperrors.Validation(
			fmt.Sprintf("start date %s must be before end date %s", s.Format(DateLayout), e.Format(DateLayout)))
	}
	return Interval{Start: s, End: e}, nil
}

// Parse builds an interval from two "YYYY-MM-DD" strings.
func Parse(start, end string) (Interval, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return Interval{}, apperrors.Validation(fmt.Sprintf("invalid start date %q", start))
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return Interval{}, apperrors.Validation(fmt.Sprintf("invalid end date %q", end))
	}
	return New(s, e)
}

// Horizon is the open end used for "from this day onwards" scans.
var Horizon = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// From returns [day(t), Horizon).
func From(t time.Time) Interval {
	return Interval{Start: Day(t), End: Horizon}
}

// MustParse is Parse for literals known to be valid.
func MustParse(start, end string) Interval {
	iv, err := Parse(start, end)
	if err != nil {
		panic(err)
	}
	return iv
}

// Overlaps is the only overlap predicate in the system.
// Touching ranges ([a,b) and [b,c)) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether day d falls inside the range.
func (i Interval) Contains(d time.Time) bool {
	d = Day(d)
	return !d.Before(i.Start) && d.Before(i.End)
}

const secondsPerDay = 24 * 60 * 60

// Days is the number of days covered. It counts on Unix seconds because
// time.Duration saturates on spans longer than about 292 years, such as From(t).
func (i Interval) Days() int {
	if !i.Start.Before(i.End) {
		return 0
	}
	return int((Day(i.End).Unix() - Day(i.Start).Unix()) / secondsPerDay)
}

// EachDay lists every day of the range in order.
func (i Interval) EachDay() []time.Time {
	days := make([]time.Time, 0, i.Days())
	for d := i.Start; d.Before(i.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (i Interval) IsZero() bool {
	return i.Start.IsZero() && i.End.IsZero()
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(DateLayout), i.End.Format(DateLayout))
}

// Sort orders ranges by start day.
func Sort(ivs []Interval) {
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].Start.Before(ivs[j].Start) })
}
