package reservation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const slotDateLayout = "January 2 2006"

// DefaultWeekStart is the host site's booking-week boundary.
const DefaultWeekStart = time.Friday

// ResolveDate attaches year to a year-less slot date such as "July 10".
// Slots that belong to another calendar year resolve to the wrong date; callers
// always pass the current year.
func ResolveDate(date string, year int) (time.Time, error) {
	t, err := time.Parse(slotDateLayout, strings.TrimSpace(date)+" "+strconv.Itoa(year))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, date, err)
	}
	return t, nil
}

// WeekStart returns the first day of the booking week containing d, for weeks
// beginning on start.
func WeekStart(d time.Time, start time.Weekday) time.Time {
	idx := mondayIndex(d.Weekday())
	w := mondayIndex(start)
	var offset int
	if idx >= w {
		offset = idx - w
	} else {
		offset = idx + (7 - w)
	}
	return d.AddDate(0, 0, -offset)
}

// WeekKey resolves a year-less date to its booking-week start.
func WeekKey(date string, year int, start time.Weekday) (time.Time, error) {
	d, err := ResolveDate(date, year)
	if err != nil {
		return time.Time{}, err
	}
	return WeekStart(d, start), nil
}

// mondayIndex maps Monday..Sunday to 0..6.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
