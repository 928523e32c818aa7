package reservation

import (
	"fmt"
	"strings"
	"time"
)

// NeverToken is the preference value meaning "never book this day".
const NeverToken = "-"

type Person struct {
	FirstName string
	LastName  string
	Phone     string
	Email     string

	// Categories to attempt, in order. Empty means the roster default.
	Categories []string

	Preferences Preferences
}

func (p Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Preference is either a required time of day or a "never" marker.
type Preference struct {
	Never bool
	Time  string // lower-cased, e.g. "11:30am"
}

// Preferences maps a weekday to the person's constraint for it.
// Absent days accept any offered time.
type Preferences map[time.Weekday]Preference

// ParsePreferences converts the roster form ({"Monday": "11:30AM", "Tuesday": "-"})
// into Preferences. Keys must be weekday names.
func ParsePreferences(in map[string]string) (Preferences, error) {
	out := make(Preferences, len(in))
	for day, v := range in {
		wd, ok := ParseWeekday(day)
		if !ok {
			return nil, fmt.Errorf("preferences: unknown weekday %q", day)
		}
		v = strings.TrimSpace(v)
		switch {
		case v == NeverToken:
			out[wd] = Preference{Never: true}
		case v == "":
			return nil, fmt.Errorf("preferences: empty time for %s", wd)
		default:
			out[wd] = Preference{Time: strings.ToLower(v)}
		}
	}
	return out, nil
}

// ParseWeekday accepts a full English weekday name in any case.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.TrimSpace(s)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, true
		}
	}
	return time.Sunday, false
}

// Slot is one advertised date with its bookable times for a category.
// Date is rendered without a year ("July 10"); Times keep the source order.
type Slot struct {
	Date     string
	Day      string
	Times    []string
	Category string
}

func (s Slot) clone() Slot {
	s.Times = append([]string(nil), s.Times...)
	return s
}

// Pick is one (date, time) pair chosen for commit.
type Pick struct {
	Date     string
	Time     string
	Category string
}

// Picks flattens selected slots into (date, time) pairs.
func Picks(slots []Slot) []Pick {
	var out []Pick
	for _, s := range slots {
		for _, t := range s.Times {
			out = append(out, Pick{Date: s.Date, Time: t, Category: s.Category})
		}
	}
	return out
}

// ReservationRecord is one committed booking as persisted in the ledger.
type ReservationRecord struct {
	Date      string
	Time      string
	Category  string
	FirstName string
	LastName  string
}

func NewRecord(p Person, pick Pick) ReservationRecord {
	return ReservationRecord{
		Date:      pick.Date,
		Time:      pick.Time,
		Category:  pick.Category,
		FirstName: p.FirstName,
		LastName:  p.LastName,
	}
}

// Validate reports whether r can be stored in the ledger and read back
// unchanged: no field may contain a comma or line break, or carry outer
// whitespace.
func (r ReservationRecord) Validate() error {
	for _, f := range []string{r.Date, r.Time, r.Category, r.FirstName, r.LastName} {
		if strings.ContainsAny(f, ",\r\n") || strings.TrimSpace(f) != f {
			return fmt.Errorf("%w: %q", ErrUnencodable, f)
		}
	}
	return nil
}

// BelongsTo matches a record to a person by case-insensitive first and last name.
func (r ReservationRecord) BelongsTo(p Person) bool {
	return strings.EqualFold(r.FirstName, p.FirstName) && strings.EqualFold(r.LastName, p.LastName)
}

// History is a read-only view of committed records.
type History []ReservationRecord

func (h History) ForPerson(p Person) History {
	var out History
	for _, r := range h {
		if r.BelongsTo(p) {
			out = append(out, r)
		}
	}
	return out
}

// FormatSlots renders slots compactly for logs: "July 10 @ 9:00am,10:00am, July 11 @ 5:30pm".
func FormatSlots(slots []Slot) string {
	if len(slots) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(slots))
	for _, s := range slots {
		parts = append(parts, s.Date+" @ "+strings.Join(s.Times, ","))
	}
	return strings.Join(parts, ", ")
}
