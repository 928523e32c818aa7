package reservation

import (
	"strings"
	"time"
)

const DefaultMaxPerWeek = 3

// Options configures a selection run.
type Options struct {
	// MatchTimes makes FilterUnreserved require the booked time to be offered
	// again before dropping a date. By default any booking on a date excludes it.
	MatchTimes bool
	MaxPerWeek int
	WeekStart  time.Weekday
	// Year is attached to year-less slot dates when resolving weeks.
	Year int
	// Observe, when set, sees the slots left after each stage of Select.
	Observe func(stage Stage, out []Slot)
}

// Stage names a step of Select.
type Stage string

const (
	StageUnreserved  Stage = "unreserved"
	StagePreferences Stage = "preferences"
	StagePerDay      Stage = "per_day"
	StagePerWeek     Stage = "per_week"
)

func (o Options) observe(stage Stage, out []Slot) {
	if o.Observe != nil {
		o.Observe(stage, out)
	}
}

func DefaultOptions(now time.Time) Options {
	return Options{
		MaxPerWeek: DefaultMaxPerWeek,
		WeekStart:  DefaultWeekStart,
		Year:       now.Year(),
	}
}

// Select narrows the advertised slots to the ones to book for p. Stages run in
// a fixed order: unreserved, preferences, one per day, weekly quota. The quota
// must see one slot per day, and the day cap must only break ties on days the
// person left unconstrained.
func Select(slots []Slot, p Person, history History, opts Options) ([]Slot, error) {
	mine := history.ForPerson(p)
	out := FilterUnreserved(slots, mine, opts.MatchTimes)
	opts.observe(StageUnreserved, out)
	out = FilterPreferences(out, p.Preferences)
	opts.observe(StagePreferences, out)
	out = LimitPerDay(out)
	opts.observe(StagePerDay, out)
	out, err := LimitPerWeek(out, mine, opts)
	if err != nil {
		return nil, err
	}
	opts.observe(StagePerWeek, out)
	return out, nil
}

// FilterUnreserved drops slots on dates the history already covers.
func FilterUnreserved(slots []Slot, history History, matchTimes bool) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if !reserved(s, history, matchTimes) {
			out = append(out, s.clone())
		}
	}
	return out
}

func reserved(s Slot, history History, matchTimes bool) bool {
	for _, r := range history {
		if r.Date != s.Date {
			continue
		}
		if !matchTimes || containsTime(s.Times, r.Time) {
			return true
		}
	}
	return false
}

// FilterPreferences applies per-weekday constraints. A constrained day keeps
// exactly the preferred time or is dropped.
func FilterPreferences(slots []Slot, prefs Preferences) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		wd, ok := ParseWeekday(s.Day)
		if !ok {
			out = append(out, s.clone())
			continue
		}
		pref, ok := prefs[wd]
		if !ok {
			out = append(out, s.clone())
			continue
		}
		if pref.Never {
			continue
		}
		want := strings.ToLower(pref.Time)
		if !containsLower(s.Times, want) {
			continue
		}
		s.Times = []string{want}
		out = append(out, s)
	}
	return out
}

// LimitPerDay keeps only the first offered time of each slot.
func LimitPerDay(slots []Slot) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		s = s.clone()
		if len(s.Times) > 1 {
			s.Times = s.Times[:1]
		}
		out = append(out, s)
	}
	return out
}

// LimitPerWeek caps accepted slots per booking week, counting history first
// and then every slot accepted earlier in the same pass.
func LimitPerWeek(slots []Slot, history History, opts Options) ([]Slot, error) {
	counts := make(map[time.Time]int)
	for _, r := range history {
		week, err := WeekKey(r.Date, opts.Year, opts.WeekStart)
		if err != nil {
			return nil, err
		}
		counts[week]++
	}

	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		week, err := WeekKey(s.Date, opts.Year, opts.WeekStart)
		if err != nil {
			return nil, err
		}
		if opts.MaxPerWeek-counts[week] <= 0 {
			continue
		}
		counts[week]++
		out = append(out, s.clone())
	}
	return out, nil
}

func containsTime(times []string, t string) bool {
	for _, x := range times {
		if x == t {
			return true
		}
	}
	return false
}

func containsLower(times []string, t string) bool {
	for _, x := range times {
		if strings.ToLower(x) == t {
			return true
		}
	}
	return false
}
