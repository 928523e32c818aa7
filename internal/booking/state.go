package booking

import (
	"time"

	"github.com/example/slot-scheduler/internal/domain/reservation"
)

// State is a step of one category attempt.
type State string

const (
	StateIdle             State = "idle"
	StateSessionOpen      State = "session_open"
	StateSlotsFetched     State = "slots_fetched"
	StateFiltered         State = "filtered"
	StateCommitted        State = "committed"
	StateNoneAvailable    State = "none_available"
	StateCategoryNotFound State = "category_not_found"
	StateSessionClosed    State = "session_closed"
)

// Attempt records one person/category pass through the state machine.
type Attempt struct {
	Category string
	States   []State
	Booked   []reservation.Pick
	Err      error
}

func (a *Attempt) enter(s State) { a.States = append(a.States, s) }

// Outcome is the terminal state reached before the session closed, or
// "failed" when the attempt stopped on an error.
func (a Attempt) Outcome() string {
	for i := len(a.States) - 1; i >= 0; i-- {
		switch s := a.States[i]; s {
		case StateCommitted, StateNoneAvailable, StateCategoryNotFound:
			return string(s)
		}
	}
	return "failed"
}

// Report is the result of one person run.
type Report struct {
	Person   reservation.Person
	Attempts []Attempt
	// Err is set when the run stopped early (commit or persistence failure,
	// unreadable history, lock failure).
	Err      error
	Started  time.Time
	Finished time.Time
}

func (r Report) Booked() []reservation.Pick {
	var out []reservation.Pick
	for _, a := range r.Attempts {
		out = append(out, a.Booked...)
	}
	return out
}
