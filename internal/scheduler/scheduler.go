package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/slot-scheduler/internal/booking"
	"github.com/example/slot-scheduler/internal/domain/reservation"
	"github.com/example/slot-scheduler/internal/metrics"
)

// Roster supplies the people to book for. A non-nil err with a non-empty
// roster means the last good roster is being served.
type Roster interface {
	People() (people []reservation.Person, reloaded bool, err error)
}

// Runner books for one person.
type Runner interface {
	Run(ctx context.Context, p reservation.Person) booking.Report
}

// Status is the latest run for one person, as shown on the dashboard.
type Status struct {
	RunID  string
	Report booking.Report
}

// Scheduler polls the roster and runs every person once per tick, one at a
// time, in shuffled order.
type Scheduler struct {
	Roster   Roster
	Runner   Runner
	Interval time.Duration
	Log      zerolog.Logger
	// Rand orders people each tick; nil uses a time-seeded source.
	Rand *rand.Rand
	// Holds lists people kept out of ticks until released; nil keeps
	// them in memory.
	Holds *HoldStore

	mu   sync.Mutex
	last map[string]Status
}

func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	// kick immediately
	_, _ = s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			_, _ = s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single tick and returns its run id and reports.
func (s *Scheduler) RunOnce(ctx context.Context) (string, []booking.Report) {
	runID := uuid.NewString()
	log := s.Log.With().Str("run_id", runID).Logger()

	people, reloaded, err := s.Roster.People()
	if err != nil {
		if len(people) == 0 {
			metrics.IncTick("roster_error")
			log.Error().Err(err).Msg("roster unavailable")
			return runID, nil
		}
		log.Warn().Err(err).Msg("roster reload failed, using last good roster")
	}
	if reloaded {
		log.Info().Int("people", len(people)).Msg("roster loaded")
	}

	held, err := s.holds().Active()
	if err != nil {
		metrics.IncTick("hold_error")
		log.Error().Err(err).Msg("holds unreadable, skipping tick")
		return runID, nil
	}

	order := make([]reservation.Person, 0, len(people))
	for _, p := range people {
		if h, ok := held[holdKey(p.FullName())]; ok {
			log.Warn().Str("person", p.FullName()).Str("held_since", h.Since.Format(time.RFC3339)).Str("reason", h.Reason).Msg("person on hold, release to resume")
			continue
		}
		order = append(order, p)
	}
	s.shuffle(order)

	result := "ok"
	reports := make([]booking.Report, 0, len(order))
	for _, p := range order {
		if ctx.Err() != nil {
			result = "cancelled"
			break
		}
		r := s.runPerson(ctx, log, p)
		reports = append(reports, r)
		s.record(runID, r)
		if r.Err != nil {
			result = "person_failed"
		}
		if errors.Is(r.Err, reservation.ErrPersistenceFailed) {
			s.hold(log, runID, r)
		}
	}
	metrics.IncTick(result)
	log.Info().Int("people", len(reports)).Str("result", result).Msg("tick done")
	return runID, reports
}

// runPerson isolates one person's run so a panic cannot take down the others.
func (s *Scheduler) runPerson(ctx context.Context, log zerolog.Logger, p reservation.Person) (r booking.Report) {
	defer func() {
		if v := recover(); v != nil {
			log.Error().Str("person", p.FullName()).Str("stack", string(debug.Stack())).Msgf("panic: %v", v)
			r = booking.Report{Person: p, Err: fmt.Errorf("panic: %v", v), Finished: time.Now()}
		}
	}()
	r = s.Runner.Run(ctx, p)
	if r.Err != nil {
		log.Error().Err(r.Err).Str("person", p.FullName()).Msg("run stopped")
	}
	return r
}

// hold stops later ticks from booking again for a person whose site booking
// is missing from the ledger.
func (s *Scheduler) hold(log zerolog.Logger, runID string, r booking.Report) {
	h := Hold{Person: r.Person.FullName(), RunID: runID, Reason: r.Err.Error(), Since: time.Now().UTC()}
	if err := s.holds().Put(h); err != nil {
		log.Error().Err(err).Str("person", h.Person).Msg("could not save hold, kept in memory until restart")
	}
	metrics.IncHold()
	log.Error().Str("person", h.Person).Msg("person held until released by an operator")
}

func (s *Scheduler) holds() *HoldStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Holds == nil {
		s.Holds = NewHoldStore("")
	}
	return s.Holds
}

// Held lists the current holds, sorted by name.
func (s *Scheduler) Held() ([]Hold, error) {
	return s.holds().List()
}

// Release clears the hold on name so the next tick runs them again.
func (s *Scheduler) Release(name string) (bool, error) {
	return s.holds().Release(name)
}

func (s *Scheduler) shuffle(people []reservation.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Rand == nil {
		s.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s.Rand.Shuffle(len(people), func(i, j int) { people[i], people[j] = people[j], people[i] })
}

func (s *Scheduler) record(runID string, r booking.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		s.last = make(map[string]Status)
	}
	s.last[r.Person.FullName()] = Status{RunID: runID, Report: r}
}

// Last returns the latest status per person, sorted by name.
func (s *Scheduler) Last() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.last))
	for _, st := range s.last {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Report.Person.FullName() < out[j].Report.Person.FullName()
	})
	return out
}
