package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/slot-scheduler/internal/domain/reservation"
	"github.com/example/slot-scheduler/internal/lock"
	"github.com/example/slot-scheduler/internal/metrics"
)

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Selector books slots for one person at a time: fetch, select, commit, record.
type Selector struct {
	Driver   reservation.Driver
	Ledger   reservation.Ledger
	Lock     lock.Locker
	Notifier Notifier

	// Options returns engine options for a run starting at now.
	Options func(now time.Time) reservation.Options
	Now     func() time.Time
	Log     zerolog.Logger
}

func (s *Selector) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Selector) options(now time.Time) reservation.Options {
	if s.Options != nil {
		return s.Options(now)
	}
	return reservation.DefaultOptions(now)
}

// Select runs the selection pipeline without touching the site or the ledger.
func (s *Selector) Select(slots []reservation.Slot, p reservation.Person, history reservation.History) ([]reservation.Slot, error) {
	return reservation.Select(slots, p, history, s.options(s.now()))
}

// Run attempts every category requested by p, in order. A missing category
// moves on to the next one; commit and persistence failures end the run.
func (s *Selector) Run(ctx context.Context, p reservation.Person) Report {
	r := Report{Person: p, Started: s.now()}
	log := s.Log.With().Str("person", p.FullName()).Logger()
	log.Info().Strs("categories", p.Categories).Msg("starting run")

	for _, category := range p.Categories {
		a, fatal := s.attempt(ctx, log.With().Str("category", category).Logger(), p, category)
		r.Attempts = append(r.Attempts, a)
		metrics.IncOutcome(a.Outcome())
		if fatal != nil {
			r.Err = fatal
			break
		}
	}
	r.Finished = s.now()
	return r
}

func (s *Selector) attempt(ctx context.Context, log zerolog.Logger, p reservation.Person, category string) (a Attempt, fatal error) {
	a = Attempt{Category: category}
	a.enter(StateIdle)

	var sess reservation.Session
	defer func() {
		if sess != nil {
			if err := sess.Close(); err != nil {
				log.Warn().Err(err).Msg("closing session")
			}
		}
		a.enter(StateSessionClosed)
	}()

	sess, err := s.Driver.Open(ctx)
	if err != nil {
		a.Err = fmt.Errorf("open %s session: %w", s.Driver.Name(), err)
		log.Error().Err(a.Err).Msg("session failed")
		return a, nil
	}
	a.enter(StateSessionOpen)

	slots, err := sess.FetchSlots(ctx, category)
	if errors.Is(err, reservation.ErrCategoryNotFound) {
		a.enter(StateCategoryNotFound)
		a.Err = err
		log.Warn().Err(err).Msg("category not offered")
		s.screenshot(ctx, log, sess, fmt.Sprintf("error-none-found-%s", s.now().Format("2006-01-02")))
		return a, nil
	}
	if err != nil {
		a.Err = fmt.Errorf("fetch slots: %w", err)
		log.Error().Err(a.Err).Msg("fetch failed")
		return a, nil
	}
	a.enter(StateSlotsFetched)
	log.Info().Str("slots", reservation.FormatSlots(slots)).Msg("available")

	release, err := s.Lock.Lock(ctx)
	if err != nil {
		a.Err = fmt.Errorf("acquire ledger lock: %w", err)
		log.Error().Err(a.Err).Msg("lock failed")
		return a, a.Err
	}
	unlock := sync.OnceFunc(release)
	defer unlock()

	history, err := s.Ledger.Records(ctx)
	if err != nil {
		a.Err = fmt.Errorf("read reservation history: %w", err)
		log.Error().Err(a.Err).Msg("history unreadable")
		return a, a.Err
	}
	chosen, err := s.selectLogged(log, slots, p, history)
	if err != nil {
		a.Err = fmt.Errorf("select slots: %w", err)
		log.Error().Err(a.Err).Msg("selection failed")
		return a, a.Err
	}
	a.enter(StateFiltered)

	if len(chosen) == 0 {
		a.enter(StateNoneAvailable)
		log.Info().Msg("nothing to book")
		return a, nil
	}

	picks := reservation.Picks(chosen)
	for _, pick := range picks {
		if err := reservation.NewRecord(p, pick).Validate(); err != nil {
			a.Err = fmt.Errorf("refusing to book %s @ %s that the ledger cannot record: %w", pick.Date, pick.Time, err)
			log.Error().Err(a.Err).Msg("selection not bookable")
			return a, a.Err
		}
	}
	booked, commitErr := sess.Commit(ctx, p, picks)
	if len(booked) > 0 {
		a.Booked = booked
		if err := s.record(ctx, p, booked); err != nil {
			a.Err = err
			metrics.IncPersistenceFailure()
			log.Error().Err(err).Str("booked", formatPicks(booked)).Msg("BOOKED ON SITE BUT NOT RECORDED; fix the ledger by hand")
			s.notify(ctx, log, fmt.Sprintf("slotsched: %s booked %s but the ledger append failed: %v", p.FullName(), formatPicks(booked), err))
			return a, err
		}
		metrics.AddBooked(category, len(booked))
	}
	unlock()

	if commitErr != nil {
		if !errors.Is(commitErr, reservation.ErrCommitFailed) {
			commitErr = fmt.Errorf("%w: %w", reservation.ErrCommitFailed, commitErr)
		}
		a.Err = commitErr
		log.Error().Err(commitErr).Int("booked", len(booked)).Int("wanted", len(picks)).Msg("commit failed")
		return a, commitErr
	}

	a.enter(StateCommitted)
	log.Info().Str("booked", formatPicks(booked)).Msg("reservation saved")
	s.screenshot(ctx, log, sess, ScreenshotLabel(p, chosen))
	s.notify(ctx, log, fmt.Sprintf("slotsched: booked %s for %s (%s)", formatPicks(booked), p.FullName(), category))
	return a, nil
}

// selectLogged is Select with a log line after every stage.
func (s *Selector) selectLogged(log zerolog.Logger, slots []reservation.Slot, p reservation.Person, history reservation.History) ([]reservation.Slot, error) {
	opts := s.options(s.now())
	opts.Observe = func(stage reservation.Stage, out []reservation.Slot) {
		log.Debug().Str("stage", string(stage)).Str("slots", reservation.FormatSlots(out)).Int("max_per_week", opts.MaxPerWeek).Msg("filtered")
	}
	return reservation.Select(slots, p, history, opts)
}

// record appends one ledger row per booked pick. It ignores cancellation of
// ctx: the site booking has already happened.
func (s *Selector) record(ctx context.Context, p reservation.Person, booked []reservation.Pick) error {
	recs := make([]reservation.ReservationRecord, 0, len(booked))
	for _, b := range booked {
		recs = append(recs, reservation.NewRecord(p, b))
	}
	if err := s.Ledger.Append(context.WithoutCancel(ctx), recs); err != nil {
		return fmt.Errorf("%w: %w", reservation.ErrPersistenceFailed, err)
	}
	return nil
}

func (s *Selector) screenshot(ctx context.Context, log zerolog.Logger, sess reservation.Session, label string) {
	if err := sess.Screenshot(ctx, label); err != nil {
		log.Warn().Err(fmt.Errorf("%w: %w", reservation.ErrScreenshotFailed, err)).Str("label", label).Msg("screenshot not saved")
		return
	}
	log.Info().Str("label", label).Msg("saved screenshot")
}

func (s *Selector) notify(ctx context.Context, log zerolog.Logger, text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(context.WithoutCancel(ctx), text); err != nil {
		log.Warn().Err(err).Msg("notification not sent")
	}
}

// ScreenshotLabel names the confirmation artifact for a booking, e.g.
// "moore-alice-july10-1130am-july11-330pm".
func ScreenshotLabel(p reservation.Person, slots []reservation.Slot) string {
	parts := []string{p.LastName, p.FirstName}
	for _, s := range slots {
		parts = append(parts, s.Date+"-"+strings.Join(s.Times, "-"))
	}
	return sanitizeLabel(strings.Join(parts, "-"))
}

var labelReplacer = strings.NewReplacer(" ", "", ":", "", "(", "-", ")", "-", "/", "-")

func sanitizeLabel(s string) string {
	return labelReplacer.Replace(strings.ToLower(s))
}

func formatPicks(picks []reservation.Pick) string {
	parts := make([]string, 0, len(picks))
	for _, p := range picks {
		parts = append(parts, p.Date+" @ "+p.Time)
	}
	return strings.Join(parts, ", ")
}
