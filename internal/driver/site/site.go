package site

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/example/slot-scheduler/internal/domain/reservation"
)

const datetimeLayout = "2006-01-02T15:04:05-0700"

// Driver opens sessions against the scheduling API.
type Driver struct {
	c           *client
	artifactDir string
	now         func() time.Time
	log         zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Driver {
	return &Driver{
		c:           newClient(cfg, log),
		artifactDir: cfg.ArtifactDir,
		now:         time.Now,
		log:         log,
	}
}

func (d *Driver) Name() string { return "site" }

// Ping checks the credentials by listing appointment types.
func (d *Driver) Ping(ctx context.Context) error {
	_, err := d.c.appointmentTypes(ctx)
	return err
}

func (d *Driver) Open(ctx context.Context) (reservation.Session, error) {
	types, err := d.c.appointmentTypes(ctx)
	if err != nil {
		return nil, err
	}
	return &session{d: d, types: types, offered: make(map[offerKey]offer)}, nil
}

type offerKey struct {
	date, time, category string
}

type offer struct {
	typeID   int64
	datetime string
}

type session struct {
	d     *Driver
	types []appointmentType

	mu       sync.Mutex
	offered  map[offerKey]offer
	fetched  []string
	booked   []confirmation
	closed   bool
	lastNote string
}

// match picks the first active appointment type whose title contains category.
func (s *session) match(category string) (appointmentType, bool) {
	for _, t := range s.types {
		if t.Active && strings.Contains(t.Name, category) {
			return t, true
		}
	}
	return appointmentType{}, false
}

// FetchSlots lists open times for this month and next.
func (s *session) FetchSlots(ctx context.Context, category string) ([]reservation.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errNoSession
	}

	t, ok := s.match(category)
	if !ok {
		s.lastNote = fmt.Sprintf("no appointment type matching %q", category)
		return nil, fmt.Errorf("%w: %q", reservation.ErrCategoryNotFound, category)
	}
	s.fetched = append(s.fetched, t.Name)

	now := s.d.now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	var out []reservation.Slot
	for _, m := range []time.Time{first, first.AddDate(0, 1, 0)} {
		dates, err := s.d.c.dates(ctx, t.ID, m.Format("2006-01"))
		if err != nil {
			return nil, err
		}
		for _, od := range dates {
			slot, err := s.slotFor(ctx, t, od.Date, category)
			if err != nil {
				return nil, err
			}
			if len(slot.Times) > 0 {
				out = append(out, slot)
			}
		}
	}
	return out, nil
}

func (s *session) slotFor(ctx context.Context, t appointmentType, date, category string) (reservation.Slot, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return reservation.Slot{}, fmt.Errorf("site returned bad date %q: %w", date, err)
	}
	times, err := s.d.c.times(ctx, t.ID, date)
	if err != nil {
		return reservation.Slot{}, err
	}
	slot := reservation.Slot{Date: day.Format("January 2"), Day: day.Weekday().String(), Category: category}
	for _, ot := range times {
		if ot.SlotsAvailable == 0 {
			continue
		}
		at, err := time.Parse(datetimeLayout, ot.Time)
		if err != nil {
			return reservation.Slot{}, fmt.Errorf("site returned bad time %q: %w", ot.Time, err)
		}
		clock := strings.ToLower(at.Format("3:04pm"))
		slot.Times = append(slot.Times, clock)
		s.offered[offerKey{slot.Date, clock, category}] = offer{typeID: t.ID, datetime: ot.Time}
	}
	return slot, nil
}

// Commit books picks in order and stops at the first refusal.
func (s *session) Commit(ctx context.Context, p reservation.Person, picks []reservation.Pick) ([]reservation.Pick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errNoSession
	}

	var done []reservation.Pick
	for _, pick := range picks {
		o, ok := s.offered[offerKey{pick.Date, strings.ToLower(pick.Time), pick.Category}]
		if !ok {
			return done, fmt.Errorf("%w: %s @ %s was not offered in this session", reservation.ErrCommitFailed, pick.Date, pick.Time)
		}
		conf, err := s.d.c.book(ctx, bookingRequest{
			AppointmentTypeID: o.typeID,
			Datetime:          o.datetime,
			FirstName:         p.FirstName,
			LastName:          p.LastName,
			Email:             p.Email,
			Phone:             p.Phone,
		})
		if err != nil {
			return done, fmt.Errorf("%w: %s @ %s: %w", reservation.ErrCommitFailed, pick.Date, pick.Time, err)
		}
		s.booked = append(s.booked, conf)
		done = append(done, pick)
	}
	return done, nil
}

type artifact struct {
	Label         string         `json:"label"`
	TakenAt       time.Time      `json:"taken_at"`
	Types         []string       `json:"appointment_types"`
	Note          string         `json:"note,omitempty"`
	Confirmations []confirmation `json:"confirmations"`
}

// Screenshot writes the session's confirmations to <artifact dir>/<label>.json.
func (s *session) Screenshot(ctx context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := artifact{
		Label:         label,
		TakenAt:       s.d.now(),
		Types:         s.fetched,
		Note:          s.lastNote,
		Confirmations: s.booked,
	}
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	dir := s.d.artifactDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, label+".json"), b, 0o644)
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
