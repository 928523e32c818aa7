// Package memory is an in-process booking site used for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/example/slot-scheduler/internal/domain/reservation"
)

// Offering is one advertised date in a slot dump file.
type Offering struct {
	Category string   `json:"category"`
	Date     string   `json:"date"`
	Day      string   `json:"day"`
	Times    []string `json:"times"`
}

// Driver serves a fixed catalogue. Category titles match by substring, the way
// the live site driver matches them.
type Driver struct {
	mu sync.Mutex

	catalog []Offering

	// FailCommitAfter makes Commit fail once this many picks are booked; negative never fails.
	FailCommitAfter int
	ScreenshotErr   error
	OpenErr         error

	commits     [][]reservation.Pick
	screenshots []string
	opened      int
	closed      int
}

func New(catalog []Offering) *Driver {
	return &Driver{catalog: catalog, FailCommitAfter: -1}
}

// LoadFile reads a JSON array of offerings.
func LoadFile(path string) (*Driver, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var catalog []Offering
	if err := json.Unmarshal(b, &catalog); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return New(catalog), nil
}

func (d *Driver) Name() string { return "memory" }

func (d *Driver) Open(ctx context.Context) (reservation.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	d.opened++
	return &session{d: d}, nil
}

// Commits returns every Commit call's booked picks.
func (d *Driver) Commits() [][]reservation.Pick {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]reservation.Pick(nil), d.commits...)
}

func (d *Driver) Screenshots() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.screenshots...)
}

// Sessions reports how many sessions were opened and closed.
func (d *Driver) Sessions() (opened, closed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened, d.closed
}

type session struct {
	d      *Driver
	booked map[reservation.Pick]bool
}

func (s *session) FetchSlots(ctx context.Context, category string) ([]reservation.Slot, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	var out []reservation.Slot
	found := false
	for _, o := range s.d.catalog {
		if !strings.Contains(o.Category, category) {
			continue
		}
		found = true
		times := make([]string, 0, len(o.Times))
		for _, t := range o.Times {
			times = append(times, strings.ToLower(strings.TrimSpace(t)))
		}
		out = append(out, reservation.Slot{Date: o.Date, Day: o.Day, Times: times, Category: category})
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", reservation.ErrCategoryNotFound, category)
	}
	if s.booked == nil {
		s.booked = make(map[reservation.Pick]bool)
	}
	for _, sl := range out {
		for _, t := range sl.Times {
			p := reservation.Pick{Date: sl.Date, Time: t, Category: category}
			if _, ok := s.booked[p]; !ok {
				s.booked[p] = false
			}
		}
	}
	return out, nil
}

func (s *session) Commit(ctx context.Context, p reservation.Person, picks []reservation.Pick) ([]reservation.Pick, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	var done []reservation.Pick
	defer func() { s.d.commits = append(s.d.commits, done) }()

	for _, pick := range picks {
		if s.d.FailCommitAfter >= 0 && len(done) >= s.d.FailCommitAfter {
			return done, fmt.Errorf("%w: site rejected %s @ %s", reservation.ErrCommitFailed, pick.Date, pick.Time)
		}
		taken, ok := s.booked[pick]
		if !ok {
			return done, fmt.Errorf("%w: %s @ %s is not offered", reservation.ErrCommitFailed, pick.Date, pick.Time)
		}
		if taken {
			return done, fmt.Errorf("%w: %s @ %s is already taken", reservation.ErrCommitFailed, pick.Date, pick.Time)
		}
		s.booked[pick] = true
		done = append(done, pick)
	}
	return done, nil
}

func (s *session) Screenshot(ctx context.Context, label string) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if s.d.ScreenshotErr != nil {
		return s.d.ScreenshotErr
	}
	s.d.screenshots = append(s.d.screenshots, label)
	return nil
}

func (s *session) Close() error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.closed++
	return nil
}
