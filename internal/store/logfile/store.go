package logfile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/example/slot-scheduler/internal/domain/reservation"
)

// Store keeps reservations in a flat, append-only text file, one record per line.
// It serialises its own reads and appends; cross-run critical sections are the
// caller's job (see the lock package).
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Records reads the whole log. A missing file is an empty history; any
// malformed line fails the whole read.
func (s *Store) Records(ctx context.Context) (reservation.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open reservations log: %w", err)
	}
	defer f.Close()

	var out reservation.History
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		r, err := ParseRecord(line, lineNo)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.path, err)
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read reservations log: %w", err)
	}
	return out, nil
}

// Append encodes every record before touching the file, so a bad record
// writes nothing.
func (s *Store) Append(ctx context.Context, records []reservation.ReservationRecord) error {
	if len(records) == 0 {
		return nil
	}
	var b strings.Builder
	for _, r := range records {
		line, err := FormatRecord(r)
		if err != nil {
			return err
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open reservations log: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return fmt.Errorf("append reservations log: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync reservations log: %w", err)
	}
	return f.Close()
}
