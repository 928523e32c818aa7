package scheduler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// Hold keeps a person out of every tick until an operator releases them.
// It is placed when a site booking could not be written to the ledger.
type Hold struct {
	Person string    `json:"person"`
	RunID  string    `json:"run_id"`
	Reason string    `json:"reason"`
	Since  time.Time `json:"since"`
}

// HoldStore keeps holds in a JSON file, re-read on every call so a release
// from another process takes effect on the next tick. An empty path keeps
// them in memory only. A hold that could not be written stays in memory for
// the life of the process.
type HoldStore struct {
	path string

	mu      sync.Mutex
	mem     map[string]Hold
	unsaved map[string]Hold
}

func NewHoldStore(path string) *HoldStore {
	return &HoldStore{path: path}
}

func holdKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func (h *HoldStore) load() (map[string]Hold, error) {
	if h.path == "" {
		if h.mem == nil {
			h.mem = make(map[string]Hold)
		}
		return h.mem, nil
	}
	b, err := os.ReadFile(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]Hold), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read holds: %w", err)
	}
	var list []Hold
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("parse holds %s: %w", h.path, err)
	}
	out := make(map[string]Hold, len(list))
	for _, hd := range list {
		out[holdKey(hd.Person)] = hd
	}
	return out, nil
}

func (h *HoldStore) save(m map[string]Hold) error {
	if h.path == "" {
		h.mem = m
		return nil
	}
	b, err := json.MarshalIndent(sorted(m), "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(h.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write holds: %w", err)
	}
	return os.Rename(tmp, h.path)
}

func sorted(m map[string]Hold) []Hold {
	out := make([]Hold, 0, len(m))
	for _, hd := range m {
		out = append(out, hd)
	}
	sort.Slice(out, func(i, j int) bool { return holdKey(out[i].Person) < holdKey(out[j].Person) })
	return out
}

// Active returns the current holds keyed by normalised person name.
func (h *HoldStore) Active() (map[string]Hold, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]Hold)
	for k, v := range h.unsaved {
		out[k] = v
	}
	m, err := h.load()
	if err != nil {
		return out, err
	}
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

func (h *HoldStore) List() ([]Hold, error) {
	m, err := h.Active()
	if err != nil {
		return nil, err
	}
	return sorted(m), nil
}

func (h *HoldStore) Put(hd Hold) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := holdKey(hd.Person)
	m, err := h.load()
	if err == nil {
		m[k] = hd
		err = h.save(m)
	}
	if err != nil {
		if h.unsaved == nil {
			h.unsaved = make(map[string]Hold)
		}
		h.unsaved[k] = hd
		return err
	}
	delete(h.unsaved, k)
	return nil
}

// Release clears the hold for name ("First Last", any case). It reports
// whether a hold existed.
func (h *HoldStore) Release(name string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := holdKey(name)
	_, wasUnsaved := h.unsaved[k]
	delete(h.unsaved, k)
	m, err := h.load()
	if err != nil {
		return wasUnsaved, err
	}
	if _, ok := m[k]; !ok {
		return wasUnsaved, nil
	}
	delete(m, k)
	return true, h.save(m)
}
