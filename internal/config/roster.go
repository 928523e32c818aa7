package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/slot-scheduler/internal/domain/reservation"
)

// Categories used when neither the person nor the roster names any.
var DefaultCategories = []string{"11:30 and 2:30", "5:30"}

type rosterFile struct {
	DefaultCategories []string      `yaml:"default_categories"`
	People            []personEntry `yaml:"people"`
}

type personEntry struct {
	FirstName   string            `yaml:"first_name"`
	LastName    string            `yaml:"last_name"`
	Phone       string            `yaml:"phone"`
	Email       string            `yaml:"email"`
	Categories  []string          `yaml:"categories"`
	Preferences map[string]string `yaml:"preferences"`
}

// LoadRoster reads the roster YAML. ${ENV_VAR} placeholders are expanded.
func LoadRoster(path string) ([]reservation.Person, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRoster(data)
}

func ParseRoster(data []byte) ([]reservation.Person, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	if len(rf.People) == 0 {
		return nil, errors.New("roster: no people")
	}
	defaults := cleanList(rf.DefaultCategories)
	if len(defaults) == 0 {
		defaults = DefaultCategories
	}
	for _, c := range defaults {
		if strings.ContainsAny(c, ",\r\n") {
			return nil, fmt.Errorf("roster: default category %q must not contain commas or line breaks", c)
		}
	}

	seen := make(map[string]bool, len(rf.People))
	out := make([]reservation.Person, 0, len(rf.People))
	for i, e := range rf.People {
		p := reservation.Person{
			FirstName:  strings.TrimSpace(e.FirstName),
			LastName:   strings.TrimSpace(e.LastName),
			Phone:      strings.TrimSpace(e.Phone),
			Email:      strings.TrimSpace(e.Email),
			Categories: cleanList(e.Categories),
		}
		if p.FirstName == "" || p.LastName == "" {
			return nil, fmt.Errorf("roster: person #%d needs first_name and last_name", i+1)
		}
		if strings.ContainsAny(p.FirstName+p.LastName, ",\r\n") {
			return nil, fmt.Errorf("roster: %s: names must not contain commas", p.FullName())
		}
		key := strings.ToLower(p.FullName())
		if seen[key] {
			return nil, fmt.Errorf("roster: %s listed twice", p.FullName())
		}
		seen[key] = true

		for _, c := range p.Categories {
			if strings.ContainsAny(c, ",\r\n") {
				return nil, fmt.Errorf("roster: %s: category %q must not contain commas or line breaks", p.FullName(), c)
			}
		}
		if len(p.Categories) == 0 {
			p.Categories = append([]string(nil), defaults...)
		}
		prefs, err := reservation.ParsePreferences(e.Preferences)
		if err != nil {
			return nil, fmt.Errorf("roster: %s: %w", p.FullName(), err)
		}
		p.Preferences = prefs
		out = append(out, p)
	}
	return out, nil
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RosterSource re-reads the roster file when its modification time changes and
// keeps serving the last good roster when a reload fails.
type RosterSource struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	people  []reservation.Person
}

func NewRosterSource(path string) *RosterSource {
	return &RosterSource{path: path}
}

// People returns the current roster. reloaded is true when the file was (re)read.
func (s *RosterSource) People() (people []reservation.Person, reloaded bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return s.people, false, err
	}
	if s.people != nil && !info.ModTime().After(s.modTime) {
		return s.people, false, nil
	}
	people, err = LoadRoster(s.path)
	if err != nil {
		return s.people, false, err
	}
	s.people = people
	s.modTime = info.ModTime()
	return people, true, nil
}
