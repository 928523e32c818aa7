package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/slot-scheduler/internal/domain/reservation"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SLOTSCHED_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	for _, k := range []string{
		"STORE_BACKEND", "DATABASE_URL", "LISTEN_ADDR", "MAX_PER_WEEK", "WEEK_START",
		"MATCH_TIMES", "HEADLESS", "SCHED_POLL_SECONDS", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"COOKIE_HASH_KEY", "COOKIE_BLOCK_KEY", "SITE_RPS", "REDIS_DB", "LOCK_TTL_SECONDS",
		"SITE_TRACE", "HOLD_FILE",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.StoreBackend)
	assert.Equal(t, "reservations.txt", cfg.ReservationsLog)
	assert.Equal(t, 3, cfg.MaxPerWeek)
	assert.Equal(t, time.Friday, cfg.WeekStart)
	assert.False(t, cfg.MatchTimes)
	assert.True(t, cfg.Headless)
	assert.False(t, cfg.SiteTrace)
	assert.Equal(t, "holds.json", cfg.HoldFile)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.False(t, cfg.DashboardEnabled())

	opts := cfg.SelectionOptions(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, reservation.Options{MaxPerWeek: 3, WeekStart: time.Friday, Year: 2026}, opts)
}

func TestFromEnvOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("MAX_PER_WEEK", "2")
	t.Setenv("WEEK_START", "monday")
	t.Setenv("MATCH_TIMES", "true")
	t.Setenv("SCHED_POLL_SECONDS", "15")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxPerWeek)
	assert.Equal(t, time.Monday, cfg.WeekStart)
	assert.True(t, cfg.MatchTimes)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
}

func TestSiteTraceFollowsHeadlessUnlessSet(t *testing.T) {
	isolateEnv(t)
	t.Setenv("HEADLESS", "false")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.SiteTrace)

	t.Setenv("SITE_TRACE", "false")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.Headless)
	assert.False(t, cfg.SiteTrace)

	t.Setenv("HEADLESS", "true")
	t.Setenv("SITE_TRACE", "true")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.SiteTrace)
}

func TestFromEnvDotenvFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("MAX_PER_WEEK=5\n"), 0o600))
	t.Setenv("SLOTSCHED_ENV_FILE", path)
	// godotenv never overrides variables that are already set, even when empty
	require.NoError(t, os.Unsetenv("MAX_PER_WEEK"))

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxPerWeek)
	require.NoError(t, os.Unsetenv("MAX_PER_WEEK"))
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"week start":    {"WEEK_START", "Someday"},
		"max per week":  {"MAX_PER_WEEK", "-1"},
		"poll":          {"SCHED_POLL_SECONDS", "0"},
		"backend":       {"STORE_BACKEND", "mongo"},
		"postgres url":  {"STORE_BACKEND", "postgres"},
		"dashboard":     {"LISTEN_ADDR", ":8080"},
		"telegram half": {"TELEGRAM_BOT_TOKEN", "123:abc"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			isolateEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

const rosterYAML = `
default_categories: ["11:30 and 3:30 Sessions"]
people:
  - first_name: Katya
    last_name: Bloomberg
    phone: "9148179962"
    email: ${TEST_ROSTER_EMAIL}
    preferences:
      Monday: "11:30AM"
      Tuesday: "-"
  - first_name: Morris
    last_name: Chang
    categories: ["Senior Swim"]
`

func TestParseRoster(t *testing.T) {
	t.Setenv("TEST_ROSTER_EMAIL", "katya@example.com")
	people, err := ParseRoster([]byte(rosterYAML))
	require.NoError(t, err)
	require.Len(t, people, 2)

	k := people[0]
	assert.Equal(t, "katya@example.com", k.Email)
	assert.Equal(t, []string{"11:30 and 3:30 Sessions"}, k.Categories)
	assert.Equal(t, reservation.Preference{Time: "11:30am"}, k.Preferences[time.Monday])
	assert.True(t, k.Preferences[time.Tuesday].Never)

	assert.Equal(t, []string{"Senior Swim"}, people[1].Categories)
	assert.Empty(t, people[1].Preferences)
}

func TestParseRosterErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":          "people: []",
		"no name":        "people:\n  - first_name: A\n",
		"bad day":        "people:\n  - first_name: A\n    last_name: B\n    preferences:\n      Someday: 9:00am\n",
		"duplicate":      "people:\n  - first_name: A\n    last_name: B\n  - first_name: a\n    last_name: b\n",
		"comma":          "people:\n  - first_name: 'A,C'\n    last_name: B\n",
		"category comma": "people:\n  - first_name: A\n    last_name: B\n    categories: [\"11:30, 2:30\"]\n",
		"default comma":  "default_categories: [\"5:30, 7:30\"]\npeople:\n  - first_name: A\n    last_name: B\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRoster([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseRosterFallsBackToBuiltinCategories(t *testing.T) {
	people, err := ParseRoster([]byte("people:\n  - first_name: A\n    last_name: B\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCategories, people[0].Categories)
}

func TestRosterSourceKeepsLastGood(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte("people:\n  - first_name: A\n    last_name: B\n"), 0o644))

	src := NewRosterSource(path)
	people, reloaded, err := src.People()
	require.NoError(t, err)
	assert.True(t, reloaded)
	require.Len(t, people, 1)

	_, reloaded, err = src.People()
	require.NoError(t, err)
	assert.False(t, reloaded)

	require.NoError(t, os.WriteFile(path, []byte("people: ["), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	people, reloaded, err = src.People()
	assert.Error(t, err)
	assert.False(t, reloaded)
	assert.Len(t, people, 1)
}
