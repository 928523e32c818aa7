package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/slot-scheduler/internal/auth"
	"github.com/example/slot-scheduler/internal/scheduler"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SLOTSCHED_ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("RESERVATIONS_LOG", filepath.Join(dir, "reservations.txt"))
	t.Setenv("ROSTER_PATH", filepath.Join(dir, "roster.yaml"))
	t.Setenv("HOLD_FILE", filepath.Join(dir, "holds.json"))
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	t.Setenv("LOG_LEVEL", "error")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "roster.yaml"), []byte(`
people:
  - first_name: Alice
    last_name: Moore
    email: alice@example.com
    categories: ["Senior Swim", "Aqua Fit"]
    preferences:
      friday: "10:00AM"
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slots.json"), []byte(`[
  {"category":"Senior Swim (60 min)","date":"July 10","day":"Friday","times":["9:00AM","10:00AM"]},
  {"category":"Senior Swim (60 min)","date":"July 11","day":"Saturday","times":["9:00AM"]}
]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reservations.txt"),
		[]byte("July 11,9:00am,Senior Swim,Alice,Moore\nJuly 12,9:00am,Senior Swim,Bob,Stone\n"), 0o644))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPlan(t *testing.T) {
	dir := setupEnv(t)
	out, err := run(t, "plan", "--slots", filepath.Join(dir, "slots.json"), "--person", "alice  moore")
	require.NoError(t, err)
	assert.Equal(t, "Senior Swim: July 10 @ 10:00am\nAqua Fit: not offered\n", out)
}

func TestPlanUnknownPerson(t *testing.T) {
	dir := setupEnv(t)
	_, err := run(t, "plan", "--slots", filepath.Join(dir, "slots.json"), "--person", "Carol King")
	assert.ErrorContains(t, err, "Carol King")
}

func TestHistoryList(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "history", "list", "--person", "ALICE MOORE")
	require.NoError(t, err)
	assert.Contains(t, out, "July 11")
	assert.NotContains(t, out, "Bob")

	out, err = run(t, "history", "list")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestHistoryExport(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "out.xlsx")
	out, err := run(t, "history", "export", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 2 reservations")
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestHoldsListAndRelease(t *testing.T) {
	dir := setupEnv(t)
	h := scheduler.NewHoldStore(filepath.Join(dir, "holds.json"))
	require.NoError(t, h.Put(scheduler.Hold{Person: "Alice Moore", RunID: "run-1", Reason: "persistence failed: disk full", Since: time.Now()}))

	out, err := run(t, "holds", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice Moore")
	assert.Contains(t, out, "disk full")

	out, err = run(t, "holds", "release", "alice", "moore")
	require.NoError(t, err)
	assert.Contains(t, out, "released alice moore")

	_, err = run(t, "holds", "release", "Alice Moore")
	assert.ErrorContains(t, err, "not held")

	held, err := h.List()
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestPasswd(t *testing.T) {
	out, err := run(t, "passwd", "--password", "hunter2")
	require.NoError(t, err)
	hash := strings.TrimSpace(strings.TrimPrefix(out, "DASHBOARD_PASSWORD_BCRYPT="))
	assert.True(t, auth.CheckPassword(hash, "hunter2"))
}

func TestKeysAndVersion(t *testing.T) {
	out, err := run(t, "keys")
	require.NoError(t, err)
	assert.Contains(t, out, "COOKIE_HASH_KEY=")
	assert.Contains(t, out, "COOKIE_BLOCK_KEY=")

	out, err = run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "slotsched dev"))
}

func TestMigrateNeedsPostgres(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "migrate")
	assert.ErrorContains(t, err, "STORE_BACKEND=postgres")
}
