package site

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/slot-scheduler/internal/domain/reservation"
)

type fakeSite struct {
	mu     sync.Mutex
	booked []bookingRequest
	reject string
}

func (f *fakeSite) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/appointment-types", func(w http.ResponseWriter, r *http.Request) {
		user, key, ok := r.BasicAuth()
		if !ok || user != "42" || key != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"status_code":401,"message":"Unauthorized","error":"unauthorized"}`)
			return
		}
		writeJSON(w, []appointmentType{
			{ID: 7, Name: "Lap Swim (45 min)", Active: false},
			{ID: 9, Name: "Senior Swim (60 min)", Active: true},
		})
	})
	mux.HandleFunc("/availability/dates", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "9", r.URL.Query().Get("appointmentTypeID"))
		switch r.URL.Query().Get("month") {
		case "2026-07":
			writeJSON(w, []openDate{{Date: "2026-07-10"}, {Date: "2026-07-11"}})
		default:
			writeJSON(w, []openDate{})
		}
	})
	mux.HandleFunc("/availability/times", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("date") {
		case "2026-07-10":
			writeJSON(w, []openTime{
				{Time: "2026-07-10T09:00:00-0400", SlotsAvailable: 2},
				{Time: "2026-07-10T14:30:00-0400", SlotsAvailable: 1},
			})
		case "2026-07-11":
			writeJSON(w, []openTime{{Time: "2026-07-11T09:00:00-0400", SlotsAvailable: 0}})
		}
	})
	mux.HandleFunc("/appointments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req bookingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		defer f.mu.Unlock()
		if req.Datetime == f.reject {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"status_code":400,"message":"The time you selected is no longer available.","error":"not_available"}`)
			return
		}
		f.booked = append(f.booked, req)
		writeJSON(w, confirmation{ID: int64(100 + len(f.booked)), Datetime: req.Datetime, AppointmentTypeID: req.AppointmentTypeID, FirstName: req.FirstName, LastName: req.LastName})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestDriver(t *testing.T, f *fakeSite) *Driver {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	d := New(Config{BaseURL: srv.URL, UserID: "42", APIKey: "secret", RPS: 1000, ArtifactDir: t.TempDir()}, zerolog.Nop())
	d.now = func() time.Time { return time.Date(2026, time.July, 8, 7, 0, 0, 0, time.UTC) }
	return d
}

func TestFetchSlots(t *testing.T) {
	d := newTestDriver(t, &fakeSite{})
	ctx := context.Background()
	sess, err := d.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	slots, err := sess.FetchSlots(ctx, "Senior Swim")
	require.NoError(t, err)
	assert.Equal(t, []reservation.Slot{
		{Date: "July 10", Day: "Friday", Times: []string{"9:00am", "2:30pm"}, Category: "Senior Swim"},
	}, slots)
}

func TestFetchSlotsUnknownOrInactiveCategory(t *testing.T) {
	d := newTestDriver(t, &fakeSite{})
	ctx := context.Background()
	sess, err := d.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.FetchSlots(ctx, "Lap Swim")
	assert.ErrorIs(t, err, reservation.ErrCategoryNotFound)
	_, err = sess.FetchSlots(ctx, "Aqua Fit")
	assert.ErrorIs(t, err, reservation.ErrCategoryNotFound)
}

func TestOpenBadCredentials(t *testing.T) {
	f := &fakeSite{}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()
	d := New(Config{BaseURL: srv.URL, UserID: "42", APIKey: "wrong", RPS: 1000}, zerolog.Nop())

	_, err := d.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestCommitAndScreenshot(t *testing.T) {
	f := &fakeSite{}
	d := newTestDriver(t, f)
	ctx := context.Background()
	sess, err := d.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.FetchSlots(ctx, "Senior Swim")
	require.NoError(t, err)

	p := reservation.Person{FirstName: "Alice", LastName: "Moore", Email: "alice@example.com", Phone: "555-0100"}
	picks := []reservation.Pick{{Date: "July 10", Time: "2:30pm", Category: "Senior Swim"}}
	booked, err := sess.Commit(ctx, p, picks)
	require.NoError(t, err)
	assert.Equal(t, picks, booked)
	require.Len(t, f.booked, 1)
	assert.Equal(t, bookingRequest{
		AppointmentTypeID: 9,
		Datetime:          "2026-07-10T14:30:00-0400",
		FirstName:         "Alice",
		LastName:          "Moore",
		Email:             "alice@example.com",
		Phone:             "555-0100",
	}, f.booked[0])

	require.NoError(t, sess.Screenshot(ctx, "moore-alice-july10-230pm"))
	b, err := os.ReadFile(filepath.Join(d.artifactDir, "moore-alice-july10-230pm.json"))
	require.NoError(t, err)
	var a artifact
	require.NoError(t, json.Unmarshal(b, &a))
	require.Len(t, a.Confirmations, 1)
	assert.Equal(t, int64(101), a.Confirmations[0].ID)
}

func TestCommitStopsAtFirstRefusal(t *testing.T) {
	f := &fakeSite{reject: "2026-07-10T14:30:00-0400"}
	d := newTestDriver(t, f)
	ctx := context.Background()
	sess, err := d.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()
	_, err = sess.FetchSlots(ctx, "Senior Swim")
	require.NoError(t, err)

	picks := []reservation.Pick{
		{Date: "July 10", Time: "9:00am", Category: "Senior Swim"},
		{Date: "July 10", Time: "2:30pm", Category: "Senior Swim"},
		{Date: "July 11", Time: "9:00am", Category: "Senior Swim"},
	}
	booked, err := sess.Commit(ctx, reservation.Person{FirstName: "Alice", LastName: "Moore"}, picks)
	require.Error(t, err)
	assert.ErrorIs(t, err, reservation.ErrCommitFailed)
	assert.Contains(t, err.Error(), "no longer available")
	assert.Equal(t, picks[:1], booked)
}

func TestCommitRejectsUnofferedPick(t *testing.T) {
	d := newTestDriver(t, &fakeSite{})
	ctx := context.Background()
	sess, err := d.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Commit(ctx, reservation.Person{}, []reservation.Pick{{Date: "July 10", Time: "9:00am", Category: "Senior Swim"}})
	assert.ErrorIs(t, err, reservation.ErrCommitFailed)
}
