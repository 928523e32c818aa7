package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/example/slot-scheduler/internal/auth"
	"github.com/example/slot-scheduler/internal/domain/reservation"
	"github.com/example/slot-scheduler/internal/export"
	"github.com/example/slot-scheduler/internal/scheduler"
)

//go:embed templates/*.html
var fs embed.FS

// Board exposes the latest run per person and who is held.
type Board interface {
	Last() []scheduler.Status
	Held() ([]scheduler.Hold, error)
}

type Server struct {
	Auth   *auth.Store
	Board  Board
	Roster scheduler.Roster
	Ledger reservation.Ledger
	Log    zerolog.Logger

	// HistoryLimit caps the rows shown on the home page.
	HistoryLimit int
}

type personRow struct {
	Person      reservation.Person
	Preferences []string
}

type tmplData struct {
	Title    string
	Operator string
	Flash    string

	People   []personRow
	Statuses []scheduler.Status
	Held     []scheduler.Hold
	History  reservation.History
	Total    int
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/", s.Auth.RequireAuth(http.HandlerFunc(s.handleHome)))
	mux.Handle("/export.xlsx", s.Auth.RequireAuth(http.HandlerFunc(s.handleExport)))

	return mux
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	op, _ := auth.OperatorFromContext(r.Context())
	data := tmplData{Title: "Overview", Operator: op}

	people, _, err := s.Roster.People()
	if err != nil {
		data.Flash = "Roster: " + err.Error()
	}
	for _, p := range people {
		data.People = append(data.People, personRow{Person: p, Preferences: describePreferences(p.Preferences)})
	}
	if s.Board != nil {
		data.Statuses = s.Board.Last()
		if data.Held, err = s.Board.Held(); err != nil {
			data.Flash = strings.TrimSpace(data.Flash + " Holds: " + err.Error())
		}
	}

	h, err := s.Ledger.Records(r.Context())
	if err != nil {
		s.Log.Error().Err(err).Msg("dashboard: read history")
		data.Flash = strings.TrimSpace(data.Flash + " History: " + err.Error())
	}
	data.Total = len(h)
	data.History = newestFirst(h, s.historyLimit())

	s.render(w, "templates/home.html", data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	h, err := s.Ledger.Records(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="reservations-%s.xlsx"`, time.Now().Format("2006-01-02")))
	if err := export.WriteXLSX(w, h); err != nil {
		s.Log.Error().Err(err).Msg("dashboard: export")
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/login.html", tmplData{Title: "Login"})
		return
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		if err := s.Auth.Authenticate(username, r.FormValue("password")); err != nil {
			s.Log.Warn().Str("username", username).Str("remote", r.RemoteAddr).Msg("dashboard: failed login")
			s.renderStatus(w, http.StatusUnauthorized, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid username/password"})
			return
		}
		if err := s.Auth.SetSession(w, r, username); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) historyLimit() int {
	if s.HistoryLimit > 0 {
		return s.HistoryLimit
	}
	return 50
}

func newestFirst(h reservation.History, limit int) reservation.History {
	out := make(reservation.History, 0, min(len(h), limit))
	for i := len(h) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h[i])
	}
	return out
}

func describePreferences(prefs reservation.Preferences) []string {
	var out []string
	for d := time.Sunday; d <= time.Saturday; d++ {
		p, ok := prefs[d]
		if !ok {
			continue
		}
		if p.Never {
			out = append(out, d.String()+": never")
		} else {
			out = append(out, d.String()+": "+p.Time)
		}
	}
	return out
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"when": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("Jan 2 15:04")
	},
	"picks": func(picks []reservation.Pick) string {
		parts := make([]string, 0, len(picks))
		for _, p := range picks {
			parts = append(parts, p.Date+" @ "+p.Time)
		}
		if len(parts) == 0 {
			return "-"
		}
		return strings.Join(parts, ", ")
	},
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	s.renderStatus(w, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, status int, name string, data tmplData) {
	t, err := template.New("base").Funcs(funcs).ParseFS(fs,
		"templates/base.html",
		name,
	)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func Start(ctx context.Context, addr string, h http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", addr).Msg("dashboard listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
