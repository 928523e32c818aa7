// Package site drives an Acuity-style scheduling API: list appointment types,
// list open dates and times, book appointments.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL     string
	UserID      string
	APIKey      string
	RPS         float64
	ArtifactDir string
	// Trace logs every request and response body at debug level.
	Trace   bool
	Timeout time.Duration
}

type client struct {
	hc      *http.Client
	base    string
	user    string
	key     string
	limiter *rate.Limiter
	trace   bool
	log     zerolog.Logger
}

func newClient(cfg Config, log zerolog.Logger) *client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 2
	}
	return &client{
		hc:      &http.Client{Timeout: timeout},
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		user:    cfg.UserID,
		key:     cfg.APIKey,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		trace:   cfg.Trace,
		log:     log,
	}
}

// apiError is the error body the site returns on 4xx.
type apiError struct {
	Status  int    `json:"status_code"`
	Message string `json:"message"`
	Code    string `json:"error"`
}

type appointmentType struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type openDate struct {
	Date string `json:"date"`
}

type openTime struct {
	Time           string `json:"time"`
	SlotsAvailable int    `json:"slotsAvailable"`
}

type bookingRequest struct {
	AppointmentTypeID int64  `json:"appointmentTypeID"`
	Datetime          string `json:"datetime"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	Email             string `json:"email"`
	Phone             string `json:"phone,omitempty"`
}

type confirmation struct {
	ID                int64  `json:"id"`
	Datetime          string `json:"datetime"`
	Type              string `json:"type"`
	AppointmentTypeID int64  `json:"appointmentTypeID"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	ConfirmationPage  string `json:"confirmationPage,omitempty"`
}

func (c *client) appointmentTypes(ctx context.Context) ([]appointmentType, error) {
	var out []appointmentType
	if err := c.getJSON(ctx, "/appointment-types", nil, &out); err != nil {
		return nil, fmt.Errorf("list appointment types: %w", err)
	}
	return out, nil
}

func (c *client) dates(ctx context.Context, typeID int64, month string) ([]openDate, error) {
	q := url.Values{}
	q.Set("appointmentTypeID", fmt.Sprint(typeID))
	q.Set("month", month)
	var out []openDate
	if err := c.getJSON(ctx, "/availability/dates", q, &out); err != nil {
		return nil, fmt.Errorf("list dates for %s: %w", month, err)
	}
	return out, nil
}

func (c *client) times(ctx context.Context, typeID int64, date string) ([]openTime, error) {
	q := url.Values{}
	q.Set("appointmentTypeID", fmt.Sprint(typeID))
	q.Set("date", date)
	var out []openTime
	if err := c.getJSON(ctx, "/availability/times", q, &out); err != nil {
		return nil, fmt.Errorf("list times for %s: %w", date, err)
	}
	return out, nil
}

func (c *client) book(ctx context.Context, req bookingRequest) (confirmation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return confirmation{}, err
	}
	status, resp, err := c.do(ctx, http.MethodPost, "/appointments", nil, body)
	if err != nil {
		return confirmation{}, err
	}
	if status >= 400 {
		return confirmation{}, statusError(status, resp)
	}
	var conf confirmation
	if err := json.Unmarshal(resp, &conf); err != nil {
		return confirmation{}, fmt.Errorf("parse confirmation: %w", err)
	}
	return conf, nil
}

func (c *client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	status, body, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		return statusError(status, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func statusError(status int, body []byte) error {
	var e apiError
	_ = json.Unmarshal(body, &e)
	if e.Message != "" {
		return fmt.Errorf("site error: %s (status=%d)", e.Message, status)
	}
	return fmt.Errorf("site error (status=%d)", status)
}

func (c *client) do(ctx context.Context, method, path string, q url.Values, body []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.SetBasicAuth(c.user, c.key)
	req.Header.Set("accept", "application/json")
	req.Header.Set("user-agent", "slotsched/1.0")
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	if c.trace {
		c.log.Debug().Str("method", method).Str("url", u).Int("status", res.StatusCode).
			Bytes("request", body).Bytes("response", b).Msg("site exchange")
	}
	return res.StatusCode, b, nil
}

var errNoSession = errors.New("session closed")
