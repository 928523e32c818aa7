package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/slot-scheduler/internal/domain/reservation"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type Config struct {
	RosterPath string

	// ledger
	StoreBackend    string
	ReservationsLog string
	DatabaseURL     string

	// cross-process lock; empty RedisAddr means an in-process mutex
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockKey       string
	LockTTL       time.Duration

	// selection
	MaxPerWeek int
	WeekStart  time.Weekday
	MatchTimes bool

	// scheduler / driver
	PollInterval time.Duration
	Headless     bool
	SiteBaseURL  string
	SiteUserID   string
	SiteAPIKey   string
	SiteRPS      float64
	ArtifactDir  string

	// SiteTrace logs every site exchange at debug; defaults to !Headless.
	SiteTrace bool

	// HoldFile keeps people held after an unrecorded booking.
	HoldFile string

	// dashboard; empty ListenAddr disables it
	ListenAddr            string
	DashboardUser         string
	DashboardPasswordHash string
	CookieHashKey         []byte
	CookieBlockKey        []byte

	TelegramToken  string
	TelegramChatID int64

	LogLevel  string
	LogFormat string
}

// FromEnv loads .env (or SLOTSCHED_ENV_FILE) when present, then reads the environment.
func FromEnv() (Config, error) {
	if err := loadDotenv(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		RosterPath:      getenv("ROSTER_PATH", "roster.yaml"),
		StoreBackend:    strings.ToLower(getenv("STORE_BACKEND", BackendFile)),
		ReservationsLog: getenv("RESERVATIONS_LOG", "reservations.txt"),
		DatabaseURL:     getenv("DATABASE_URL", ""),
		RedisAddr:       getenv("REDIS_ADDR", ""),
		RedisPassword:   getenv("REDIS_PASSWORD", ""),
		LockKey:         getenv("LOCK_KEY", "slotsched:ledger"),
		SiteBaseURL:     strings.TrimRight(getenv("SITE_BASE_URL", "https://acuityscheduling.com/api/v1"), "/"),
		SiteUserID:      getenv("SITE_USER_ID", ""),
		SiteAPIKey:      getenv("SITE_API_KEY", ""),
		ArtifactDir:     getenv("ARTIFACT_DIR", "logs"),
		HoldFile:        getenv("HOLD_FILE", "holds.json"),
		ListenAddr:      getenv("LISTEN_ADDR", ""),
		DashboardUser:   getenv("DASHBOARD_USER", ""),
		TelegramToken:   getenv("TELEGRAM_BOT_TOKEN", ""),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "console"),
	}

	cfg.DashboardPasswordHash = getenv("DASHBOARD_PASSWORD_BCRYPT", "")

	var err error
	if cfg.RedisDB, err = getint("REDIS_DB", 0, 0); err != nil {
		return Config{}, err
	}
	lockTTL, err := getint("LOCK_TTL_SECONDS", 120, 1)
	if err != nil {
		return Config{}, err
	}
	cfg.LockTTL = time.Duration(lockTTL) * time.Second

	if cfg.MaxPerWeek, err = getint("MAX_PER_WEEK", reservation.DefaultMaxPerWeek, 0); err != nil {
		return Config{}, err
	}
	pollSec, err := getint("SCHED_POLL_SECONDS", 60, 1)
	if err != nil {
		return Config{}, err
	}
	cfg.PollInterval = time.Duration(pollSec) * time.Second

	ws := getenv("WEEK_START", reservation.DefaultWeekStart.String())
	wd, ok := reservation.ParseWeekday(ws)
	if !ok {
		return Config{}, fmt.Errorf("invalid WEEK_START %q (want a weekday name)", ws)
	}
	cfg.WeekStart = wd

	if cfg.MatchTimes, err = getbool("MATCH_TIMES", false); err != nil {
		return Config{}, err
	}
	if cfg.Headless, err = getbool("HEADLESS", true); err != nil {
		return Config{}, err
	}
	if cfg.SiteTrace, err = getbool("SITE_TRACE", !cfg.Headless); err != nil {
		return Config{}, err
	}

	rps, err := strconv.ParseFloat(getenv("SITE_RPS", "2"), 64)
	if err != nil || rps <= 0 {
		return Config{}, fmt.Errorf("invalid SITE_RPS")
	}
	cfg.SiteRPS = rps

	if v := getenv("TELEGRAM_CHAT_ID", ""); v != "" {
		if cfg.TelegramChatID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return Config{}, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
	}

	if hashKey, blockKey := getenv("COOKIE_HASH_KEY", ""), getenv("COOKIE_BLOCK_KEY", ""); hashKey != "" || blockKey != "" {
		if cfg.CookieHashKey, err = decodeB64(hashKey); err != nil {
			return Config{}, fmt.Errorf("COOKIE_HASH_KEY: %w", err)
		}
		if cfg.CookieBlockKey, err = decodeB64(blockKey); err != nil {
			return Config{}, fmt.Errorf("COOKIE_BLOCK_KEY: %w", err)
		}
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendFile:
		if c.ReservationsLog == "" {
			return errors.New("RESERVATIONS_LOG is required for the file backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.DashboardEnabled() {
		if c.DashboardUser == "" || c.DashboardPasswordHash == "" {
			return errors.New("DASHBOARD_USER and DASHBOARD_PASSWORD_BCRYPT are required when LISTEN_ADDR is set")
		}
		if len(c.CookieHashKey) == 0 || len(c.CookieBlockKey) == 0 {
			return errors.New("COOKIE_HASH_KEY and COOKIE_BLOCK_KEY are required when LISTEN_ADDR is set (base64, see `slotsched keys`)")
		}
	}
	if (c.TelegramToken == "") != (c.TelegramChatID == 0) {
		return errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}
	return nil
}

func (c Config) DashboardEnabled() bool { return c.ListenAddr != "" }

// SelectionOptions returns engine options for a run happening at now.
func (c Config) SelectionOptions(now time.Time) reservation.Options {
	return reservation.Options{
		MatchTimes: c.MatchTimes,
		MaxPerWeek: c.MaxPerWeek,
		WeekStart:  c.WeekStart,
		Year:       now.Year(),
	}
}

func loadDotenv() error {
	path := getenv("SLOTSCHED_ENV_FILE", ".env")
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func decodeB64(s string) ([]byte, error) {
	if b, err := os.ReadFile(s); err == nil {
		// allow pointing to file path for k8s secret mounts
		s = string(b)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty key")
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func getint(k string, def, floor int) (int, error) {
	v, err := strconv.Atoi(getenv(k, strconv.Itoa(def)))
	if err != nil || v < floor {
		return 0, fmt.Errorf("invalid %s", k)
	}
	return v, nil
}

func getbool(k string, def bool) (bool, error) {
	v, err := strconv.ParseBool(getenv(k, strconv.FormatBool(def)))
	if err != nil {
		return false, fmt.Errorf("invalid %s", k)
	}
	return v, nil
}
