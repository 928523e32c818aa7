package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/example/slot-scheduler/internal/booking"
	"github.com/example/slot-scheduler/internal/config"
	"github.com/example/slot-scheduler/internal/db"
	"github.com/example/slot-scheduler/internal/domain/reservation"
	"github.com/example/slot-scheduler/internal/lock"
	"github.com/example/slot-scheduler/internal/logging"
	"github.com/example/slot-scheduler/internal/migrate"
	"github.com/example/slot-scheduler/internal/notify"
	"github.com/example/slot-scheduler/internal/store/logfile"
	"github.com/example/slot-scheduler/internal/store/postgres"
)

// deps holds the process-wide collaborators shared by the subcommands.
type deps struct {
	cfg    config.Config
	log    zerolog.Logger
	ledger reservation.Ledger
	lock   lock.Locker
	notify booking.Notifier

	closers []func()
}

func loadConfig() (config.Config, zerolog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, logging.New(cfg.LogLevel, cfg.LogFormat), nil
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// openDeps wires the ledger, the ledger lock and the notifier from cfg.
func openDeps(ctx context.Context, cfg config.Config, log zerolog.Logger, migrateUp bool) (*deps, error) {
	d := &deps{cfg: cfg, log: log}

	ledger, err := d.openLedger(ctx, migrateUp)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.ledger = ledger

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		d.closers = append(d.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			d.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		d.lock = lock.NewRedis(rdb, cfg.LockKey, cfg.LockTTL)
		log.Info().Str("addr", cfg.RedisAddr).Str("key", cfg.LockKey).Msg("using redis ledger lock")
	} else {
		d.lock = lock.NewMutex()
	}

	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			// alerts are optional; booking still works without them
			log.Warn().Err(err).Msg("telegram notifier disabled")
		} else {
			d.notify = tg
		}
	}
	return d, nil
}

func (d *deps) openLedger(ctx context.Context, migrateUp bool) (reservation.Ledger, error) {
	switch d.cfg.StoreBackend {
	case config.BackendPostgres:
		pg, err := openDB(ctx, d.cfg, d.log, migrateUp)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, pg.Close)
		return postgres.New(pg), nil
	default:
		d.log.Info().Str("path", d.cfg.ReservationsLog).Msg("using reservations log file")
		return logfile.New(d.cfg.ReservationsLog), nil
	}
}

func openDB(ctx context.Context, cfg config.Config, log zerolog.Logger, migrateUp bool) (*db.DB, error) {
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if migrateUp {
		applied, err := migrate.Up(ctx, d)
		if err != nil {
			d.Close()
			return nil, err
		}
		for _, v := range applied {
			log.Info().Str("version", v).Msg("applied migration")
		}
	}
	return d, nil
}
