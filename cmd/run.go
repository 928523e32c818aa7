package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/slot-scheduler/internal/auth"
	"github.com/example/slot-scheduler/internal/booking"
	"github.com/example/slot-scheduler/internal/config"
	"github.com/example/slot-scheduler/internal/driver/site"
	"github.com/example/slot-scheduler/internal/metrics"
	"github.com/example/slot-scheduler/internal/scheduler"
	"github.com/example/slot-scheduler/internal/web"
)

func newRunCmd() *cobra.Command {
	var (
		migrateUp bool
		once      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the booking scheduler (and the dashboard when LISTEN_ADDR is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := openDeps(ctx, cfg, log, migrateUp)
			if err != nil {
				return err
			}
			defer d.Close()

			metrics.Register()

			sel := &booking.Selector{
				Driver: site.New(site.Config{
					BaseURL:     cfg.SiteBaseURL,
					UserID:      cfg.SiteUserID,
					APIKey:      cfg.SiteAPIKey,
					RPS:         cfg.SiteRPS,
					ArtifactDir: cfg.ArtifactDir,
					Trace:       cfg.SiteTrace,
				}, log.With().Str("component", "site").Logger()),
				Ledger:   d.ledger,
				Lock:     d.lock,
				Notifier: d.notify,
				Options:  cfg.SelectionOptions,
				Log:      log.With().Str("component", "selector").Logger(),
			}
			s := &scheduler.Scheduler{
				Roster:   config.NewRosterSource(cfg.RosterPath),
				Runner:   sel,
				Interval: cfg.PollInterval,
				Log:      log.With().Str("component", "scheduler").Logger(),
				Holds:    scheduler.NewHoldStore(cfg.HoldFile),
			}

			if once {
				_, reports := s.RunOnce(ctx)
				for _, r := range reports {
					if r.Err != nil {
						return r.Err
					}
				}
				return nil
			}

			if !cfg.DashboardEnabled() {
				err := s.Run(ctx)
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			go func() { _ = s.Run(ctx) }()

			ws := &web.Server{
				Auth:   auth.NewStore(cfg.DashboardUser, cfg.DashboardPasswordHash, cfg.CookieHashKey, cfg.CookieBlockKey),
				Board:  s,
				Roster: s.Roster,
				Ledger: d.ledger,
				Log:    log.With().Str("component", "web").Logger(),
			}
			return web.Start(ctx, cfg.ListenAddr, ws.Routes(), log)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup (postgres backend)")
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass over the roster and exit")
	return cmd
}
