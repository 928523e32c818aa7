package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/slot-scheduler/internal/driver/site"
)

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the booking site credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			d := site.New(site.Config{BaseURL: cfg.SiteBaseURL, UserID: cfg.SiteUserID, APIKey: cfg.SiteAPIKey, RPS: cfg.SiteRPS}, log)
			if err := d.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", cfg.SiteBaseURL)
			return nil
		},
	}
}
