package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/slot-scheduler/internal/scheduler"
)

func newHoldsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holds",
		Short: "List or release people held after a booking the ledger did not record",
	}
	cmd.AddCommand(newHoldsListCmd())
	cmd.AddCommand(newHoldsReleaseCmd())
	return cmd
}

func openHolds() (*scheduler.HoldStore, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return scheduler.NewHoldStore(cfg.HoldFile), nil
}

func newHoldsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List held people",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHolds()
			if err != nil {
				return err
			}
			held, err := h.List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSINCE\tRUN\tREASON")
			for _, hd := range held {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", hd.Person, hd.Since.Format(time.RFC3339), hd.RunID, hd.Reason)
			}
			return tw.Flush()
		},
	}
}

func newHoldsReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   `release "First Last"`,
		Short: "Release a held person once the ledger has been fixed by hand",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHolds()
			if err != nil {
				return err
			}
			name := strings.Join(args, " ")
			ok, err := h.Release(name)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s is not held", name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released %s\n", name)
			return nil
		},
	}
}
