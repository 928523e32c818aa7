package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/slot-scheduler/internal/domain/reservation"
	"github.com/example/slot-scheduler/internal/export"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the reservation ledger",
	}
	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryExportCmd())
	return cmd
}

func readHistory(ctx context.Context) (reservation.History, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	d, err := openDeps(ctx, cfg, log, false)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return d.ledger.Records(ctx)
}

func newHistoryListCmd() *cobra.Command {
	var person string
	c := &cobra.Command{
		Use:   "list",
		Short: "List recorded reservations",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := readHistory(cmd.Context())
			if err != nil {
				return err
			}
			want := strings.Join(strings.Fields(person), " ")
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tTIME\tCATEGORY\tNAME")
			for _, r := range h {
				if want != "" && !strings.EqualFold(r.FirstName+" "+r.LastName, want) {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\n", r.Date, r.Time, r.Category, r.FirstName, r.LastName)
			}
			return tw.Flush()
		},
	}
	c.Flags().StringVar(&person, "person", "", `only this person, "First Last"`)
	return c
}

func newHistoryExportCmd() *cobra.Command {
	var out string
	c := &cobra.Command{
		Use:   "export",
		Short: "Write the ledger to an .xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := readHistory(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := export.WriteXLSX(f, h); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d reservations to %s\n", len(h), out)
			return nil
		},
	}
	c.Flags().StringVar(&out, "out", "reservations.xlsx", "output file")
	return c
}
