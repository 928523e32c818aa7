package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/slot-scheduler/internal/booking"
	"github.com/example/slot-scheduler/internal/config"
	"github.com/example/slot-scheduler/internal/domain/reservation"
	"github.com/example/slot-scheduler/internal/driver/memory"
)

func newPlanCmd() *cobra.Command {
	var (
		slotsPath string
		person    string
		category  string
	)

	c := &cobra.Command{
		Use:   "plan",
		Short: "Show what would be booked from a JSON slot dump, without booking anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			people, err := config.LoadRoster(cfg.RosterPath)
			if err != nil {
				return err
			}
			p, ok := findPerson(people, person)
			if !ok {
				return fmt.Errorf("no one named %q on the roster", person)
			}
			categories := p.Categories
			if category != "" {
				categories = []string{category}
			}

			drv, err := memory.LoadFile(slotsPath)
			if err != nil {
				return err
			}
			d, err := openDeps(ctx, cfg, log, false)
			if err != nil {
				return err
			}
			defer d.Close()
			history, err := d.ledger.Records(ctx)
			if err != nil {
				return err
			}

			sel := &booking.Selector{Options: cfg.SelectionOptions}
			sess, err := drv.Open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			out := cmd.OutOrStdout()
			for _, cat := range categories {
				slots, err := sess.FetchSlots(ctx, cat)
				if errors.Is(err, reservation.ErrCategoryNotFound) {
					fmt.Fprintf(out, "%s: not offered\n", cat)
					continue
				}
				if err != nil {
					return err
				}
				chosen, err := sel.Select(slots, p, history)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %s\n", cat, reservation.FormatSlots(chosen))
			}
			return nil
		},
	}

	c.Flags().StringVar(&slotsPath, "slots", "", "JSON file of offered slots")
	c.Flags().StringVar(&person, "person", "", `roster entry, "First Last"`)
	c.Flags().StringVar(&category, "category", "", "only plan this category")
	_ = c.MarkFlagRequired("slots")
	_ = c.MarkFlagRequired("person")
	return c
}

func findPerson(people []reservation.Person, name string) (reservation.Person, bool) {
	name = strings.Join(strings.Fields(name), " ")
	for _, p := range people {
		if strings.EqualFold(p.FullName(), name) {
			return p, true
		}
	}
	return reservation.Person{}, false
}
