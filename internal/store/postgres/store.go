package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/example/slot-scheduler/internal/db"
	"github.com/example/slot-scheduler/internal/domain/reservation"
)

// Store keeps the reservation ledger in the reservations table.
type Store struct{ db *db.DB }

func New(d *db.DB) *Store { return &Store{db: d} }

func (s *Store) Records(ctx context.Context) (reservation.History, error) {
	rows, err := s.db.Query(ctx, `
SELECT slot_date, slot_time, category, first_name, last_name
FROM reservations
ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var out reservation.History
	for rows.Next() {
		var r reservation.ReservationRecord
		if err := rows.Scan(&r.Date, &r.Time, &r.Category, &r.FirstName, &r.LastName); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Append inserts all records in one transaction.
func (s *Store) Append(ctx context.Context, records []reservation.ReservationRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return s.db.InTx(ctx, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, r := range records {
			b.Queue(`INSERT INTO reservations(slot_date, slot_time, category, first_name, last_name) VALUES ($1,$2,$3,$4,$5)`,
				r.Date, r.Time, r.Category, r.FirstName, r.LastName)
		}
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("insert reservations: %w", err)
		}
		return nil
	})
}
