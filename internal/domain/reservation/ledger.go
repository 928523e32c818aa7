package reservation

import "context"

// Ledger is the durable, append-only record of committed bookings.
type Ledger interface {
	Records(ctx context.Context) (History, error)
	Append(ctx context.Context, records []ReservationRecord) error
}
