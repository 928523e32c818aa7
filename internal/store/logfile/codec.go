package logfile

import (
	"fmt"
	"strings"

	"github.com/example/slot-scheduler/internal/domain/reservation"
)

const fieldCount = 5

// FormatRecord renders r as "date,time,category,first_name,last_name".
// The format has no escaping, so records that fail Validate are rejected.
func FormatRecord(r reservation.ReservationRecord) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	return strings.Join([]string{r.Date, r.Time, r.Category, r.FirstName, r.LastName}, ","), nil
}

// ParseRecord splits one log line into a record. lineNo is only used in errors.
func ParseRecord(line string, lineNo int) (reservation.ReservationRecord, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != fieldCount {
		return reservation.ReservationRecord{}, fmt.Errorf("%w: line %d has %d fields, want %d",
			reservation.ErrMalformedRecord, lineNo, len(parts), fieldCount)
	}
	return reservation.ReservationRecord{
		Date:      parts[0],
		Time:      parts[1],
		Category:  parts[2],
		FirstName: parts[3],
		LastName:  parts[4],
	}, nil
}
