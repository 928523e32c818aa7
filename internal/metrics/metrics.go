package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	runOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotsched",
			Name:      "category_runs_total",
			Help:      "Count of per-person category attempts by outcome.",
		},
		[]string{"outcome"},
	)

	slotsBooked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotsched",
			Name:      "slots_booked_total",
			Help:      "Count of (date, time) picks committed on the booking site.",
		},
		[]string{"category"},
	)

	persistenceFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotsched",
			Name:      "persistence_failures_total",
			Help:      "Bookings committed on the site that could not be written to the ledger.",
		},
	)

	holdsPlaced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotsched",
			Name:      "holds_placed_total",
			Help:      "People taken out of the schedule until an operator releases them.",
		},
	)

	ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotsched",
			Name:      "ticks_total",
			Help:      "Scheduler ticks by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(runOutcomes, slotsBooked, persistenceFailures, holdsPlaced, ticks)
	})
}

func IncOutcome(outcome string) {
	runOutcomes.WithLabelValues(outcome).Inc()
}

func AddBooked(category string, n int) {
	slotsBooked.WithLabelValues(category).Add(float64(n))
}

func IncPersistenceFailure() {
	persistenceFailures.Inc()
}

func IncHold() {
	holdsPlaced.Inc()
}

func IncTick(result string) {
	ticks.WithLabelValues(result).Inc()
}
