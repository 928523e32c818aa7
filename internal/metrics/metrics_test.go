package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(slotsBooked.WithLabelValues("Senior Swim"))
	AddBooked("Senior Swim", 2)
	assert.Equal(t, before+2, testutil.ToFloat64(slotsBooked.WithLabelValues("Senior Swim")))

	beforeFail := testutil.ToFloat64(persistenceFailures)
	IncPersistenceFailure()
	assert.Equal(t, beforeFail+1, testutil.ToFloat64(persistenceFailures))

	beforeOutcome := testutil.ToFloat64(runOutcomes.WithLabelValues("committed"))
	IncOutcome("committed")
	assert.Equal(t, beforeOutcome+1, testutil.ToFloat64(runOutcomes.WithLabelValues("committed")))

	beforeHold := testutil.ToFloat64(holdsPlaced)
	IncHold()
	assert.Equal(t, beforeHold+1, testutil.ToFloat64(holdsPlaced))
}
