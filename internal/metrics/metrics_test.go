package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MatchFound("friendlies")
	m.MatchFound("friendlies")
	m.MatchFound("ranked")
	m.MatchStarted()
	m.MatchCancelled("declined")
	m.RejectsPurged(4)
	m.SearchTick(7, 2, 150*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.matchesFound.WithLabelValues("friendlies")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.matchesFound.WithLabelValues("ranked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.matchesStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.matchesCancelled.WithLabelValues("declined")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.rejectsPurged))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.searching))
	assert.Equal(t, 1, testutil.CollectAndCount(m.tickDuration))
}
