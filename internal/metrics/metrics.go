// Package metrics exports matchmaking counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sergioBarril/smashbotjs-sub001/internal/matchmaking"
)

const namespace = "smashbot"

// Prometheus implements matchmaking.Metrics.
type Prometheus struct {
	matchesFound     *prometheus.CounterVec
	matchesStarted   prometheus.Counter
	matchesCancelled *prometheus.CounterVec
	rejectsPurged    prometheus.Counter
	searching        prometheus.Gauge
	tickDuration     prometheus.Histogram
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		matchesFound: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_found_total",
			Help:      "Lobbies merged into a confirmation, by mode.",
		}, []string{"mode"}),
		matchesStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_started_total",
			Help:      "Confirmations where every player accepted.",
		}),
		matchesCancelled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_cancelled_total",
			Help:      "Confirmations unwound, by reason.",
		}, []string{"reason"}),
		rejectsPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejects_purged_total",
			Help:      "Expired player rejects removed by the sweep.",
		}),
		searching: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "searching_lobbies",
			Help:      "SEARCHING lobbies seen by the last search tick.",
		}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_tick_duration_seconds",
			Help:      "Duration of the search tick.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (p *Prometheus) MatchFound(mode string) { p.matchesFound.WithLabelValues(mode).Inc() }

func (p *Prometheus) MatchStarted() { p.matchesStarted.Inc() }

func (p *Prometheus) MatchCancelled(reason string) { p.matchesCancelled.WithLabelValues(reason).Inc() }

func (p *Prometheus) RejectsPurged(n int) { p.rejectsPurged.Add(float64(n)) }

func (p *Prometheus) SearchTick(searching, _ int, took time.Duration) {
	p.searching.Set(float64(searching))
	p.tickDuration.Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

var _ matchmaking.Metrics = (*Prometheus)(nil)
