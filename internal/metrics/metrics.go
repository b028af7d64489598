// Package metrics exposes Prometheus instruments for provider calls,
// analyses, watchlist refreshes and watchlist mutations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the collectors on its own registry, so several recorders
// can coexist in one process (tests, multiple apps).
type Recorder struct {
	reg *prometheus.Registry

	fetchTotal     *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	analysesTotal  *prometheus.CounterVec
	analysisTime   prometheus.Histogram
	refreshTotal   prometheus.Counter
	refreshOmitted prometheus.Counter
	refreshTime    prometheus.Histogram
	watchlistOps   *prometheus.CounterVec
}

// New creates a Recorder with Go and process collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Recorder{
		reg: reg,
		fetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "alphapulse",
				Subsystem: "provider",
				Name:      "calls_total",
				Help:      "Provider calls by capability and outcome",
			},
			[]string{"provider", "capability", "outcome"},
		),
		fetchLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "alphapulse",
				Subsystem: "provider",
				Name:      "call_duration_seconds",
				Help:      "Provider call latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "capability"},
		),
		analysesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "alphapulse",
				Subsystem: "analysis",
				Name:      "total",
				Help:      "Analyses by final status",
			},
			[]string{"status"},
		),
		analysisTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "alphapulse",
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "End-to-end analysis latency",
			Buckets:   prometheus.DefBuckets,
		}),
		refreshTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "alphapulse",
			Subsystem: "watchlist",
			Name:      "refresh_symbols_total",
			Help:      "Symbols considered by watchlist refreshes",
		}),
		refreshOmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "alphapulse",
			Subsystem: "watchlist",
			Name:      "refresh_omitted_total",
			Help:      "Symbols omitted from a refresh because their quote failed",
		}),
		refreshTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "alphapulse",
			Subsystem: "watchlist",
			Name:      "refresh_duration_seconds",
			Help:      "Watchlist refresh latency",
			Buckets:   prometheus.DefBuckets,
		}),
		watchlistOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "alphapulse",
				Subsystem: "watchlist",
				Name:      "mutations_total",
				Help:      "Watchlist mutations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
	}
}

// ObserveFetch implements collector.FetchObserver.
func (r *Recorder) ObserveFetch(provider, capability, outcome string, elapsed time.Duration) {
	r.fetchTotal.WithLabelValues(provider, capability, outcome).Inc()
	r.fetchLatency.WithLabelValues(provider, capability).Observe(elapsed.Seconds())
}

// RecordAnalysis implements analysis.Observer.
func (r *Recorder) RecordAnalysis(status string, elapsed time.Duration) {
	r.analysesTotal.WithLabelValues(status).Inc()
	r.analysisTime.Observe(elapsed.Seconds())
}

// RecordRefresh implements analysis.Observer.
func (r *Recorder) RecordRefresh(total, omitted int, elapsed time.Duration) {
	r.refreshTotal.Add(float64(total))
	r.refreshOmitted.Add(float64(omitted))
	r.refreshTime.Observe(elapsed.Seconds())
}

// RecordWatchlistMutation counts one add/remove/toggle.
func (r *Recorder) RecordWatchlistMutation(op, outcome string) {
	r.watchlistOps.WithLabelValues(op, outcome).Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
