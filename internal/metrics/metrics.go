// Package metrics exposes Prometheus counters for fetch cycles and
// deliveries.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"owacal/internal/deliver"
	"owacal/internal/pipeline"
)

const namespace = "owacal"

// Delivery outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeMissingTrust = "missing_trust"
	OutcomeHTTPStatus   = "http_status"
	OutcomeTransport    = "transport"
)

// Metrics owns a private registry so several instances (tests, multiple
// servers) never collide on the global one.
type Metrics struct {
	reg *prometheus.Registry

	fragments   prometheus.Counter
	candidates  prometheus.Counter
	events      prometheus.Counter
	rejects     *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	duration    prometheus.Histogram
	lastSuccess prometheus.Gauge
}

// New registers all collectors, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		fragments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_total",
			Help:      "Raw fragments returned by the scraper.",
		}),
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Unique candidates fed to the parser.",
		}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_parsed_total",
			Help:      "Events accepted by the parser.",
		}),
		rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_rejected_total",
			Help:      "Candidates rejected by the parser, by reason.",
		}, []string{"reason"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Fetch cycles, by result.",
		}, []string{"result"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "mTLS deliveries, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a full fetch cycle.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful fetch cycle.",
		}),
	}

	m.reg.MustRegister(
		m.fragments, m.candidates, m.events, m.rejects,
		m.refreshes, m.deliveries, m.duration, m.lastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRun records a successful fetch cycle.
func (m *Metrics) ObserveRun(res pipeline.Result, took time.Duration) {
	m.fragments.Add(float64(res.Fragments))
	m.candidates.Add(float64(res.Snapshot.Candidates))
	m.events.Add(float64(len(res.Snapshot.Events)))
	for reason, n := range res.Reasons {
		m.rejects.WithLabelValues(string(reason)).Add(float64(n))
	}
	m.refreshes.WithLabelValues("ok").Inc()
	m.duration.Observe(took.Seconds())
	m.lastSuccess.Set(float64(res.Snapshot.FetchedAt.Unix()))
}

// ObserveFailure records a fetch cycle that produced no snapshot.
func (m *Metrics) ObserveFailure(took time.Duration) {
	m.refreshes.WithLabelValues("error").Inc()
	m.duration.Observe(took.Seconds())
}

// ObserveDelivery records the outcome of one deliver.Post.
func (m *Metrics) ObserveDelivery(err error) {
	m.deliveries.WithLabelValues(Outcome(err)).Inc()
}

// Outcome classifies a deliver.Post error.
func Outcome(err error) string {
	var se *deliver.StatusError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, deliver.ErrFileNotFound):
		return OutcomeMissingTrust
	case errors.As(err, &se):
		return OutcomeHTTPStatus
	default:
		return OutcomeTransport
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
