// Package metrics exposes prometheus counters for pipeline outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "roundup"

// Metrics is the set of pipeline and session collectors. A nil *Metrics
// records nothing, so components take one unconditionally.
type Metrics struct {
	IngestAccepted   prometheus.Counter
	IngestRejected   *prometheus.CounterVec
	Groups           prometheus.Counter
	Classifications  *prometheus.CounterVec
	Degraded         prometheus.Counter
	ClassifyDuration prometheus.Histogram
	BalanceOverflow  *prometheus.CounterVec
	SessionCommands  *prometheus.CounterVec
}

// New registers all collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IngestAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_accepted_total",
			Help:      "Raw items accepted as stories",
		}),
		IngestRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rejected_total",
			Help:      "Raw items rejected by the normalizer",
		}, []string{"reason"}),
		Groups: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_total",
			Help:      "Event groups produced by the grouper",
		}),
		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Final classifications by section",
		}, []string{"section"}),
		Degraded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_degraded_total",
			Help:      "Classifications that fell back to keyword routing",
		}),
		ClassifyDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classification_duration_seconds",
			Help:      "Duration of classification service calls",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		BalanceOverflow: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_overflow_total",
			Help:      "Groups moved out of a full section",
		}, []string{"from", "to"}),
		SessionCommands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_commands_total",
			Help:      "Editor commands by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Accepted() {
	if m != nil {
		m.IngestAccepted.Inc()
	}
}

func (m *Metrics) Rejected(reason string) {
	if m != nil {
		m.IngestRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) GroupsFormed(n int) {
	if m != nil {
		m.Groups.Add(float64(n))
	}
}

// Classified records one final classification.
func (m *Metrics) Classified(section string, degraded bool) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(section).Inc()
	if degraded {
		m.Degraded.Inc()
	}
}

func (m *Metrics) ObserveClassify(d time.Duration) {
	if m != nil {
		m.ClassifyDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) Overflow(from, to string) {
	if m != nil {
		m.BalanceOverflow.WithLabelValues(from, to).Inc()
	}
}

// Command records an editor command outcome (applied, clarify, no_match, ...).
func (m *Metrics) Command(outcome string) {
	if m != nil {
		m.SessionCommands.WithLabelValues(outcome).Inc()
	}
}
