package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Accepted()
	m.Accepted()
	m.Rejected("missing_source")
	m.GroupsFormed(4)
	m.Classified("top_stories", false)
	m.Classified("skip", true)
	m.Overflow("top_stories", "politics")
	m.Command("applied")
	m.Command("applied")
	m.ObserveClassify(120 * time.Millisecond)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"accepted", m.IngestAccepted, 2},
		{"rejected", m.IngestRejected.WithLabelValues("missing_source"), 1},
		{"groups", m.Groups, 4},
		{"top", m.Classifications.WithLabelValues("top_stories"), 1},
		{"degraded", m.Degraded, 1},
		{"overflow", m.BalanceOverflow.WithLabelValues("top_stories", "politics"), 1},
		{"applied", m.SessionCommands.WithLabelValues("applied"), 2},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics
	m.Accepted()
	m.Rejected("x")
	m.GroupsFormed(1)
	m.Classified("x", true)
	m.ObserveClassify(time.Second)
	m.Overflow("a", "b")
	m.Command("x")
}

func TestRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	New(reg)
}
