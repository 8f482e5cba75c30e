package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNilMetrics_NoPanic(t *testing.T) {
	var m *Metrics
	m.IncAppends(1)
	m.IncAppendError("WRITE_FAILED")
	m.ObserveQuery("time_range", time.Millisecond)
	m.ObserveFlush(10, time.Millisecond)
	m.SetQueueDepth(3)
	m.IncDropped()
	m.IncFallbackDump()
}

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncAppends(2)
	m.IncAppendError("LOCK_TIMEOUT")
	m.ObserveQuery("time_range", 5*time.Millisecond)
	m.ObserveFlush(50, 2*time.Millisecond)
	m.SetQueueDepth(7)
	m.IncDropped()
	m.IncFallbackDump()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metric families registered")
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"growlog_appends_total",
		"growlog_append_errors_total",
		"growlog_queries_total",
		"growlog_query_duration_seconds",
		"growlog_writer_queue_depth",
		"growlog_writer_dropped_events_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestNew_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	New(reg)
}
