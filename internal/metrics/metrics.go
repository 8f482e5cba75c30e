// Package metrics provides Prometheus instrumentation for the event store
// and its batch writer. All methods are safe to call on a nil *Metrics, so
// instrumentation stays optional for embedders that do not scrape.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the event store.
type Metrics struct {
	appendsTotal      prometheus.Counter
	appendErrorsTotal *prometheus.CounterVec
	queriesTotal      *prometheus.CounterVec
	queryDuration     prometheus.Summary
	flushDuration     prometheus.Summary
	flushBatchRows    prometheus.Summary
	queueDepth        prometheus.Gauge
	droppedTotal      prometheus.Counter
	fallbackTotal     prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		appendsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "growlog",
			Name:      "appends_total",
			Help:      "Events appended to the store",
		}),
		appendErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "growlog",
			Name:      "append_errors_total",
			Help:      "Failed appends by error code",
		}, []string{"code"}),
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "growlog",
			Name:      "queries_total",
			Help:      "Store queries by operation",
		}, []string{"op"}),
		queryDuration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: "growlog",
			Name:      "query_duration_seconds",
			Help:      "Time spent executing store queries",
		}),
		flushDuration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: "growlog",
			Name:      "writer_flush_duration_seconds",
			Help:      "Time spent flushing writer batches",
		}),
		flushBatchRows: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: "growlog",
			Name:      "writer_flush_batch_rows",
			Help:      "Rows per flushed writer batch",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "growlog",
			Name:      "writer_queue_depth",
			Help:      "Events currently queued in the batch writer",
		}),
		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "growlog",
			Name:      "writer_dropped_events_total",
			Help:      "Events dropped because the writer queue was full",
		}),
		fallbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "growlog",
			Name:      "writer_fallback_dumps_total",
			Help:      "Batches diverted to the fallback dump after a flush failure",
		}),
	}

	reg.MustRegister(
		m.appendsTotal,
		m.appendErrorsTotal,
		m.queriesTotal,
		m.queryDuration,
		m.flushDuration,
		m.flushBatchRows,
		m.queueDepth,
		m.droppedTotal,
		m.fallbackTotal,
	)
	return m
}

// IncAppends records n successful appends.
func (m *Metrics) IncAppends(n int) {
	if m == nil {
		return
	}
	m.appendsTotal.Add(float64(n))
}

// IncAppendError records a failed append by error code.
func (m *Metrics) IncAppendError(code string) {
	if m == nil {
		return
	}
	m.appendErrorsTotal.WithLabelValues(code).Inc()
}

// ObserveQuery records one executed query and its duration.
func (m *Metrics) ObserveQuery(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(op).Inc()
	m.queryDuration.Observe(d.Seconds())
}

// ObserveFlush records one writer flush: its duration and batch size.
func (m *Metrics) ObserveFlush(rows int, d time.Duration) {
	if m == nil {
		return
	}
	m.flushDuration.Observe(d.Seconds())
	m.flushBatchRows.Observe(float64(rows))
}

// SetQueueDepth records the current writer queue depth.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// IncDropped records one event dropped on queue overflow.
func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.droppedTotal.Inc()
}

// IncFallbackDump records one batch diverted to the fallback dump.
func (m *Metrics) IncFallbackDump() {
	if m == nil {
		return
	}
	m.fallbackTotal.Inc()
}
