package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	EntryOutcomeStored    = "stored"
	EntryOutcomeDuplicate = "duplicate"
	EntryOutcomeMalformed = "malformed"
	EntryOutcomeFailed    = "failed"
	EntryOutcomePoison    = "poison"

	RoomOutcomeClassified = "classified"
	RoomOutcomeEmpty      = "empty"
	RoomOutcomeFailed     = "failed"
)

// PipelineMetrics tracks the ingestion path from webhook to funnel record.
type PipelineMetrics struct {
	gatewayEvents    *prometheus.CounterVec
	rawStoreFailures *prometheus.CounterVec
	streamAppended   *prometheus.CounterVec
	streamAcked      *prometheus.CounterVec
	streamClaimed    *prometheus.CounterVec
	streamPending    *prometheus.GaugeVec
	workerEntries    *prometheus.CounterVec
	workerDuration   prometheus.Histogram
	rawFallbacks     *prometheus.CounterVec
	classifierRooms  *prometheus.CounterVec
	keywordSetSize   *prometheus.GaugeVec
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the singleton pipeline metrics registry.
func Pipeline() *PipelineMetrics {
	return PipelineWithConfig(Config{})
}

// PipelineWithConfig returns the singleton pipeline metrics registry using config labels.
func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest swaps the singleton for one registered on registerer.
func ResetPipelineMetricsForTest(registerer prometheus.Registerer) *PipelineMetrics {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(registerer, Config{ServiceName: "sparks", Environment: "test"})
	})
	return pipelineMetrics
}

func newPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	m := &PipelineMetrics{
		gatewayEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "sparks_gateway_events_total",
			Help:        "Webhook events queued by channel.",
			ConstLabels: constLabels,
		}, []string{"channel"}),
		rawStoreFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "sparks_raw_store_failures_total",
			Help:        "Raw payload store operations that failed.",
			ConstLabels: constLabels,
		}, []string{"operation"}),
		streamAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "sparks_stream_entries_appended_total",
			Help:        "Entries appended to the event stream.",
			ConstLabels: constLabels,
		}, []string{"stream"}),
		streamAcked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "sparks_stream_entries_acked_total",
			Help:        "Entries acknowledged by a consumer group.",
			ConstLabels: constLabels,
		}, []string{"stream", "group"}),
		streamClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "sparks_stream_entries_claimed_total",
			Help:        "Idle pending entries reassigned to this consumer.",
			ConstLabels: constLabels,
		}, []string{"stream", "group"}),
		streamPending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "sparks_stream_pending_entries",
			Help:        "Entries delivered but not yet acknowledged.",
			ConstLabels: constLabels,
		}, []string{"stream", "group"}),
		workerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "sparks_worker_entries_total",
			Help:        "Stream entries processed by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		workerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "sparks_worker_entry_duration_seconds",
			Help:        "Time to normalize one stream entry.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
			ConstLabels: constLabels,
		}),
		rawFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "sparks_worker_raw_fallbacks_total",
			Help:        "Entries processed with a synthetic payload.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		classifierRooms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "sparks_classifier_rooms_total",
			Help:        "Rooms visited by the funnel classifier by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		keywordSetSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "sparks_keyword_set_size",
			Help:        "Keywords per category seen by the last classifier pass.",
			ConstLabels: constLabels,
		}, []string{"category"}),
	}

	registerer.MustRegister(
		m.gatewayEvents,
		m.rawStoreFailures,
		m.streamAppended,
		m.streamAcked,
		m.streamClaimed,
		m.streamPending,
		m.workerEntries,
		m.workerDuration,
		m.rawFallbacks,
		m.classifierRooms,
		m.keywordSetSize,
	)
	return m
}

func (m *PipelineMetrics) IncGatewayEvent(channel string) {
	if m == nil {
		return
	}
	m.gatewayEvents.WithLabelValues(channel).Inc()
}

func (m *PipelineMetrics) IncRawStoreFailure(operation string) {
	if m == nil {
		return
	}
	m.rawStoreFailures.WithLabelValues(operation).Inc()
}

func (m *PipelineMetrics) IncStreamAppended(stream string) {
	if m == nil {
		return
	}
	m.streamAppended.WithLabelValues(stream).Inc()
}

func (m *PipelineMetrics) IncStreamAcked(stream, group string) {
	if m == nil {
		return
	}
	m.streamAcked.WithLabelValues(stream, group).Inc()
}

func (m *PipelineMetrics) AddStreamClaimed(stream, group string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.streamClaimed.WithLabelValues(stream, group).Add(float64(count))
}

func (m *PipelineMetrics) SetStreamPending(stream, group string, pending int64) {
	if m == nil {
		return
	}
	m.streamPending.WithLabelValues(stream, group).Set(float64(pending))
}

// ObserveWorkerEntry records the outcome and latency of one processed entry.
func (m *PipelineMetrics) ObserveWorkerEntry(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.workerEntries.WithLabelValues(outcome).Inc()
	m.workerDuration.Observe(duration.Seconds())
}

func (m *PipelineMetrics) IncRawFallback(reason string) {
	if m == nil {
		return
	}
	m.rawFallbacks.WithLabelValues(reason).Inc()
}

func (m *PipelineMetrics) IncClassifierRoom(outcome string) {
	if m == nil {
		return
	}
	m.classifierRooms.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) SetKeywordSetSize(category string, size int) {
	if m == nil {
		return
	}
	m.keywordSetSize.WithLabelValues(category).Set(float64(size))
}
