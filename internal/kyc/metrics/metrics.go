// Package metrics exposes Prometheus counters for the verification pipeline.
// All methods are nil-safe so services can run without metrics in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	submissions     *prometheus.CounterVec
	processed       *prometheus.CounterVec
	duplicateClaims prometheus.Counter
	extractionFails prometheus.Counter
	duration        prometheus.Histogram
	queueDepth      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_submissions_total",
			Help: "Verification submissions accepted, by document type.",
		}, []string{"document_type"}),
		processed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_processed_total",
			Help: "Requests processed to a terminal status.",
		}, []string{"status"}),
		duplicateClaims: factory.NewCounter(prometheus.CounterOpts{
			Name: "kyc_duplicate_claims_total",
			Help: "Queue deliveries dropped because the request was already claimed.",
		}),
		extractionFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "kyc_extraction_failures_total",
			Help: "Processing attempts that failed during text extraction.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kyc_processing_duration_seconds",
			Help:    "Wall time from claim to terminal status.",
			Buckets: prometheus.DefBuckets,
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kyc_queue_depth",
			Help: "Identifiers waiting in the verification queue.",
		}),
	}
}

func (m *Metrics) SubmissionAccepted(documentType string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(documentType).Inc()
}

func (m *Metrics) Processed(status string) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(status).Inc()
}

func (m *Metrics) DuplicateClaim() {
	if m == nil {
		return
	}
	m.duplicateClaims.Inc()
}

func (m *Metrics) ExtractionFailed() {
	if m == nil {
		return
	}
	m.extractionFails.Inc()
}

func (m *Metrics) ObserveProcessing(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}
