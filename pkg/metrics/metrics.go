// Package metrics holds the Prometheus collectors of caseledger. They are
// registered with the default registry and exposed by the indexer at /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "caseledger"

var (
	// Ledger writes by contract method and outcome
	LedgerWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_writes_total",
			Help:      "Total number of ledger write attempts",
		},
		[]string{"method", "outcome"},
	)

	LedgerWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_write_duration_seconds",
			Help:      "Time from submission request to confirmed receipt",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"method"},
	)

	LedgerReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_reads_total",
			Help:      "Total number of ledger eth_call reads",
		},
		[]string{"method", "outcome"},
	)

	// Facade reads by the source that answered
	FacadeReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facade_reads_total",
			Help:      "Reads served by the data access facade, by answering source",
		},
		[]string{"entity", "source", "outcome"},
	)

	// Content store uploads by stage
	ContentUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_uploads_total",
			Help:      "Content store puts by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	ContentUploadBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_upload_bytes_total",
			Help:      "Bytes written to the content store",
		},
	)

	// Indexer sync runs and mirrored rows
	IndexerSyncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexer_sync_runs_total",
			Help:      "Indexer full sync passes by outcome",
		},
		[]string{"outcome"},
	)

	IndexerSyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "indexer_sync_duration_seconds",
			Help:      "Duration of an indexer sync pass",
			Buckets:   prometheus.DefBuckets,
		},
	)

	IndexerRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexer_rows",
			Help:      "Rows currently mirrored by the indexer",
		},
		[]string{"table"},
	)

	// Indexer HTTP API
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of indexer HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Indexer HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

func init() {
	prometheus.MustRegister(
		LedgerWritesTotal,
		LedgerWriteDuration,
		LedgerReadsTotal,
		FacadeReadsTotal,
		ContentUploadsTotal,
		ContentUploadBytes,
		IndexerSyncRunsTotal,
		IndexerSyncDuration,
		IndexerRows,
		RequestsTotal,
		RequestDuration,
	)
}

// Outcome labels
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordLedgerWrite records one write attempt. outcome is a short label
// such as "confirmed", "rejected" or "reverted".
func RecordLedgerWrite(method, outcome string, duration time.Duration) {
	LedgerWritesTotal.WithLabelValues(method, outcome).Inc()
	LedgerWriteDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordLedgerRead records one eth_call.
func RecordLedgerRead(method string, err error) {
	LedgerReadsTotal.WithLabelValues(method, Outcome(err)).Inc()
}

// RecordFacadeRead records which source answered a facade read.
func RecordFacadeRead(entity, source string, err error) {
	FacadeReadsTotal.WithLabelValues(entity, source, Outcome(err)).Inc()
}

// RecordUpload records one content store put.
func RecordUpload(stage string, size int, err error) {
	ContentUploadsTotal.WithLabelValues(stage, Outcome(err)).Inc()
	if err == nil {
		ContentUploadBytes.Add(float64(size))
	}
}

// RecordSync records one indexer sync pass and the resulting row counts.
func RecordSync(duration time.Duration, cases, evidence int, err error) {
	IndexerSyncRunsTotal.WithLabelValues(Outcome(err)).Inc()
	IndexerSyncDuration.Observe(duration.Seconds())
	if err == nil {
		IndexerRows.WithLabelValues("cases").Set(float64(cases))
		IndexerRows.WithLabelValues("evidence").Set(float64(evidence))
	}
}

// RecordRequest records one indexer HTTP request.
func RecordRequest(route, method, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(route, method, status).Inc()
	RequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}
