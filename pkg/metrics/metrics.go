package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Pipeline metrics
	PipelineRunsTotal      *prometheus.CounterVec
	PipelineRunDuration    *prometheus.HistogramVec
	PipelineRunsInProgress prometheus.Gauge
	StageRecordsProcessed  *prometheus.CounterVec
	StageRecordsFailed     *prometheus.CounterVec

	// External API metrics
	ExternalAPICalls    *prometheus.CounterVec
	ExternalAPIDuration *prometheus.HistogramVec
	ExternalAPIFailures *prometheus.CounterVec

	// Reporting metrics
	TablesPublished *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		PipelineRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_pipeline_runs_total",
				Help: "Total number of reporting pipeline runs",
			},
			[]string{"status", "stage"},
		),

		PipelineRunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "report_pipeline_run_duration_seconds",
				Help:    "Reporting pipeline run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"stage"},
		),

		PipelineRunsInProgress: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "report_pipeline_runs_in_progress",
				Help: "Number of reporting pipeline runs currently in progress",
			},
		),

		StageRecordsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_stage_records_processed_total",
				Help: "Total number of records processed per pipeline stage",
			},
			[]string{"stage", "status"},
		),

		StageRecordsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_stage_records_failed_total",
				Help: "Total number of records that failed processing per stage",
			},
			[]string{"stage", "error_type"},
		),

		ExternalAPICalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_calls_total",
				Help: "Total number of external API calls",
			},
			[]string{"api", "status"},
		),

		ExternalAPIDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "external_api_duration_seconds",
				Help:    "External API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api"},
		),

		ExternalAPIFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_failures_total",
				Help: "Total number of external API failures",
			},
			[]string{"api", "error_type"},
		),

		TablesPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_tables_published_total",
				Help: "Total number of report tables published to the sink",
			},
			[]string{"table"},
		),
	}
}

// HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Pipeline run metrics
func (m *Metrics) RecordPipelineRun(status, stage string, duration time.Duration) {
	m.PipelineRunsTotal.WithLabelValues(status, stage).Inc()
	m.PipelineRunDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// Stage record metrics
func (m *Metrics) RecordStageRecords(stage, status string, count int) {
	m.StageRecordsProcessed.WithLabelValues(stage, status).Add(float64(count))
}

// Stage record failure metrics
func (m *Metrics) RecordStageFailure(stage, errorType string) {
	m.StageRecordsFailed.WithLabelValues(stage, errorType).Inc()
}

// External API call metrics
func (m *Metrics) RecordExternalAPICall(api, status string, duration time.Duration) {
	m.ExternalAPICalls.WithLabelValues(api, status).Inc()
	m.ExternalAPIDuration.WithLabelValues(api).Observe(duration.Seconds())
}

// External API failure metrics
func (m *Metrics) RecordExternalAPIFailure(api, errorType string) {
	m.ExternalAPIFailures.WithLabelValues(api, errorType).Inc()
}

// Published table counter
func (m *Metrics) RecordTablePublished(table string) {
	m.TablesPublished.WithLabelValues(table).Inc()
}

// Pipeline runs in progress counter
func (m *Metrics) IncPipelineRunsInProgress() {
	m.PipelineRunsInProgress.Inc()
}

// Pipeline runs in progress counter
func (m *Metrics) DecPipelineRunsInProgress() {
	m.PipelineRunsInProgress.Dec()
}

// HTTP requests in flight counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// HTTP requests in flight counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
