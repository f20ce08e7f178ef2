// Package metrics defines the Prometheus metrics of the catalog service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	UploadsTotal       *prometheus.CounterVec   // imagevault_uploads_total{result}
	UploadBytes        prometheus.Counter       // imagevault_upload_bytes_total
	CompensationsTotal *prometheus.CounterVec   // imagevault_compensations_total{result}
	DeletesTotal       *prometheus.CounterVec   // imagevault_deletes_total{result}
	ListsTotal         *prometheus.CounterVec   // imagevault_list_requests_total{strategy}
	IndexFallbacks     prometheus.Counter       // imagevault_index_fallbacks_total
	PresignFailures    prometheus.Counter       // imagevault_presign_failures_total
	RequestDuration    *prometheus.HistogramVec // imagevault_http_request_duration_seconds{method,route,status}
}

// New registers the metrics on registry, or on the default registerer
// when registry is nil.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	f := promauto.With(registry)
	return &Metrics{
		UploadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imagevault_uploads_total",
			Help: "Files processed by the upload pipeline by result",
		}, []string{"result"}),

		UploadBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "imagevault_upload_bytes_total",
			Help: "Bytes of successfully uploaded files",
		}),

		CompensationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imagevault_compensations_total",
			Help: "Compensating object deletes after a failed metadata write, by result",
		}, []string{"result"}),

		DeletesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imagevault_deletes_total",
			Help: "Image deletes by result",
		}, []string{"result"}),

		ListsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imagevault_list_requests_total",
			Help: "List calls by the strategy that served them",
		}, []string{"strategy"}),

		IndexFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "imagevault_index_fallbacks_total",
			Help: "Indexed queries that failed and fell back to a scan",
		}),

		PresignFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "imagevault_presign_failures_total",
			Help: "Presigned URL generations that failed",
		}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imagevault_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) Upload(result string, bytes int64) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(result).Inc()
	if result == ResultSuccess {
		m.UploadBytes.Add(float64(bytes))
	}
}

func (m *Metrics) Compensation(result string) {
	if m == nil {
		return
	}
	m.CompensationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Delete(result string) {
	if m == nil {
		return
	}
	m.DeletesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) List(strategy string) {
	if m == nil {
		return
	}
	m.ListsTotal.WithLabelValues(strategy).Inc()
}

func (m *Metrics) IndexFallback() {
	if m == nil {
		return
	}
	m.IndexFallbacks.Inc()
}

func (m *Metrics) PresignFailure() {
	if m == nil {
		return
	}
	m.PresignFailures.Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, status).Observe(seconds)
}
