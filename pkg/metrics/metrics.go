package metrics

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "dashboard"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	API     = "api"
	Views   = "views"
	Export  = "export"
	Clients = "ws"
)

// Labels holds constant labels applied to all metrics.
// These are useful for distinguishing metrics from multiple dashboard instances.
type Labels struct {
	Contract    string // Token contract address the dashboard watches
	Environment string // Deployment environment (e.g., "production", "staging", "development")
	Region      string // Cloud region (e.g., "us-east-1", "eu-west-1")
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.Contract != "" {
		labels["contract"] = strings.ToLower(l.Contract)
	}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Region != "" {
		labels["region"] = l.Region
	}
	return labels
}

type Metrics struct {
	errors *prometheus.CounterVec

	// Upstream events API
	apiCalls    *prometheus.CounterVec
	apiDuration prometheus.Histogram
	apiInFlight prometheus.Gauge

	// Per-view refresh lifecycle
	refreshes       *prometheus.CounterVec   // by view, status
	refreshDuration *prometheus.HistogramVec // by view
	eventsFetched   *prometheus.CounterVec   // by view
	staleResults    *prometheus.CounterVec   // by view
	viewState       *prometheus.GaugeVec     // by view
	resultSize      *prometheus.GaugeVec     // by view

	// Snapshot export
	snapshotsPublished      *prometheus.CounterVec // by status
	snapshotPublishDuration prometheus.Histogram

	// Websocket subscribers
	wsClients prometheus.Gauge
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
// Returns an error if any metric registration fails.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"type"}),
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: API,
			Name:      "calls_total",
			Help:      "Total events API calls by status",
		}, []string{"status"}),
		apiDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: API,
			Name:      "duration_seconds",
			Help:      "Events API call duration in seconds",
			// Large pages (5000 events) routinely take several seconds.
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		apiInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: API,
			Name:      "in_flight",
			Help:      "Number of events API calls currently in progress",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Views,
			Name:      "refreshes_total",
			Help:      "Total view refreshes by view and status",
		}, []string{"view", "status"}),
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Views,
			Name:      "refresh_duration_seconds",
			Help:      "Time to fetch, decode and aggregate one view",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"view"}),
		eventsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Views,
			Name:      "events_fetched_total",
			Help:      "Total transfer events fetched by view",
		}, []string{"view"}),
		staleResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Views,
			Name:      "stale_results_total",
			Help:      "Refresh results discarded because a newer refresh was issued",
		}, []string{"view"}),
		viewState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Views,
			Name:      "state",
			Help:      "Current view state (0=idle, 1=loading, 2=ready, 3=failed)",
		}, []string{"view"}),
		resultSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Views,
			Name:      "result_size",
			Help:      "Number of rows or points in the current view result",
		}, []string{"view"}),
		snapshotsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Export,
			Name:      "snapshots_published_total",
			Help:      "Total view snapshots published to the queue by status",
		}, []string{"status"}),
		snapshotPublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Export,
			Name:      "publish_duration_seconds",
			Help:      "Time taken to publish one view snapshot",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Clients,
			Name:      "clients",
			Help:      "Number of connected websocket clients",
		}),
	}

	err := errors.Join(
		reg.Register(m.errors),
		reg.Register(m.apiCalls),
		reg.Register(m.apiDuration),
		reg.Register(m.apiInFlight),
		reg.Register(m.refreshes),
		reg.Register(m.refreshDuration),
		reg.Register(m.eventsFetched),
		reg.Register(m.staleResults),
		reg.Register(m.viewState),
		reg.Register(m.resultSize),
		reg.Register(m.snapshotsPublished),
		reg.Register(m.snapshotPublishDuration),
		reg.Register(m.wsClients),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Error type constants.
const (
	ErrTypeNetwork        = "network"
	ErrTypeEmptyResponse  = "empty_response"
	ErrTypeMalformedEvent = "malformed_event"
	ErrTypeAggregation    = "aggregation"
	ErrTypeBroadcast      = "broadcast"
	ErrTypeExportDropped  = "export_dropped"
)

// IncError increments the error counter for the given error type.
func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errType).Inc()
}

// IncAPIInFlight increments the in-flight events API gauge.
func (m *Metrics) IncAPIInFlight() {
	if m == nil {
		return
	}
	m.apiInFlight.Inc()
}

// DecAPIInFlight decrements the in-flight events API gauge.
func (m *Metrics) DecAPIInFlight() {
	if m == nil {
		return
	}
	m.apiInFlight.Dec()
}

// RecordAPICall records an events API call outcome.
func (m *Metrics) RecordAPICall(err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.apiCalls.WithLabelValues(status).Inc()
	m.apiDuration.Observe(durationSeconds)
}

// RecordRefresh records the outcome of one view refresh along with its duration
// and the number of events it fetched.
func (m *Metrics) RecordRefresh(view string, err error, durationSeconds float64, events int) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.refreshes.WithLabelValues(view, status).Inc()
	m.refreshDuration.WithLabelValues(view).Observe(durationSeconds)
	if events > 0 {
		m.eventsFetched.WithLabelValues(view).Add(float64(events))
	}
}

// IncStaleResult records a refresh result discarded in favour of a newer request.
func (m *Metrics) IncStaleResult(view string) {
	if m == nil {
		return
	}
	m.staleResults.WithLabelValues(view).Inc()
}

// SetViewState sets the state gauge of a view.
func (m *Metrics) SetViewState(view string, state int) {
	if m == nil {
		return
	}
	m.viewState.WithLabelValues(view).Set(float64(state))
}

// SetResultSize sets the number of rows/points held by a view.
func (m *Metrics) SetResultSize(view string, size int) {
	if m == nil {
		return
	}
	m.resultSize.WithLabelValues(view).Set(float64(size))
}

// RecordSnapshotPublish records a snapshot publish attempt with duration.
// Pass nil error for successful publishes, non-nil for failures.
func (m *Metrics) RecordSnapshotPublish(err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.snapshotsPublished.WithLabelValues(status).Inc()
	m.snapshotPublishDuration.Observe(durationSeconds)
}

// SetWSClients sets the number of connected websocket clients.
func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}
