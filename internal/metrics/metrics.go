// Package metrics tracks per-stage pipeline counters in a Prometheus registry.
//
// The pipeline is a batch job, so metrics are not served over HTTP. After a
// command finishes the registry is written to a node_exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "comment_map"

// Metrics holds the collectors shared by every stage
type Metrics struct {
	Registry *prometheus.Registry

	records       *prometheus.CounterVec
	itemFailures  *prometheus.CounterVec
	lastRun       *prometheus.GaugeVec
	fetchDuration *prometheus.HistogramVec
}

var defaultMetrics = New()

// New creates a registry with the pipeline collectors registered
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records emitted per stage and agency.",
		}, []string{"stage", "agency"}),
		itemFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_failures_total",
			Help:      "Items skipped or flagged per stage and reason.",
		}, []string{"stage", "reason"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time a stage last completed.",
		}, []string{"stage"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "HTTP fetch latency per host.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"host"}),
	}
	m.Registry.MustRegister(m.records, m.itemFailures, m.lastRun, m.fetchDuration)
	return m
}

// Default returns the process-wide metrics
func Default() *Metrics {
	return defaultMetrics
}

// AddRecords counts n records produced by stage for agency
func (m *Metrics) AddRecords(stage, agency string, n int) {
	m.records.WithLabelValues(stage, agency).Add(float64(n))
}

// IncFailure counts a skipped or flagged item
func (m *Metrics) IncFailure(stage, reason string) {
	m.itemFailures.WithLabelValues(stage, reason).Inc()
}

// MarkRun records that stage completed at t
func (m *Metrics) MarkRun(stage string, t time.Time) {
	m.lastRun.WithLabelValues(stage).Set(float64(t.Unix()))
}

// ObserveFetch records a fetch duration for host
func (m *Metrics) ObserveFetch(host string, d time.Duration) {
	m.fetchDuration.WithLabelValues(host).Observe(d.Seconds())
}

// WriteTextfile writes the registry in text exposition format to path
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Package-level helpers using the default metrics

// AddRecords counts records on the default metrics
func AddRecords(stage, agency string, n int) {
	defaultMetrics.AddRecords(stage, agency, n)
}

// IncFailure counts a failure on the default metrics
func IncFailure(stage, reason string) {
	defaultMetrics.IncFailure(stage, reason)
}

// MarkRun marks a stage run on the default metrics
func MarkRun(stage string, t time.Time) {
	defaultMetrics.MarkRun(stage, t)
}

// ObserveFetch records a fetch on the default metrics
func ObserveFetch(host string, d time.Duration) {
	defaultMetrics.ObserveFetch(host, d)
}
