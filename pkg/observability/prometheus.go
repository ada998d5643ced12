// Package observability provides Prometheus metrics for eMMC mount checks.
//
// The tool is one-shot, so metrics are not served over HTTP; they are written
// to a node_exporter textfile after each check.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// namespace is the Prometheus metric namespace prefix for all check metrics.
	namespace = "emmc_check"
)

// Metrics holds all Prometheus metrics for a check run.
type Metrics struct {
	registry *prometheus.Registry

	// Bridge metrics
	spawnsTotal *prometheus.CounterVec

	// Check metrics
	checksTotal        *prometheus.CounterVec
	checkDuration      prometheus.Histogram
	loginSuccess       prometheus.Gauge
	nfsMounted         prometheus.Gauge
	lastCheckTimestamp prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
// Uses a custom registry so the textfile holds only check metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		spawnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridge_spawns_total",
				Help:      "Total number of remote shell spawn attempts by transport and status",
			},
			[]string{"transport", "status"},
		),

		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checks_total",
				Help:      "Total number of mount checks by login status and result",
			},
			[]string{"login", "result"},
		),

		checkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Duration of a mount check in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 7.5, 10, 15, 30},
		}),

		loginSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "login_success",
			Help:      "Whether the last check logged in to the device (1) or not (0)",
		}),

		nfsMounted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nfs_mounted",
			Help:      "Whether the last check found the mount backed by a network filesystem (1) or not (0)",
		}),

		lastCheckTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_check_timestamp_seconds",
			Help:      "Unix time the last check started",
		}),
	}

	// Register all metrics with the custom registry
	reg.MustRegister(
		m.spawnsTotal,
		m.checksTotal,
		m.checkDuration,
		m.loginSuccess,
		m.nfsMounted,
		m.lastCheckTimestamp,
	)

	return m
}

// Registry returns the gatherer holding all check metrics.
func (m *Metrics) Registry() prometheus.Gatherer {
	return m.registry
}

// RecordSpawn records a remote shell spawn attempt.
// transport should be one of: adb, ssh.
func (m *Metrics) RecordSpawn(transport string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.spawnsTotal.WithLabelValues(transport, status).Inc()
}

// RecordCheck records the outcome of one check.
// result should be one of: yes, no, unknown, error.
func (m *Metrics) RecordCheck(loggedIn bool, result string, started time.Time, duration time.Duration) {
	login := "failed"
	if loggedIn {
		login = "success"
	}
	m.checksTotal.WithLabelValues(login, result).Inc()
	m.checkDuration.Observe(duration.Seconds())
	m.loginSuccess.Set(boolToFloat(loggedIn))
	m.nfsMounted.Set(boolToFloat(result == "yes"))
	m.lastCheckTimestamp.Set(float64(started.Unix()))
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is replaced atomically, as node_exporter's textfile collector expects.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
