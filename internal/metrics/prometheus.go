package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "course_watcher"

// PrometheusRecorder records into a private Prometheus registry
type PrometheusRecorder struct {
	registry *prometheus.Registry

	runDuration    prometheus.Gauge
	runsTotal      *prometheus.CounterVec
	lastSuccess    prometheus.Gauge
	eventsObserved prometheus.Gauge
	newEvents      prometheus.Counter
	notifications  *prometheus.CounterVec
	history        *prometheus.GaugeVec
}

// NewPrometheus creates a recorder with all collectors registered
func NewPrometheus() *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs by outcome",
		}, []string{"status"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful run",
		}),
		eventsObserved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_observed",
			Help:      "Events extracted from the page in the last run",
		}),
		newEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_events_total",
			Help:      "Events seen for the first time",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by sink and outcome",
		}, []string{"sink", "status"}),
		history: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_events",
			Help:      "Tracked events by lifecycle state",
		}, []string{"state"}),
	}

	r.registry.MustRegister(
		r.runDuration,
		r.runsTotal,
		r.lastSuccess,
		r.eventsObserved,
		r.newEvents,
		r.notifications,
		r.history,
	)
	return r
}

// Registry exposes the underlying registry
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *PrometheusRecorder) ObserveRun(duration time.Duration, success bool) {
	r.runDuration.Set(duration.Seconds())
	r.runsTotal.WithLabelValues(status(success)).Inc()
	if success {
		r.lastSuccess.SetToCurrentTime()
	}
}

func (r *PrometheusRecorder) SetEventsObserved(n int) {
	r.eventsObserved.Set(float64(n))
}

func (r *PrometheusRecorder) AddNewEvents(n int) {
	r.newEvents.Add(float64(n))
}

func (r *PrometheusRecorder) IncNotification(sink string, success bool) {
	r.notifications.WithLabelValues(sink, status(success)).Inc()
}

func (r *PrometheusRecorder) SetHistoryCounts(tracked, active, expired int) {
	r.history.WithLabelValues("tracked").Set(float64(tracked))
	r.history.WithLabelValues("active").Set(float64(active))
	r.history.WithLabelValues("expired").Set(float64(expired))
}

// WriteTextfile writes the registry to path for the node-exporter textfile collector
func (r *PrometheusRecorder) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
