package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "habits"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	Registry *prometheus.Registry

	ScanRuns      prometheus.Counter
	ScanErrors    prometheus.Counter
	ScanDuration  prometheus.Histogram
	Initialized   prometheus.Counter
	Notifications *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ScanRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scanner", Name: "runs_total",
			Help: "Scanner invocations.",
		}),
		ScanErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scanner", Name: "errors_total",
			Help: "Scanner invocations that failed to select habits.",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scanner", Name: "duration_seconds",
			Help:    "Scanner invocation latency.",
			Buckets: prometheus.DefBuckets,
		}),
		Initialized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scanner", Name: "schedules_initialized_total",
			Help: "Habits that received their first next_run_at.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scanner", Name: "notifications_total",
			Help: "Due habits by outcome (sent, failed, skipped).",
		}, []string{"result"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ScanRuns, m.ScanErrors, m.ScanDuration, m.Initialized, m.Notifications,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

type ScanOutcome struct {
	Initialized int
	Notified    int
	Failed      int
	Skipped     int
	Err         error
	Took        time.Duration
}

func (m *Metrics) ObserveScan(o ScanOutcome) {
	if m == nil {
		return
	}
	m.ScanRuns.Inc()
	m.ScanDuration.Observe(o.Took.Seconds())
	if o.Err != nil {
		m.ScanErrors.Inc()
	}
	m.Initialized.Add(float64(o.Initialized))
	m.Notifications.WithLabelValues("sent").Add(float64(o.Notified))
	m.Notifications.WithLabelValues("failed").Add(float64(o.Failed))
	m.Notifications.WithLabelValues("skipped").Add(float64(o.Skipped))
}
