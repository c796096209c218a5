package metrics

import (
	"FaceVerification/internal/biometric"
	"FaceVerification/pkg/response"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "verification"

type StatsSource interface {
	Stats() biometric.Stats
}

type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "requests_total", Help: "Finished verification requests by kind and outcome."},
			[]string{"kind", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "processing_seconds", Help: "Worker processing time per request.", Buckets: prometheus.ExponentialBuckets(0.01, 2, 12)},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Observe matches biometric.Observer.
func (m *Metrics) Observe(kind biometric.Kind, elapsed time.Duration, err error) {
	m.requests.WithLabelValues(kind.String(), outcomeLabel(err)).Inc()
	m.duration.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
}

// RegisterPool exposes the live pool counters as gauges read at scrape time.
func (m *Metrics) RegisterPool(src StatsSource) {
	gauge := func(name, help string, read func(biometric.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Subsystem: "queue", Name: name, Help: help},
			func() float64 { return read(src.Stats()) },
		)
	}

	m.registry.MustRegister(
		gauge("length", "Requests waiting for a worker.", func(s biometric.Stats) float64 { return float64(s.QueueLength) }),
		gauge("active_workers", "Requests currently being processed.", func(s biometric.Stats) float64 { return float64(s.ActiveWorkers) }),
		gauge("max_concurrent", "Worker limit.", func(s biometric.Stats) float64 { return float64(s.MaxConcurrent) }),
		gauge("peak_concurrent", "Highest number of simultaneously active workers.", func(s biometric.Stats) float64 { return float64(s.PeakConcurrent) }),
	)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := response.KindOf(err); kind != "" {
		return strings.ToLower(kind)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
