// Package metrics exposes Prometheus instruments for the relay daemon.
//
// Every Metrics value owns its own registry so several daemons (as in tests)
// can coexist in one process. All Record methods are safe on a nil receiver.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"simpleclipboard/internal/logging"
)

const namespace = "simpleclipboard"

// Metrics holds the daemon's Prometheus instruments.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	ConnectionsTotal *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	RelayTotal       *prometheus.CounterVec

	ConnectionsActive prometheus.Gauge

	RequestDuration *prometheus.HistogramVec
	PayloadBytes    prometheus.Histogram
}

// New creates a Metrics value backed by a fresh registry that also carries
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Requests answered, by message kind and ack detail",
			},
			[]string{"kind", "detail", "ok"},
		),
		ConnectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_total",
				Help:      "Accepted connections by wire format",
			},
			[]string{"format"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_errors_total",
				Help:      "Connections closed without an ack, by failing state and cause",
			},
			[]string{"state", "cause"},
		),
		RelayTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_attempts_total",
				Help:      "Forward attempts to the next hop by result",
			},
			[]string{"result"},
		),
		ConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connections_active",
				Help:      "Connections currently being served",
			},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Time from accept to ack written",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		PayloadBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "payload_bytes",
				Help:      "Size of decoded request payloads",
				Buckets:   prometheus.ExponentialBuckets(64, 8, 8),
			},
		),
	}
}

// RecordRequest counts one answered request.
func (m *Metrics) RecordRequest(kind, detail string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "false"
	if ok {
		status = "true"
	}
	m.RequestsTotal.WithLabelValues(kind, detail, status).Inc()
	m.RequestDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordConnection(format string) {
	if m == nil {
		return
	}
	m.ConnectionsTotal.WithLabelValues(format).Inc()
}

// RecordError counts a connection that ended without an ack.
func (m *Metrics) RecordError(state, cause string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(state, cause).Inc()
}

func (m *Metrics) RecordRelay(result string) {
	if m == nil {
		return
	}
	m.RelayTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordPayload(size int) {
	if m == nil {
		return
	}
	m.PayloadBytes.Observe(float64(size))
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes GET /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return m.ServeListener(ctx, listener, logger)
}

// ServeListener is Serve on an existing listener.
func (m *Metrics) ServeListener(ctx context.Context, listener net.Listener, logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "metrics")
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", logging.String("addr", listener.Addr().String()))
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
