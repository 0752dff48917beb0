package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector implements the Collector interface using Prometheus metrics.
type PrometheusCollector struct {
	// Connection metrics
	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge

	// Authentication metrics
	authAttemptsTotal *prometheus.CounterVec

	// Request metrics
	requestsTotal *prometheus.CounterVec

	// Mailbox metrics
	messagesDeliveredTotal *prometheus.CounterVec
	messagesReadTotal      prometheus.Counter
	mailboxListsTotal      prometheus.Counter
	messagesSizeBytes      prometheus.Histogram
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailxd_connections_total",
			Help: "Total number of client connections opened.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mailxd_connections_active",
			Help: "Number of currently active client connections.",
		}),

		authAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailxd_auth_attempts_total",
			Help: "Total number of authentication attempts.",
		}, []string{"kind", "result"}),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailxd_requests_total",
			Help: "Total number of protocol requests processed.",
		}, []string{"header"}),

		messagesDeliveredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailxd_messages_delivered_total",
			Help: "Total number of delivery attempts by outcome.",
		}, []string{"outcome"}),
		messagesReadTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailxd_messages_read_total",
			Help: "Total number of messages read.",
		}),
		mailboxListsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailxd_mailbox_lists_total",
			Help: "Total number of mailbox list operations.",
		}),
		messagesSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailxd_messages_size_bytes",
			Help:    "Size of read messages in bytes.",
			Buckets: []float64{1024, 10240, 102400, 1048576, 10485760},
		}),
	}

	// Register all metrics
	reg.MustRegister(
		c.connectionsTotal,
		c.connectionsActive,
		c.authAttemptsTotal,
		c.requestsTotal,
		c.messagesDeliveredTotal,
		c.messagesReadTotal,
		c.mailboxListsTotal,
		c.messagesSizeBytes,
	)

	return c
}

// ConnectionOpened increments the connection counter and active gauge.
func (c *PrometheusCollector) ConnectionOpened() {
	c.connectionsTotal.Inc()
	c.connectionsActive.Inc()
}

// ConnectionClosed decrements the active connections gauge.
func (c *PrometheusCollector) ConnectionClosed() {
	c.connectionsActive.Dec()
}

// AuthAttempt increments the authentication attempts counter.
func (c *PrometheusCollector) AuthAttempt(kind string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authAttemptsTotal.WithLabelValues(kind, result).Inc()
}

// RequestProcessed increments the request counter.
func (c *PrometheusCollector) RequestProcessed(header string) {
	c.requestsTotal.WithLabelValues(header).Inc()
}

// MessageDelivered increments the delivery counter for the outcome.
func (c *PrometheusCollector) MessageDelivered(outcome string) {
	c.messagesDeliveredTotal.WithLabelValues(outcome).Inc()
}

// MessageRead increments the read counter and observes message size.
func (c *PrometheusCollector) MessageRead(sizeBytes int64) {
	c.messagesReadTotal.Inc()
	c.messagesSizeBytes.Observe(float64(sizeBytes))
}

// MailboxListed increments the mailbox list counter.
func (c *PrometheusCollector) MailboxListed() {
	c.mailboxListsTotal.Inc()
}

// PrometheusServer serves the metrics registry over HTTP.
type PrometheusServer struct {
	registry *prometheus.Registry
	server   *http.Server
}

// NewPrometheusServer creates a metrics HTTP server with its own registry
// and a collector registered on it.
func NewPrometheusServer(address, path string) *PrometheusServer {
	registry := prometheus.NewRegistry()

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &PrometheusServer{
		registry: registry,
		server: &http.Server{
			Addr:              address,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Registry returns the server's metrics registry for collector registration.
func (s *PrometheusServer) Registry() *prometheus.Registry {
	return s.registry
}

// Start begins serving metrics. It blocks until the context is canceled or
// the listener fails.
func (s *PrometheusServer) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully stops the metrics server.
func (s *PrometheusServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
