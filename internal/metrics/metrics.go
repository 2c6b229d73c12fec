// Package metrics exposes Prometheus instrumentation for ingestion, digests
// and scheduled tasks.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingest results.
const (
	ResultStored  = "stored"
	ResultIgnored = "ignored"
	ResultError   = "error"
	ResultSuccess = "success"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	MessagesIngested *prometheus.CounterVec
	DigestRuns       *prometheus.CounterVec
	DigestDuration   prometheus.Histogram
	TaskRuns         *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MessagesIngested: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickerdigest_messages_ingested_total",
				Help: "Inbound chat messages by store outcome",
			},
			[]string{"result"}, // stored, ignored, error
		),
		DigestRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickerdigest_digest_runs_total",
				Help: "Digest builds and deliveries by outcome",
			},
			[]string{"result"},
		),
		DigestDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tickerdigest_digest_duration_seconds",
				Help:    "Time to build and deliver a digest",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		TaskRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickerdigest_task_runs_total",
				Help: "Scheduled task executions by task and outcome",
			},
			[]string{"task", "result"},
		),
	}
}

// ObserveIngest counts one inbound message.
func (m *Metrics) ObserveIngest(result string) {
	if m == nil {
		return
	}
	m.MessagesIngested.WithLabelValues(result).Inc()
}

// ObserveDigest counts one digest run and its duration.
func (m *Metrics) ObserveDigest(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.DigestRuns.WithLabelValues(result).Inc()
	m.DigestDuration.Observe(d.Seconds())
}

// ObserveTask counts one scheduled task execution.
func (m *Metrics) ObserveTask(task, result string) {
	if m == nil {
		return
	}
	m.TaskRuns.WithLabelValues(task, result).Inc()
}

// Serve exposes gatherer on addr at /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("Metrics server shutdown error", "error", err)
		}
		log.Info("Metrics server stopped")
		return nil
	}
}
