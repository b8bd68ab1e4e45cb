package metrics

import (
	"bank_onboarder/internal/domain"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsCollector struct {
	registry           *prometheus.Registry
	records            *prometheus.CounterVec
	stages             *prometheus.CounterVec
	recordDuration     prometheus.Histogram
	exchangeRate       *prometheus.GaugeVec
	depositCorrections prometheus.Counter
	logger             *slog.Logger
}

func NewMetricsCollector(logger *slog.Logger) *MetricsCollector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()

	collector := &MetricsCollector{
		registry: registry,
		records: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_records_total",
			Help: "Total number of processed customer records by outcome",
		}, []string{"outcome"}),
		stages: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_stage_total",
			Help: "Attempted onboarding stages by reported status",
		}, []string{"stage", "status"}),
		recordDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "onboarding_record_duration_seconds",
			Help:    "Time taken to process one customer record",
			Buckets: prometheus.DefBuckets,
		}),
		exchangeRate: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "onboarding_exchange_rate",
			Help: "USD to EUR rate used for the run",
		}, []string{"source"}),
		depositCorrections: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "onboarding_deposit_corrections_total",
			Help: "Initial deposits replaced by the default amount",
		}),
		logger: logger,
	}

	return collector
}

// RecordResult counts the outcome and every attempted stage of res.
func (m *MetricsCollector) RecordResult(res *domain.ProcessResult, duration time.Duration) {
	m.records.WithLabelValues(string(res.Outcome)).Inc()
	m.recordDuration.Observe(duration.Seconds())

	m.recordStage("registration", string(res.Registration))
	m.recordStage("login", string(res.Login))
	m.recordStage("account", string(res.AccountOpened))
	m.recordStage("loan", string(res.LoanRequested))

	if res.DepositCorrected {
		m.depositCorrections.Inc()
	}
}

func (m *MetricsCollector) recordStage(stage, status string) {
	if status == "" {
		return
	}
	m.stages.WithLabelValues(stage, status).Inc()
}

func (m *MetricsCollector) SetExchangeRate(rate domain.ExchangeRate) {
	m.exchangeRate.Reset()
	m.exchangeRate.WithLabelValues(string(rate.Source)).Set(rate.Value.InexactFloat64())
}

func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile dumps the registry in the text exposition format, suitable
// for the node exporter textfile collector.
func (m *MetricsCollector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	m.logger.Info("Metrics written", slog.String("path", path))
	return nil
}

func (m *MetricsCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *MetricsCollector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.GetHandler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		m.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

func (m *MetricsCollector) Shutdown(ctx context.Context, server *http.Server) error {
	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	m.logger.Info("Metrics server shutdown complete")
	return nil
}
