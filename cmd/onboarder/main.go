package main

import (
	"bank_onboarder/internal/channel/parabank"
	"bank_onboarder/internal/config"
	"bank_onboarder/internal/logging"
	"bank_onboarder/internal/processor"
	"bank_onboarder/internal/rates"
	"bank_onboarder/internal/report"
	"bank_onboarder/internal/sheet"
	"bank_onboarder/pkg/loan"
	"bank_onboarder/pkg/metrics"
	"bank_onboarder/pkg/validator"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
)

const (
	appName = "bank_onboarder"

	exitOK     = 0
	exitFailed = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return exitFailed
	}

	var (
		input       = flag.String("input", cfg.Report.InputPath, "Customer records file (.csv or .xlsx)")
		output      = flag.String("output", cfg.Report.OutputPath, "Report file (.xlsx or .csv)")
		workers     = flag.Int("workers", cfg.Run.Workers, "Number of records processed concurrently")
		metricsFile = flag.String("metrics-file", cfg.Metrics.File, "Write metrics in text format to this file at the end of the run")
		metricsAddr = flag.String("metrics-addr", cfg.Metrics.Addr, "Serve /metrics on this address during the run")
	)
	flag.Parse()

	runID := uuid.NewString()
	logger := logging.New(cfg.Logging).With(
		slog.String("app", appName),
		slog.String("run_id", runID))
	logger.Info("Starting onboarding run",
		slog.String("input", *input),
		slog.String("output", *output),
		slog.Int("workers", *workers))

	records, err := sheet.ReadFile(*input)
	if err != nil {
		logger.Error("Failed to load customer records", slog.String("path", *input), slog.String("error", err.Error()))
		return exitFailed
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewMetricsCollector(logger)
	if *metricsAddr != "" {
		server := collector.StartMetricsServer(*metricsAddr)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := collector.Shutdown(shutdownCtx, server); err != nil {
				logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}

	resolver := rates.NewResolver(rates.NewClient(cfg.Rates.URL, cfg.Rates.Timeout), cfg.Rates.Fallback, logger)
	rate := resolver.Resolve(ctx)
	collector.SetExchangeRate(rate)

	gateway, err := parabank.NewGateway(cfg.Bank.BaseURL, cfg.Bank.HTTPTimeout, logger)
	if err != nil {
		logger.Error("Invalid bank configuration", slog.String("error", err.Error()))
		return exitFailed
	}

	orchestrator := processor.NewOrchestrator(
		gateway,
		validator.NewRecordValidator(cfg.Loan.DefaultDeposit),
		loan.NewCalculator(cfg.Loan.Principal, cfg.Loan.DownPaymentRatio),
		rate,
		collector,
		logger,
	).WithRecordTimeout(cfg.Run.RecordTimeout)

	start := time.Now()
	results := processor.NewBatch(orchestrator, *workers).Run(ctx, records)

	builder := report.NewBuilder(cfg.Report.Redact)
	for _, res := range results {
		builder.Add(res)
	}

	code := exitOK
	if err := report.Write(*output, builder.Table()); err != nil {
		logger.Error("Failed to write report", slog.String("path", *output), slog.String("error", err.Error()))
		code = exitFailed
	}

	if *metricsFile != "" {
		if err := collector.WriteTextfile(*metricsFile); err != nil {
			logger.Error("Failed to write metrics", slog.String("error", err.Error()))
		}
	}

	summary := builder.Summary()
	logger.Info("Onboarding run complete",
		slog.String("report", *output),
		slog.String("rate", rate.String()),
		slog.Duration("duration", time.Since(start)),
		slog.Int("total", summary.Total),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("missing_fields", summary.MissingFields),
		slog.Int("login_failed", summary.LoginFailed),
		slog.Int("loan_failed", summary.LoanFailed),
		slog.Int("unexpected", summary.Unexpected))

	if ctx.Err() != nil {
		logger.Warn("Run interrupted before all records were processed")
		code = exitFailed
	}
	return code
}
