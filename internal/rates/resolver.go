package rates

import (
	"bank_onboarder/internal/domain"
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Resolver turns a quote lookup into the run's exchange rate. A failed
// lookup is never fatal: the fallback rate is used instead.
type Resolver struct {
	api      QuoteAPI
	fallback decimal.Decimal
	logger   *slog.Logger
}

func NewResolver(api QuoteAPI, fallback decimal.Decimal, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		api:      api,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *Resolver) Resolve(ctx context.Context) domain.ExchangeRate {
	rate, err := r.api.Fetch(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to fetch live rate, using fallback",
			slog.String("fallback", r.fallback.String()),
			slog.String("error", err.Error()))
		return domain.ExchangeRate{Value: r.fallback, Source: domain.RateFallback}
	}

	r.logger.InfoContext(ctx, "Live USD to EUR rate resolved",
		slog.String("rate", "1 USD = "+rate.StringFixed(2)+" EUR"))
	return domain.ExchangeRate{Value: rate, Source: domain.RateLive}
}
