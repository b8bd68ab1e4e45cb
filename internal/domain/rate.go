package domain

import (
	"github.com/shopspring/decimal"
)

type RateSource string

const (
	RateLive     RateSource = "live"
	RateFallback RateSource = "fallback"
)

// ExchangeRate is the USD to EUR factor resolved once per run.
type ExchangeRate struct {
	Value  decimal.Decimal
	Source RateSource
}

func (r ExchangeRate) String() string {
	return r.Value.StringFixed(4) + " (" + string(r.Source) + ")"
}
