package loan

import (
	"github.com/shopspring/decimal"
)

var (
	DefaultPrincipal        = decimal.NewFromInt(10000)
	DefaultDownPaymentRatio = decimal.RequireFromString("0.20")
)

type Calculator struct {
	Principal        decimal.Decimal
	DownPaymentRatio decimal.Decimal
}

type Quote struct {
	Principal   decimal.Decimal
	DownPayment decimal.Decimal
	Converted   decimal.Decimal
}

func NewCalculator(principal, ratio decimal.Decimal) *Calculator {
	if !principal.IsPositive() {
		principal = DefaultPrincipal
	}
	if !ratio.IsPositive() {
		ratio = DefaultDownPaymentRatio
	}
	return &Calculator{Principal: principal, DownPaymentRatio: ratio}
}

func (c *Calculator) DownPayment(deposit decimal.Decimal) decimal.Decimal {
	return deposit.Mul(c.DownPaymentRatio).Round(2)
}

// Convert returns the principal in the target currency at rate.
func (c *Calculator) Convert(rate decimal.Decimal) decimal.Decimal {
	return c.Principal.Mul(rate).Round(2)
}

func (c *Calculator) Quote(deposit, rate decimal.Decimal) Quote {
	return Quote{
		Principal:   c.Principal,
		DownPayment: c.DownPayment(deposit),
		Converted:   c.Convert(rate),
	}
}
