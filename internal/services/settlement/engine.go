// Package settlement computes platform commission and net payout amounts at
// transaction-completion time.
package settlement

import (
	"agripay/internal/models"

	"github.com/shopspring/decimal"
)

// Default commission rates by transaction purpose.
var defaultRates = map[string]decimal.Decimal{
	models.PurposeTransfer:     decimal.Zero,
	models.PurposeStandard:     decimal.NewFromFloat(0.025),
	models.PurposeConsultation: decimal.NewFromFloat(0.15),
	models.PurposeMarketOrder:  decimal.NewFromFloat(0.05),
}

// Engine selects a commission rate by transaction purpose and splits an
// amount into fee and net payout.
type Engine struct {
	rates map[string]decimal.Decimal
}

// NewEngine creates a settlement engine. Rate overrides replace the default
// rate for their purpose; unknown purposes fall back to the standard rate.
func NewEngine(overrides map[string]decimal.Decimal) *Engine {
	rates := make(map[string]decimal.Decimal, len(defaultRates))
	for purpose, rate := range defaultRates {
		rates[purpose] = rate
	}
	for purpose, rate := range overrides {
		rates[purpose] = rate
	}
	return &Engine{rates: rates}
}

// Rate returns the commission rate applied to the given purpose.
func (e *Engine) Rate(purpose string) decimal.Decimal {
	if rate, ok := e.rates[purpose]; ok {
		return rate
	}
	return e.rates[models.PurposeStandard]
}

// Split computes the platform fee and net payout for an amount. The fee is
// rounded half-up to the currency's minor unit, so fee + net == amount holds
// exactly.
func (e *Engine) Split(purpose string, amount decimal.Decimal) (fee, net decimal.Decimal) {
	fee = amount.Mul(e.Rate(purpose)).Round(2)
	net = amount.Sub(fee)
	return fee, net
}
