package settlement

import (
	"testing"

	"agripay/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRate(t *testing.T) {
	engine := NewEngine(nil)

	tests := []struct {
		name     string
		purpose  string
		expected string
	}{
		{name: "transfer is free", purpose: models.PurposeTransfer, expected: "0"},
		{name: "standard commission", purpose: models.PurposeStandard, expected: "0.025"},
		{name: "consultation commission", purpose: models.PurposeConsultation, expected: "0.15"},
		{name: "market order commission", purpose: models.PurposeMarketOrder, expected: "0.05"},
		{name: "unknown purpose falls back to standard", purpose: "something_else", expected: "0.025"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, engine.Rate(tt.purpose).Equal(decimal.RequireFromString(tt.expected)),
				"rate for %s", tt.purpose)
		})
	}
}

func TestRateOverride(t *testing.T) {
	engine := NewEngine(map[string]decimal.Decimal{
		models.PurposeMarketOrder: decimal.NewFromFloat(0.03),
	})

	assert.True(t, engine.Rate(models.PurposeMarketOrder).Equal(decimal.NewFromFloat(0.03)))
	// Non-overridden purposes keep their defaults.
	assert.True(t, engine.Rate(models.PurposeStandard).Equal(decimal.NewFromFloat(0.025)))
}

func TestSplit(t *testing.T) {
	engine := NewEngine(nil)

	tests := []struct {
		name    string
		purpose string
		amount  string
		fee     string
		net     string
	}{
		{
			name:    "transfer keeps full amount",
			purpose: models.PurposeTransfer,
			amount:  "4000.00",
			fee:     "0.00",
			net:     "4000.00",
		},
		{
			name:    "standard commission",
			purpose: models.PurposeStandard,
			amount:  "5000.00",
			fee:     "125.00",
			net:     "4875.00",
		},
		{
			name:    "consultation commission",
			purpose: models.PurposeConsultation,
			amount:  "2000.00",
			fee:     "300.00",
			net:     "1700.00",
		},
		{
			name:    "market order commission",
			purpose: models.PurposeMarketOrder,
			amount:  "1250.00",
			fee:     "62.50",
			net:     "1187.50",
		},
		{
			name:    "fee rounds half up",
			purpose: models.PurposeStandard,
			amount:  "100.20", // 2.505 exactly
			fee:     "2.51",
			net:     "97.69",
		},
		{
			name:    "fee rounds down below half",
			purpose: models.PurposeStandard,
			amount:  "100.10", // 2.5025
			fee:     "2.50",
			net:     "97.60",
		},
		{
			name:    "tiny amount",
			purpose: models.PurposeStandard,
			amount:  "0.10", // 0.0025 rounds to 0.00
			fee:     "0.00",
			net:     "0.10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amount)
			fee, net := engine.Split(tt.purpose, amount)

			assert.Equal(t, tt.fee, fee.StringFixed(2))
			assert.Equal(t, tt.net, net.StringFixed(2))
			// Conservation: the split never creates or destroys value.
			assert.True(t, fee.Add(net).Equal(amount))
		})
	}
}
