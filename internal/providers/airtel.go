package providers

import (
	"fmt"

	"agripay/internal/models"

	"github.com/shopspring/decimal"
)

// NewAirtel creates the simulated Airtel Money gateway adapter.
func NewAirtel(secret []byte) *Gateway {
	return NewGateway(models.PaymentMethodAirtel, "AIRTEL", secret,
		func(ref string, amount decimal.Decimal, currency string) string {
			return fmt.Sprintf(
				"Dial *185#, choose Make Payments > Pay Bill, enter reference %s and amount %s %s to complete.",
				ref, amount.StringFixed(2), currency)
		})
}
