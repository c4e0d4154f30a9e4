package providers

import (
	"fmt"

	"agripay/internal/models"

	"github.com/shopspring/decimal"
)

// NewCashOnDelivery creates the cash-on-delivery channel. It never moves
// money itself; the payment completes when order fulfilment delivers the
// confirmation event through the callback pipeline.
func NewCashOnDelivery(secret []byte) *Gateway {
	return NewGateway(models.PaymentMethodCashOnDelivery, "COD", secret,
		func(ref string, amount decimal.Decimal, currency string) string {
			return fmt.Sprintf(
				"Pay %s %s in cash on delivery. Quote reference %s to the courier.",
				amount.StringFixed(2), currency, ref)
		})
}
