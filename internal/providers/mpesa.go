package providers

import (
	"fmt"

	"agripay/internal/models"

	"github.com/shopspring/decimal"
)

// NewMpesa creates the simulated M-Pesa gateway adapter.
func NewMpesa(secret []byte) *Gateway {
	return NewGateway(models.PaymentMethodMpesa, "MPESA", secret,
		func(ref string, amount decimal.Decimal, currency string) string {
			return fmt.Sprintf(
				"Dial *334#, select Lipa na M-Pesa > Pay Bill, enter account %s and amount %s %s, then confirm with your PIN.",
				ref, amount.StringFixed(2), currency)
		})
}
