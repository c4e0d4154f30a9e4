package payment

import (
	"context"
	"time"

	"agripay/internal/models"

	"gorm.io/gorm"
)

// Service is the single consolidated payment entry point. Every money
// movement — direct payments and escrow funding alike — is created here.
type Service interface {
	// WithTx binds the service to an enclosing unit of work. The bound
	// service joins that transaction instead of opening its own.
	WithTx(tx *gorm.DB) Service

	// InitiatePayment validates, creates a pending transaction and dispatches
	// by payment method. Wallet payments complete synchronously; provider
	// payments stay pending until ProcessCallback resolves them.
	InitiatePayment(ctx context.Context, req models.PaymentRequest) (*models.Transaction, error)
	// Initiate is InitiatePayment with an explicit transaction type; the
	// escrow manager uses it to create escrow_fund movements.
	Initiate(ctx context.Context, txnType string, req models.PaymentRequest) (*models.Transaction, error)

	// ProcessCallback verifies a provider payload and resolves the matching
	// pending transaction. Replaying a callback for a terminal transaction is
	// a no-op returning the transaction as-is.
	ProcessCallback(ctx context.Context, provider string, payload []byte) (*models.Transaction, error)

	// ReconcilePending polls the provider for pending transactions older than
	// the cutoff and resolves those the provider has settled. Returns the
	// number resolved.
	ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}
