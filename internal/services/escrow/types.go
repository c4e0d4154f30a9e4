package escrow

import (
	"context"

	"agripay/internal/models"
)

// Service is the escrow manager. It composes the payment entry point, wallet
// ledger and transaction log to hold funds against a transaction until a
// release or refund condition fires.
type Service interface {
	// Fund creates a pending escrow account and its escrow_fund transaction
	// in one unit of work. The account becomes funded when that transaction
	// completes: synchronously for wallet funding, via provider callback
	// otherwise.
	Fund(ctx context.Context, req models.EscrowRequest) (*models.EscrowAccount, *models.Transaction, error)

	// Release pays the escrowed amount, net of commission, to the payee.
	// Legal only from funded; calling it again with the same releasedBy on an
	// already-released account returns the prior result instead of an error.
	Release(ctx context.Context, escrowID, releasedBy uint) (*models.EscrowAccount, *models.Transaction, error)

	// Refund returns captured funds to the payer. Legal from funded or
	// pending; a pending escrow fails its funding transaction instead of
	// crediting anything, since no money was captured.
	Refund(ctx context.Context, escrowID uint) (*models.EscrowAccount, *models.Transaction, error)

	// ExpireDue sweeps escrows whose expiry has passed, refunding each one
	// and marking it expired. Returns the number processed.
	ExpireDue(ctx context.Context, limit int) (int, error)

	Get(ctx context.Context, id uint) (*models.EscrowAccount, error)
}
