package transaction

import (
	"context"
	"time"

	"agripay/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateSpec describes a new money-movement attempt. Every attempt starts as
// a pending row before any external call is made.
type CreateSpec struct {
	PayerID       *uint
	PayeeID       *uint
	Amount        decimal.Decimal
	Currency      string
	Type          string
	PaymentMethod string
	Purpose       string
	Description   string
	Metadata      map[string]interface{}
}

// Service is the transaction log: the append-mostly record of every money
// movement and its lifecycle. Status changes go through Transition only, so
// the audit trail stays complete.
type Service interface {
	WithTx(tx *gorm.DB) Service

	Create(ctx context.Context, spec CreateSpec) (*models.Transaction, error)
	// Transition validates the move against the state graph, persists it and
	// appends an audit event. Illegal moves fail with
	// ErrInvalidTransactionState and leave the record unchanged.
	Transition(ctx context.Context, txn *models.Transaction, newStatus string, detail map[string]interface{}) error
	// SetExternalReference stores the provider-assigned idempotency key and
	// the human payment instructions on a pending transaction.
	SetExternalReference(ctx context.Context, txn *models.Transaction, ref, instructions string) error
	Update(ctx context.Context, txn *models.Transaction) error

	GetByID(ctx context.Context, id uint) (*models.Transaction, error)
	GetByReference(ctx context.Context, ref string) (*models.Transaction, error)
	FindByExternalReference(ctx context.Context, ref string) (*models.Transaction, error)
	// FindByExternalReferenceForUpdate locks the row so concurrent callbacks
	// for one reference serialize.
	FindByExternalReferenceForUpdate(ctx context.Context, ref string) (*models.Transaction, error)

	History(ctx context.Context, transactionID uint) ([]models.TransactionEvent, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, error)
	ListPendingProvider(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error)
	DailyDebitTotal(ctx context.Context, userID uint, day time.Time) (decimal.Decimal, error)
}
