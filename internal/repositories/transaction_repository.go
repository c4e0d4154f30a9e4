package repositories

import (
	"time"

	"agripay/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionRepository manages transaction and audit-event persistence.
// Transaction rows carry a mutable status; TransactionEvent rows are
// append-only and never touched after insert.
type TransactionRepository interface {
	WithTx(tx *gorm.DB) TransactionRepository

	Create(txn *models.Transaction) error
	Update(txn *models.Transaction) error
	GetByID(id uint) (*models.Transaction, error)
	GetByReference(ref string) (*models.Transaction, error)
	GetByExternalReference(ref string) (*models.Transaction, error)
	// GetByExternalReferenceForUpdate locks the transaction row so concurrent
	// callbacks for the same provider reference serialize.
	GetByExternalReferenceForUpdate(ref string) (*models.Transaction, error)
	ListByUser(userID uint, limit, offset int) ([]models.Transaction, error)
	// ListPending returns pending provider transactions older than the cutoff,
	// oldest first, for the reconciliation sweep.
	ListPending(methods []string, olderThan time.Time, limit int) ([]models.Transaction, error)
	// DailyDebitTotal sums completed debits charged to a payer inside a window.
	DailyDebitTotal(userID uint, from, to time.Time) (decimal.Decimal, error)

	CreateEvent(event *models.TransactionEvent) error
	ListEvents(transactionID uint) ([]models.TransactionEvent, error)
}
