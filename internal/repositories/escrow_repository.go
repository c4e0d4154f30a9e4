package repositories

import (
	"time"

	"agripay/internal/models"

	"gorm.io/gorm"
)

// EscrowRepository manages escrow account persistence. Status changes happen
// only on rows fetched with GetByIDForUpdate so release and refund race
// safely.
type EscrowRepository interface {
	WithTx(tx *gorm.DB) EscrowRepository

	Create(escrow *models.EscrowAccount) error
	Update(escrow *models.EscrowAccount) error
	GetByID(id uint) (*models.EscrowAccount, error)
	GetByIDForUpdate(id uint) (*models.EscrowAccount, error)
	GetByFundingTransactionID(txnID uint) (*models.EscrowAccount, error)
	// ListExpiring returns pending or funded escrows whose expiry has passed.
	ListExpiring(now time.Time, limit int) ([]models.EscrowAccount, error)
}
