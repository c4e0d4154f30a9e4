package repositories

import (
	"agripay/internal/models"

	"gorm.io/gorm"
)

// WalletRepository manages wallet persistence. All balance mutations go
// through rows fetched with GetByUserIDForUpdate inside one TxManager.Do
// unit of work.
type WalletRepository interface {
	// WithTx returns a repository bound to the given transaction handle.
	WithTx(tx *gorm.DB) WalletRepository

	Create(wallet *models.Wallet) error
	Update(wallet *models.Wallet) error
	GetByUserID(userID uint) (*models.Wallet, error)
	// GetByUserIDForUpdate acquires a row-level exclusive lock scoped to the
	// enclosing database transaction.
	GetByUserIDForUpdate(userID uint) (*models.Wallet, error)
}
