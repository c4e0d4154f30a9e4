package wallet

import (
	"context"

	"agripay/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Config holds wallet defaults applied on creation.
type Config struct {
	DefaultCurrency               string
	DefaultDailyLimit             decimal.Decimal
	DefaultSingleTransactionLimit decimal.Decimal
}

// Service is the wallet ledger: the only component allowed to mutate wallet
// balances. All mutations happen on rows previously locked with GetForUpdate
// inside the caller's unit of work.
type Service interface {
	// WithTx returns a ledger bound to the given transaction handle.
	WithTx(tx *gorm.DB) Service

	// EnsureWallet is an idempotent get-or-create.
	EnsureWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	GetWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	// GetForUpdate locks the wallet row for the enclosing unit of work,
	// creating the wallet first if the user has none.
	GetForUpdate(ctx context.Context, userID uint) (*models.Wallet, error)

	Debit(ctx context.Context, w *models.Wallet, amount decimal.Decimal) error
	Credit(ctx context.Context, w *models.Wallet, amount decimal.Decimal) error

	// Soft lifecycle; wallets are never deleted.
	Suspend(ctx context.Context, userID uint, reason string) error
	Reactivate(ctx context.Context, userID uint) error
	Close(ctx context.Context, userID uint, reason string) error
}

// Cache is the subset of the cache service the ledger needs. A nil cache is
// valid and disables caching.
type Cache interface {
	GetWallet(ctx context.Context, userID uint) (*models.Wallet, bool, error)
	CacheWallet(ctx context.Context, wallet *models.Wallet) error
	InvalidateWallet(ctx context.Context, userID uint) error
}
