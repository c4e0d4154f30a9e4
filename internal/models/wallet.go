package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet statuses
const (
	WalletStatusActive    = "active"
	WalletStatusSuspended = "suspended"
	WalletStatusClosed    = "closed"
)

// Wallet is a per-user stored-value balance. Balances are mutated only
// through the wallet ledger service while the row is held under a
// SELECT ... FOR UPDATE lock.
type Wallet struct {
	ID                     uint            `gorm:"primarykey" json:"id"`
	UserID                 uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance                decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"balance"`
	PendingBalance         decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"pending_balance"`
	Currency               string          `gorm:"size:3;default:'KES'" json:"currency"`
	Status                 string          `gorm:"default:'active'" json:"status"`
	StatusReason           string          `gorm:"default:''" json:"status_reason,omitempty"`
	DailyLimit             decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"daily_limit"`
	SingleTransactionLimit decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"single_transaction_limit"`
	LastTransactionAt      *time.Time      `json:"last_transaction_at,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// IsActive reports whether the wallet may be debited or credited.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}
