package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Escrow statuses
const (
	EscrowStatusPending  = "pending"
	EscrowStatusFunded   = "funded"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
	EscrowStatusExpired  = "expired"
)

// EscrowAccount holds funds against a transaction until a release or refund
// condition fires. It is funded exactly when its funding transaction reaches
// completed, and released or refunded at most once.
type EscrowAccount struct {
	ID                   uint            `gorm:"primarykey" json:"id"`
	PayerID              uint            `gorm:"index;not null" json:"payer_id"`
	PayeeID              uint            `gorm:"index;not null" json:"payee_id"`
	Amount               decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Currency             string          `gorm:"size:3;default:'KES'" json:"currency"`
	Status               string          `gorm:"default:'pending'" json:"status"`
	FundingTransactionID uint            `gorm:"index;not null" json:"funding_transaction_id"`
	ReleaseTransactionID *uint           `json:"release_transaction_id,omitempty"`
	ReleasedBy           *uint           `json:"released_by,omitempty"`
	ReleaseConditions    JSON            `gorm:"type:jsonb" json:"release_conditions,omitempty"`
	Purpose              string          `gorm:"default:'standard'" json:"purpose"`
	ExpiresAt            *time.Time      `json:"expires_at,omitempty"`
	Metadata             JSON            `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// IsSettled reports whether the escrow already reached a final state.
func (e *EscrowAccount) IsSettled() bool {
	switch e.Status {
	case EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusExpired:
		return true
	}
	return false
}
