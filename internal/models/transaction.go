package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TransactionTypePayment       = "payment"
	TransactionTypeEscrowFund    = "escrow_fund"
	TransactionTypeEscrowRelease = "escrow_release"
	TransactionTypeRefund        = "refund"
	TransactionTypeSettlement    = "settlement"
)

// Transaction statuses
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusRefunded  = "refunded"
)

// Payment methods
const (
	PaymentMethodMpesa          = "mpesa"
	PaymentMethodAirtel         = "airtel"
	PaymentMethodWallet         = "wallet"
	PaymentMethodCashOnDelivery = "cash_on_delivery"
)

// Transaction records one money-movement attempt. A row is created in
// `pending` before any external call; the status field is mutable but every
// transition is captured as a TransactionEvent, so the lifecycle stays
// replayable.
type Transaction struct {
	ID                uint            `gorm:"primarykey" json:"id"`
	Reference         string          `gorm:"uniqueIndex;not null" json:"reference"`
	PayerID           *uint           `gorm:"index" json:"payer_id,omitempty"`
	PayeeID           *uint           `gorm:"index" json:"payee_id,omitempty"`
	Amount            decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Currency          string          `gorm:"size:3;default:'KES'" json:"currency"`
	Type              string          `gorm:"not null" json:"type"`
	PaymentMethod     string          `gorm:"not null" json:"payment_method"`
	Purpose           string          `gorm:"default:'p2p_transfer'" json:"purpose"`
	Status            string          `gorm:"not null;default:'pending'" json:"status"`
	ExternalReference *string         `gorm:"uniqueIndex" json:"external_reference,omitempty"`
	Fee               decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"fee"`
	NetAmount         decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"net_amount"`
	Description       string          `json:"description,omitempty"`
	Instructions      string          `json:"instructions,omitempty"`
	Metadata          JSON            `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	SettledAt         *time.Time      `json:"settled_at,omitempty"`
}

// IsTerminal reports whether no further status transition is expected.
// A completed transaction can still be refunded, but from the callback
// pipeline's point of view it is done.
func (t *Transaction) IsTerminal() bool {
	return t.Status != TransactionStatusPending
}

// TransactionEvent is the append-only audit trail of status transitions.
// Rows are never updated or deleted.
type TransactionEvent struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	TransactionID uint      `gorm:"index;not null" json:"transaction_id"`
	FromStatus    string    `gorm:"not null" json:"from_status"`
	ToStatus      string    `gorm:"not null" json:"to_status"`
	Detail        JSON      `gorm:"type:jsonb" json:"detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
