package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction purposes drive commission selection at settlement time.
const (
	PurposeTransfer     = "p2p_transfer"
	PurposeStandard     = "standard"
	PurposeConsultation = "expert_consultation"
	PurposeMarketOrder  = "market_order"
)

// PaymentRequest is the single consolidated entry-point request for every
// money movement, wallet or provider backed.
type PaymentRequest struct {
	SenderID     uint                   `json:"sender_id"`
	ReceiverID   uint                   `json:"receiver_id"`
	Amount       decimal.Decimal        `json:"amount"`
	Method       string                 `json:"method"`
	Purpose      string                 `json:"purpose"`
	Description  string                 `json:"description"`
	PayerContact string                 `json:"payer_contact,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// EscrowRequest asks the escrow manager to capture and hold funds.
type EscrowRequest struct {
	PayerID           uint                   `json:"payer_id"`
	PayeeID           uint                   `json:"payee_id"`
	Amount            decimal.Decimal        `json:"amount"`
	Method            string                 `json:"method"`
	Purpose           string                 `json:"purpose"`
	Description       string                 `json:"description"`
	PayerContact      string                 `json:"payer_contact,omitempty"`
	ReleaseConditions map[string]interface{} `json:"release_conditions,omitempty"`
	ExpiresAt         *time.Time             `json:"expires_at,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}
