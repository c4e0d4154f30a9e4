// Package handlers exposes the payment core over HTTP. Handlers only decode
// requests, call the services and encode results; all business rules live in
// the service layer.
package handlers

import (
	"errors"

	"agripay/internal/models"
	"agripay/internal/services/payment"
	"agripay/internal/services/transaction"
	"agripay/internal/services/wallet"
	"agripay/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	paymentService payment.Service
	txlog          transaction.Service
}

func NewPaymentHandler(paymentService payment.Service, txlog transaction.Service) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		txlog:          txlog,
	}
}

// extractUserClaims is a helper to pull the authenticated caller's claims.
func extractUserClaims(c *fiber.Ctx) (*models.UserClaims, error) {
	claims, ok := c.Locals("claims").(*models.UserClaims)
	if !ok || claims == nil {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}

func (h *PaymentHandler) InitiatePayment(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		ReceiverID   uint                   `json:"receiver_id"`
		Amount       decimal.Decimal        `json:"amount"`
		Method       string                 `json:"method"`
		Purpose      string                 `json:"purpose"`
		Description  string                 `json:"description"`
		PayerContact string                 `json:"payer_contact"`
		Metadata     map[string]interface{} `json:"metadata"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	txn, err := h.paymentService.InitiatePayment(c.Context(), models.PaymentRequest{
		SenderID:     claims.UserID,
		ReceiverID:   input.ReceiverID,
		Amount:       input.Amount,
		Method:       input.Method,
		Purpose:      input.Purpose,
		Description:  input.Description,
		PayerContact: input.PayerContact,
		Metadata:     input.Metadata,
	})
	if err != nil {
		return paymentError(c, err)
	}

	return utils.Success(c, fiber.Map{"transaction": txn})
}

// ProcessCallback receives forwarded provider webhook payloads. The callback
// endpoint itself is unauthenticated; payload authenticity is established by
// the provider signature inside the payload.
func (h *PaymentHandler) ProcessCallback(c *fiber.Ctx) error {
	provider := c.Params("provider")

	txn, err := h.paymentService.ProcessCallback(c.Context(), provider, c.Body())
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrUnknownPaymentMethod):
			return utils.NotFound(c, "unknown provider")
		case errors.Is(err, payment.ErrInvalidCallback):
			return utils.BadRequest(c, "invalid callback payload")
		case errors.Is(err, transaction.ErrTransactionNotFound):
			return utils.NotFound(c, "transaction not found")
		}
		return utils.InternalError(c, "failed to process callback")
	}

	return utils.Success(c, fiber.Map{"transaction": txn})
}

func (h *PaymentHandler) GetTransaction(c *fiber.Ctx) error {
	if _, err := extractUserClaims(c); err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	txn, err := h.txlog.GetByReference(c.Context(), c.Params("reference"))
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound) {
			return utils.NotFound(c, "transaction not found")
		}
		return utils.InternalError(c, "failed to get transaction")
	}

	events, err := h.txlog.History(c.Context(), txn.ID)
	if err != nil {
		return utils.InternalError(c, "failed to get transaction history")
	}

	return utils.Success(c, fiber.Map{
		"transaction": txn,
		"events":      events,
	})
}

func paymentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, payment.ErrSelfPayment),
		errors.Is(err, payment.ErrUnknownPaymentMethod):
		return utils.BadRequest(c, err.Error())
	case errors.Is(err, payment.ErrLimitExceeded):
		return utils.Conflict(c, err.Error())
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return utils.Conflict(c, "insufficient funds")
	case errors.Is(err, wallet.ErrWalletInactive):
		return utils.Conflict(c, "wallet is not active")
	}
	return utils.InternalError(c, "payment failed")
}
