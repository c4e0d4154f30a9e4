package handlers

import (
	"errors"
	"strconv"
	"time"

	"agripay/internal/models"
	"agripay/internal/services/escrow"
	"agripay/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type EscrowHandler struct {
	escrowService escrow.Service
}

func NewEscrowHandler(escrowService escrow.Service) *EscrowHandler {
	return &EscrowHandler{escrowService: escrowService}
}

func (h *EscrowHandler) CreateEscrow(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		PayeeID           uint                   `json:"payee_id"`
		Amount            decimal.Decimal        `json:"amount"`
		Method            string                 `json:"method"`
		Purpose           string                 `json:"purpose"`
		Description       string                 `json:"description"`
		PayerContact      string                 `json:"payer_contact"`
		ReleaseConditions map[string]interface{} `json:"release_conditions"`
		ExpiresAt         *time.Time             `json:"expires_at"`
		Metadata          map[string]interface{} `json:"metadata"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	acct, txn, err := h.escrowService.Fund(c.Context(), models.EscrowRequest{
		PayerID:           claims.UserID,
		PayeeID:           input.PayeeID,
		Amount:            input.Amount,
		Method:            input.Method,
		Purpose:           input.Purpose,
		Description:       input.Description,
		PayerContact:      input.PayerContact,
		ReleaseConditions: input.ReleaseConditions,
		ExpiresAt:         input.ExpiresAt,
		Metadata:          input.Metadata,
	})
	if err != nil {
		return paymentError(c, err)
	}

	return utils.Success(c, fiber.Map{
		"escrow":      acct,
		"transaction": txn,
	})
}

func (h *EscrowHandler) ReleaseEscrow(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	escrowID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return utils.BadRequest(c, "invalid escrow id")
	}

	acct, txn, err := h.escrowService.Release(c.Context(), uint(escrowID), claims.UserID)
	if err != nil {
		return escrowError(c, err)
	}

	return utils.Success(c, fiber.Map{
		"escrow":      acct,
		"transaction": txn,
	})
}

func (h *EscrowHandler) RefundEscrow(c *fiber.Ctx) error {
	if _, err := extractUserClaims(c); err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	escrowID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return utils.BadRequest(c, "invalid escrow id")
	}

	acct, txn, err := h.escrowService.Refund(c.Context(), uint(escrowID))
	if err != nil {
		return escrowError(c, err)
	}

	return utils.Success(c, fiber.Map{
		"escrow":      acct,
		"transaction": txn,
	})
}

func (h *EscrowHandler) GetEscrow(c *fiber.Ctx) error {
	if _, err := extractUserClaims(c); err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	escrowID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return utils.BadRequest(c, "invalid escrow id")
	}

	acct, err := h.escrowService.Get(c.Context(), uint(escrowID))
	if err != nil {
		return escrowError(c, err)
	}

	return utils.Success(c, fiber.Map{"escrow": acct})
}

func escrowError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, escrow.ErrEscrowNotFound):
		return utils.NotFound(c, "escrow not found")
	case errors.Is(err, escrow.ErrEscrowNotReleasable),
		errors.Is(err, escrow.ErrEscrowNotRefundable):
		return utils.Conflict(c, err.Error())
	}
	return utils.InternalError(c, "escrow operation failed")
}
