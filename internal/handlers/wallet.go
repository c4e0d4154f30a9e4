package handlers

import (
	"errors"
	"strconv"

	"agripay/internal/services/transaction"
	"agripay/internal/services/wallet"
	"agripay/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type WalletHandler struct {
	walletService wallet.Service
	txlog         transaction.Service
}

func NewWalletHandler(walletService wallet.Service, txlog transaction.Service) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		txlog:         txlog,
	}
}

func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	w, err := h.walletService.EnsureWallet(c.Context(), claims.UserID)
	if err != nil {
		return utils.InternalError(c, "failed to get wallet")
	}

	return utils.Success(c, fiber.Map{"wallet": w})
}

func (h *WalletHandler) GetTransactions(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	txns, err := h.txlog.ListByUser(c.Context(), claims.UserID, limit, offset)
	if err != nil {
		return utils.InternalError(c, "failed to list transactions")
	}

	return utils.Success(c, fiber.Map{"transactions": txns})
}

func (h *WalletHandler) SuspendWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	if claims.Role != "admin" {
		return utils.Unauthorized(c, "admin role required")
	}

	userID, err := strconv.ParseUint(c.Params("userId"), 10, 32)
	if err != nil {
		return utils.BadRequest(c, "invalid user id")
	}

	var input struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	if err := h.walletService.Suspend(c.Context(), uint(userID), input.Reason); err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return utils.NotFound(c, "wallet not found")
		}
		return utils.InternalError(c, "failed to suspend wallet")
	}

	return utils.Success(c, fiber.Map{"message": "wallet suspended"})
}

func (h *WalletHandler) ReactivateWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	if claims.Role != "admin" {
		return utils.Unauthorized(c, "admin role required")
	}

	userID, err := strconv.ParseUint(c.Params("userId"), 10, 32)
	if err != nil {
		return utils.BadRequest(c, "invalid user id")
	}

	if err := h.walletService.Reactivate(c.Context(), uint(userID)); err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return utils.NotFound(c, "wallet not found")
		}
		return utils.InternalError(c, "failed to reactivate wallet")
	}

	return utils.Success(c, fiber.Map{"message": "wallet reactivated"})
}
