// Package routes wires the service graph and declares the API routes.
package routes

import (
	"agripay/internal/config"
	"agripay/internal/handlers"
	"agripay/internal/middleware"
	"agripay/internal/providers"
	"agripay/internal/repositories"
	"agripay/internal/services/escrow"
	"agripay/internal/services/notification"
	"agripay/internal/services/payment"
	"agripay/internal/services/settlement"
	"agripay/internal/services/transaction"
	"agripay/internal/services/wallet"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupRoutes builds the service graph and registers all HTTP routes. The
// payment and escrow services are returned for the background reconciliation
// and expiry sweeps.
func SetupRoutes(app *fiber.App, db *gorm.DB) (payment.Service, escrow.Service) {
	// Repositories
	walletRepo := repositories.NewWalletRepository(db)
	txnRepo := repositories.NewTransactionRepository(db)
	escrowRepo := repositories.NewEscrowRepository(db)
	txManager := repositories.NewTxManager(db)

	// Provider adapters
	mpesaSecret := []byte(config.GetEnv("MPESA_CALLBACK_SECRET", "mpesa-dev-secret"))
	airtelSecret := []byte(config.GetEnv("AIRTEL_CALLBACK_SECRET", "airtel-dev-secret"))
	codSecret := []byte(config.GetEnv("COD_CALLBACK_SECRET", "cod-dev-secret"))
	registry := providers.NewRegistry(
		providers.NewMpesa(mpesaSecret),
		providers.NewAirtel(airtelSecret),
		providers.NewCashOnDelivery(codSecret),
	)

	// Services in dependency order
	notifier := notification.NewService()
	engine := settlement.NewEngine(nil)
	walletService := wallet.NewService(walletRepo, repositories.CacheService, wallet.Config{
		DefaultCurrency: config.GetEnv("DEFAULT_CURRENCY", "KES"),
	})
	txlogService := transaction.NewService(txnRepo)
	paymentService := payment.NewService(
		txManager, walletService, txlogService, escrowRepo, registry, engine, notifier)
	escrowService := escrow.NewService(
		txManager, escrowRepo, walletService, txlogService, paymentService, engine, notifier)

	// Handlers
	paymentHandler := handlers.NewPaymentHandler(paymentService, txlogService)
	escrowHandler := handlers.NewEscrowHandler(escrowService)
	walletHandler := handlers.NewWalletHandler(walletService, txlogService)
	authMiddleware := middleware.NewAuthMiddleware()

	app.Get("/health", handlers.HealthCheck)

	api := app.Group("/api/v1")

	// Provider callbacks carry their own signature; no bearer token.
	api.Post("/payments/callback/:provider", paymentHandler.ProcessCallback)

	authed := api.Use(authMiddleware.Handler)
	authed.Post("/payments", paymentHandler.InitiatePayment)
	authed.Get("/transactions/:reference", paymentHandler.GetTransaction)

	authed.Post("/escrows", escrowHandler.CreateEscrow)
	authed.Get("/escrows/:id", escrowHandler.GetEscrow)
	authed.Post("/escrows/:id/release", escrowHandler.ReleaseEscrow)
	authed.Post("/escrows/:id/refund", escrowHandler.RefundEscrow)

	authed.Get("/wallet", walletHandler.GetWallet)
	authed.Get("/wallet/transactions", walletHandler.GetTransactions)
	authed.Post("/wallets/:userId/suspend", walletHandler.SuspendWallet)
	authed.Post("/wallets/:userId/reactivate", walletHandler.ReactivateWallet)

	return paymentService, escrowService
}
