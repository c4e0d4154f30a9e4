// Package main is the entry point for the payment service.
// It initializes all dependencies, sets up the HTTP server,
// and starts the background sweeps.
package main

import (
	"context"
	"log"
	"time"

	"agripay/internal/config"
	"agripay/internal/repositories"
	"agripay/internal/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	config.LoadEnv()

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	sqlDB, err := repositories.DB.DB()
	if err != nil {
		log.Fatalf("failed to get database instance: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	defer func() {
		if err := sqlDB.Close(); err != nil {
			log.Printf("failed to close database connection: %v", err)
		}
		if repositories.CacheService != nil {
			if err := repositories.CacheService.Close(); err != nil {
				log.Printf("failed to close redis connection: %v", err)
			}
		}
	}()

	app := fiber.New()

	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	paymentService, escrowService := routes.SetupRoutes(app, repositories.DB)

	// Reconciliation sweep: resolve provider payments whose callback never
	// arrived.
	reconcileEvery := config.GetDurationEnv("RECONCILE_INTERVAL", 5*time.Minute)
	go func() {
		ticker := time.NewTicker(reconcileEvery)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			n, err := paymentService.ReconcilePending(ctx, 10*time.Minute, 100)
			cancel()
			if err != nil {
				log.Printf("reconciliation sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("reconciliation resolved %d transactions", n)
			}
		}
	}()

	// Escrow expiry sweep.
	expireEvery := config.GetDurationEnv("ESCROW_EXPIRY_INTERVAL", 10*time.Minute)
	go func() {
		ticker := time.NewTicker(expireEvery)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			n, err := escrowService.ExpireDue(ctx, 100)
			cancel()
			if err != nil {
				log.Printf("escrow expiry sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("expired %d escrows", n)
			}
		}
	}()

	port := config.GetEnv("PORT", "8080")
	log.Printf("starting server on :%s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
