package wallet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"agripay/internal/models"
	"agripay/internal/repositories"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type service struct {
	repo   repositories.WalletRepository
	cache  Cache
	config Config
}

// NewService creates a new wallet ledger service.
func NewService(repo repositories.WalletRepository, cache Cache, config Config) Service {
	if repo == nil {
		panic("repo is required")
	}
	if config.DefaultCurrency == "" {
		config.DefaultCurrency = "KES"
	}
	if config.DefaultDailyLimit.IsZero() {
		config.DefaultDailyLimit = decimal.NewFromInt(500000)
	}
	if config.DefaultSingleTransactionLimit.IsZero() {
		config.DefaultSingleTransactionLimit = decimal.NewFromInt(150000)
	}
	return &service{repo: repo, cache: cache, config: config}
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx), cache: s.cache, config: s.config}
}

func (s *service) EnsureWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	w, err := s.repo.GetByUserID(userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, repositories.ErrWalletNotFound) {
		return nil, err
	}

	w = &models.Wallet{
		UserID:                 userID,
		Balance:                decimal.Zero,
		PendingBalance:         decimal.Zero,
		Currency:               s.config.DefaultCurrency,
		Status:                 models.WalletStatusActive,
		DailyLimit:             s.config.DefaultDailyLimit,
		SingleTransactionLimit: s.config.DefaultSingleTransactionLimit,
	}
	if err := s.repo.Create(w); err != nil {
		// Concurrent creation loses the unique-index race; re-read.
		if existing, getErr := s.repo.GetByUserID(userID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return w, nil
}

func (s *service) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	if s.cache != nil {
		if w, found, err := s.cache.GetWallet(ctx, userID); err == nil && found {
			return w, nil
		}
	}

	w, err := s.repo.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.CacheWallet(ctx, w)
	}
	return w, nil
}

func (s *service) GetForUpdate(ctx context.Context, userID uint) (*models.Wallet, error) {
	w, err := s.repo.GetByUserIDForUpdate(userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, repositories.ErrWalletNotFound) {
		return nil, err
	}
	if _, err := s.EnsureWallet(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.GetByUserIDForUpdate(userID)
}

func (s *service) Debit(ctx context.Context, w *models.Wallet, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if !w.IsActive() {
		return ErrWalletInactive
	}
	if w.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	now := time.Now().UTC()
	w.Balance = w.Balance.Sub(amount)
	w.LastTransactionAt = &now
	if err := s.repo.Update(w); err != nil {
		return err
	}

	s.invalidate(ctx, w.UserID)
	return nil
}

func (s *service) Credit(ctx context.Context, w *models.Wallet, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if !w.IsActive() {
		return ErrWalletInactive
	}

	now := time.Now().UTC()
	w.Balance = w.Balance.Add(amount)
	w.LastTransactionAt = &now
	if err := s.repo.Update(w); err != nil {
		return err
	}

	s.invalidate(ctx, w.UserID)
	return nil
}

func (s *service) Suspend(ctx context.Context, userID uint, reason string) error {
	return s.setStatus(ctx, userID, models.WalletStatusSuspended, reason)
}

func (s *service) Reactivate(ctx context.Context, userID uint) error {
	return s.setStatus(ctx, userID, models.WalletStatusActive, "")
}

func (s *service) Close(ctx context.Context, userID uint, reason string) error {
	return s.setStatus(ctx, userID, models.WalletStatusClosed, reason)
}

func (s *service) setStatus(ctx context.Context, userID uint, status, reason string) error {
	w, err := s.repo.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return ErrWalletNotFound
		}
		return err
	}
	if w.Status == models.WalletStatusClosed && status != models.WalletStatusClosed {
		return fmt.Errorf("%w: wallet is closed", ErrWalletInactive)
	}

	w.Status = status
	w.StatusReason = reason
	if err := s.repo.Update(w); err != nil {
		return err
	}

	s.invalidate(ctx, userID)
	return nil
}

func (s *service) invalidate(ctx context.Context, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateWallet(ctx, userID); err != nil {
		// Stale cache entries self-expire; a failed invalidation is not fatal.
		log.Printf("failed to invalidate wallet cache for user %d: %v", userID, err)
	}
}
