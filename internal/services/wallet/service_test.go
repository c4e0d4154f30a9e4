package wallet

import (
	"context"
	"sync"
	"testing"

	"agripay/internal/models"
	"agripay/internal/paytest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryCache is a map-backed Cache used to observe read-through and
// invalidation behavior.
type memoryCache struct {
	mu      sync.Mutex
	wallets map[uint]models.Wallet
}

func newMemoryCache() *memoryCache {
	return &memoryCache{wallets: make(map[uint]models.Wallet)}
}

func (c *memoryCache) GetWallet(_ context.Context, userID uint) (*models.Wallet, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.wallets[userID]
	if !ok {
		return nil, false, nil
	}
	return &w, true, nil
}

func (c *memoryCache) CacheWallet(_ context.Context, w *models.Wallet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallets[w.UserID] = *w
	return nil
}

func (c *memoryCache) InvalidateWallet(_ context.Context, userID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.wallets, userID)
	return nil
}

func newTestService() (Service, *paytest.WalletRepo) {
	repo := paytest.NewWalletRepo()
	return NewService(repo, nil, Config{}), repo
}

func TestEnsureWallet(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	w, err := svc.EnsureWallet(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, uint(42), w.UserID)
	assert.Equal(t, "KES", w.Currency)
	assert.Equal(t, models.WalletStatusActive, w.Status)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.DailyLimit.Equal(decimal.NewFromInt(500000)))
	assert.True(t, w.SingleTransactionLimit.Equal(decimal.NewFromInt(150000)))

	// Idempotent: a second call returns the same wallet.
	again, err := svc.EnsureWallet(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, w.ID, again.ID)
}

func TestGetWalletNotFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.GetWallet(context.Background(), 99)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestGetWalletCacheReadThrough(t *testing.T) {
	repo := paytest.NewWalletRepo()
	cache := newMemoryCache()
	svc := NewService(repo, cache, Config{})
	ctx := context.Background()

	_, err := svc.EnsureWallet(ctx, 7)
	require.NoError(t, err)

	// First read populates the cache.
	_, err = svc.GetWallet(ctx, 7)
	require.NoError(t, err)
	_, found, _ := cache.GetWallet(ctx, 7)
	assert.True(t, found)

	// A mutation invalidates the cached copy.
	locked, err := svc.GetForUpdate(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, svc.Credit(ctx, locked, decimal.NewFromInt(100)))
	_, found, _ = cache.GetWallet(ctx, 7)
	assert.False(t, found)

	fresh, err := svc.GetWallet(ctx, 7)
	require.NoError(t, err)
	assert.True(t, fresh.Balance.Equal(decimal.NewFromInt(100)))
}

func TestDebit(t *testing.T) {
	tests := []struct {
		name        string
		balance     decimal.Decimal
		status      string
		amount      decimal.Decimal
		wantErr     error
		wantBalance string
	}{
		{
			name:        "sufficient funds",
			balance:     decimal.NewFromInt(10000),
			status:      models.WalletStatusActive,
			amount:      decimal.NewFromInt(4000),
			wantBalance: "6000.00",
		},
		{
			name:        "exact balance",
			balance:     decimal.NewFromInt(4000),
			status:      models.WalletStatusActive,
			amount:      decimal.NewFromInt(4000),
			wantBalance: "0.00",
		},
		{
			name:    "insufficient funds",
			balance: decimal.NewFromInt(100),
			status:  models.WalletStatusActive,
			amount:  decimal.NewFromInt(150),
			wantErr: ErrInsufficientFunds,
		},
		{
			name:    "suspended wallet",
			balance: decimal.NewFromInt(10000),
			status:  models.WalletStatusSuspended,
			amount:  decimal.NewFromInt(100),
			wantErr: ErrWalletInactive,
		},
		{
			name:    "closed wallet",
			balance: decimal.NewFromInt(10000),
			status:  models.WalletStatusClosed,
			amount:  decimal.NewFromInt(100),
			wantErr: ErrWalletInactive,
		},
		{
			name:    "zero amount",
			balance: decimal.NewFromInt(10000),
			status:  models.WalletStatusActive,
			amount:  decimal.Zero,
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			balance: decimal.NewFromInt(10000),
			status:  models.WalletStatusActive,
			amount:  decimal.NewFromInt(-5),
			wantErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			ctx := context.Background()

			w, err := svc.EnsureWallet(ctx, 1)
			require.NoError(t, err)
			w.Balance = tt.balance
			w.Status = tt.status
			require.NoError(t, repo.Update(w))

			err = svc.Debit(ctx, w, tt.amount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				stored, _ := repo.GetByUserID(1)
				assert.True(t, stored.Balance.Equal(tt.balance), "balance must not change")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantBalance, w.Balance.StringFixed(2))
			assert.NotNil(t, w.LastTransactionAt)
		})
	}
}

func TestCredit(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	w, err := svc.EnsureWallet(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Credit(ctx, w, decimal.RequireFromString("4875.50")))
	assert.Equal(t, "4875.50", w.Balance.StringFixed(2))
	assert.NotNil(t, w.LastTransactionAt)

	err = svc.Credit(ctx, w, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreditInactiveWallet(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	w, err := svc.EnsureWallet(ctx, 1)
	require.NoError(t, err)
	w.Status = models.WalletStatusSuspended
	require.NoError(t, repo.Update(w))

	err = svc.Credit(ctx, w, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ErrWalletInactive)
}

func TestGetForUpdateCreatesWallet(t *testing.T) {
	svc, _ := newTestService()

	w, err := svc.GetForUpdate(context.Background(), 55)
	require.NoError(t, err)
	assert.Equal(t, uint(55), w.UserID)
	assert.Equal(t, models.WalletStatusActive, w.Status)
}

func TestLifecycle(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.EnsureWallet(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Suspend(ctx, 1, "fraud review"))
	w, err := svc.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.WalletStatusSuspended, w.Status)
	assert.Equal(t, "fraud review", w.StatusReason)
	assert.False(t, w.IsActive())

	require.NoError(t, svc.Reactivate(ctx, 1))
	w, err = svc.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.WalletStatusActive, w.Status)
	assert.Empty(t, w.StatusReason)

	require.NoError(t, svc.Close(ctx, 1, "account deleted"))
	// A closed wallet cannot be reopened.
	err = svc.Reactivate(ctx, 1)
	assert.ErrorIs(t, err, ErrWalletInactive)

	err = svc.Suspend(ctx, 2, "no wallet")
	assert.ErrorIs(t, err, ErrWalletNotFound)
}
