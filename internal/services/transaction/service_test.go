package transaction

import (
	"context"
	"strings"
	"testing"
	"time"

	"agripay/internal/models"
	"agripay/internal/paytest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint { return &v }

func TestCreate(t *testing.T) {
	svc := NewService(paytest.NewTransactionRepo())
	ctx := context.Background()

	txn, err := svc.Create(ctx, CreateSpec{
		PayerID:       uintPtr(1),
		PayeeID:       uintPtr(2),
		Amount:        decimal.NewFromInt(4000),
		Type:          models.TransactionTypePayment,
		PaymentMethod: models.PaymentMethodWallet,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(txn.Reference, "TXN-"))
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	assert.Equal(t, "KES", txn.Currency)
	assert.Equal(t, models.PurposeTransfer, txn.Purpose)
	assert.False(t, txn.IsTerminal())

	found, err := svc.GetByReference(ctx, txn.Reference)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, found.ID)
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	svc := NewService(paytest.NewTransactionRepo())

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-50)} {
		_, err := svc.Create(context.Background(), CreateSpec{
			Amount: amount,
			Type:   models.TransactionTypePayment,
		})
		assert.ErrorIs(t, err, ErrInvalidTransactionState)
	}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr bool
	}{
		{name: "pending to completed", from: models.TransactionStatusPending, to: models.TransactionStatusCompleted},
		{name: "pending to failed", from: models.TransactionStatusPending, to: models.TransactionStatusFailed},
		{name: "completed to refunded", from: models.TransactionStatusCompleted, to: models.TransactionStatusRefunded},
		{name: "completed to pending", from: models.TransactionStatusCompleted, to: models.TransactionStatusPending, wantErr: true},
		{name: "completed to failed", from: models.TransactionStatusCompleted, to: models.TransactionStatusFailed, wantErr: true},
		{name: "failed to completed", from: models.TransactionStatusFailed, to: models.TransactionStatusCompleted, wantErr: true},
		{name: "failed to refunded", from: models.TransactionStatusFailed, to: models.TransactionStatusRefunded, wantErr: true},
		{name: "refunded to completed", from: models.TransactionStatusRefunded, to: models.TransactionStatusCompleted, wantErr: true},
		{name: "pending to refunded", from: models.TransactionStatusPending, to: models.TransactionStatusRefunded, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := paytest.NewTransactionRepo()
			svc := NewService(repo)
			ctx := context.Background()

			txn, err := svc.Create(ctx, CreateSpec{
				PayerID: uintPtr(1),
				Amount:  decimal.NewFromInt(100),
				Type:    models.TransactionTypePayment,
			})
			require.NoError(t, err)
			txn.Status = tt.from

			err = svc.Transition(ctx, txn, tt.to, nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransactionState)
				// An illegal move leaves the record untouched.
				assert.Equal(t, tt.from, txn.Status)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, txn.Status)
		})
	}
}

func TestTransitionSetsSettledAt(t *testing.T) {
	svc := NewService(paytest.NewTransactionRepo())
	ctx := context.Background()

	txn, err := svc.Create(ctx, CreateSpec{
		PayerID: uintPtr(1),
		Amount:  decimal.NewFromInt(250),
		Type:    models.TransactionTypePayment,
	})
	require.NoError(t, err)
	assert.Nil(t, txn.SettledAt)

	require.NoError(t, svc.Transition(ctx, txn, models.TransactionStatusCompleted, nil))
	require.NotNil(t, txn.SettledAt)
	assert.WithinDuration(t, time.Now().UTC(), *txn.SettledAt, time.Minute)
}

func TestTransitionAppendsEvents(t *testing.T) {
	svc := NewService(paytest.NewTransactionRepo())
	ctx := context.Background()

	txn, err := svc.Create(ctx, CreateSpec{
		PayerID: uintPtr(1),
		Amount:  decimal.NewFromInt(100),
		Type:    models.TransactionTypePayment,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Transition(ctx, txn, models.TransactionStatusCompleted, map[string]interface{}{"method": "wallet"}))
	require.NoError(t, svc.Transition(ctx, txn, models.TransactionStatusRefunded, nil))

	events, err := svc.History(ctx, txn.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.TransactionStatusPending, events[0].FromStatus)
	assert.Equal(t, models.TransactionStatusCompleted, events[0].ToStatus)
	assert.Equal(t, models.TransactionStatusCompleted, events[1].FromStatus)
	assert.Equal(t, models.TransactionStatusRefunded, events[1].ToStatus)
}

func TestSetExternalReference(t *testing.T) {
	svc := NewService(paytest.NewTransactionRepo())
	ctx := context.Background()

	txn, err := svc.Create(ctx, CreateSpec{
		PayerID:       uintPtr(1),
		Amount:        decimal.NewFromInt(100),
		Type:          models.TransactionTypePayment,
		PaymentMethod: models.PaymentMethodMpesa,
	})
	require.NoError(t, err)

	require.NoError(t, svc.SetExternalReference(ctx, txn, "MPESA-ABC123", "Dial *334# to pay"))

	found, err := svc.FindByExternalReference(ctx, "MPESA-ABC123")
	require.NoError(t, err)
	assert.Equal(t, txn.ID, found.ID)
	assert.Equal(t, "Dial *334# to pay", found.Instructions)
}

func TestSetExternalReferenceDuplicate(t *testing.T) {
	svc := NewService(paytest.NewTransactionRepo())
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateSpec{
		PayerID: uintPtr(1), Amount: decimal.NewFromInt(100),
		Type: models.TransactionTypePayment, PaymentMethod: models.PaymentMethodMpesa,
	})
	require.NoError(t, err)
	require.NoError(t, svc.SetExternalReference(ctx, first, "MPESA-DUP", ""))

	second, err := svc.Create(ctx, CreateSpec{
		PayerID: uintPtr(2), Amount: decimal.NewFromInt(200),
		Type: models.TransactionTypePayment, PaymentMethod: models.PaymentMethodMpesa,
	})
	require.NoError(t, err)

	err = svc.SetExternalReference(ctx, second, "MPESA-DUP", "")
	assert.ErrorIs(t, err, ErrDuplicateReference)
}

func TestFindNotFound(t *testing.T) {
	svc := NewService(paytest.NewTransactionRepo())
	ctx := context.Background()

	_, err := svc.GetByID(ctx, 404)
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	_, err = svc.GetByReference(ctx, "TXN-missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	_, err = svc.FindByExternalReference(ctx, "MPESA-missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestDailyDebitTotal(t *testing.T) {
	repo := paytest.NewTransactionRepo()
	svc := NewService(repo)
	ctx := context.Background()

	for _, amount := range []int64{1000, 2500} {
		txn, err := svc.Create(ctx, CreateSpec{
			PayerID: uintPtr(7), PayeeID: uintPtr(8),
			Amount: decimal.NewFromInt(amount),
			Type:   models.TransactionTypePayment,
		})
		require.NoError(t, err)
		require.NoError(t, svc.Transition(ctx, txn, models.TransactionStatusCompleted, nil))
	}
	// Pending rows never count against the daily limit.
	_, err := svc.Create(ctx, CreateSpec{
		PayerID: uintPtr(7), Amount: decimal.NewFromInt(9999),
		Type: models.TransactionTypePayment,
	})
	require.NoError(t, err)

	total, err := svc.DailyDebitTotal(ctx, 7, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(3500)), "got %s", total)

	other, err := svc.DailyDebitTotal(ctx, 8, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, other.IsZero())
}
