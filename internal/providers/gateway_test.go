package providers

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"agripay/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-callback-secret")

func initiateTestPayment(t *testing.T, g *Gateway) *InitiateResult {
	t.Helper()
	res, err := g.Initiate(context.Background(), InitiateRequest{
		Amount:       decimal.NewFromInt(5000),
		Currency:     "KES",
		PayerContact: "+254700000001",
		Description:  "maize order",
	})
	require.NoError(t, err)
	return res
}

func TestGatewayInitiate(t *testing.T) {
	g := NewMpesa(testSecret)
	res := initiateTestPayment(t, g)

	assert.True(t, strings.HasPrefix(res.Reference, "MPESA-"))
	assert.Equal(t, StatusPending, res.Status)
	assert.Contains(t, res.Instructions, res.Reference)
	assert.Contains(t, res.Instructions, "5000.00")

	status, err := g.CheckStatus(context.Background(), res.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status.Status)
}

func TestGatewayVerifyCallback(t *testing.T) {
	g := NewAirtel(testSecret)
	res := initiateTestPayment(t, g)

	payload, err := g.SimulateCallback(res.Reference, StatusCompleted)
	require.NoError(t, err)

	result, err := g.VerifyCallback(payload)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, res.Reference, result.Reference)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.True(t, result.Amount.Equal(decimal.NewFromInt(5000)))
	require.NotNil(t, result.CompletedAt)

	// The gateway's own record reflects the settlement.
	status, err := g.CheckStatus(context.Background(), res.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status.Status)
}

func TestGatewayVerifyCallbackIdempotent(t *testing.T) {
	g := NewMpesa(testSecret)
	res := initiateTestPayment(t, g)

	payload, err := g.SimulateCallback(res.Reference, StatusCompleted)
	require.NoError(t, err)

	first, err := g.VerifyCallback(payload)
	require.NoError(t, err)
	second, err := g.VerifyCallback(payload)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Reference, second.Reference)
	require.NotNil(t, second.CompletedAt)
	assert.Equal(t, *first.CompletedAt, *second.CompletedAt)
}

func TestGatewayVerifyCallbackBadSignature(t *testing.T) {
	g := NewMpesa(testSecret)
	res := initiateTestPayment(t, g)

	payload, err := g.SimulateCallback(res.Reference, StatusCompleted)
	require.NoError(t, err)

	// Tamper with the reported amount; the signature no longer matches.
	var cb map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &cb))
	cb["amount"] = "9999.00"
	tampered, err := json.Marshal(cb)
	require.NoError(t, err)

	result, err := g.VerifyCallback(tampered)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestGatewayVerifyCallbackMalformed(t *testing.T) {
	g := NewMpesa(testSecret)

	_, err := g.VerifyCallback([]byte("not json"))
	assert.ErrorIs(t, err, ErrInvalidCallback)

	_, err = g.VerifyCallback([]byte(`{"status":"completed"}`))
	assert.ErrorIs(t, err, ErrInvalidCallback)
}

func TestGatewayCheckStatusUnknownReference(t *testing.T) {
	g := NewMpesa(testSecret)

	status, err := g.CheckStatus(context.Background(), "MPESA-NOSUCHREF")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, status.Status)
}

func TestGatewayUnavailable(t *testing.T) {
	g := NewMpesa(testSecret)
	res := initiateTestPayment(t, g)

	g.SetUnavailable(true)

	_, err := g.Initiate(context.Background(), InitiateRequest{
		Amount: decimal.NewFromInt(100), Currency: "KES",
	})
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	_, err = g.CheckStatus(context.Background(), res.Reference)
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	g.SetUnavailable(false)
	status, err := g.CheckStatus(context.Background(), res.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status.Status)
}

func TestGatewayInitiateDeadContext(t *testing.T) {
	g := NewMpesa(testSecret)

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := g.Initiate(ctx, InitiateRequest{Amount: decimal.NewFromInt(100), Currency: "KES"})
		assert.ErrorIs(t, err, ErrProviderUnavailable)
		assert.ErrorIs(t, err, context.Canceled)
	})

	// The deadline sentinel must survive the wrap: callers keep timed-out
	// initiations pending instead of rolling them back.
	t.Run("deadline exceeded", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		_, err := g.Initiate(ctx, InitiateRequest{Amount: decimal.NewFromInt(100), Currency: "KES"})
		assert.ErrorIs(t, err, ErrProviderUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		_, err = g.CheckStatus(ctx, "MPESA-ANYREF")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(NewMpesa(testSecret), NewAirtel(testSecret), NewCashOnDelivery(testSecret))

	for _, method := range []string{
		models.PaymentMethodMpesa,
		models.PaymentMethodAirtel,
		models.PaymentMethodCashOnDelivery,
	} {
		adapter, ok := registry.Get(method)
		require.True(t, ok, method)
		assert.Equal(t, method, adapter.Name())
	}

	_, ok := registry.Get("card")
	assert.False(t, ok)
}
