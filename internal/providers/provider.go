// Package providers abstracts external money-movement channels behind a
// uniform adapter contract. The core only ever sees Initiate, VerifyCallback
// and CheckStatus; everything gateway-specific stays inside an adapter.
package providers

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status of a payment attempt as reported by a provider.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusNotFound  Status = "not_found"
)

// Provider errors
var (
	// ErrProviderUnavailable marks transient network/gateway failures. The
	// caller retries later; the transaction stays pending.
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrInvalidCallback     = errors.New("invalid callback payload")
)

// InitiateRequest asks a provider to start collecting a payment.
type InitiateRequest struct {
	Amount       decimal.Decimal
	Currency     string
	PayerContact string
	Description  string
	Metadata     map[string]interface{}
}

// InitiateResult carries the provider reference and the human instructions
// the payer needs to complete the payment out-of-band.
type InitiateResult struct {
	Reference    string
	Status       Status
	Instructions string
}

// CallbackResult is the verified content of a provider callback. Verifying
// the same payload twice yields the same result.
type CallbackResult struct {
	Valid       bool
	Reference   string
	Status      Status
	Amount      decimal.Decimal
	CompletedAt *time.Time
}

// StatusResult is a point-in-time answer from the provider's query API.
type StatusResult struct {
	Status      Status
	Amount      decimal.Decimal
	CompletedAt *time.Time
}

// Adapter is the uniform interface over an external payment channel.
type Adapter interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	VerifyCallback(payload []byte) (*CallbackResult, error)
	CheckStatus(ctx context.Context, reference string) (*StatusResult, error)
}

// Registry holds the configured adapters keyed by payment method name.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

// Get returns the adapter registered under the given method name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}
