package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// pendingPayment is a gateway-side record of an initiated payment.
type pendingPayment struct {
	Reference    string
	Amount       decimal.Decimal
	Currency     string
	PayerContact string
	Status       Status
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// callbackPayload is the wire format the simulated gateways deliver. Real
// mobile-money webhooks carry the same shape: reference, status, amount and
// an HMAC signature over the three.
type callbackPayload struct {
	Reference   string     `json:"reference"`
	Status      string     `json:"status"`
	Amount      string     `json:"amount"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Signature   string     `json:"signature"`
}

// Gateway is a simulated mobile-money gateway. The in-memory pending map is
// strictly a test-double concern; the Adapter contract itself is stateless
// from the core's point of view, which keys everything off the reference it
// stored on the transaction row.
type Gateway struct {
	name         string
	refPrefix    string
	secret       []byte
	instructions func(ref string, amount decimal.Decimal, currency string) string

	mu          sync.Mutex
	pending     map[string]*pendingPayment
	unavailable bool
}

// NewGateway creates a simulated gateway.
func NewGateway(name, refPrefix string, secret []byte,
	instructions func(ref string, amount decimal.Decimal, currency string) string) *Gateway {
	return &Gateway{
		name:         name,
		refPrefix:    refPrefix,
		secret:       secret,
		instructions: instructions,
		pending:      make(map[string]*pendingPayment),
	}
}

func (g *Gateway) Name() string { return g.name }

// SetUnavailable toggles a simulated outage. While set, Initiate and
// CheckStatus fail with ErrProviderUnavailable.
func (g *Gateway) SetUnavailable(down bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unavailable = down
}

func (g *Gateway) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if err := ctx.Err(); err != nil {
		// Keep the context sentinel visible; callers distinguish timeouts
		// from plain outages.
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return nil, ErrProviderUnavailable
	}

	ref := fmt.Sprintf("%s-%s", g.refPrefix,
		strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12]))
	g.pending[ref] = &pendingPayment{
		Reference:    ref,
		Amount:       req.Amount,
		Currency:     req.Currency,
		PayerContact: req.PayerContact,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}

	return &InitiateResult{
		Reference:    ref,
		Status:       StatusPending,
		Instructions: g.instructions(ref, req.Amount, req.Currency),
	}, nil
}

// VerifyCallback checks the payload signature and records the reported
// status. Calling it again with the same payload reads the stored record and
// returns the identical result.
func (g *Gateway) VerifyCallback(payload []byte) (*CallbackResult, error) {
	var cb callbackPayload
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	if cb.Reference == "" || cb.Status == "" {
		return nil, ErrInvalidCallback
	}

	if !g.verifySignature(cb) {
		return &CallbackResult{Valid: false, Reference: cb.Reference}, nil
	}

	amount, err := decimal.NewFromString(cb.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: bad amount %q", ErrInvalidCallback, cb.Amount)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.pending[cb.Reference]
	if ok && p.Status != StatusPending {
		// Duplicate delivery: return what we already settled on.
		return &CallbackResult{
			Valid:       true,
			Reference:   p.Reference,
			Status:      p.Status,
			Amount:      p.Amount,
			CompletedAt: p.CompletedAt,
		}, nil
	}

	status := Status(cb.Status)
	completedAt := cb.CompletedAt
	if completedAt == nil && status == StatusCompleted {
		now := time.Now().UTC()
		completedAt = &now
	}
	if ok {
		p.Status = status
		p.CompletedAt = completedAt
		amount = p.Amount
	}

	return &CallbackResult{
		Valid:       true,
		Reference:   cb.Reference,
		Status:      status,
		Amount:      amount,
		CompletedAt: completedAt,
	}, nil
}

func (g *Gateway) CheckStatus(ctx context.Context, reference string) (*StatusResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return nil, ErrProviderUnavailable
	}

	p, ok := g.pending[reference]
	if !ok {
		return &StatusResult{Status: StatusNotFound}, nil
	}
	return &StatusResult{
		Status:      p.Status,
		Amount:      p.Amount,
		CompletedAt: p.CompletedAt,
	}, nil
}

// SimulateCallback produces the signed payload the gateway would deliver for
// a payment reaching the given status. Test and demo helper only.
func (g *Gateway) SimulateCallback(reference string, status Status) ([]byte, error) {
	g.mu.Lock()
	p, ok := g.pending[reference]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown reference %q", reference)
	}

	cb := callbackPayload{
		Reference: reference,
		Status:    string(status),
		Amount:    p.Amount.StringFixed(2),
	}
	if status == StatusCompleted {
		now := time.Now().UTC()
		cb.CompletedAt = &now
	}
	cb.Signature = g.sign(cb.Reference, cb.Status, cb.Amount)
	return json.Marshal(cb)
}

func (g *Gateway) sign(reference, status, amount string) string {
	mac := hmac.New(sha256.New, g.secret)
	fmt.Fprintf(mac, "%s|%s|%s", reference, status, amount)
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *Gateway) verifySignature(cb callbackPayload) bool {
	want := g.sign(cb.Reference, cb.Status, cb.Amount)
	return hmac.Equal([]byte(want), []byte(cb.Signature))
}
