// Package notification defines the outbound notification envelope the
// payment core emits on terminal state changes. Delivery (email, push, SMS)
// is owned by external collaborators.
package notification

import (
	"context"
	"log"
)

// Notification types
const (
	TypePaymentCompleted = "payment_completed"
	TypePaymentFailed    = "payment_failed"
	TypeEscrowFunded     = "escrow_funded"
	TypeEscrowReleased   = "escrow_released"
	TypeEscrowRefunded   = "escrow_refunded"
)

// Notification is the generic envelope emitted to users.
type Notification struct {
	UserID  uint                   `json:"user_id"`
	Type    string                 `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use; delivery failures never fail the money movement.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Service is a minimal logging notifier.
type Service struct{}

// NewService creates a new notification service.
func NewService() *Service { return &Service{} }

// Notify logs the notification envelope.
func (s *Service) Notify(ctx context.Context, n Notification) error {
	log.Printf("notify user=%d type=%s title=%q", n.UserID, n.Type, n.Title)
	return nil
}
