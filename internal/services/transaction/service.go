package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agripay/internal/models"
	"agripay/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// validTransitions is the transaction state graph. Anything not listed here
// is illegal.
var validTransitions = map[string][]string{
	models.TransactionStatusPending: {
		models.TransactionStatusCompleted,
		models.TransactionStatusFailed,
	},
	models.TransactionStatusCompleted: {
		models.TransactionStatusRefunded,
	},
}

type service struct {
	repo repositories.TransactionRepository
}

// NewService creates a new transaction log service.
func NewService(repo repositories.TransactionRepository) Service {
	if repo == nil {
		panic("repo is required")
	}
	return &service{repo: repo}
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Create(ctx context.Context, spec CreateSpec) (*models.Transaction, error) {
	if spec.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidTransactionState)
	}
	if spec.Currency == "" {
		spec.Currency = "KES"
	}
	if spec.Purpose == "" {
		spec.Purpose = models.PurposeTransfer
	}

	txn := &models.Transaction{
		Reference:     fmt.Sprintf("TXN-%s", uuid.NewString()),
		PayerID:       spec.PayerID,
		PayeeID:       spec.PayeeID,
		Amount:        spec.Amount,
		Currency:      spec.Currency,
		Type:          spec.Type,
		PaymentMethod: spec.PaymentMethod,
		Purpose:       spec.Purpose,
		Status:        models.TransactionStatusPending,
		Description:   spec.Description,
		Metadata:      models.NewJSON(spec.Metadata),
	}
	if err := s.repo.Create(txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) Transition(ctx context.Context, txn *models.Transaction, newStatus string, detail map[string]interface{}) error {
	if !transitionAllowed(txn.Status, newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransactionState, txn.Status, newStatus)
	}

	prev := txn.Status
	txn.Status = newStatus
	if newStatus == models.TransactionStatusCompleted && txn.SettledAt == nil {
		now := time.Now().UTC()
		txn.SettledAt = &now
	}
	if err := s.repo.Update(txn); err != nil {
		txn.Status = prev
		return err
	}

	event := &models.TransactionEvent{
		TransactionID: txn.ID,
		FromStatus:    prev,
		ToStatus:      newStatus,
		Detail:        models.NewJSON(detail),
	}
	if err := s.repo.CreateEvent(event); err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}
	return nil
}

func (s *service) SetExternalReference(ctx context.Context, txn *models.Transaction, ref, instructions string) error {
	txn.ExternalReference = &ref
	txn.Instructions = instructions
	if err := s.repo.Update(txn); err != nil {
		if errors.Is(err, repositories.ErrDuplicateReference) {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (s *service) Update(ctx context.Context, txn *models.Transaction) error {
	return s.repo.Update(txn)
}

func (s *service) GetByID(ctx context.Context, id uint) (*models.Transaction, error) {
	txn, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return txn, nil
}

func (s *service) GetByReference(ctx context.Context, ref string) (*models.Transaction, error) {
	txn, err := s.repo.GetByReference(ref)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return txn, nil
}

func (s *service) FindByExternalReference(ctx context.Context, ref string) (*models.Transaction, error) {
	txn, err := s.repo.GetByExternalReference(ref)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return txn, nil
}

func (s *service) FindByExternalReferenceForUpdate(ctx context.Context, ref string) (*models.Transaction, error) {
	txn, err := s.repo.GetByExternalReferenceForUpdate(ref)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return txn, nil
}

func (s *service) History(ctx context.Context, transactionID uint) ([]models.TransactionEvent, error) {
	return s.repo.ListEvents(transactionID)
}

func (s *service) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByUser(userID, limit, offset)
}

func (s *service) ListPendingProvider(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error) {
	methods := []string{
		models.PaymentMethodMpesa,
		models.PaymentMethodAirtel,
		models.PaymentMethodCashOnDelivery,
	}
	return s.repo.ListPending(methods, olderThan, limit)
}

func (s *service) DailyDebitTotal(ctx context.Context, userID uint, day time.Time) (decimal.Decimal, error) {
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return s.repo.DailyDebitTotal(userID, start, start.Add(24*time.Hour))
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
