package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"agripay/internal/models"
	"agripay/internal/providers"
	"agripay/internal/repositories"
	"agripay/internal/services/notification"
	"agripay/internal/services/settlement"
	"agripay/internal/services/transaction"
	"agripay/internal/services/wallet"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultInitiateTimeout bounds a single provider Initiate call.
const DefaultInitiateTimeout = 30 * time.Second

type service struct {
	txm      repositories.TxManager
	ledger   wallet.Service
	txlog    transaction.Service
	escrows  repositories.EscrowRepository
	registry *providers.Registry
	engine   *settlement.Engine
	notifier notification.Notifier

	initiateTimeout time.Duration
}

// NewService creates the payment entry point.
func NewService(
	txm repositories.TxManager,
	ledger wallet.Service,
	txlog transaction.Service,
	escrows repositories.EscrowRepository,
	registry *providers.Registry,
	engine *settlement.Engine,
	notifier notification.Notifier,
) Service {
	if txm == nil {
		panic("tx manager is required")
	}
	if ledger == nil {
		panic("wallet ledger is required")
	}
	if txlog == nil {
		panic("transaction log is required")
	}
	if registry == nil {
		panic("provider registry is required")
	}
	if engine == nil {
		panic("settlement engine is required")
	}
	return &service{
		txm:             txm,
		ledger:          ledger,
		txlog:           txlog,
		escrows:         escrows,
		registry:        registry,
		engine:          engine,
		notifier:        notifier,
		initiateTimeout: DefaultInitiateTimeout,
	}
}

// boundTxManager joins an already-open transaction instead of starting a new
// one, so escrow funding shares its caller's unit of work.
type boundTxManager struct {
	tx *gorm.DB
}

func (m boundTxManager) Do(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(m.tx)
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	clone := *s
	clone.txm = boundTxManager{tx: tx}
	return &clone
}

func (s *service) InitiatePayment(ctx context.Context, req models.PaymentRequest) (*models.Transaction, error) {
	return s.Initiate(ctx, models.TransactionTypePayment, req)
}

func (s *service) Initiate(ctx context.Context, txnType string, req models.PaymentRequest) (*models.Transaction, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if req.SenderID == req.ReceiverID {
		return nil, ErrSelfPayment
	}
	if req.Purpose == "" {
		req.Purpose = models.PurposeTransfer
	}

	switch req.Method {
	case models.PaymentMethodWallet:
		return s.initiateWalletPayment(ctx, txnType, req)
	case models.PaymentMethodMpesa, models.PaymentMethodAirtel, models.PaymentMethodCashOnDelivery:
		return s.initiateProviderPayment(ctx, txnType, req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, req.Method)
	}
}

// initiateWalletPayment moves value between two wallets in one unit of work.
// Wallet rows are locked in ascending user-id order regardless of direction,
// so two opposing concurrent transfers cannot deadlock.
func (s *service) initiateWalletPayment(ctx context.Context, txnType string, req models.PaymentRequest) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.txm.Do(ctx, func(dtx *gorm.DB) error {
		ledger := s.ledger.WithTx(dtx)
		txlog := s.txlog.WithTx(dtx)

		first, second := req.SenderID, req.ReceiverID
		if second < first {
			first, second = second, first
		}
		firstWallet, err := ledger.GetForUpdate(ctx, first)
		if err != nil {
			return err
		}
		secondWallet, err := ledger.GetForUpdate(ctx, second)
		if err != nil {
			return err
		}

		sender, receiver := firstWallet, secondWallet
		if sender.UserID != req.SenderID {
			sender, receiver = secondWallet, firstWallet
		}

		if err := s.checkLimits(ctx, txlog, sender, req.Amount); err != nil {
			return err
		}

		txn, err = txlog.Create(ctx, transaction.CreateSpec{
			PayerID:       &req.SenderID,
			PayeeID:       &req.ReceiverID,
			Amount:        req.Amount,
			Currency:      sender.Currency,
			Type:          txnType,
			PaymentMethod: models.PaymentMethodWallet,
			Purpose:       req.Purpose,
			Description:   req.Description,
			Metadata:      req.Metadata,
		})
		if err != nil {
			return err
		}

		if err := ledger.Debit(ctx, sender, req.Amount); err != nil {
			return err
		}

		// Escrow funding holds the full debited amount; commission is taken
		// at release. Direct payments credit the receiver net of commission.
		if txnType == models.TransactionTypeEscrowFund {
			txn.Fee = decimal.Zero
			txn.NetAmount = req.Amount
		} else {
			fee, net := s.engine.Split(req.Purpose, req.Amount)
			txn.Fee = fee
			txn.NetAmount = net
			if err := ledger.Credit(ctx, receiver, net); err != nil {
				return err
			}
		}

		return txlog.Transition(ctx, txn, models.TransactionStatusCompleted, map[string]interface{}{
			"method": models.PaymentMethodWallet,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyCompleted(ctx, txn)
	return txn, nil
}

// initiateProviderPayment creates the pending record first, then asks the
// gateway to start collection. The transaction completes later through
// ProcessCallback, never here.
func (s *service) initiateProviderPayment(ctx context.Context, txnType string, req models.PaymentRequest) (*models.Transaction, error) {
	adapter, ok := s.registry.Get(req.Method)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, req.Method)
	}

	var txn *models.Transaction
	err := s.txm.Do(ctx, func(dtx *gorm.DB) error {
		ledger := s.ledger.WithTx(dtx)
		txlog := s.txlog.WithTx(dtx)

		sender, err := ledger.EnsureWallet(ctx, req.SenderID)
		if err != nil {
			return err
		}
		if err := s.checkLimits(ctx, txlog, sender, req.Amount); err != nil {
			return err
		}

		txn, err = txlog.Create(ctx, transaction.CreateSpec{
			PayerID:       &req.SenderID,
			PayeeID:       &req.ReceiverID,
			Amount:        req.Amount,
			Currency:      sender.Currency,
			Type:          txnType,
			PaymentMethod: req.Method,
			Purpose:       req.Purpose,
			Description:   req.Description,
			Metadata:      req.Metadata,
		})
		if err != nil {
			return err
		}

		tctx, cancel := context.WithTimeout(ctx, s.initiateTimeout)
		defer cancel()
		res, err := adapter.Initiate(tctx, providers.InitiateRequest{
			Amount:       req.Amount,
			Currency:     sender.Currency,
			PayerContact: req.PayerContact,
			Description:  req.Description,
			Metadata:     req.Metadata,
		})
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				// The provider may have accepted the payment; keep the pending
				// record for the reconciliation sweep instead of failing it.
				log.Printf("provider %s initiate timed out, transaction %s left pending", req.Method, txn.Reference)
				return nil
			}
			// Nothing reached the provider: roll back so no dangling pending
			// record exists without a matching external attempt.
			return err
		}

		return txlog.SetExternalReference(ctx, txn, res.Reference, res.Instructions)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) ProcessCallback(ctx context.Context, provider string, payload []byte) (*models.Transaction, error) {
	adapter, ok := s.registry.Get(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, provider)
	}

	result, err := adapter.VerifyCallback(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidCallback)
	}

	var txn *models.Transaction
	var notify func()
	err = s.txm.Do(ctx, func(dtx *gorm.DB) error {
		txlog := s.txlog.WithTx(dtx)

		var err error
		txn, err = txlog.FindByExternalReferenceForUpdate(ctx, result.Reference)
		if err != nil {
			return err
		}
		if txn.IsTerminal() {
			// Duplicate delivery; the first one already settled everything.
			return nil
		}

		switch result.Status {
		case providers.StatusCompleted:
			notify, err = s.completePending(ctx, dtx, txn, map[string]interface{}{
				"provider":           provider,
				"external_reference": result.Reference,
			})
			return err
		case providers.StatusFailed:
			if err := txlog.Transition(ctx, txn, models.TransactionStatusFailed, map[string]interface{}{
				"provider": provider,
			}); err != nil {
				return err
			}
			notify = func() { s.notifyFailed(ctx, txn) }
			return nil
		default:
			// Still pending on the provider side; nothing to do.
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	if notify != nil {
		notify()
	}
	return txn, nil
}

// completePending settles a pending transaction: computes commission, credits
// the receiving side and records the transition. Caller holds the row lock.
func (s *service) completePending(ctx context.Context, dtx *gorm.DB, txn *models.Transaction, detail map[string]interface{}) (func(), error) {
	ledger := s.ledger.WithTx(dtx)
	txlog := s.txlog.WithTx(dtx)

	var escrowNotify func()
	if txn.Type == models.TransactionTypeEscrowFund {
		// The full captured amount goes into escrow; commission is taken at
		// release time.
		txn.Fee = decimal.Zero
		txn.NetAmount = txn.Amount
		var err error
		escrowNotify, err = s.markEscrowFunded(ctx, dtx, txn)
		if err != nil {
			return nil, err
		}
	} else {
		fee, net := s.engine.Split(txn.Purpose, txn.Amount)
		txn.Fee = fee
		txn.NetAmount = net
		if txn.PayeeID != nil {
			payee, err := ledger.GetForUpdate(ctx, *txn.PayeeID)
			if err != nil {
				return nil, err
			}
			if err := ledger.Credit(ctx, payee, net); err != nil {
				return nil, err
			}
		}
	}

	if err := txlog.Transition(ctx, txn, models.TransactionStatusCompleted, detail); err != nil {
		return nil, err
	}
	return func() {
		s.notifyCompleted(ctx, txn)
		if escrowNotify != nil {
			escrowNotify()
		}
	}, nil
}

// markEscrowFunded flips the escrow backing an escrow_fund transaction to
// funded. The returned closure emits the funded notification and must run
// only after the unit of work commits.
func (s *service) markEscrowFunded(ctx context.Context, dtx *gorm.DB, txn *models.Transaction) (func(), error) {
	if s.escrows == nil {
		return nil, nil
	}
	escrows := s.escrows.WithTx(dtx)
	escrow, err := escrows.GetByFundingTransactionID(txn.ID)
	if err != nil {
		return nil, err
	}
	if escrow.Status != models.EscrowStatusPending {
		return nil, nil
	}
	escrow.Status = models.EscrowStatusFunded
	if err := escrows.Update(escrow); err != nil {
		return nil, err
	}

	return func() {
		s.emit(ctx, escrow.PayeeID, notification.TypeEscrowFunded, "Escrow funded",
			fmt.Sprintf("Escrow of %s %s is now funded.", escrow.Amount.StringFixed(2), escrow.Currency),
			map[string]interface{}{"escrow_id": escrow.ID})
	}, nil
}

// ReconcilePending resolves pending provider transactions by polling
// CheckStatus. Provider outages skip the row; nothing is ever failed because
// the provider could not be reached.
func (s *service) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	pending, err := s.txlog.ListPendingProvider(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for i := range pending {
		txn := &pending[i]
		if txn.ExternalReference == nil {
			log.Printf("transaction %s pending without external reference, skipping", txn.Reference)
			continue
		}
		adapter, ok := s.registry.Get(txn.PaymentMethod)
		if !ok {
			continue
		}

		status, err := adapter.CheckStatus(ctx, *txn.ExternalReference)
		if err != nil {
			if errors.Is(err, providers.ErrProviderUnavailable) {
				continue
			}
			return resolved, err
		}

		switch status.Status {
		case providers.StatusCompleted, providers.StatusFailed:
			target := models.TransactionStatusCompleted
			if status.Status == providers.StatusFailed {
				target = models.TransactionStatusFailed
			}
			if err := s.resolvePending(ctx, *txn.ExternalReference, target); err != nil {
				return resolved, err
			}
			resolved++
		}
	}
	return resolved, nil
}

func (s *service) resolvePending(ctx context.Context, externalRef, target string) error {
	var notify func()
	err := s.txm.Do(ctx, func(dtx *gorm.DB) error {
		txlog := s.txlog.WithTx(dtx)
		txn, err := txlog.FindByExternalReferenceForUpdate(ctx, externalRef)
		if err != nil {
			return err
		}
		if txn.IsTerminal() {
			return nil
		}
		if target == models.TransactionStatusCompleted {
			notify, err = s.completePending(ctx, dtx, txn, map[string]interface{}{
				"source": "reconciliation",
			})
			return err
		}
		if err := txlog.Transition(ctx, txn, models.TransactionStatusFailed, map[string]interface{}{
			"source": "reconciliation",
		}); err != nil {
			return err
		}
		notify = func() { s.notifyFailed(ctx, txn) }
		return nil
	})
	if err != nil {
		return err
	}
	if notify != nil {
		notify()
	}
	return nil
}

// checkLimits enforces the sender wallet's single-transaction and daily
// limits. A zero limit means unlimited.
func (s *service) checkLimits(ctx context.Context, txlog transaction.Service, sender *models.Wallet, amount decimal.Decimal) error {
	if sender.SingleTransactionLimit.IsPositive() && amount.GreaterThan(sender.SingleTransactionLimit) {
		return fmt.Errorf("%w: single transaction limit is %s", ErrLimitExceeded,
			sender.SingleTransactionLimit.StringFixed(2))
	}
	if sender.DailyLimit.IsPositive() {
		spent, err := txlog.DailyDebitTotal(ctx, sender.UserID, time.Now().UTC())
		if err != nil {
			return err
		}
		if spent.Add(amount).GreaterThan(sender.DailyLimit) {
			return fmt.Errorf("%w: daily limit is %s", ErrLimitExceeded, sender.DailyLimit.StringFixed(2))
		}
	}
	return nil
}

func (s *service) notifyCompleted(ctx context.Context, txn *models.Transaction) {
	if txn.PayerID != nil {
		s.emit(ctx, *txn.PayerID, notification.TypePaymentCompleted, "Payment completed",
			fmt.Sprintf("Your payment of %s %s completed.", txn.Amount.StringFixed(2), txn.Currency),
			map[string]interface{}{"reference": txn.Reference})
	}
	if txn.PayeeID != nil && txn.Type != models.TransactionTypeEscrowFund {
		s.emit(ctx, *txn.PayeeID, notification.TypePaymentCompleted, "Payment received",
			fmt.Sprintf("You received %s %s.", txn.NetAmount.StringFixed(2), txn.Currency),
			map[string]interface{}{"reference": txn.Reference})
	}
}

func (s *service) notifyFailed(ctx context.Context, txn *models.Transaction) {
	if txn.PayerID != nil {
		s.emit(ctx, *txn.PayerID, notification.TypePaymentFailed, "Payment failed",
			fmt.Sprintf("Your payment of %s %s failed.", txn.Amount.StringFixed(2), txn.Currency),
			map[string]interface{}{"reference": txn.Reference})
	}
}

func (s *service) emit(ctx context.Context, userID uint, ntype, title, message string, data map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, notification.Notification{
		UserID:  userID,
		Type:    ntype,
		Title:   title,
		Message: message,
		Data:    data,
	}); err != nil {
		log.Printf("failed to notify user %d: %v", userID, err)
	}
}
