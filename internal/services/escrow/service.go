package escrow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"agripay/internal/models"
	"agripay/internal/repositories"
	"agripay/internal/services/notification"
	"agripay/internal/services/payment"
	"agripay/internal/services/settlement"
	"agripay/internal/services/transaction"
	"agripay/internal/services/wallet"

	"gorm.io/gorm"
)

type service struct {
	txm      repositories.TxManager
	repo     repositories.EscrowRepository
	ledger   wallet.Service
	txlog    transaction.Service
	payments payment.Service
	engine   *settlement.Engine
	notifier notification.Notifier
}

// NewService creates the escrow manager.
func NewService(
	txm repositories.TxManager,
	repo repositories.EscrowRepository,
	ledger wallet.Service,
	txlog transaction.Service,
	payments payment.Service,
	engine *settlement.Engine,
	notifier notification.Notifier,
) Service {
	if txm == nil {
		panic("tx manager is required")
	}
	if repo == nil {
		panic("escrow repository is required")
	}
	if ledger == nil {
		panic("wallet ledger is required")
	}
	if txlog == nil {
		panic("transaction log is required")
	}
	if payments == nil {
		panic("payment service is required")
	}
	if engine == nil {
		panic("settlement engine is required")
	}
	return &service{
		txm:      txm,
		repo:     repo,
		ledger:   ledger,
		txlog:    txlog,
		payments: payments,
		engine:   engine,
		notifier: notifier,
	}
}

func (s *service) Fund(ctx context.Context, req models.EscrowRequest) (*models.EscrowAccount, *models.Transaction, error) {
	if req.Purpose == "" {
		req.Purpose = models.PurposeStandard
	}

	var escrow *models.EscrowAccount
	var txn *models.Transaction
	err := s.txm.Do(ctx, func(dtx *gorm.DB) error {
		var err error
		txn, err = s.payments.WithTx(dtx).Initiate(ctx, models.TransactionTypeEscrowFund, models.PaymentRequest{
			SenderID:     req.PayerID,
			ReceiverID:   req.PayeeID,
			Amount:       req.Amount,
			Method:       req.Method,
			Purpose:      req.Purpose,
			Description:  req.Description,
			PayerContact: req.PayerContact,
			Metadata:     req.Metadata,
		})
		if err != nil {
			return err
		}

		escrow = &models.EscrowAccount{
			PayerID:              req.PayerID,
			PayeeID:              req.PayeeID,
			Amount:               req.Amount,
			Currency:             txn.Currency,
			Status:               models.EscrowStatusPending,
			FundingTransactionID: txn.ID,
			ReleaseConditions:    models.NewJSON(req.ReleaseConditions),
			Purpose:              req.Purpose,
			ExpiresAt:            req.ExpiresAt,
			Metadata:             models.NewJSON(req.Metadata),
		}
		// Wallet funding settles inside this same unit of work.
		if txn.Status == models.TransactionStatusCompleted {
			escrow.Status = models.EscrowStatusFunded
		}
		return s.repo.WithTx(dtx).Create(escrow)
	})
	if err != nil {
		return nil, nil, err
	}

	if escrow.Status == models.EscrowStatusFunded {
		s.emit(ctx, escrow.PayeeID, notification.TypeEscrowFunded, "Escrow funded",
			fmt.Sprintf("Escrow of %s %s is now funded.", escrow.Amount.StringFixed(2), escrow.Currency),
			map[string]interface{}{"escrow_id": escrow.ID})
	}
	return escrow, txn, nil
}

func (s *service) Release(ctx context.Context, escrowID, releasedBy uint) (*models.EscrowAccount, *models.Transaction, error) {
	var escrow *models.EscrowAccount
	var release *models.Transaction
	err := s.txm.Do(ctx, func(dtx *gorm.DB) error {
		repo := s.repo.WithTx(dtx)
		txlog := s.txlog.WithTx(dtx)
		ledger := s.ledger.WithTx(dtx)

		var err error
		escrow, err = repo.GetByIDForUpdate(escrowID)
		if err != nil {
			if errors.Is(err, repositories.ErrEscrowNotFound) {
				return ErrEscrowNotFound
			}
			return err
		}

		// Duplicate release request from the same actor: return the prior
		// result instead of an error.
		if escrow.Status == models.EscrowStatusReleased &&
			escrow.ReleasedBy != nil && *escrow.ReleasedBy == releasedBy &&
			escrow.ReleaseTransactionID != nil {
			release, err = txlog.GetByID(ctx, *escrow.ReleaseTransactionID)
			return err
		}

		if escrow.Status != models.EscrowStatusFunded {
			return fmt.Errorf("%w: status is %s", ErrEscrowNotReleasable, escrow.Status)
		}

		release, err = txlog.Create(ctx, transaction.CreateSpec{
			PayeeID:       &escrow.PayeeID,
			Amount:        escrow.Amount,
			Currency:      escrow.Currency,
			Type:          models.TransactionTypeEscrowRelease,
			PaymentMethod: models.PaymentMethodWallet,
			Purpose:       escrow.Purpose,
			Description:   fmt.Sprintf("Escrow %d release", escrow.ID),
			Metadata:      map[string]interface{}{"escrow_id": escrow.ID},
		})
		if err != nil {
			return err
		}

		fee, net := s.engine.Split(escrow.Purpose, escrow.Amount)
		release.Fee = fee
		release.NetAmount = net

		payee, err := ledger.GetForUpdate(ctx, escrow.PayeeID)
		if err != nil {
			return err
		}
		if err := ledger.Credit(ctx, payee, net); err != nil {
			return err
		}

		if err := txlog.Transition(ctx, release, models.TransactionStatusCompleted, map[string]interface{}{
			"escrow_id":   escrow.ID,
			"released_by": releasedBy,
		}); err != nil {
			return err
		}

		escrow.Status = models.EscrowStatusReleased
		escrow.ReleaseTransactionID = &release.ID
		escrow.ReleasedBy = &releasedBy
		return repo.Update(escrow)
	})
	if err != nil {
		return nil, nil, err
	}

	s.emit(ctx, escrow.PayeeID, notification.TypeEscrowReleased, "Escrow released",
		fmt.Sprintf("You received %s %s from escrow.", release.NetAmount.StringFixed(2), escrow.Currency),
		map[string]interface{}{"escrow_id": escrow.ID, "reference": release.Reference})
	return escrow, release, nil
}

func (s *service) Refund(ctx context.Context, escrowID uint) (*models.EscrowAccount, *models.Transaction, error) {
	return s.refund(ctx, escrowID, models.EscrowStatusRefunded)
}

func (s *service) refund(ctx context.Context, escrowID uint, finalStatus string) (*models.EscrowAccount, *models.Transaction, error) {
	var escrow *models.EscrowAccount
	var refund *models.Transaction
	err := s.txm.Do(ctx, func(dtx *gorm.DB) error {
		repo := s.repo.WithTx(dtx)
		txlog := s.txlog.WithTx(dtx)
		ledger := s.ledger.WithTx(dtx)

		var err error
		escrow, err = repo.GetByIDForUpdate(escrowID)
		if err != nil {
			if errors.Is(err, repositories.ErrEscrowNotFound) {
				return ErrEscrowNotFound
			}
			return err
		}

		switch escrow.Status {
		case models.EscrowStatusFunded:
			// Funds were captured; return the full amount to the payer.
			refund, err = txlog.Create(ctx, transaction.CreateSpec{
				PayeeID:       &escrow.PayerID,
				Amount:        escrow.Amount,
				Currency:      escrow.Currency,
				Type:          models.TransactionTypeRefund,
				PaymentMethod: models.PaymentMethodWallet,
				Purpose:       models.PurposeTransfer,
				Description:   fmt.Sprintf("Escrow %d refund", escrow.ID),
				Metadata:      map[string]interface{}{"escrow_id": escrow.ID},
			})
			if err != nil {
				return err
			}
			refund.NetAmount = escrow.Amount

			payer, err := ledger.GetForUpdate(ctx, escrow.PayerID)
			if err != nil {
				return err
			}
			if err := ledger.Credit(ctx, payer, escrow.Amount); err != nil {
				return err
			}
			if err := txlog.Transition(ctx, refund, models.TransactionStatusCompleted, map[string]interface{}{
				"escrow_id": escrow.ID,
			}); err != nil {
				return err
			}
			escrow.ReleaseTransactionID = &refund.ID

		case models.EscrowStatusPending:
			// Nothing was captured; fail the funding attempt instead.
			funding, err := txlog.GetByID(ctx, escrow.FundingTransactionID)
			if err != nil {
				return err
			}
			if funding.Status == models.TransactionStatusPending {
				if err := txlog.Transition(ctx, funding, models.TransactionStatusFailed, map[string]interface{}{
					"escrow_id": escrow.ID,
					"reason":    "escrow refund",
				}); err != nil {
					return err
				}
			}

		default:
			return fmt.Errorf("%w: status is %s", ErrEscrowNotRefundable, escrow.Status)
		}

		escrow.Status = finalStatus
		return repo.Update(escrow)
	})
	if err != nil {
		return nil, nil, err
	}

	s.emit(ctx, escrow.PayerID, notification.TypeEscrowRefunded, "Escrow refunded",
		fmt.Sprintf("Escrow of %s %s was returned to you.", escrow.Amount.StringFixed(2), escrow.Currency),
		map[string]interface{}{"escrow_id": escrow.ID})
	return escrow, refund, nil
}

func (s *service) ExpireDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	due, err := s.repo.ListExpiring(time.Now().UTC(), limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range due {
		if _, _, err := s.refund(ctx, due[i].ID, models.EscrowStatusExpired); err != nil {
			// Races with a concurrent release/refund are expected; skip.
			if errors.Is(err, ErrEscrowNotRefundable) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *service) Get(ctx context.Context, id uint) (*models.EscrowAccount, error) {
	escrow, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrEscrowNotFound) {
			return nil, ErrEscrowNotFound
		}
		return nil, err
	}
	return escrow, nil
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
