package repositories

import (
	"errors"
	"fmt"
	"time"

	"agripay/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type escrowRepository struct {
	db *gorm.DB
}

// NewEscrowRepository creates an escrow repository over the given database.
func NewEscrowRepository(db *gorm.DB) EscrowRepository {
	return &escrowRepository{db: db}
}

func (r *escrowRepository) WithTx(tx *gorm.DB) EscrowRepository {
	if tx == nil {
		return r
	}
	return &escrowRepository{db: tx}
}

func (r *escrowRepository) Create(escrow *models.EscrowAccount) error {
	if err := r.db.Create(escrow).Error; err != nil {
		return fmt.Errorf("failed to create escrow account: %w", err)
	}
	return nil
}

func (r *escrowRepository) Update(escrow *models.EscrowAccount) error {
	if err := r.db.Save(escrow).Error; err != nil {
		return fmt.Errorf("failed to update escrow account: %w", err)
	}
	return nil
}

func (r *escrowRepository) GetByID(id uint) (*models.EscrowAccount, error) {
	var escrow models.EscrowAccount
	if err := r.db.First(&escrow, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("failed to get escrow account: %w", err)
	}
	return &escrow, nil
}

func (r *escrowRepository) GetByIDForUpdate(id uint) (*models.EscrowAccount, error) {
	var escrow models.EscrowAccount
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&escrow, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("failed to lock escrow account: %w", err)
	}
	return &escrow, nil
}

func (r *escrowRepository) GetByFundingTransactionID(txnID uint) (*models.EscrowAccount, error) {
	var escrow models.EscrowAccount
	err := r.db.Where("funding_transaction_id = ?", txnID).First(&escrow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("failed to get escrow account: %w", err)
	}
	return &escrow, nil
}

func (r *escrowRepository) ListExpiring(now time.Time, limit int) ([]models.EscrowAccount, error) {
	var escrows []models.EscrowAccount
	err := r.db.
		Where("status IN ? AND expires_at IS NOT NULL AND expires_at < ?",
			[]string{models.EscrowStatusPending, models.EscrowStatusFunded}, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&escrows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring escrows: %w", err)
	}
	return escrows, nil
}
