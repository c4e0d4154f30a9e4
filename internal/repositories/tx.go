package repositories

import (
	"context"

	"gorm.io/gorm"
)

// TxManager runs a function inside one database transaction. Every logical
// money-movement operation (a payment, an escrow funding, a release) executes
// under exactly one Do call so a crash mid-operation never leaves a
// half-applied debit/credit pair.
type TxManager interface {
	Do(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTxManager struct {
	db *gorm.DB
}

// NewTxManager creates a TxManager over a gorm database handle.
func NewTxManager(db *gorm.DB) TxManager {
	return &gormTxManager{db: db}
}

func (m *gormTxManager) Do(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.db.WithContext(ctx).Transaction(fn)
}
