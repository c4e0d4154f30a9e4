package repositories

import "errors"

// Repository errors
var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrEscrowNotFound      = errors.New("escrow account not found")
	ErrDuplicateReference  = errors.New("duplicate external reference")
)
