package transaction

import "errors"

// Service errors
var (
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrInvalidTransactionState = errors.New("invalid transaction state transition")
	ErrDuplicateReference      = errors.New("duplicate external reference")
)
