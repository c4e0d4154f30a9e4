package payment

import "errors"

// Service errors
var (
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrSelfPayment          = errors.New("cannot pay yourself")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrLimitExceeded        = errors.New("transaction limit exceeded")
	ErrInvalidCallback      = errors.New("invalid provider callback")
)
