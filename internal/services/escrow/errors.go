package escrow

import "errors"

// Service errors
var (
	ErrEscrowNotFound      = errors.New("escrow account not found")
	ErrEscrowNotReleasable = errors.New("escrow is not releasable")
	ErrEscrowNotRefundable = errors.New("escrow is not refundable")
)
