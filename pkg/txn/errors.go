package txn

import "errors"

var (
	ErrTxnNotActive        = errors.New("gstore: txn not active")
	ErrTxnAlreadyCommitted = errors.New("gstore: txn already committed")
)
