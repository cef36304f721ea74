// Package common defines the sentinel errors shared by every giftvault layer.
// Callers match them with errors.Is; producers wrap them with a reason:
//
//	fmt.Errorf("%w: expiry date must be in the future", common.ErrValidation)
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Ledger reads that cannot be coerced into a snapshot.
	ErrorIncorrectMetadata = errors.New("incorrect metadata")

	// Resolved locally, nothing is submitted to the ledger.
	ErrValidation    = errors.New("validation error")
	ErrAuthorization = errors.New("not authorized")
	ErrBusy          = errors.New("operation already in flight")
	ErrInvalidState  = errors.New("invalid state")
	ErrNotConnected  = errors.New("no connected identity")

	// Write failures. ErrSubmissionRejected means nothing reached the network,
	// even when it also wraps ErrLedgerRevert for a revert found while
	// estimating gas. The others mean a transaction was accepted and may have
	// consumed gas.
	ErrSubmissionRejected = errors.New("submission rejected")
	ErrLedgerRevert       = errors.New("transaction reverted")
	ErrTxDropped          = errors.New("transaction dropped")

	// ErrStillPending reports that a bounded wait elapsed before a receipt arrived.
	// It is not a failure: the transaction may still land.
	ErrStillPending = errors.New("transaction still pending")

	// Codec errors. Returned as a value, never raised as a panic.
	ErrDecryption = errors.New("decryption failed")
)

// Submitted reports whether err describes a write that reached the network.
func Submitted(err error) bool {
	if errors.Is(err, ErrSubmissionRejected) {
		return false
	}
	return errors.Is(err, ErrLedgerRevert) || errors.Is(err, ErrTxDropped) || errors.Is(err, ErrStillPending)
}
