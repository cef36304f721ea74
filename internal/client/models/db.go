package models

import "time"

// SubmissionState is the persisted lifecycle state of a journaled write.
type SubmissionState string

const (
	SubmissionPending   SubmissionState = "pending"
	SubmissionConfirmed SubmissionState = "confirmed"
	SubmissionFailed    SubmissionState = "failed"
	SubmissionDetached  SubmissionState = "detached"
)

// Submission is a journal row: one write that the ledger accepted.
// The journal records transaction hashes, never entity state.
type Submission struct {
	// AttemptID uniquely identifies the submission attempt.
	AttemptID string

	// Key is the lifecycle operation key, e.g. "send:42".
	Key string

	// Account is the signing address in hex.
	Account string

	// TxHash identifies the transaction on the ledger.
	TxHash string

	State SubmissionState

	// Reason holds the revert or drop reason of a failed submission.
	Reason string

	CreatedAt time.Time
	UpdatedAt time.Time
}
