package journal

import (
	"context"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/client/models"
)

// Repository describes the operations on journaled submissions.
type Repository interface {
	// Insert records a newly accepted submission.
	Insert(ctx context.Context, s *models.Submission) error

	// UpdateState moves a pending submission to state. Rows that already left
	// the pending state are not touched.
	UpdateState(ctx context.Context, attemptID string, state models.SubmissionState, reason string, at time.Time) error

	// DetachKey marks every pending submission of key signed by account as
	// detached and returns the number of rows affected.
	DetachKey(ctx context.Context, account, key string, at time.Time) (int64, error)

	// GetPending returns submissions still waiting for a receipt, oldest first.
	GetPending(ctx context.Context) ([]*models.Submission, error)

	// GetRecent returns up to limit submissions, newest first.
	GetRecent(ctx context.Context, limit int) ([]*models.Submission, error)
}
