package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/client/models"
	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const submissionColumns = `attempt_id, op_key, account, tx_hash, state, reason, created_at, updated_at`

func (r *SQLiteRepository) Insert(ctx context.Context, s *models.Submission) error {
	query := `INSERT INTO submissions (` + submissionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		s.AttemptID, s.Key, s.Account, s.TxHash, string(s.State), s.Reason,
		s.CreatedAt.UnixMilli(), s.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

// UpdateState expects exactly one pending row to be affected; otherwise it
// returns common.ErrorNotFound.
func (r *SQLiteRepository) UpdateState(ctx context.Context, attemptID string, state models.SubmissionState, reason string, at time.Time) error {
	query := `UPDATE submissions SET state = ?, reason = ?, updated_at = ? WHERE attempt_id = ? AND state = ?`
	res, err := r.db.ExecContext(ctx, query, string(state), reason, at.UnixMilli(), attemptID, string(models.SubmissionPending))
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("pending submission %s: %w", attemptID, common.ErrorNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DetachKey(ctx context.Context, account, key string, at time.Time) (int64, error) {
	query := `UPDATE submissions SET state = ?, updated_at = ? WHERE op_key = ? AND account = ? AND state = ?`
	res, err := r.db.ExecContext(ctx, query, string(models.SubmissionDetached), at.UnixMilli(), key, account, string(models.SubmissionPending))
	if err != nil {
		return 0, fmt.Errorf("failed to detach submissions: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) GetPending(ctx context.Context) ([]*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE state = ? ORDER BY created_at, attempt_id`
	return r.query(ctx, query, string(models.SubmissionPending))
}

func (r *SQLiteRepository) GetRecent(ctx context.Context, limit int) ([]*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions ORDER BY created_at DESC, attempt_id DESC LIMIT ?`
	return r.query(ctx, query, limit)
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select submissions: %w", err)
	}
	defer rows.Close()

	var result []*models.Submission
	for rows.Next() {
		var (
			s                models.Submission
			state            string
			created, updated int64
		)
		if err := rows.Scan(&s.AttemptID, &s.Key, &s.Account, &s.TxHash, &state, &s.Reason, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		s.State = models.SubmissionState(state)
		s.CreatedAt = time.UnixMilli(created).UTC()
		s.UpdatedAt = time.UnixMilli(updated).UTC()
		result = append(result, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submission rows: %w", err)
	}
	return result, nil
}
