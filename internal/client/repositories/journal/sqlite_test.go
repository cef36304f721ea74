package journal

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/client/models"
	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE submissions (
    attempt_id TEXT PRIMARY KEY,
    op_key     TEXT    NOT NULL,
    account    TEXT    NOT NULL,
    tx_hash    TEXT    NOT NULL,
    state      TEXT    NOT NULL,
    reason     TEXT    NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
`)
	require.NoError(t, err)
	return db
}

func submission(id, key string, at time.Time) *models.Submission {
	return &models.Submission{
		AttemptID: id,
		Key:       key,
		Account:   "0x00000000000000000000000000000000000000aa",
		TxHash:    "0x" + id,
		State:     models.SubmissionPending,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestInsertAndGetPending(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	t0 := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.Insert(ctx, submission("b", "send:1", t0.Add(time.Second))))
	require.NoError(t, r.Insert(ctx, submission("a", "mint:1", t0)))

	pending, err := r.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].AttemptID)
	assert.Equal(t, "mint:1", pending[0].Key)
	assert.Equal(t, t0, pending[0].CreatedAt)
	assert.Equal(t, "b", pending[1].AttemptID)
}

func TestInsert_DuplicateAttempt(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, submission("a", "mint:1", time.Now())))
	require.Error(t, r.Insert(ctx, submission("a", "mint:1", time.Now())))
}

func TestUpdateState(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	t0 := time.Now().UTC()

	require.NoError(t, r.Insert(ctx, submission("a", "apply:0xaa", t0)))
	require.NoError(t, r.UpdateState(ctx, "a", models.SubmissionFailed, "Already applied", t0.Add(time.Minute)))

	var state, reason string
	require.NoError(t, db.QueryRow(`SELECT state, reason FROM submissions WHERE attempt_id = 'a'`).Scan(&state, &reason))
	assert.Equal(t, "failed", state)
	assert.Equal(t, "Already applied", reason)

	// terminal rows are not rewritten
	err := r.UpdateState(ctx, "a", models.SubmissionConfirmed, "", t0)
	require.ErrorIs(t, err, common.ErrorNotFound)

	err = r.UpdateState(ctx, "missing", models.SubmissionConfirmed, "", t0)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDetachKey(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	t0 := time.Now()

	other := submission("c", "send:42", t0)
	other.Account = "0x00000000000000000000000000000000000000bb"

	require.NoError(t, r.Insert(ctx, submission("a", "send:42", t0)))
	require.NoError(t, r.Insert(ctx, submission("b", "send:7", t0)))
	require.NoError(t, r.Insert(ctx, other))

	n, err := r.DetachKey(ctx, "0x00000000000000000000000000000000000000aa", "send:42", t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	pending, err := r.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].AttemptID)
	assert.Equal(t, "c", pending[1].AttemptID)
}

func TestGetRecent(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	t0 := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Insert(ctx, submission(id, "mint:"+id, t0.Add(time.Duration(i)*time.Second))))
	}

	recent, err := r.GetRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].AttemptID)
	assert.Equal(t, "b", recent[1].AttemptID)
}
