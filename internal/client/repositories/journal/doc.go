// Package journal persists the submissions the ledger has accepted.
//
// # Overview
//
// Every write that reaches the network is recorded with its operation key and
// transaction hash before the client starts waiting for its receipt. Rows are
// moved to a terminal state (confirmed, failed, detached) as receipts arrive.
// After a restart the rows still pending tell the lifecycle manager which
// transactions to re-attach to instead of resubmitting them.
//
// The journal stores hashes and states only. Entity state is always read back
// from the ledger.
//
// Key Types
//
//   - type Repository: interface used by the store
//   - type SQLiteRepository: SQLite implementation over dbx.DBTX
//
// Typical Usage
//
//	repo := journal.NewSQLiteRepository(db)
//	_ = repo.Insert(ctx, sub)
//	_ = repo.UpdateState(ctx, sub.AttemptID, models.SubmissionConfirmed, "", now)
//	pending, _ := repo.GetPending(ctx)
package journal
