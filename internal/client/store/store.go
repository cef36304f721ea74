// Package store opens the local client database and exposes the submission
// journal used by the transaction lifecycle manager.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/client/migrations"
	"github.com/dmitrijs2005/giftvault/internal/client/models"
	"github.com/dmitrijs2005/giftvault/internal/client/repositories/journal"
	"github.com/dmitrijs2005/giftvault/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/dbx"
	"github.com/pressly/goose/v3"
)

type Repositories struct {
	Metadata metadata.Repository
	Journal  journal.Repository
}

// Store implements txlife.Journal on top of SQLite.
type Store struct {
	db    *sql.DB
	repos Repositories
	now   func() time.Time
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Open opens (creating if needed) the database at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := dbx.OpenSQLite(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{
		db: db,
		repos: Repositories{
			Metadata: metadata.NewSQLiteRepository(db),
			Journal:  journal.NewSQLiteRepository(db),
		},
		now: time.Now,
	}, nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Record journals an accepted submission. Older pending rows of the same
// account and key are marked detached first, so each account has at most one
// pending row per key.
func (s *Store) Record(ctx context.Context, sub models.Submission) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now()
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = sub.CreatedAt
	}
	sub.Account = strings.ToLower(sub.Account)
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := journal.NewSQLiteRepository(tx)
		if _, err := repo.DetachKey(ctx, sub.Account, sub.Key, sub.CreatedAt); err != nil {
			return err
		}
		return repo.Insert(ctx, &sub)
	})
}

func (s *Store) Settle(ctx context.Context, attemptID string, state models.SubmissionState, reason string) error {
	if state == models.SubmissionPending {
		return fmt.Errorf("%w: cannot settle into %s", common.ErrInvalidState, state)
	}
	return s.repos.Journal.UpdateState(ctx, attemptID, state, reason, s.now())
}

func (s *Store) Detach(ctx context.Context, account, key string) error {
	_, err := s.repos.Journal.DetachKey(ctx, strings.ToLower(account), key, s.now())
	return err
}

// Unsettled returns pending rows signed by account, oldest first.
func (s *Store) Unsettled(ctx context.Context, account string) ([]models.Submission, error) {
	rows, err := s.repos.Journal.GetPending(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Submission
	for _, r := range rows {
		if strings.EqualFold(r.Account, account) {
			out = append(out, *r)
		}
	}
	return out, nil
}

// Recent lists the newest journal rows for display.
func (s *Store) Recent(ctx context.Context, limit int) ([]*models.Submission, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repos.Journal.GetRecent(ctx, limit)
}

// LastAccount returns the account connected most recently, or "" if none.
func (s *Store) LastAccount(ctx context.Context) (string, error) {
	v, err := s.repos.Metadata.Get(ctx, metadata.KeyLastAccount)
	if errors.Is(err, common.ErrorNotFound) {
		return "", nil
	}
	return v, err
}

func (s *Store) SetLastAccount(ctx context.Context, account string) error {
	if account == "" {
		return s.repos.Metadata.Delete(ctx, metadata.KeyLastAccount)
	}
	return s.repos.Metadata.Set(ctx, metadata.KeyLastAccount, account, s.now())
}
