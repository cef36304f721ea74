// Package metadata stores small client settings (such as the last connected
// account) next to the submission journal.
package metadata

import (
	"context"
	"time"
)

// Well-known keys.
const (
	KeyLastAccount = "last_account"
)

type Repository interface {
	// Get returns common.ErrorNotFound when key is not set.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, at time.Time) error
	Delete(ctx context.Context, key string) error
}
