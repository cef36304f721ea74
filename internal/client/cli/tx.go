package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/giftvault/internal/common"
)

const defaultJournalLimit = 20

// Transactions lists the operation keys the lifecycle manager tracks for the
// connected identity.
func (a *App) Transactions(ctx context.Context, _ []string) error {
	statuses := a.tx.Statuses()
	if len(statuses) == 0 {
		a.printf("No tracked transactions\n")
		return nil
	}
	for _, st := range statuses {
		a.printf("%s\n", formatStatus(st))
	}
	return nil
}

// Await blocks until the operation key settles, the confirmation wait elapses
// or ctx is done.
func (a *App) Await(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: usage: await <key>", common.ErrValidation)
	}
	st, err := a.tx.Await(ctx, args[0])
	if errors.Is(err, common.ErrStillPending) {
		a.printf("%s (still pending, check again later)\n", formatStatus(st))
		return nil
	}
	if err != nil && st.Key == "" {
		return err
	}
	a.printf("%s\n", formatStatus(st))
	return nil
}

// Detach stops tracking a pending transaction. The transaction itself may
// still be mined.
func (a *App) Detach(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: usage: detach <key>", common.ErrValidation)
	}
	if err := a.tx.Detach(ctx, args[0]); err != nil {
		return err
	}
	a.printf("Detached %s\n", args[0])
	return nil
}

// Journal prints the most recent submissions recorded on disk.
func (a *App) Journal(ctx context.Context, args []string) error {
	limit := defaultJournalLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: usage: journal [limit]", common.ErrValidation)
		}
		limit = n
	}
	subs, err := a.history.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		a.printf("Journal is empty\n")
		return nil
	}
	for _, s := range subs {
		line := fmt.Sprintf("%s %s %s %s tx=%s", s.UpdatedAt.Format("2006-01-02 15:04:05"), s.Key, s.State, s.Account, s.TxHash)
		if s.Reason != "" {
			line += ": " + s.Reason
		}
		a.printf("%s\n", line)
	}
	return nil
}
