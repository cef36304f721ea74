package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/giftvault/internal/client/models"
	"github.com/dmitrijs2005/giftvault/internal/common"
	gethcommon "github.com/ethereum/go-ethereum/common"
)

// Apply submits a vendor application for the connected identity.
func (a *App) Apply(ctx context.Context, _ []string) error {
	st, err := a.onboarding.Apply(ctx)
	if err != nil {
		return err
	}
	a.printf("%s\n", formatStatus(st))
	return nil
}

// Status shows the onboarding status of the given address, or of the
// connected identity when none is given.
func (a *App) Status(ctx context.Context, args []string) error {
	addr, err := a.addressArg(args)
	if err != nil {
		return err
	}
	st, err := a.onboarding.Status(ctx, addr)
	if err != nil {
		return err
	}
	a.printf("%s: %s%s\n", addr.Hex(), st.Value, provenance(st))
	return nil
}

// Applications lists pending vendor applications. Admin only.
func (a *App) Applications(ctx context.Context, _ []string) error {
	apps, err := a.onboarding.PendingApplications(ctx)
	if err != nil {
		return err
	}
	if len(apps) == 0 {
		a.printf("No pending applications\n")
		return nil
	}
	for _, app := range apps {
		a.printf("%s %s%s\n", app.Value.Applicant.Hex(), app.Value.Status, provenance(app))
	}
	return nil
}

// Approve approves a pending application. Admin only.
func (a *App) Approve(ctx context.Context, args []string) error {
	addr, err := a.requiredAddress(args, "approve <address>")
	if err != nil {
		return err
	}
	st, err := a.onboarding.Approve(ctx, addr)
	if err != nil {
		return err
	}
	a.printf("%s\n", formatStatus(st))
	return nil
}

// Reject rejects a pending application. Admin only.
func (a *App) Reject(ctx context.Context, args []string) error {
	addr, err := a.requiredAddress(args, "reject <address>")
	if err != nil {
		return err
	}
	st, err := a.onboarding.Reject(ctx, addr)
	if err != nil {
		return err
	}
	a.printf("%s\n", formatStatus(st))
	return nil
}

func (a *App) addressArg(args []string) (gethcommon.Address, error) {
	if len(args) > 0 {
		return models.ParseAddress(args[0])
	}
	id := a.session.Current()
	if !id.Connected() {
		return gethcommon.Address{}, common.ErrNotConnected
	}
	return id.Address, nil
}

func (a *App) requiredAddress(args []string, usage string) (gethcommon.Address, error) {
	if len(args) != 1 {
		return gethcommon.Address{}, fmt.Errorf("%w: usage: %s", common.ErrValidation, usage)
	}
	return models.ParseAddress(args[0])
}
