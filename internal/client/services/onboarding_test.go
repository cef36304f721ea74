package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/giftvault/internal/client/models"
	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/txlife"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnboarding_ApplyMovesToPending(t *testing.T) {
	h := newHarness(t, txlife.Options{})
	ctx := context.Background()
	h.ledger.Hold()
	h.session.Switch(alice)

	st, err := h.onboarding.Status(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, models.Confirm(models.NotApplied), st)

	sub, err := h.onboarding.Apply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "apply:"+alice.Hex(), sub.Key)
	assert.Equal(t, txlife.Pending, sub.State)

	// never Confirmed before the receipt lands
	st, err = h.onboarding.Status(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, models.Pending, st.Value)
	assert.False(t, st.IsConfirmed())

	_, err = h.onboarding.Apply(ctx)
	require.ErrorIs(t, err, common.ErrBusy)

	h.ledger.Mine()
	h.await(t, sub.Key)

	st, err = h.onboarding.Status(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, models.Confirm(models.Pending), st)
	assert.Len(t, h.ledger.Calls(), 1)
}

func TestOnboarding_ApplyRequiresNotApplied(t *testing.T) {
	h := newHarness(t, txlife.Options{})
	ctx := context.Background()

	_, err := h.onboarding.Apply(ctx)
	require.ErrorIs(t, err, common.ErrNotConnected)

	h.ledger.PutApplication(alice)
	h.session.Switch(alice)
	_, err = h.onboarding.Apply(ctx)
	require.ErrorIs(t, err, common.ErrInvalidState)

	h.ledger.GrantVendor(bob)
	h.session.Switch(bob)
	_, err = h.onboarding.Apply(ctx)
	require.ErrorIs(t, err, common.ErrInvalidState)

	assert.Empty(t, h.ledger.Calls())
}

func TestOnboarding_AdminApproves(t *testing.T) {
	h := newHarness(t, txlife.Options{})
	ctx := context.Background()
	h.ledger.PutApplication(alice)
	h.session.Switch(admin)

	pending, err := h.onboarding.PendingApplications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.Confirm(models.VendorApplication{Applicant: alice, Status: models.Pending}), pending[0])

	sub, err := h.onboarding.Approve(ctx, alice)
	require.NoError(t, err)
	h.await(t, sub.Key)

	st, err := h.onboarding.Status(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, models.Confirm(models.Approved), st)

	isVendor, err := h.ledger.IsVendor(ctx, alice)
	require.NoError(t, err)
	assert.True(t, isVendor)

	pending, err = h.onboarding.PendingApplications(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOnboarding_RejectIsTerminal(t *testing.T) {
	h := newHarness(t, txlife.Options{})
	ctx := context.Background()
	h.ledger.PutApplication(alice)
	h.session.Switch(admin)

	sub, err := h.onboarding.Reject(ctx, alice)
	require.NoError(t, err)
	h.await(t, sub.Key)

	st, err := h.onboarding.Status(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, models.Confirm(models.Rejected), st)

	h.session.Switch(alice)
	_, err = h.onboarding.Apply(ctx)
	require.ErrorIs(t, err, common.ErrInvalidState)
	assert.Len(t, h.ledger.Calls(), 1)
}

func TestOnboarding_DecisionOnNonPendingSubmitsNothing(t *testing.T) {
	h := newHarness(t, txlife.Options{})
	ctx := context.Background()
	h.ledger.GrantVendor(bob)
	h.session.Switch(admin)

	for _, target := range []struct {
		name string
		fn   func() error
	}{
		{"approve not applied", func() error { _, err := h.onboarding.Approve(ctx, alice); return err }},
		{"reject not applied", func() error { _, err := h.onboarding.Reject(ctx, alice); return err }},
		{"approve approved", func() error { _, err := h.onboarding.Approve(ctx, bob); return err }},
		{"reject approved", func() error { _, err := h.onboarding.Reject(ctx, bob); return err }},
	} {
		t.Run(target.name, func(t *testing.T) {
			require.ErrorIs(t, target.fn(), common.ErrInvalidState)
		})
	}
	assert.Empty(t, h.ledger.Calls())
}

func TestOnboarding_DecisionRequiresAdmin(t *testing.T) {
	h := newHarness(t, txlife.Options{})
	ctx := context.Background()
	h.ledger.PutApplication(alice)
	h.session.Switch(bob)

	_, err := h.onboarding.Approve(ctx, alice)
	require.ErrorIs(t, err, common.ErrAuthorization)
	_, err = h.onboarding.Reject(ctx, alice)
	require.ErrorIs(t, err, common.ErrAuthorization)
	assert.Empty(t, h.ledger.Calls())
}

func TestOnboarding_OppositeDecisionInFlight(t *testing.T) {
	h := newHarness(t, txlife.Options{})
	ctx := context.Background()
	h.ledger.PutApplication(alice)
	h.ledger.Hold()
	h.session.Switch(admin)

	_, err := h.onboarding.Approve(ctx, alice)
	require.NoError(t, err)

	_, err = h.onboarding.Reject(ctx, alice)
	require.ErrorIs(t, err, common.ErrBusy)
	_, err = h.onboarding.Approve(ctx, alice)
	require.ErrorIs(t, err, common.ErrBusy)

	st, err := h.onboarding.Status(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, models.Approved, st.Value)
	assert.False(t, st.IsConfirmed())

	pending, err := h.onboarding.PendingApplications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.False(t, pending[0].IsConfirmed())
	assert.Len(t, h.ledger.Calls(), 1)
}

func TestOnboarding_RevertedApprovalStaysPending(t *testing.T) {
	h := newHarness(t, txlife.Options{})
	ctx := context.Background()
	h.ledger.PutApplication(alice)
	h.ledger.Hold()
	h.session.Switch(admin)

	sub, err := h.onboarding.Approve(ctx, alice)
	require.NoError(t, err)
	// admin loses the role before the transaction is mined
	h.ledger.RevokeAdmin(admin)
	h.ledger.Mine()

	got, err := h.tx.Await(ctx, sub.Key)
	require.ErrorIs(t, err, common.ErrLedgerRevert)
	assert.Equal(t, "Caller is not an admin", got.Reason)
	assert.True(t, got.Submitted)

	st, err := h.onboarding.Status(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, models.Confirm(models.Pending), st)
}
