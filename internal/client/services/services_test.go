package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/identity"
	"github.com/dmitrijs2005/giftvault/internal/ledger/ledgertest"
	"github.com/dmitrijs2005/giftvault/internal/txlife"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	alice = gethcommon.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = gethcommon.HexToAddress("0x0000000000000000000000000000000000000b0b")
	admin = gethcommon.HexToAddress("0x00000000000000000000000000000000000ad000")
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	ledger  *ledgertest.Ledger
	clock   *clock
	session *identity.Session
	tx      *txlife.Manager

	roles      RoleService
	onboarding OnboardingService
	cards      GiftCardService
	vendor     VendorTokenService
}

func newHarness(t *testing.T, opts txlife.Options) *harness {
	t.Helper()
	c := &clock{now: time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := ledgertest.New()
	l.SetClock(c.Now)
	l.GrantAdmin(admin)

	opts.Now = c.Now
	tx := txlife.NewManager(opts)
	t.Cleanup(tx.Close)

	d := Deps{Ledger: l, Session: identity.NewSession(), Tx: tx, Now: c.Now}
	FollowIdentity(d)
	roles := NewRoleService(d)
	return &harness{
		ledger:     l,
		clock:      c,
		session:    d.Session,
		tx:         tx,
		roles:      roles,
		onboarding: NewOnboardingService(d, roles),
		cards:      NewGiftCardService(d),
		vendor:     NewVendorTokenService(d, roles),
	}
}

func (h *harness) await(t *testing.T, key string) txlife.Status {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := h.tx.Await(ctx, key)
	require.NoError(t, err)
	require.Equal(t, txlife.Confirmed, st.State)
	return st
}
