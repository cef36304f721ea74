package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/identity"
	"github.com/dmitrijs2005/giftvault/internal/ledger"
	"github.com/dmitrijs2005/giftvault/internal/logging"
	"github.com/dmitrijs2005/giftvault/internal/txlife"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	Ledger  ledger.Gateway
	Session *identity.Session
	Tx      *txlife.Manager
	Logger  logging.Logger
	Now     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// connected returns the current identity or common.ErrNotConnected.
func (d Deps) connected() (identity.Identity, error) {
	id := d.Session.Current()
	if !id.Connected() {
		return id, common.ErrNotConnected
	}
	return id, nil
}

// Operation kinds used as lifecycle key prefixes.
const (
	kindMint        = "mint"
	kindSend        = "send"
	kindMintVoucher = "mintVoucher"
	kindApply       = "apply"
	kindApprove     = "approve"
	kindReject      = "reject"
)

func tokenKey(kind string, id *uint256.Int) string {
	return kind + ":" + id.Dec()
}

func addressKey(kind string, addr gethcommon.Address) string {
	return kind + ":" + addr.Hex()
}

func parseKey(key string) (kind, target string) {
	kind, target, _ = strings.Cut(key, ":")
	return kind, target
}

func inFlight(tx *txlife.Manager, key string) bool {
	return tx.Status(key).State.InFlight()
}

func busy(key string, st txlife.Status) error {
	return fmt.Errorf("%w: %s is %s", common.ErrBusy, key, st.State)
}

const resumeTimeout = 30 * time.Second

// FollowIdentity resets lifecycle tracking on every identity switch and
// re-attaches the journaled transactions of the newly connected identity.
func FollowIdentity(d Deps) {
	d = d.withDefaults()
	d.Session.OnChange(func(prev, next identity.Identity) {
		d.Tx.Reset()
		d.Logger.Info(context.Background(), "identity switched", "from", prev.Address.Hex(), "to", next.Address.Hex(), "generation", next.Generation)
		if !next.Connected() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), resumeTimeout)
		defer cancel()
		n, err := d.Tx.Resume(ctx, next.Address, d.Ledger)
		if err != nil {
			d.Logger.Error(ctx, "failed to resume journaled transactions", "address", next.Address.Hex(), "error", err)
			return
		}
		if n > 0 {
			d.Logger.Info(ctx, "resumed journaled transactions", "address", next.Address.Hex(), "count", n)
		}
	})
}
