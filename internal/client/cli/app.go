package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/client/models"
	"github.com/dmitrijs2005/giftvault/internal/client/services"
	"github.com/dmitrijs2005/giftvault/internal/identity"
	"github.com/dmitrijs2005/giftvault/internal/logging"
	"github.com/dmitrijs2005/giftvault/internal/txlife"
	gethcommon "github.com/ethereum/go-ethereum/common"
)

// Keyring lists and unlocks signing accounts. *ethgateway.KeystoreSigner
// satisfies it.
type Keyring interface {
	Accounts() []gethcommon.Address
	Unlock(addr gethcommon.Address, passphrase string) error
}

// History is the read side of the submission journal.
type History interface {
	Recent(ctx context.Context, limit int) ([]*models.Submission, error)
	SetLastAccount(ctx context.Context, account string) error
}

// Components are the collaborators the App drives.
type Components struct {
	Session    *identity.Session
	Keys       Keyring
	History    History
	Tx         *txlife.Manager
	Roles      services.RoleService
	Onboarding services.OnboardingService
	GiftCards  services.GiftCardService
	Vendor     services.VendorTokenService
	Logger     logging.Logger
	Now        func() time.Time
}

type App struct {
	session    *identity.Session
	keys       Keyring
	history    History
	tx         *txlife.Manager
	roles      services.RoleService
	onboarding services.OnboardingService
	cards      services.GiftCardService
	vendor     services.VendorTokenService
	logger     logging.Logger
	now        func() time.Time

	reader *bufio.Reader
	out    io.Writer
}

// NewApp reads prompts from in and writes command output to out.
func NewApp(c Components, in io.Reader, out io.Writer) *App {
	if c.Logger == nil {
		c.Logger = logging.Nop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return &App{
		session:    c.Session,
		keys:       c.Keys,
		history:    c.History,
		tx:         c.Tx,
		roles:      c.Roles,
		onboarding: c.Onboarding,
		cards:      c.GiftCards,
		vendor:     c.Vendor,
		logger:     c.Logger,
		now:        c.Now,
		reader:     bufio.NewReader(in),
		out:        out,
	}
}

func (a *App) isConnected() bool {
	return a.session.Current().Connected()
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// StartTxWatcher prints every settled transaction until ctx is done, so
// confirmations that land between commands are not missed. The subscription
// is in place when it returns.
func (a *App) StartTxWatcher(ctx context.Context) {
	events, cancel := a.tx.Subscribe(32)

	go func() {
		defer cancel()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				switch ev.Status.State {
				case txlife.Confirmed, txlife.Failed:
					a.printf("\n[tx] %s\n", formatStatus(ev.Status))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
