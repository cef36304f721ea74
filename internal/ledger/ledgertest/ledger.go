// Package ledgertest provides an in-memory ledger.Gateway that enforces the
// same checks as the GiftCard, VendorOnboarding and VendorEntity contracts.
//
// By default every accepted write is mined immediately. Call Hold to queue
// writes as pending until Mine, MineNext or Drop is called, which lets tests
// observe the Pending state of the lifecycle manager.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/ledger"
	gethcommon "github.com/ethereum/go-ethereum/common"
)

type giftCard struct {
	owner  gethcommon.Address
	vendor string
	expiry *big.Int
	data   string
}

type pendingTx struct {
	hash    string
	method  string
	from    gethcommon.Address
	apply   func() error
	done    chan struct{}
	receipt ledger.Receipt
	err     error
}

// Call records one write that reached the fake network.
type Call struct {
	Method string
	From   gethcommon.Address
	TxHash string
}

// Ledger is a fake ledger. It is safe for concurrent use.
type Ledger struct {
	mu sync.Mutex

	now   func() time.Time
	block uint64
	seq   uint64
	hold  bool

	admins       map[gethcommon.Address]bool
	vendors      map[gethcommon.Address]bool
	applied      map[gethcommon.Address]bool
	applications []gethcommon.Address

	cards      map[string]*giftCard
	userTokens map[gethcommon.Address][]*big.Int

	vendorTokens   map[string]ledger.VendorTokenMetadata
	tokensByVendor map[gethcommon.Address][]*big.Int

	txs     map[string]*pendingTx
	queue   []*pendingTx
	calls   []Call
	reads   int
	readErr error
	nextErr error
}

// New returns an empty ledger whose block time follows time.Now.
func New() *Ledger {
	return &Ledger{
		now:            time.Now,
		admins:         map[gethcommon.Address]bool{},
		vendors:        map[gethcommon.Address]bool{},
		applied:        map[gethcommon.Address]bool{},
		cards:          map[string]*giftCard{},
		userTokens:     map[gethcommon.Address][]*big.Int{},
		vendorTokens:   map[string]ledger.VendorTokenMetadata{},
		tokensByVendor: map[gethcommon.Address][]*big.Int{},
		txs:            map[string]*pendingTx{},
	}
}

// SetClock overrides the block time used by expiry checks.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *Ledger) GrantAdmin(a gethcommon.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.admins[a] = true
}

func (l *Ledger) GrantVendor(a gethcommon.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.vendors[a] = true
}

func (l *Ledger) RevokeAdmin(a gethcommon.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.admins, a)
}

// PutGiftCard seeds a mined gift card, bypassing the mint checks.
func (l *Ledger) PutGiftCard(owner gethcommon.Address, tokenID *big.Int, vendor string, expiry time.Time, data string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cards[tokenID.String()] = &giftCard{owner: owner, vendor: vendor, expiry: big.NewInt(expiry.Unix()), data: data}
	l.userTokens[owner] = append(l.userTokens[owner], new(big.Int).Set(tokenID))
}

// PutApplication seeds a pending vendor application.
func (l *Ledger) PutApplication(a gethcommon.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.applied[a] = true
	l.applications = append(l.applications, a)
}

// Hold makes subsequent writes stay pending until mined explicitly.
func (l *Ledger) Hold() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hold = true
}

// FailNextSubmit makes the next write fail before acceptance, as a wallet
// rejection or a connectivity failure would.
func (l *Ledger) FailNextSubmit(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextErr = err
}

// RevertNextSubmit makes the next write fail before acceptance with a contract
// revert, as the gateway reports a revert found while estimating gas.
func (l *Ledger) RevertNextSubmit(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextErr = revertError(reason)
}

type revertError string

func (e revertError) Error() string { return string(e) }

// FailReads makes every read return err until called with nil.
func (l *Ledger) FailReads(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readErr = err
}

// Calls returns the writes accepted so far.
func (l *Ledger) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.calls)
}

// Reads returns the number of read calls served.
func (l *Ledger) Reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

// Pending returns the number of queued, unmined transactions.
func (l *Ledger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Mine includes every queued transaction, in submission order.
func (l *Ledger) Mine() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.queue) > 0 {
		l.mineLocked(l.queue[0])
		l.queue = l.queue[1:]
	}
}

// MineNext includes the oldest queued transaction and reports whether there was one.
func (l *Ledger) MineNext() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return false
	}
	l.mineLocked(l.queue[0])
	l.queue = l.queue[1:]
	return true
}

// Drop evicts a queued transaction without including it.
func (l *Ledger) Drop(txHash string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, tx := range l.queue {
		if tx.hash == txHash {
			tx.err = fmt.Errorf("%w: evicted from mempool", common.ErrTxDropped)
			close(tx.done)
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return
		}
	}
}

func (l *Ledger) mineLocked(tx *pendingTx) {
	l.block++
	tx.receipt = ledger.Receipt{TxHash: tx.hash, Success: true, BlockNumber: l.block}
	if err := tx.apply(); err != nil {
		tx.receipt.Success = false
		tx.receipt.Reason = err.Error()
	}
	close(tx.done)
}

func (l *Ledger) submit(method string, from gethcommon.Address, apply func() error) (ledger.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.nextErr; err != nil {
		l.nextErr = nil
		if reason, ok := err.(revertError); ok {
			return nil, fmt.Errorf("%w: %w: %s: %s", common.ErrSubmissionRejected, common.ErrLedgerRevert, method, string(reason))
		}
		return nil, fmt.Errorf("%w: %v", common.ErrSubmissionRejected, err)
	}
	if (from == gethcommon.Address{}) {
		return nil, fmt.Errorf("%w: no signer", common.ErrSubmissionRejected)
	}

	l.seq++
	tx := &pendingTx{
		hash:   fmt.Sprintf("0x%064x", l.seq),
		method: method,
		from:   from,
		apply:  apply,
		done:   make(chan struct{}),
	}
	l.txs[tx.hash] = tx
	l.calls = append(l.calls, Call{Method: method, From: from, TxHash: tx.hash})

	if l.hold {
		l.queue = append(l.queue, tx)
	} else {
		l.mineLocked(tx)
	}
	return &handle{tx: tx}, nil
}

type handle struct {
	tx *pendingTx
}

func (h *handle) TxHash() string { return h.tx.hash }

func (h *handle) Wait(ctx context.Context) (ledger.Receipt, error) {
	select {
	case <-h.tx.done:
		return h.tx.receipt, h.tx.err
	case <-ctx.Done():
		return ledger.Receipt{}, ctx.Err()
	}
}

// Track implements ledger.Tracker.
func (l *Ledger) Track(_ context.Context, txHash string) (ledger.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.txs[txHash]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", txHash, common.ErrorNotFound)
	}
	return &handle{tx: tx}, nil
}

func (l *Ledger) read() error {
	l.reads++
	return l.readErr
}

// ---- reads ----

func (l *Ledger) GetUserTokens(_ context.Context, owner gethcommon.Address) ([]*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.read(); err != nil {
		return nil, err
	}
	return cloneInts(l.userTokens[owner]), nil
}

func (l *Ledger) GetTokenMetadata(_ context.Context, tokenID *big.Int) (ledger.GiftCardMetadata, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.read(); err != nil {
		return ledger.GiftCardMetadata{}, err
	}
	c, ok := l.cards[tokenID.String()]
	if !ok {
		return ledger.GiftCardMetadata{ExpiryDate: new(big.Int)}, nil
	}
	return ledger.GiftCardMetadata{Vendor: c.vendor, ExpiryDate: new(big.Int).Set(c.expiry), EncryptedData: c.data}, nil
}

func (l *Ledger) GetVendorTokenMetadata(_ context.Context, tokenID *big.Int) (ledger.VendorTokenMetadata, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.read(); err != nil {
		return ledger.VendorTokenMetadata{}, err
	}
	m, ok := l.vendorTokens[tokenID.String()]
	if !ok {
		zero := new(big.Int)
		return ledger.VendorTokenMetadata{Value: zero, ExpiryDate: zero, RemainingUses: zero, Amount: zero}, nil
	}
	m.RedeemableItems = slices.Clone(m.RedeemableItems)
	return m, nil
}

func (l *Ledger) GetTokensByVendor(_ context.Context, vendor gethcommon.Address) ([]*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.read(); err != nil {
		return nil, err
	}
	return cloneInts(l.tokensByVendor[vendor]), nil
}

func (l *Ledger) HasRole(_ context.Context, role ledger.Role, account gethcommon.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.read(); err != nil {
		return false, err
	}
	switch role {
	case ledger.RoleAdmin:
		return l.admins[account], nil
	case ledger.RoleVendor:
		return l.vendors[account], nil
	default:
		return false, nil
	}
}

func (l *Ledger) IsVendor(_ context.Context, account gethcommon.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.read(); err != nil {
		return false, err
	}
	return l.vendors[account], nil
}

func (l *Ledger) HasAppliedForVendor(_ context.Context, account gethcommon.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.read(); err != nil {
		return false, err
	}
	return l.applied[account], nil
}

func (l *Ledger) GetVendorApplications(_ context.Context) ([]gethcommon.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.read(); err != nil {
		return nil, err
	}
	return slices.Clone(l.applications), nil
}

// ---- writes; apply closures run with l.mu held ----

func (l *Ledger) MintGiftCard(_ context.Context, from, owner gethcommon.Address, tokenID *big.Int, vendor string, expiryDate *big.Int, encryptedData string) (ledger.Handle, error) {
	id := new(big.Int).Set(tokenID)
	expiry := new(big.Int).Set(expiryDate)
	return l.submit("mintGiftCard", from, func() error {
		if _, ok := l.cards[id.String()]; ok {
			return errors.New("Token already exists")
		}
		if (owner == gethcommon.Address{}) {
			return errors.New("Invalid recipient")
		}
		l.cards[id.String()] = &giftCard{owner: owner, vendor: vendor, expiry: expiry, data: encryptedData}
		l.userTokens[owner] = append(l.userTokens[owner], id)
		return nil
	})
}

func (l *Ledger) SendGiftCard(_ context.Context, from, to gethcommon.Address, tokenID *big.Int) (ledger.Handle, error) {
	id := new(big.Int).Set(tokenID)
	return l.submit("sendGiftCard", from, func() error {
		c, ok := l.cards[id.String()]
		if !ok || c.owner != from {
			return errors.New("Not the owner of this gift card")
		}
		if (to == gethcommon.Address{}) {
			return errors.New("Invalid recipient")
		}
		if l.now().Unix() > c.expiry.Int64() {
			return errors.New("Gift card has expired")
		}
		l.userTokens[from] = slices.DeleteFunc(l.userTokens[from], func(x *big.Int) bool { return x.Cmp(id) == 0 })
		l.userTokens[to] = append(l.userTokens[to], id)
		c.owner = to
		return nil
	})
}

func (l *Ledger) MintVoucherOrCoupon(_ context.Context, from gethcommon.Address, m ledger.VendorTokenMint) (ledger.Handle, error) {
	id := new(big.Int).Set(m.TokenID)
	meta := ledger.VendorTokenMetadata{
		Vendor:          m.Vendor,
		Value:           new(big.Int).Set(m.Value),
		ExpiryDate:      new(big.Int).Set(m.ExpiryDate),
		TokenType:       uint8(m.TokenType),
		RemainingUses:   new(big.Int).Set(m.RemainingUses),
		RedeemableItems: slices.Clone(m.RedeemableItems),
		EncryptedData:   m.EncryptedData,
		Amount:          new(big.Int).Set(m.Amount),
	}
	return l.submit("mintVoucherOrCoupon", from, func() error {
		if !l.vendors[from] {
			return errors.New("Caller is not a vendor")
		}
		if _, ok := l.vendorTokens[id.String()]; ok {
			return errors.New("Token already exists")
		}
		l.vendorTokens[id.String()] = meta
		l.tokensByVendor[from] = append(l.tokensByVendor[from], id)
		return nil
	})
}

func (l *Ledger) ApplyForVendor(_ context.Context, from gethcommon.Address) (ledger.Handle, error) {
	return l.submit("applyForVendor", from, func() error {
		if l.vendors[from] {
			return errors.New("Already a vendor")
		}
		if l.applied[from] {
			return errors.New("Already applied")
		}
		l.applied[from] = true
		l.applications = append(l.applications, from)
		return nil
	})
}

func (l *Ledger) ApproveVendor(_ context.Context, from, applicant gethcommon.Address) (ledger.Handle, error) {
	return l.submit("approveVendor", from, func() error {
		if err := l.reviewLocked(from, applicant); err != nil {
			return err
		}
		l.vendors[applicant] = true
		return nil
	})
}

func (l *Ledger) RejectVendor(_ context.Context, from, applicant gethcommon.Address) (ledger.Handle, error) {
	return l.submit("rejectVendor", from, func() error {
		return l.reviewLocked(from, applicant)
	})
}

func (l *Ledger) reviewLocked(from, applicant gethcommon.Address) error {
	if !l.admins[from] {
		return errors.New("Caller is not an admin")
	}
	i := slices.Index(l.applications, applicant)
	if i < 0 {
		return errors.New("No pending application")
	}
	l.applications = slices.Delete(l.applications, i, i+1)
	return nil
}

func cloneInts(in []*big.Int) []*big.Int {
	out := make([]*big.Int, len(in))
	for i, v := range in {
		out[i] = new(big.Int).Set(v)
	}
	return out
}

var _ ledger.Gateway = (*Ledger)(nil)
