// Package txlife tracks asynchronous ledger writes through a per-operation
// state machine:
//
//	Idle -> Submitting -> Pending(tx) -> Confirmed | Failed
//
// One machine exists per operation key ("mint:42", "approve:0xA..."). At most
// one write per key is in flight; a second Submit while the key is Submitting
// or Pending returns common.ErrBusy and leaves the tracked state untouched.
// Nothing is retried automatically and a bounded wait reports
// common.ErrStillPending instead of failing, because the original transaction
// may still land.
package txlife

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/client/models"
	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/ledger"
	"github.com/dmitrijs2005/giftvault/internal/logging"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type State int

const (
	Idle State = iota
	Submitting
	Pending
	Confirmed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// InFlight reports whether a write for the key may still take effect locally.
func (s State) InFlight() bool { return s == Submitting || s == Pending }

// Status is a snapshot of one operation key.
type Status struct {
	Key       string
	State     State
	AttemptID string
	Account   gethcommon.Address
	TxHash    string
	// Reason is the human-readable failure reason.
	Reason string
	// Err is the terminal error of a Failed attempt.
	Err error
	// Submitted is true once the network accepted the attempt's transaction.
	Submitted bool
	// Detached is set when local tracking stopped while the transaction was pending.
	Detached bool
	Receipt  *ledger.Receipt

	AcceptedAt time.Time
	UpdatedAt  time.Time
}

// Event announces a transition. Consumers pull Status for the latest state.
type Event struct {
	Key    string
	Status Status
}

// Call performs the write. It returns a Handle once the network accepted the
// transaction, or an error if nothing was accepted.
type Call func(ctx context.Context) (ledger.Handle, error)

// SettleHook runs after a tracked transaction reaches Confirmed or Failed and
// before Await callers are released.
type SettleHook func(ctx context.Context, st Status)

// Journal persists accepted submissions so that a restarted process can
// re-attach to them.
type Journal interface {
	Record(ctx context.Context, s models.Submission) error
	Settle(ctx context.Context, attemptID string, state models.SubmissionState, reason string) error
	Detach(ctx context.Context, account, key string) error
	Unsettled(ctx context.Context, account string) ([]models.Submission, error)
}

type Options struct {
	// ConfirmationWait bounds Await. Zero waits for the caller's context only.
	ConfirmationWait time.Duration
	// RetryDelay separates receipt waits after an unexpected Wait error.
	RetryDelay time.Duration
	Journal    Journal
	Metrics    *Metrics
	Logger     logging.Logger
	Now        func() time.Time
}

type op struct {
	key      string
	status   Status
	done     chan struct{}
	doneOnce sync.Once
	cancel   context.CancelFunc
}

func (o *op) finish() {
	o.doneOnce.Do(func() { close(o.done) })
}

type Manager struct {
	mu    sync.Mutex
	ops   map[string]*op
	subs  map[chan Event]struct{}
	hooks []SettleHook

	wait    time.Duration
	retry   time.Duration
	journal Journal
	metrics *Metrics
	logger  logging.Logger
	now     func() time.Time

	base   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

func NewManager(opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	base, stop := context.WithCancel(context.Background())
	return &Manager{
		ops:     make(map[string]*op),
		subs:    make(map[chan Event]struct{}),
		wait:    opts.ConfirmationWait,
		retry:   opts.RetryDelay,
		journal: opts.Journal,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("component", "txlife"),
		now:     opts.Now,
		base:    base,
		stop:    stop,
	}
}

// Submit starts a write under key on behalf of account.
//
// On acceptance it returns the Pending status and a nil error; the receipt is
// awaited in the background. If the call fails before acceptance the key ends
// Failed, Status.Submitted is false and the error wraps
// common.ErrSubmissionRejected (together with common.ErrLedgerRevert when the
// contract refused the call during estimation), or the validation error the
// call reported.
func (m *Manager) Submit(ctx context.Context, key string, account gethcommon.Address, call Call) (Status, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Status{Key: key}, fmt.Errorf("%w: lifecycle manager closed", common.ErrInvalidState)
	}
	if cur, ok := m.ops[key]; ok && cur.status.State.InFlight() {
		st := cur.status
		m.mu.Unlock()
		m.metrics.observeSubmission(key, "busy")
		return st, fmt.Errorf("%w: %s is %s", common.ErrBusy, key, st.State)
	}
	o := &op{
		key:  key,
		done: make(chan struct{}),
		status: Status{
			Key:       key,
			State:     Submitting,
			AttemptID: uuid.NewString(),
			Account:   account,
			UpdatedAt: m.now(),
		},
	}
	m.ops[key] = o
	st := o.status
	m.mu.Unlock()

	m.metrics.addInflight(key, 1)
	m.publish(st)

	h, err := call(ctx)
	if err != nil {
		return m.rejectSubmission(o, err)
	}
	return m.accept(ctx, o, h)
}

func (m *Manager) rejectSubmission(o *op, cause error) (Status, error) {
	err := cause
	if !errors.Is(err, common.ErrValidation) && !errors.Is(err, common.ErrSubmissionRejected) {
		err = fmt.Errorf("%w: %v", common.ErrSubmissionRejected, cause)
	}

	m.mu.Lock()
	current := m.ops[o.key] == o
	o.status.State = Failed
	o.status.Reason = cause.Error()
	o.status.Err = err
	o.status.UpdatedAt = m.now()
	st := o.status
	o.finish()
	m.mu.Unlock()

	m.metrics.observeSubmission(st.Key, "rejected")
	if current {
		m.metrics.addInflight(st.Key, -1)
		m.publish(st)
	}
	m.logger.Warn(context.Background(), "submission rejected", "key", st.Key, "attempt", st.AttemptID, "error", cause)
	return st, err
}

func (m *Manager) accept(ctx context.Context, o *op, h ledger.Handle) (Status, error) {
	now := m.now()

	m.mu.Lock()
	tracked := m.ops[o.key] == o
	current := tracked && !m.closed
	o.status.TxHash = h.TxHash()
	o.status.Submitted = true
	o.status.AcceptedAt = now
	o.status.UpdatedAt = now
	if current {
		o.status.State = Pending
	} else {
		// Reset or Close while the call was in flight: the write stays
		// journaled for its account but is no longer tracked here.
		o.status.State = Idle
		o.status.Detached = true
		o.finish()
	}
	st := o.status
	m.mu.Unlock()

	m.metrics.observeSubmission(st.Key, "accepted")
	if tracked && !current {
		m.metrics.addInflight(st.Key, -1)
	}
	// The row must exist before the watcher can settle it.
	m.record(ctx, st)
	if current {
		m.publish(st)
		m.mu.Lock()
		if m.ops[o.key] == o && o.status.State == Pending && !m.closed {
			wctx, cancel := context.WithCancel(m.base)
			o.cancel = cancel
			m.wg.Add(1)
			go m.watch(wctx, o, h)
		}
		m.mu.Unlock()
		m.logger.Info(ctx, "transaction accepted", "key", st.Key, "tx", st.TxHash, "attempt", st.AttemptID)
	} else {
		m.logger.Warn(ctx, "transaction accepted after reset", "key", st.Key, "tx", st.TxHash)
	}
	return st, nil
}

func (m *Manager) record(ctx context.Context, st Status) {
	if m.journal == nil {
		return
	}
	err := m.journal.Record(context.WithoutCancel(ctx), models.Submission{
		AttemptID: st.AttemptID,
		Key:       st.Key,
		Account:   st.Account.Hex(),
		TxHash:    st.TxHash,
		State:     models.SubmissionPending,
		CreatedAt: st.AcceptedAt,
		UpdatedAt: st.AcceptedAt,
	})
	if err != nil {
		m.logger.Error(ctx, "failed to journal submission", "key", st.Key, "tx", st.TxHash, "error", err)
	}
}

func (m *Manager) watch(ctx context.Context, o *op, h ledger.Handle) {
	defer m.wg.Done()

	for {
		r, err := h.Wait(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil || errors.Is(err, common.ErrTxDropped) {
			m.settle(ctx, o, r, err)
			return
		}
		m.logger.Warn(ctx, "receipt wait failed, retrying", "key", o.key, "tx", h.TxHash(), "error", err)
		t := time.NewTimer(m.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (m *Manager) settle(ctx context.Context, o *op, r ledger.Receipt, waitErr error) {
	m.mu.Lock()
	if m.ops[o.key] != o || o.status.State != Pending {
		m.mu.Unlock()
		return
	}
	st := o.status
	m.mu.Unlock()

	result := "confirmed"
	state := models.SubmissionConfirmed
	switch {
	case waitErr != nil:
		st.State = Failed
		st.Err = waitErr
		st.Reason = waitErr.Error()
		result, state = "dropped", models.SubmissionFailed
	case !r.Success:
		rc := r
		st.Receipt = &rc
		st.State = Failed
		st.Reason = r.Reason
		if st.Reason == "" {
			st.Reason = "execution reverted"
		}
		st.Err = fmt.Errorf("%w: %s", common.ErrLedgerRevert, st.Reason)
		result, state = "reverted", models.SubmissionFailed
	default:
		rc := r
		st.Receipt = &rc
		st.State = Confirmed
	}
	st.UpdatedAt = m.now()

	for _, hook := range m.settleHooks() {
		hook(ctx, st)
	}

	m.mu.Lock()
	if m.ops[o.key] != o || o.status.State != Pending {
		m.mu.Unlock()
		return
	}
	o.status = st
	o.finish()
	m.mu.Unlock()

	m.metrics.addInflight(st.Key, -1)
	m.metrics.observeSettled(st.Key, result, st.UpdatedAt.Sub(st.AcceptedAt))
	if m.journal != nil {
		if err := m.journal.Settle(ctx, st.AttemptID, state, st.Reason); err != nil {
			m.logger.Error(ctx, "failed to journal settlement", "key", st.Key, "tx", st.TxHash, "error", err)
		}
	}
	m.publish(st)
	if st.State == Confirmed {
		m.logger.Info(ctx, "transaction confirmed", "key", st.Key, "tx", st.TxHash)
	} else {
		m.logger.Warn(ctx, "transaction failed", "key", st.Key, "tx", st.TxHash, "reason", st.Reason)
	}
}

func (m *Manager) settleHooks() []SettleHook {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SettleHook(nil), m.hooks...)
}

// Await blocks until key is terminal, ctx is done, or the confirmation wait
// elapses. In the last two cases it returns the in-flight status together with
// common.ErrStillPending; it never resubmits. A Failed status is returned with
// its terminal error.
func (m *Manager) Await(ctx context.Context, key string) (Status, error) {
	m.mu.Lock()
	o, ok := m.ops[key]
	if !ok {
		m.mu.Unlock()
		return Status{Key: key, State: Idle}, nil
	}
	st, done := o.status, o.done
	m.mu.Unlock()

	if !st.State.InFlight() {
		return st, st.Err
	}

	var timeout <-chan time.Time
	if m.wait > 0 {
		t := time.NewTimer(m.wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-done:
		m.mu.Lock()
		st = o.status
		m.mu.Unlock()
		if st.State == Confirmed || st.State == Failed {
			return st, st.Err
		}
		return st, fmt.Errorf("%w: %s is no longer tracked", common.ErrStillPending, key)
	case <-ctx.Done():
	case <-timeout:
	}

	m.mu.Lock()
	st = o.status
	m.mu.Unlock()
	return st, fmt.Errorf("%w: %s (%s)", common.ErrStillPending, key, st.TxHash)
}

// Status returns the latest snapshot for key; unknown keys are Idle.
func (m *Manager) Status(key string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.ops[key]; ok {
		return o.status
	}
	return Status{Key: key, State: Idle}
}

// Statuses returns every tracked key, ordered by key.
func (m *Manager) Statuses() []Status {
	m.mu.Lock()
	out := make([]Status, 0, len(m.ops))
	for _, o := range m.ops {
		out = append(out, o.status)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Detach stops tracking a Pending key. The transaction itself cannot be
// revoked and may still land.
func (m *Manager) Detach(ctx context.Context, key string) error {
	m.mu.Lock()
	o, ok := m.ops[key]
	if !ok || o.status.State != Pending {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s is not pending", common.ErrInvalidState, key)
	}
	if o.cancel != nil {
		o.cancel()
	}
	o.status.State = Idle
	o.status.Detached = true
	o.status.UpdatedAt = m.now()
	st := o.status
	o.finish()
	m.mu.Unlock()

	m.metrics.addInflight(key, -1)
	m.metrics.observeSettled(key, "detached", 0)
	if m.journal != nil {
		if err := m.journal.Detach(ctx, st.Account.Hex(), key); err != nil {
			m.logger.Error(ctx, "failed to journal detach", "key", key, "error", err)
		}
	}
	m.publish(st)
	m.logger.Info(ctx, "stopped tracking transaction", "key", key, "tx", st.TxHash)
	return nil
}

// Reset drops every tracked key, stopping their watchers. Journal rows are
// left pending so Resume can re-attach when the same account reconnects.
func (m *Manager) Reset() {
	m.mu.Lock()
	ops := m.ops
	m.ops = make(map[string]*op)
	var dropped []Status
	for _, o := range ops {
		if o.cancel != nil {
			o.cancel()
		}
		if o.status.State.InFlight() {
			m.metrics.addInflight(o.key, -1)
			o.status.Detached = o.status.State == Pending
			o.status.State = Idle
		}
		o.finish()
		dropped = append(dropped, Status{Key: o.key, State: Idle, UpdatedAt: m.now()})
	}
	m.mu.Unlock()

	for _, st := range dropped {
		m.publish(st)
	}
}

// Resume re-attaches to journaled transactions of account that never settled.
// Keys that are already tracked are skipped. It returns the number of
// transactions re-attached.
func (m *Manager) Resume(ctx context.Context, account gethcommon.Address, tracker ledger.Tracker) (int, error) {
	if m.journal == nil {
		return 0, nil
	}
	rows, err := m.journal.Unsettled(ctx, account.Hex())
	if err != nil {
		return 0, fmt.Errorf("failed to read journal: %w", err)
	}

	n := 0
	for _, row := range rows {
		m.mu.Lock()
		cur, busy := m.ops[row.Key]
		busy = busy && cur.status.State.InFlight()
		m.mu.Unlock()
		if busy {
			continue
		}

		h, err := tracker.Track(ctx, row.TxHash)
		if err != nil {
			m.logger.Warn(ctx, "cannot re-attach journaled transaction", "key", row.Key, "tx", row.TxHash, "error", err)
			if serr := m.journal.Settle(ctx, row.AttemptID, models.SubmissionFailed, err.Error()); serr != nil {
				m.logger.Error(ctx, "failed to journal settlement", "key", row.Key, "error", serr)
			}
			continue
		}

		o := &op{
			key:  row.Key,
			done: make(chan struct{}),
			status: Status{
				Key:        row.Key,
				State:      Pending,
				AttemptID:  row.AttemptID,
				Account:    account,
				TxHash:     row.TxHash,
				Submitted:  true,
				AcceptedAt: row.CreatedAt,
				UpdatedAt:  m.now(),
			},
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return n, fmt.Errorf("%w: lifecycle manager closed", common.ErrInvalidState)
		}
		if cur, ok := m.ops[row.Key]; ok && cur.status.State.InFlight() {
			m.mu.Unlock()
			continue
		}
		wctx, cancel := context.WithCancel(m.base)
		o.cancel = cancel
		m.ops[row.Key] = o
		m.wg.Add(1)
		go m.watch(wctx, o, h)
		st := o.status
		m.mu.Unlock()

		m.metrics.addInflight(row.Key, 1)
		m.publish(st)
		m.logger.Info(ctx, "re-attached journaled transaction", "key", row.Key, "tx", row.TxHash)
		n++
	}
	return n, nil
}

// OnSettled registers a hook for terminal receipts.
func (m *Manager) OnSettled(hook SettleHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// Subscribe returns a channel of transition events and a function that
// cancels the subscription. Events are dropped when the buffer is full.
func (m *Manager) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			m.mu.Unlock()
			close(ch)
		})
	}
}

func (m *Manager) publish(st Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- Event{Key: st.Key, Status: st}:
		default:
		}
	}
}

// Close stops every watcher and waits for them to exit. Journal rows stay
// pending for Resume.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.stop()
	m.wg.Wait()
}
