package ethgateway

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/ledger"
	"github.com/dmitrijs2005/giftvault/internal/logging"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dataError struct {
	msg  string
	data string
}

func (e dataError) Error() string          { return e.msg }
func (e dataError) ErrorData() interface{} { return e.data }

func revertData(t *testing.T, reason string) string {
	t.Helper()
	strType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	enc, err := abi.Arguments{{Type: strType}}.Pack(reason)
	require.NoError(t, err)
	return hexutil.Encode(append(crypto.Keccak256([]byte("Error(string)"))[:4], enc...))
}

type fakeBackend struct {
	mu sync.Mutex

	callResult func(msg ethereum.CallMsg, block *big.Int) ([]byte, error)
	estimate   error

	sent     []*types.Transaction
	receipts map[gethcommon.Hash]*types.Receipt
	known    map[gethcommon.Hash]*types.Transaction
	nonce    uint64
	nonceAt  uint64
	calls    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		receipts: map[gethcommon.Hash]*types.Receipt{},
		known:    map[gethcommon.Hash]*types.Transaction{},
	}
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1337), nil }

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	fn := f.callResult
	f.mu.Unlock()
	return fn(msg, block)
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, f.estimate
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) { return big.NewInt(2), nil }

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(10), BaseFee: big.NewInt(7)}, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, gethcommon.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) NonceAt(context.Context, gethcommon.Address, *big.Int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonceAt, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	f.known[tx.Hash()] = tx
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, h gethcommon.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[h]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) TransactionByHash(_ context.Context, h gethcommon.Hash) (*types.Transaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx, ok := f.known[h]; ok {
		return tx, true, nil
	}
	return nil, false, ethereum.NotFound
}

func (f *fakeBackend) mine(h gethcommon.Hash, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := types.ReceiptStatusSuccessful
	if !ok {
		status = types.ReceiptStatusFailed
	}
	f.receipts[h] = &types.Receipt{TxHash: h, Status: status, BlockNumber: big.NewInt(11)}
}

func (f *fakeBackend) evict(h gethcommon.Hash, nonceAt uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.known, h)
	f.nonceAt = nonceAt
}

var testContracts = Contracts{
	GiftCard:     gethcommon.HexToAddress("0x00000000000000000000000000000000000000a1"),
	Onboarding:   gethcommon.HexToAddress("0x00000000000000000000000000000000000000b2"),
	VendorEntity: gethcommon.HexToAddress("0x00000000000000000000000000000000000000c3"),
}

func newTestGateway(t *testing.T, b *fakeBackend) (*Gateway, gethcommon.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := NewKeySigner()
	from := signer.Add(key)
	g := New(b, signer, testContracts, Options{PollInterval: time.Millisecond, GasMarginPercent: 20}, logging.Nop())
	return g, from
}

func TestGateway_GetTokenMetadata(t *testing.T) {
	b := newFakeBackend()
	b.callResult = func(msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
		require.Equal(t, testContracts.GiftCard, *msg.To)
		method, err := giftCardContract.MethodById(msg.Data[:4])
		require.NoError(t, err)
		require.Equal(t, "getTokenMetadata", method.Name)
		return method.Outputs.Pack("Acme", big.NewInt(1_900_000_000), "gv1:abc")
	}
	g, _ := newTestGateway(t, b)

	got, err := g.GetTokenMetadata(context.Background(), big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Vendor)
	assert.Equal(t, int64(1_900_000_000), got.ExpiryDate.Int64())
	assert.Equal(t, "gv1:abc", got.EncryptedData)
}

func TestGateway_GetVendorTokenMetadata_Tuple(t *testing.T) {
	b := newFakeBackend()
	b.callResult = func(msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
		require.Equal(t, testContracts.VendorEntity, *msg.To)
		return vendorEntityContract.Methods["getTokenMetadata"].Outputs.Pack(vendorTokenTuple{
			Vendor:          "Acme",
			Value:           big.NewInt(15),
			ExpiryDate:      big.NewInt(2_000_000_000),
			TokenType:       1,
			RemainingUses:   big.NewInt(3),
			RedeemableItems: []string{"coffee", "bagel"},
			EncryptedData:   "",
			Amount:          big.NewInt(10),
		})
	}
	g, _ := newTestGateway(t, b)

	got, err := g.GetVendorTokenMetadata(context.Background(), big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Vendor)
	assert.Equal(t, uint8(1), got.TokenType)
	assert.Equal(t, []string{"coffee", "bagel"}, got.RedeemableItems)
	assert.Equal(t, int64(3), got.RemainingUses.Int64())
}

func TestGateway_HasRole_UsesRoleIdentifiers(t *testing.T) {
	b := newFakeBackend()
	var seen [][32]byte
	b.callResult = func(msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
		args, err := onboardingContract.Methods["hasRole"].Inputs.Unpack(msg.Data[4:])
		require.NoError(t, err)
		seen = append(seen, args[0].([32]byte))
		return onboardingContract.Methods["hasRole"].Outputs.Pack(true)
	}
	g, _ := newTestGateway(t, b)
	acct := gethcommon.HexToAddress("0x1111111111111111111111111111111111111111")

	ok, err := g.HasRole(context.Background(), ledger.RoleAdmin, acct)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = g.HasRole(context.Background(), ledger.RoleVendor, acct)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, [32]byte{}, seen[0])
	assert.Equal(t, [32]byte(crypto.Keccak256Hash([]byte("VENDOR_ROLE"))), seen[1])
}

func TestGateway_ReadError(t *testing.T) {
	b := newFakeBackend()
	b.callResult = func(ethereum.CallMsg, *big.Int) ([]byte, error) { return nil, errors.New("connection refused") }
	g, _ := newTestGateway(t, b)

	_, err := g.IsVendor(context.Background(), gethcommon.Address{1})
	require.ErrorContains(t, err, "connection refused")
}

func TestGateway_UndecodableRead(t *testing.T) {
	b := newFakeBackend()
	b.callResult = func(ethereum.CallMsg, *big.Int) ([]byte, error) { return []byte{1, 2, 3}, nil }
	g, _ := newTestGateway(t, b)

	_, err := g.GetUserTokens(context.Background(), gethcommon.Address{1})
	require.ErrorIs(t, err, common.ErrorIncorrectMetadata)
}

func TestGateway_MintGiftCard_SignsAndSends(t *testing.T) {
	b := newFakeBackend()
	b.nonce = 5
	g, from := newTestGateway(t, b)
	owner := gethcommon.HexToAddress("0x2222222222222222222222222222222222222222")

	h, err := g.MintGiftCard(context.Background(), from, owner, big.NewInt(42), "Acme", big.NewInt(1_900_000_000), "gv1:x")
	require.NoError(t, err)
	require.Len(t, b.sent, 1)

	tx := b.sent[0]
	assert.Equal(t, h.TxHash(), tx.Hash().Hex())
	assert.Equal(t, uint64(5), tx.Nonce())
	assert.Equal(t, testContracts.GiftCard, *tx.To())
	assert.Equal(t, uint64(120_000), tx.Gas())
	assert.Equal(t, int64(2+2*7), tx.GasFeeCap().Int64())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1337)), tx)
	require.NoError(t, err)
	assert.Equal(t, from, sender)

	method, err := giftCardContract.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, "mintGiftCard", method.Name)
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, owner, args[0])
	assert.Equal(t, "Acme", args[2])
}

func TestGateway_SubmissionRejected(t *testing.T) {
	t.Run("locked account", func(t *testing.T) {
		b := newFakeBackend()
		g, _ := newTestGateway(t, b)
		_, err := g.ApplyForVendor(context.Background(), gethcommon.Address{9})
		require.ErrorIs(t, err, common.ErrSubmissionRejected)
		require.ErrorContains(t, err, ErrLocked.Error())
		assert.Empty(t, b.sent)
	})

	t.Run("estimate revert", func(t *testing.T) {
		b := newFakeBackend()
		b.estimate = dataError{msg: "execution reverted", data: revertData(t, "Already applied")}
		g, from := newTestGateway(t, b)
		_, err := g.ApplyForVendor(context.Background(), from)
		require.ErrorIs(t, err, common.ErrLedgerRevert)
		require.ErrorIs(t, err, common.ErrSubmissionRejected)
		assert.False(t, common.Submitted(err))
		require.ErrorContains(t, err, "Already applied")
		assert.Empty(t, b.sent)
	})
}

func TestHandle_WaitSuccess(t *testing.T) {
	b := newFakeBackend()
	g, from := newTestGateway(t, b)

	h, err := g.ApplyForVendor(context.Background(), from)
	require.NoError(t, err)

	go func() {
		time.Sleep(5 * time.Millisecond)
		b.mine(gethcommon.HexToHash(h.TxHash()), true)
	}()

	r, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, uint64(11), r.BlockNumber)
	assert.Equal(t, h.TxHash(), r.TxHash)
}

func TestHandle_WaitRevertReason(t *testing.T) {
	b := newFakeBackend()
	b.callResult = func(_ ethereum.CallMsg, block *big.Int) ([]byte, error) {
		require.Equal(t, int64(11), block.Int64())
		return nil, dataError{msg: "execution reverted", data: revertData(t, "Caller is not an admin")}
	}
	g, from := newTestGateway(t, b)

	h, err := g.ApproveVendor(context.Background(), from, gethcommon.Address{7})
	require.NoError(t, err)
	b.mine(gethcommon.HexToHash(h.TxHash()), false)

	r, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, r.Success)
	assert.Equal(t, "Caller is not an admin", r.Reason)
}

func TestHandle_WaitDropped(t *testing.T) {
	b := newFakeBackend()
	b.nonce = 3
	g, from := newTestGateway(t, b)

	h, err := g.ApplyForVendor(context.Background(), from)
	require.NoError(t, err)
	b.evict(gethcommon.HexToHash(h.TxHash()), 4)

	_, err = h.Wait(context.Background())
	require.ErrorIs(t, err, common.ErrTxDropped)
}

func TestHandle_WaitHonoursContext(t *testing.T) {
	b := newFakeBackend()
	g, from := newTestGateway(t, b)

	h, err := g.ApplyForVendor(context.Background(), from)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = h.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGateway_Track(t *testing.T) {
	b := newFakeBackend()
	g, from := newTestGateway(t, b)

	h, err := g.ApplyForVendor(context.Background(), from)
	require.NoError(t, err)

	tracked, err := g.Track(context.Background(), h.TxHash())
	require.NoError(t, err)
	th := tracked.(*txHandle)
	assert.Equal(t, from, th.msg.From)
	assert.True(t, th.nonceKnown)

	b.mine(gethcommon.HexToHash(h.TxHash()), true)
	r, err := tracked.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Success)

	_, err = g.Track(context.Background(), "0x1234")
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestGateway_TrackUnknownIsDropped(t *testing.T) {
	b := newFakeBackend()
	g, _ := newTestGateway(t, b)

	h, err := g.Track(context.Background(), gethcommon.Hash{1}.Hex())
	require.NoError(t, err)
	_, err = h.Wait(context.Background())
	require.ErrorIs(t, err, common.ErrTxDropped)
}

func TestKeySigner_Locked(t *testing.T) {
	s := NewKeySigner()
	tx := types.NewTx(&types.DynamicFeeTx{ChainID: big.NewInt(1)})
	_, err := s.SignTx(gethcommon.Address{1}, tx, big.NewInt(1))
	require.ErrorIs(t, err, ErrLocked)
}
