// Package ethgateway implements ledger.Gateway over an Ethereum JSON-RPC node.
//
// Reads are eth_call invocations against the three contracts, throttled by a
// token bucket. Writes are EIP-1559 transactions signed locally by a Signer;
// any failure before eth_sendRawTransaction succeeds is reported as
// common.ErrSubmissionRejected.
package ethgateway

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/ledger"
	"github.com/dmitrijs2005/giftvault/internal/logging"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
)

// Backend is the subset of *ethclient.Client used by the gateway.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account gethcommon.Address) (uint64, error)
	NonceAt(ctx context.Context, account gethcommon.Address, blockNumber *big.Int) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash gethcommon.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash gethcommon.Hash) (*types.Transaction, bool, error)
}

// Dial connects to the JSON-RPC endpoint.
func Dial(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("rpc endpoint required")
	}
	return ethclient.Dial(trimmed)
}

// Contracts holds the deployed contract addresses.
type Contracts struct {
	GiftCard     gethcommon.Address
	Onboarding   gethcommon.Address
	VendorEntity gethcommon.Address
}

type Options struct {
	// ReadsPerSecond limits eth_call traffic. Zero or less disables the limit.
	ReadsPerSecond float64
	// PollInterval is the delay between receipt polls.
	PollInterval time.Duration
	// GasMarginPercent is added on top of the node's gas estimate.
	GasMarginPercent uint64
}

type Gateway struct {
	backend   Backend
	signer    Signer
	contracts Contracts
	limiter   *rate.Limiter
	poll      time.Duration
	margin    uint64
	logger    logging.Logger

	chainOnce sync.Once
	chainID   *big.Int
	chainErr  error
}

func New(backend Backend, signer Signer, contracts Contracts, opts Options, logger logging.Logger) *Gateway {
	limit := rate.Inf
	burst := 1
	if opts.ReadsPerSecond > 0 {
		limit = rate.Limit(opts.ReadsPerSecond)
		burst = max(1, int(opts.ReadsPerSecond))
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &Gateway{
		backend:   backend,
		signer:    signer,
		contracts: contracts,
		limiter:   rate.NewLimiter(limit, burst),
		poll:      poll,
		margin:    opts.GasMarginPercent,
		logger:    logger.With("component", "ethgateway"),
	}
}

func (g *Gateway) chain(ctx context.Context) (*big.Int, error) {
	g.chainOnce.Do(func() {
		g.chainID, g.chainErr = g.backend.ChainID(ctx)
	})
	return g.chainID, g.chainErr
}

func (g *Gateway) call(ctx context.Context, to gethcommon.Address, contract abi.ABI, method string, args ...any) ([]any, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	out, err := g.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	res, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrorIncorrectMetadata, method, err)
	}
	return res, nil
}

// ---- reads ----

func (g *Gateway) GetUserTokens(ctx context.Context, owner gethcommon.Address) ([]*big.Int, error) {
	out, err := g.call(ctx, g.contracts.GiftCard, giftCardContract, "getUserGiftCards", owner)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int), nil
}

func (g *Gateway) GetTokenMetadata(ctx context.Context, tokenID *big.Int) (ledger.GiftCardMetadata, error) {
	out, err := g.call(ctx, g.contracts.GiftCard, giftCardContract, "getTokenMetadata", tokenID)
	if err != nil {
		return ledger.GiftCardMetadata{}, err
	}
	return ledger.GiftCardMetadata{
		Vendor:        *abi.ConvertType(out[0], new(string)).(*string),
		ExpiryDate:    *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		EncryptedData: *abi.ConvertType(out[2], new(string)).(*string),
	}, nil
}

type vendorTokenTuple struct {
	Vendor          string
	Value           *big.Int
	ExpiryDate      *big.Int
	TokenType       uint8
	RemainingUses   *big.Int
	RedeemableItems []string
	EncryptedData   string
	Amount          *big.Int
}

func (g *Gateway) GetVendorTokenMetadata(ctx context.Context, tokenID *big.Int) (ledger.VendorTokenMetadata, error) {
	out, err := g.call(ctx, g.contracts.VendorEntity, vendorEntityContract, "getTokenMetadata", tokenID)
	if err != nil {
		return ledger.VendorTokenMetadata{}, err
	}
	t := *abi.ConvertType(out[0], new(vendorTokenTuple)).(*vendorTokenTuple)
	return ledger.VendorTokenMetadata(t), nil
}

func (g *Gateway) GetTokensByVendor(ctx context.Context, vendor gethcommon.Address) ([]*big.Int, error) {
	out, err := g.call(ctx, g.contracts.VendorEntity, vendorEntityContract, "getTokensByVendor", vendor)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int), nil
}

func (g *Gateway) HasRole(ctx context.Context, role ledger.Role, account gethcommon.Address) (bool, error) {
	return g.callBool(ctx, "hasRole", roleID(role), account)
}

func (g *Gateway) IsVendor(ctx context.Context, account gethcommon.Address) (bool, error) {
	return g.callBool(ctx, "isVendor", account)
}

func (g *Gateway) HasAppliedForVendor(ctx context.Context, account gethcommon.Address) (bool, error) {
	return g.callBool(ctx, "hasAppliedForVendor", account)
}

func (g *Gateway) GetVendorApplications(ctx context.Context) ([]gethcommon.Address, error) {
	out, err := g.call(ctx, g.contracts.Onboarding, onboardingContract, "getVendorApplications")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]gethcommon.Address)).(*[]gethcommon.Address), nil
}

func (g *Gateway) callBool(ctx context.Context, method string, args ...any) (bool, error) {
	out, err := g.call(ctx, g.contracts.Onboarding, onboardingContract, method, args...)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// ---- writes ----

func (g *Gateway) MintGiftCard(ctx context.Context, from, owner gethcommon.Address, tokenID *big.Int, vendor string, expiryDate *big.Int, encryptedData string) (ledger.Handle, error) {
	return g.transact(ctx, from, g.contracts.GiftCard, giftCardContract, "mintGiftCard", owner, tokenID, vendor, expiryDate, encryptedData)
}

func (g *Gateway) SendGiftCard(ctx context.Context, from, to gethcommon.Address, tokenID *big.Int) (ledger.Handle, error) {
	return g.transact(ctx, from, g.contracts.GiftCard, giftCardContract, "sendGiftCard", to, tokenID)
}

func (g *Gateway) MintVoucherOrCoupon(ctx context.Context, from gethcommon.Address, m ledger.VendorTokenMint) (ledger.Handle, error) {
	items := m.RedeemableItems
	if items == nil {
		items = []string{}
	}
	return g.transact(ctx, from, g.contracts.VendorEntity, vendorEntityContract, "mintVoucherOrCoupon",
		m.To, m.TokenID, m.Vendor, m.Value, m.ExpiryDate, uint8(m.TokenType), m.RemainingUses, items, m.EncryptedData, m.Amount)
}

func (g *Gateway) ApplyForVendor(ctx context.Context, from gethcommon.Address) (ledger.Handle, error) {
	return g.transact(ctx, from, g.contracts.Onboarding, onboardingContract, "applyForVendor")
}

func (g *Gateway) ApproveVendor(ctx context.Context, from, applicant gethcommon.Address) (ledger.Handle, error) {
	return g.transact(ctx, from, g.contracts.Onboarding, onboardingContract, "approveVendor", applicant)
}

func (g *Gateway) RejectVendor(ctx context.Context, from, applicant gethcommon.Address) (ledger.Handle, error) {
	return g.transact(ctx, from, g.contracts.Onboarding, onboardingContract, "rejectVendor", applicant)
}

func rejected(method string, err error) error {
	return fmt.Errorf("%w: %s: %v", common.ErrSubmissionRejected, method, err)
}

func (g *Gateway) transact(ctx context.Context, from, to gethcommon.Address, contract abi.ABI, method string, args ...any) (ledger.Handle, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, rejected(method, err)
	}

	chainID, err := g.chain(ctx)
	if err != nil {
		return nil, rejected(method, err)
	}
	nonce, err := g.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, rejected(method, err)
	}
	tip, err := g.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, rejected(method, err)
	}
	head, err := g.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, rejected(method, err)
	}
	feeCap := new(big.Int).Set(tip)
	if head != nil && head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	msg := ethereum.CallMsg{From: from, To: &to, Data: data}
	gas, err := g.backend.EstimateGas(ctx, msg)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, fmt.Errorf("%w: %w: %s: %s", common.ErrSubmissionRejected, common.ErrLedgerRevert, method, reason)
		}
		return nil, rejected(method, err)
	}
	gas += gas * g.margin / 100

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     new(big.Int),
		Data:      data,
	})
	signed, err := g.signer.SignTx(from, tx, chainID)
	if err != nil {
		return nil, rejected(method, err)
	}
	if err := g.backend.SendTransaction(ctx, signed); err != nil {
		return nil, rejected(method, err)
	}

	g.logger.Debug(ctx, "transaction sent", "method", method, "tx", signed.Hash().Hex(), "nonce", nonce, "gas", gas)
	return &txHandle{
		g:          g,
		hash:       signed.Hash(),
		msg:        msg,
		nonce:      nonce,
		nonceKnown: true,
	}, nil
}

// Track implements ledger.Tracker. The transaction is looked up so that a
// later revert can be replayed for its reason; if the node no longer knows it,
// Wait decides between a late receipt and a drop.
func (g *Gateway) Track(ctx context.Context, txHash string) (ledger.Handle, error) {
	if !strings.HasPrefix(txHash, "0x") || len(txHash) != 66 {
		return nil, fmt.Errorf("%w: malformed transaction hash %q", common.ErrValidation, txHash)
	}
	h := &txHandle{g: g, hash: gethcommon.HexToHash(txHash)}

	tx, _, err := g.backend.TransactionByHash(ctx, h.hash)
	switch {
	case err == nil && tx != nil:
		chainID, cerr := g.chain(ctx)
		if cerr != nil {
			return nil, cerr
		}
		from, serr := types.Sender(types.LatestSignerForChainID(chainID), tx)
		if serr != nil {
			return nil, fmt.Errorf("failed to recover sender of %s: %w", txHash, serr)
		}
		h.msg = ethereum.CallMsg{From: from, To: tx.To(), Data: tx.Data()}
		h.nonce, h.nonceKnown = tx.Nonce(), true
	case err != nil && !isNotFound(err):
		return nil, fmt.Errorf("failed to look up %s: %w", txHash, err)
	}
	return h, nil
}

var _ ledger.Gateway = (*Gateway)(nil)
