package ethgateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/ledger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

type txHandle struct {
	g    *Gateway
	hash gethcommon.Hash

	// msg replays the call at the inclusion block to recover a revert reason.
	msg        ethereum.CallMsg
	nonce      uint64
	nonceKnown bool
}

func (h *txHandle) TxHash() string { return h.hash.Hex() }

// Wait polls for the receipt. Transient RPC failures are logged and retried
// on the next tick.
func (h *txHandle) Wait(ctx context.Context) (ledger.Receipt, error) {
	for {
		r, err := h.g.backend.TransactionReceipt(ctx, h.hash)
		switch {
		case err == nil && r != nil:
			return h.receipt(ctx, r), nil
		case err == nil || isNotFound(err):
			dropped, derr := h.dropped(ctx)
			if derr != nil {
				h.g.logger.Debug(ctx, "drop check failed", "tx", h.hash.Hex(), "error", derr)
			}
			if dropped {
				return ledger.Receipt{}, fmt.Errorf("%w: %s is no longer known to the node", common.ErrTxDropped, h.hash.Hex())
			}
		case ctx.Err() != nil:
			return ledger.Receipt{}, ctx.Err()
		default:
			h.g.logger.Debug(ctx, "receipt poll failed", "tx", h.hash.Hex(), "error", err)
		}

		t := time.NewTimer(h.g.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return ledger.Receipt{}, ctx.Err()
		case <-t.C:
		}
	}
}

// dropped reports whether the transaction can no longer be included: the node
// does not know it and, when the nonce is known, the account has moved past it.
func (h *txHandle) dropped(ctx context.Context) (bool, error) {
	_, _, err := h.g.backend.TransactionByHash(ctx, h.hash)
	if err == nil {
		return false, nil
	}
	if !isNotFound(err) {
		return false, err
	}
	if !h.nonceKnown {
		return true, nil
	}
	latest, err := h.g.backend.NonceAt(ctx, h.msg.From, nil)
	if err != nil {
		return false, err
	}
	if latest <= h.nonce {
		return false, nil
	}
	// The nonce was consumed; make sure it was not consumed by this transaction
	// whose receipt simply was not indexed on the first poll.
	r, err := h.g.backend.TransactionReceipt(ctx, h.hash)
	if err == nil && r != nil {
		return false, nil
	}
	return true, nil
}

func (h *txHandle) receipt(ctx context.Context, r *types.Receipt) ledger.Receipt {
	out := ledger.Receipt{
		TxHash:  h.hash.Hex(),
		Success: r.Status == types.ReceiptStatusSuccessful,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	if !out.Success {
		out.Reason = h.revertReason(ctx, r)
	}
	return out
}

func (h *txHandle) revertReason(ctx context.Context, r *types.Receipt) string {
	if h.msg.To == nil {
		return "execution reverted"
	}
	_, err := h.g.backend.CallContract(ctx, h.msg, r.BlockNumber)
	if err == nil {
		return "execution reverted"
	}
	if reason, ok := revertReason(err); ok {
		return reason
	}
	return err.Error()
}

// revertReason extracts an Error(string) reason from a JSON-RPC error.
func revertReason(err error) (string, bool) {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return "", false
	}
	raw, ok := de.ErrorData().(string)
	if !ok {
		return "", false
	}
	data, derr := hexutil.Decode(raw)
	if derr != nil {
		return "", false
	}
	reason, uerr := abi.UnpackRevert(data)
	if uerr != nil {
		return "", false
	}
	return reason, true
}

func isNotFound(err error) bool {
	return errors.Is(err, ethereum.NotFound)
}
