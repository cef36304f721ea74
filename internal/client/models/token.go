// Package models normalizes raw ledger reads into typed, immutable snapshots.
//
// Values cross the ledger boundary as *big.Int and common.Address; here they
// become uint256 identifiers, UTC times and bounded counters. Anything that
// does not fit is reported as common.ErrorIncorrectMetadata rather than being
// silently truncated.
package models

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/common"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ParseTokenID accepts a decimal or 0x-prefixed hexadecimal token id.
func ParseTokenID(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: token id is required", common.ErrValidation)
	}
	if hex, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		b, ok := new(big.Int).SetString(hex, 16)
		if !ok || hex == "" {
			return nil, fmt.Errorf("%w: token id %q is not a number", common.ErrValidation, s)
		}
		id, overflow := uint256.FromBig(b)
		if overflow {
			return nil, fmt.Errorf("%w: token id %q exceeds 256 bits", common.ErrValidation, s)
		}
		return id, nil
	}
	if s[0] < '0' || s[0] > '9' {
		return nil, fmt.Errorf("%w: token id %q is not a number", common.ErrValidation, s)
	}
	id, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: token id %q: %v", common.ErrValidation, s, err)
	}
	return id, nil
}

// ParseAddress accepts a 0x-prefixed, 40 hex digit address. The zero address
// is rejected.
func ParseAddress(s string) (gethcommon.Address, error) {
	s = strings.TrimSpace(s)
	if !addressPattern.MatchString(s) {
		return gethcommon.Address{}, fmt.Errorf("%w: invalid address %q", common.ErrValidation, s)
	}
	addr := gethcommon.HexToAddress(s)
	if addr == (gethcommon.Address{}) {
		return gethcommon.Address{}, fmt.Errorf("%w: zero address", common.ErrValidation)
	}
	return addr, nil
}

// TokenIDFromBig coerces a ledger integer into a token id.
func TokenIDFromBig(b *big.Int) (*uint256.Int, error) {
	if b == nil || b.Sign() < 0 {
		return nil, fmt.Errorf("%w: token id %v", common.ErrorIncorrectMetadata, b)
	}
	id, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("%w: token id overflows uint256", common.ErrorIncorrectMetadata)
	}
	return id, nil
}

// TimeFromBig converts a unix timestamp in seconds. A nil value reads as zero.
func TimeFromBig(b *big.Int) (time.Time, error) {
	if b == nil {
		return time.Unix(0, 0).UTC(), nil
	}
	u, overflow := uint256.FromBig(b)
	if overflow || b.Sign() < 0 || !u.IsUint64() || u.Uint64() > math.MaxInt64 {
		return time.Time{}, fmt.Errorf("%w: timestamp %s out of range", common.ErrorIncorrectMetadata, b)
	}
	return time.Unix(int64(u.Uint64()), 0).UTC(), nil
}

// CounterFromBig converts a non-negative counter that must fit in 64 bits.
func CounterFromBig(b *big.Int) (uint64, error) {
	if b == nil {
		return 0, nil
	}
	if b.Sign() < 0 || !b.IsUint64() {
		return 0, fmt.Errorf("%w: counter %s out of range", common.ErrorIncorrectMetadata, b)
	}
	return b.Uint64(), nil
}

// AmountFromBig converts a non-negative uint256 quantity.
func AmountFromBig(b *big.Int) (*uint256.Int, error) {
	if b == nil {
		return new(uint256.Int), nil
	}
	if b.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount %s", common.ErrorIncorrectMetadata, b)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("%w: amount overflows uint256", common.ErrorIncorrectMetadata)
	}
	return v, nil
}

// DedupeTokenIDs keeps the first occurrence of every id, in order.
func DedupeTokenIDs(ids []*big.Int) ([]*uint256.Int, error) {
	seen := make(map[uint256.Int]struct{}, len(ids))
	out := make([]*uint256.Int, 0, len(ids))
	for _, b := range ids {
		id, err := TokenIDFromBig(b)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[*id]; ok {
			continue
		}
		seen[*id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// DedupeAddresses keeps the first occurrence of every address, in order.
// Zero addresses are dropped.
func DedupeAddresses(addrs []gethcommon.Address) []gethcommon.Address {
	seen := make(map[gethcommon.Address]struct{}, len(addrs))
	out := make([]gethcommon.Address, 0, len(addrs))
	for _, a := range addrs {
		if a == (gethcommon.Address{}) {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// DedupeStrings trims every entry, drops empty ones and keeps the first
// occurrence of the rest.
func DedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
