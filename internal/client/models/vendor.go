package models

import (
	"fmt"
	"math/big"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/ledger"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// VendorToken is a snapshot of a coupon or voucher.
type VendorToken struct {
	TokenID *uint256.Int
	Vendor  string
	Type    ledger.TokenType
	// Value is the coupon discount percentage; zero for vouchers.
	Value *uint256.Int
	// RedeemableItems is empty for coupons.
	RedeemableItems  []string
	ExpiryDate       time.Time
	RemainingUses    uint64
	Amount           *uint256.Int
	EncryptedPayload string
	FetchedAt        time.Time
}

func (v VendorToken) IsExpired(now time.Time) bool {
	return now.After(v.ExpiryDate)
}

// NormalizeVendorToken builds a snapshot from a VendorEntity.getTokenMetadata result.
func NormalizeVendorToken(id *big.Int, raw ledger.VendorTokenMetadata, fetchedAt time.Time) (VendorToken, error) {
	tokenID, err := TokenIDFromBig(id)
	if err != nil {
		return VendorToken{}, err
	}
	if raw.Vendor == "" && (raw.ExpiryDate == nil || raw.ExpiryDate.Sign() == 0) {
		return VendorToken{}, fmt.Errorf("vendor token %s: %w", tokenID.Dec(), common.ErrorNotFound)
	}

	typ := ledger.TokenType(raw.TokenType)
	if typ != ledger.TokenTypeCoupon && typ != ledger.TokenTypeVoucher {
		return VendorToken{}, fmt.Errorf("%w: token type %d", common.ErrorIncorrectMetadata, raw.TokenType)
	}
	value, err := AmountFromBig(raw.Value)
	if err != nil {
		return VendorToken{}, err
	}
	expiry, err := TimeFromBig(raw.ExpiryDate)
	if err != nil {
		return VendorToken{}, err
	}
	uses, err := CounterFromBig(raw.RemainingUses)
	if err != nil {
		return VendorToken{}, err
	}
	amount, err := AmountFromBig(raw.Amount)
	if err != nil {
		return VendorToken{}, err
	}

	return VendorToken{
		TokenID:          tokenID,
		Vendor:           raw.Vendor,
		Type:             typ,
		Value:            value,
		RedeemableItems:  DedupeStrings(raw.RedeemableItems),
		ExpiryDate:       expiry,
		RemainingUses:    uses,
		Amount:           amount,
		EncryptedPayload: raw.EncryptedData,
		FetchedAt:        fetchedAt.UTC(),
	}, nil
}

// ApplicationStatus is the onboarding state of an address.
type ApplicationStatus int

const (
	NotApplied ApplicationStatus = iota
	Pending
	Approved
	Rejected
)

func (s ApplicationStatus) String() string {
	switch s {
	case NotApplied:
		return "not applied"
	case Pending:
		return "pending"
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("ApplicationStatus(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s ApplicationStatus) Terminal() bool {
	return s == Approved || s == Rejected
}

type VendorApplication struct {
	Applicant gethcommon.Address
	Status    ApplicationStatus
}

// RoleSet is the capability grant resolved for one address in one identity
// generation. It is replaced wholesale on every resolution.
type RoleSet struct {
	Address    gethcommon.Address
	Generation uint64
	Admin      bool
	Vendor     bool
	ResolvedAt time.Time
}

// Has reports whether the set includes role.
func (r RoleSet) Has(role ledger.Role) bool {
	switch role {
	case ledger.RoleAdmin:
		return r.Admin
	case ledger.RoleVendor:
		return r.Vendor
	default:
		return false
	}
}
