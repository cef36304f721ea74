// Package ledger describes the read/write surface of the gift card contracts.
//
// Components receive a Gateway through their constructors; nothing in giftvault
// reaches the ledger through global state. Production code uses the go-ethereum
// implementation in package ethgateway, tests use ledgertest.
//
// Values cross this boundary as the contracts return them: *big.Int for uint256
// and common.Address for addresses. Package models coerces them into typed
// snapshots.
package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Role is an on-chain capability grant.
type Role string

const (
	RoleAdmin  Role = "ADMIN_ROLE"
	RoleVendor Role = "VENDOR_ROLE"
)

// TokenType distinguishes the two vendor token variants.
type TokenType uint8

const (
	TokenTypeCoupon  TokenType = 0
	TokenTypeVoucher TokenType = 1
)

func (t TokenType) String() string {
	switch t {
	case TokenTypeCoupon:
		return "coupon"
	case TokenTypeVoucher:
		return "voucher"
	default:
		return "unknown"
	}
}

// GiftCardMetadata is the raw result of GiftCard.getTokenMetadata.
// An unknown token reads back as the zero value.
type GiftCardMetadata struct {
	Vendor        string
	ExpiryDate    *big.Int
	EncryptedData string
}

// VendorTokenMetadata is the raw result of VendorEntity.getTokenMetadata.
type VendorTokenMetadata struct {
	Vendor          string
	Value           *big.Int
	ExpiryDate      *big.Int
	TokenType       uint8
	RemainingUses   *big.Int
	RedeemableItems []string
	EncryptedData   string
	Amount          *big.Int
}

// VendorTokenMint carries the arguments of VendorEntity.mintVoucherOrCoupon.
type VendorTokenMint struct {
	To              common.Address
	TokenID         *big.Int
	Vendor          string
	Value           *big.Int
	ExpiryDate      *big.Int
	TokenType       TokenType
	RemainingUses   *big.Int
	RedeemableItems []string
	EncryptedData   string
	Amount          *big.Int
}

// Receipt is the finalized outcome of a submitted write.
type Receipt struct {
	TxHash      string
	Success     bool
	Reason      string
	BlockNumber uint64
}

// Handle tracks one transaction the network has accepted.
type Handle interface {
	// TxHash identifies the transaction on the ledger.
	TxHash() string

	// Wait blocks until the transaction is included, ctx is done, or the
	// ledger reports the transaction can no longer be included (ErrTxDropped).
	// A reverted transaction is a Receipt with Success == false, not an error.
	Wait(ctx context.Context) (Receipt, error)
}

// Reader exposes the view functions of the three contracts.
type Reader interface {
	GetUserTokens(ctx context.Context, owner common.Address) ([]*big.Int, error)
	GetTokenMetadata(ctx context.Context, tokenID *big.Int) (GiftCardMetadata, error)
	GetVendorTokenMetadata(ctx context.Context, tokenID *big.Int) (VendorTokenMetadata, error)
	GetTokensByVendor(ctx context.Context, vendor common.Address) ([]*big.Int, error)

	HasRole(ctx context.Context, role Role, account common.Address) (bool, error)
	IsVendor(ctx context.Context, account common.Address) (bool, error)
	HasAppliedForVendor(ctx context.Context, account common.Address) (bool, error)
	GetVendorApplications(ctx context.Context) ([]common.Address, error)
}

// Writer submits state-changing calls signed by from.
//
// A returned error means nothing was accepted by the network and wraps
// common.ErrSubmissionRejected. A returned Handle means the opposite.
type Writer interface {
	MintGiftCard(ctx context.Context, from, owner common.Address, tokenID *big.Int, vendor string, expiryDate *big.Int, encryptedData string) (Handle, error)
	SendGiftCard(ctx context.Context, from, to common.Address, tokenID *big.Int) (Handle, error)
	MintVoucherOrCoupon(ctx context.Context, from common.Address, m VendorTokenMint) (Handle, error)
	ApplyForVendor(ctx context.Context, from common.Address) (Handle, error)
	ApproveVendor(ctx context.Context, from, applicant common.Address) (Handle, error)
	RejectVendor(ctx context.Context, from, applicant common.Address) (Handle, error)
}

// Tracker re-attaches to a transaction submitted earlier, e.g. by a previous
// run of the process.
type Tracker interface {
	Track(ctx context.Context, txHash string) (Handle, error)
}

// Gateway is the full ledger surface.
type Gateway interface {
	Reader
	Writer
	Tracker
}
