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

// GiftCard is a snapshot of one gift card token as last read from the ledger.
type GiftCard struct {
	TokenID *uint256.Int
	// Owner is the zero address when the read did not establish ownership.
	Owner            gethcommon.Address
	Vendor           string
	ExpiryDate       time.Time
	EncryptedPayload string
	FetchedAt        time.Time
}

// IsExpired reports whether now is past the expiry date.
func (c GiftCard) IsExpired(now time.Time) bool {
	return now.After(c.ExpiryDate)
}

// GiftCardSecret is the plaintext sealed into EncryptedPayload by the CLI.
type GiftCardSecret struct {
	Vendor     string `json:"vendor"`
	Code       string `json:"code"`
	ExpiryDate string `json:"expiryDate"`
}

// NormalizeGiftCard builds a snapshot from a getTokenMetadata result. The
// contract returns an all-zero tuple for unknown ids, which is reported as
// common.ErrorNotFound.
func NormalizeGiftCard(id *big.Int, owner gethcommon.Address, raw ledger.GiftCardMetadata, fetchedAt time.Time) (GiftCard, error) {
	tokenID, err := TokenIDFromBig(id)
	if err != nil {
		return GiftCard{}, err
	}
	if raw.Vendor == "" && (raw.ExpiryDate == nil || raw.ExpiryDate.Sign() == 0) && raw.EncryptedData == "" {
		return GiftCard{}, fmt.Errorf("gift card %s: %w", tokenID.Dec(), common.ErrorNotFound)
	}
	expiry, err := TimeFromBig(raw.ExpiryDate)
	if err != nil {
		return GiftCard{}, err
	}
	return GiftCard{
		TokenID:          tokenID,
		Owner:            owner,
		Vendor:           raw.Vendor,
		ExpiryDate:       expiry,
		EncryptedPayload: raw.EncryptedData,
		FetchedAt:        fetchedAt.UTC(),
	}, nil
}
