package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/client/models"
	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/cryptox"
	"github.com/dmitrijs2005/giftvault/internal/ledger"
	"github.com/dmitrijs2005/giftvault/internal/txlife"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const maxCouponValue = 100

// VendorTokenRequest describes a coupon or voucher minted by a vendor to
// itself. Secret is optional; when set it is sealed with Passphrase.
type VendorTokenRequest struct {
	TokenID string
	Name    string
	Type    ledger.TokenType
	// Value is the coupon discount percentage.
	Value           uint64
	ExpiryDate      time.Time
	RemainingUses   uint64
	RedeemableItems []string
	Amount          uint64
	Secret          any
	Passphrase      string
}

type VendorTokenService interface {
	// Mint requires the Vendor role and submits under "mintVoucher:<id>".
	Mint(ctx context.Context, req VendorTokenRequest) (txlife.Status, models.Tagged[models.VendorToken], error)
	// ByVendor lists the tokens minted by vendor, read fresh.
	ByVendor(ctx context.Context, vendor gethcommon.Address) ([]models.VendorToken, error)
}

type vendorTokenService struct {
	Deps
	roles RoleService
}

func NewVendorTokenService(d Deps, roles RoleService) VendorTokenService {
	return &vendorTokenService{Deps: d.withDefaults(), roles: roles}
}

func (s *vendorTokenService) Mint(ctx context.Context, req VendorTokenRequest) (txlife.Status, models.Tagged[models.VendorToken], error) {
	var none models.Tagged[models.VendorToken]

	id, err := s.connected()
	if err != nil {
		return txlife.Status{}, none, err
	}
	tok, err := s.validate(req)
	if err != nil {
		return txlife.Status{}, none, err
	}
	key := tokenKey(kindMintVoucher, tok.TokenID)
	if cur := s.Tx.Status(key); cur.State.InFlight() {
		return cur, none, busy(key, cur)
	}
	if _, err := s.roles.Require(ctx, ledger.RoleVendor); err != nil {
		return s.Tx.Status(key), none, err
	}

	if req.Secret != nil {
		if req.Passphrase == "" {
			return txlife.Status{}, none, fmt.Errorf("%w: passphrase is required to seal a secret", common.ErrValidation)
		}
		if tok.EncryptedPayload, err = cryptox.Encrypt(req.Secret, req.Passphrase); err != nil {
			return txlife.Status{}, none, fmt.Errorf("%w: %v", common.ErrValidation, err)
		}
	}

	mint := ledger.VendorTokenMint{
		To:              id.Address,
		TokenID:         tok.TokenID.ToBig(),
		Vendor:          tok.Vendor,
		Value:           tok.Value.ToBig(),
		ExpiryDate:      big.NewInt(tok.ExpiryDate.Unix()),
		TokenType:       tok.Type,
		RemainingUses:   new(big.Int).SetUint64(tok.RemainingUses),
		RedeemableItems: tok.RedeemableItems,
		EncryptedData:   tok.EncryptedPayload,
		Amount:          tok.Amount.ToBig(),
	}
	st, err := s.Tx.Submit(ctx, key, id.Address, func(ctx context.Context) (ledger.Handle, error) {
		return s.Ledger.MintVoucherOrCoupon(ctx, id.Address, mint)
	})
	if err != nil {
		return st, none, err
	}
	s.Logger.Info(ctx, "vendor token mint submitted", "token", tok.TokenID.Dec(), "type", tok.Type, "tx", st.TxHash)
	return st, models.Expect(tok, key), nil
}

func (s *vendorTokenService) validate(req VendorTokenRequest) (models.VendorToken, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.VendorToken{}, fmt.Errorf("%w: name is required", common.ErrValidation)
	}
	tokenID, err := models.ParseTokenID(req.TokenID)
	if err != nil {
		return models.VendorToken{}, err
	}
	if tokenID.IsZero() {
		return models.VendorToken{}, fmt.Errorf("%w: token id must be positive", common.ErrValidation)
	}
	now := s.Now()
	if req.ExpiryDate.Unix() <= now.Unix() {
		return models.VendorToken{}, fmt.Errorf("%w: expiry date must be in the future", common.ErrValidation)
	}
	if req.RemainingUses == 0 {
		return models.VendorToken{}, fmt.Errorf("%w: remaining uses must be positive", common.ErrValidation)
	}
	if req.Amount == 0 {
		return models.VendorToken{}, fmt.Errorf("%w: amount must be positive", common.ErrValidation)
	}

	tok := models.VendorToken{
		TokenID:       tokenID,
		Vendor:        name,
		Type:          req.Type,
		Value:         uint256.NewInt(req.Value),
		ExpiryDate:    time.Unix(req.ExpiryDate.Unix(), 0).UTC(),
		RemainingUses: req.RemainingUses,
		Amount:        uint256.NewInt(req.Amount),
		FetchedAt:     now.UTC(),
	}
	switch req.Type {
	case ledger.TokenTypeCoupon:
		if req.Value == 0 || req.Value > maxCouponValue {
			return models.VendorToken{}, fmt.Errorf("%w: coupon value must be between 1 and %d", common.ErrValidation, maxCouponValue)
		}
	case ledger.TokenTypeVoucher:
		tok.RedeemableItems = models.DedupeStrings(req.RedeemableItems)
		if len(tok.RedeemableItems) == 0 {
			return models.VendorToken{}, fmt.Errorf("%w: voucher needs at least one redeemable item", common.ErrValidation)
		}
	default:
		return models.VendorToken{}, fmt.Errorf("%w: unknown token type %d", common.ErrValidation, req.Type)
	}
	return tok, nil
}

func (s *vendorTokenService) ByVendor(ctx context.Context, vendor gethcommon.Address) ([]models.VendorToken, error) {
	raw, err := s.Ledger.GetTokensByVendor(ctx, vendor)
	if err != nil {
		return nil, fmt.Errorf("failed to read vendor tokens: %w", err)
	}
	ids, err := models.DedupeTokenIDs(raw)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	out := make([]models.VendorToken, 0, len(ids))
	for _, id := range ids {
		meta, err := s.Ledger.GetVendorTokenMetadata(ctx, id.ToBig())
		if err != nil {
			return nil, fmt.Errorf("failed to read vendor token %s: %w", id.Dec(), err)
		}
		tok, err := models.NormalizeVendorToken(id.ToBig(), meta, now)
		if errors.Is(err, common.ErrorNotFound) {
			s.Logger.Warn(ctx, "listed vendor token has no metadata", "token", id.Dec())
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}
