package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/cryptox"
	"github.com/dmitrijs2005/giftvault/internal/ledger"
	"github.com/dmitrijs2005/giftvault/internal/txlife"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func couponRequest(h *harness, id string) VendorTokenRequest {
	return VendorTokenRequest{
		TokenID:       id,
		Name:          "Summer sale",
		Type:          ledger.TokenTypeCoupon,
		Value:         15,
		ExpiryDate:    h.clock.Now().Add(7 * 24 * time.Hour),
		RemainingUses: 3,
		Amount:        1,
	}
}

func TestVendorTokens_RequiresVendorRole(t *testing.T) {
	h := newHarness(t, txlife.Options{})
	h.session.Switch(alice)

	_, _, err := h.vendor.Mint(context.Background(), couponRequest(h, "1"))
	require.ErrorIs(t, err, common.ErrAuthorization)
	assert.Empty(t, h.ledger.Calls())
}

func TestVendorTokens_MintCouponAndList(t *testing.T) {
	h := newHarness(t, txlife.Options{})
	ctx := context.Background()
	h.ledger.GrantVendor(alice)
	h.session.Switch(alice)

	sub, tok, err := h.vendor.Mint(ctx, couponRequest(h, "1"))
	require.NoError(t, err)
	assert.Equal(t, "mintVoucher:1", sub.Key)
	assert.False(t, tok.IsConfirmed())
	h.await(t, sub.Key)

	list, err := h.vendor.ByVendor(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ledger.TokenTypeCoupon, list[0].Type)
	assert.Equal(t, uint64(15), list[0].Value.Uint64())
	assert.Equal(t, uint64(3), list[0].RemainingUses)
	assert.Empty(t, list[0].RedeemableItems)
	assert.Equal(t, "Summer sale", list[0].Vendor)
}

func TestVendorTokens_MintVoucherWithSecret(t *testing.T) {
	h := newHarness(t, txlife.Options{})
	ctx := context.Background()
	h.ledger.GrantVendor(alice)
	h.session.Switch(alice)

	req := couponRequest(h, "2")
	req.Type = ledger.TokenTypeVoucher
	req.Value = 0
	req.RedeemableItems = []string{"coffee", " coffee ", "bagel", ""}
	req.Secret = map[string]string{"pin": "1234"}
	req.Passphrase = "k1"

	sub, _, err := h.vendor.Mint(ctx, req)
	require.NoError(t, err)
	h.await(t, sub.Key)

	list, err := h.vendor.ByVendor(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"coffee", "bagel"}, list[0].RedeemableItems)

	var secret map[string]string
	require.NoError(t, cryptox.Decrypt(list[0].EncryptedPayload, "k1", &secret))
	assert.Equal(t, "1234", secret["pin"])
}

func TestVendorTokens_Validation(t *testing.T) {
	h := newHarness(t, txlife.Options{})
	h.ledger.GrantVendor(alice)
	h.session.Switch(alice)

	cases := map[string]func(r *VendorTokenRequest){
		"empty name":        func(r *VendorTokenRequest) { r.Name = "" },
		"zero id":           func(r *VendorTokenRequest) { r.TokenID = "0" },
		"past expiry":       func(r *VendorTokenRequest) { r.ExpiryDate = h.clock.Now().Add(-time.Second) },
		"zero uses":         func(r *VendorTokenRequest) { r.RemainingUses = 0 },
		"zero amount":       func(r *VendorTokenRequest) { r.Amount = 0 },
		"coupon without %":  func(r *VendorTokenRequest) { r.Value = 0 },
		"coupon over 100%":  func(r *VendorTokenRequest) { r.Value = 101 },
		"voucher no items":  func(r *VendorTokenRequest) { r.Type = ledger.TokenTypeVoucher; r.RedeemableItems = []string{" "} },
		"unknown type":      func(r *VendorTokenRequest) { r.Type = 9 },
		"secret no passphr": func(r *VendorTokenRequest) { r.Secret = "pin" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := couponRequest(h, "3")
			mutate(&req)
			_, _, err := h.vendor.Mint(context.Background(), req)
			require.ErrorIs(t, err, common.ErrValidation)
		})
	}
	assert.Empty(t, h.ledger.Calls())
}
