package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/giftvault/internal/client/services"
	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/ledger"
)

// VendorMint prompts for a coupon or voucher and mints it to the connected
// vendor. Vendor only.
func (a *App) VendorMint(ctx context.Context, _ []string) error {
	if !a.isConnected() {
		return common.ErrNotConnected
	}

	var req services.VendorTokenRequest
	typ, err := getSimpleText(a.reader, "Type (coupon/voucher)", a.out)
	if err != nil {
		return err
	}
	switch strings.ToLower(typ) {
	case "coupon":
		req.Type = ledger.TokenTypeCoupon
	case "voucher":
		req.Type = ledger.TokenTypeVoucher
	default:
		return fmt.Errorf("%w: unknown token type %q", common.ErrValidation, typ)
	}

	if req.TokenID, err = getSimpleText(a.reader, "Token id", a.out); err != nil {
		return err
	}
	if req.Name, err = getSimpleText(a.reader, "Name", a.out); err != nil {
		return err
	}

	if req.Type == ledger.TokenTypeCoupon {
		v, err := getSimpleText(a.reader, "Discount percentage", a.out)
		if err != nil {
			return err
		}
		if req.Value, err = ParseCount(v); err != nil {
			return err
		}
	} else {
		if req.RedeemableItems, err = GetList(a.reader, "Redeemable items", a.out); err != nil {
			return err
		}
	}

	expiry, err := getSimpleText(a.reader, "Expiry date (YYYY-MM-DD)", a.out)
	if err != nil {
		return err
	}
	if req.ExpiryDate, err = ParseDate(expiry); err != nil {
		return err
	}
	uses, err := getSimpleText(a.reader, "Remaining uses", a.out)
	if err != nil {
		return err
	}
	if req.RemainingUses, err = ParseCount(uses); err != nil {
		return err
	}
	amount, err := getSimpleText(a.reader, "Amount", a.out)
	if err != nil {
		return err
	}
	if req.Amount, err = ParseCount(amount); err != nil {
		return err
	}

	secret, err := getSimpleText(a.reader, "Secret code (empty for none)", a.out)
	if err != nil {
		return err
	}
	if secret != "" {
		req.Secret = secret
		if req.Passphrase, err = a.promptPassphrase("Encryption passphrase"); err != nil {
			return err
		}
	}

	st, tok, err := a.vendor.Mint(ctx, req)
	if err != nil {
		return err
	}
	a.printf("%s\n%s%s\n", formatStatus(st), formatVendorToken(tok.Value), provenance(tok))
	return nil
}

// VendorTokens lists the coupons and vouchers minted by a vendor, the
// connected identity by default.
func (a *App) VendorTokens(ctx context.Context, args []string) error {
	addr, err := a.addressArg(args)
	if err != nil {
		return err
	}
	tokens, err := a.vendor.ByVendor(ctx, addr)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		a.printf("No vendor tokens\n")
		return nil
	}
	now := a.now()
	for _, t := range tokens {
		expired := ""
		if t.IsExpired(now) {
			expired = " (expired)"
		}
		a.printf("%s%s\n", formatVendorToken(t), expired)
	}
	return nil
}
