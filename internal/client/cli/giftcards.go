package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/giftvault/internal/client/models"
	"github.com/dmitrijs2005/giftvault/internal/client/services"
	"github.com/dmitrijs2005/giftvault/internal/common"
)

// Mint prompts for a new gift card, seals its redemption code and submits it.
func (a *App) Mint(ctx context.Context, _ []string) error {
	id := a.session.Current()
	if !id.Connected() {
		return common.ErrNotConnected
	}

	owner, err := getSimpleText(a.reader, "Owner address (empty for "+id.Address.Hex()+")", a.out)
	if err != nil {
		return err
	}
	if owner == "" {
		owner = id.Address.Hex()
	}
	tokenID, err := getSimpleText(a.reader, "Token id", a.out)
	if err != nil {
		return err
	}
	vendor, err := getSimpleText(a.reader, "Vendor", a.out)
	if err != nil {
		return err
	}
	expiryText, err := getSimpleText(a.reader, "Expiry date (YYYY-MM-DD)", a.out)
	if err != nil {
		return err
	}
	expiry, err := ParseDate(expiryText)
	if err != nil {
		return err
	}
	code, err := getSimpleText(a.reader, "Redemption code", a.out)
	if err != nil {
		return err
	}
	passphrase, err := a.promptPassphrase("Encryption passphrase")
	if err != nil {
		return err
	}

	st, card, err := a.cards.Mint(ctx, services.MintRequest{
		Owner:      owner,
		TokenID:    tokenID,
		Vendor:     vendor,
		ExpiryDate: expiry,
		Secret: models.GiftCardSecret{
			Vendor:     vendor,
			Code:       code,
			ExpiryDate: expiry.Format(dateLayout),
		},
		Passphrase: passphrase,
	})
	if err != nil {
		return err
	}
	a.printf("%s\n%s%s\n", formatStatus(st), formatGiftCard(card.Value), provenance(card))
	return nil
}

// Send transfers a gift card: send <token id> <recipient>.
func (a *App) Send(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: usage: send <token id> <address>", common.ErrValidation)
	}
	st, err := a.cards.Send(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	a.printf("%s\n", formatStatus(st))
	return nil
}

// Lookup reads a gift card and optionally decrypts its redemption code.
func (a *App) Lookup(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: usage: lookup <token id>", common.ErrValidation)
	}
	passphrase, err := a.promptPassphrase("Passphrase (empty to skip decryption)")
	if err != nil {
		return err
	}

	res, err := a.cards.Lookup(ctx, args[0], passphrase)
	if err != nil {
		return err
	}
	a.printf("%s\n", formatGiftCard(res.Card))
	if res.Card.IsExpired(a.now()) {
		a.printf("Expired\n")
	}

	switch res.Decryption {
	case services.Decrypted:
		if secret, ok := res.Secret(); ok && secret.Code != "" {
			a.printf("Code: %s\n", secret.Code)
		} else {
			a.printf("Secret: %s\n", string(res.Plaintext))
		}
	case services.DecryptionFailed:
		a.printf("Could not decrypt: wrong passphrase or corrupted data\n")
	}
	return nil
}

// Portfolio lists the connected identity's gift cards, marking the ones that
// depend on an in-flight transaction.
func (a *App) Portfolio(ctx context.Context, _ []string) error {
	cards, err := a.cards.Portfolio(ctx)
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		a.printf("No gift cards\n")
		return nil
	}
	now := a.now()
	for _, c := range cards {
		expired := ""
		if c.Value.IsExpired(now) {
			expired = " (expired)"
		}
		a.printf("%s%s%s\n", formatGiftCard(c.Value), expired, provenance(c))
	}
	return nil
}
