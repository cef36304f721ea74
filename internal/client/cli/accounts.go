package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/giftvault/internal/client/models"
	"github.com/dmitrijs2005/giftvault/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Accounts lists the keystore accounts and marks the connected one.
func (a *App) Accounts(ctx context.Context, _ []string) error {
	current := a.session.Current().Address
	accs := a.keys.Accounts()
	if len(accs) == 0 {
		a.printf("No accounts in keystore\n")
		return nil
	}
	for _, acc := range accs {
		mark := " "
		if acc == current {
			mark = "*"
		}
		a.printf("%s %s\n", mark, acc.Hex())
	}
	return nil
}

// Connect unlocks a keystore account and makes it the connected identity.
// Every piece of state derived for the previous identity is discarded.
func (a *App) Connect(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: usage: connect <address>", common.ErrValidation)
	}
	addr, err := models.ParseAddress(args[0])
	if err != nil {
		return err
	}

	passphrase, err := getPassword("Keystore passphrase", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(passphrase)

	if err := a.keys.Unlock(addr, string(passphrase)); err != nil {
		return err
	}
	a.session.Switch(addr)
	if err := a.history.SetLastAccount(ctx, addr.Hex()); err != nil {
		a.logger.Warn(ctx, "failed to remember account", "account", addr.Hex(), "error", err)
	}

	a.printf("Connected %s\n", addr.Hex())
	return a.Roles(ctx, nil)
}

// Disconnect clears the connected identity.
func (a *App) Disconnect(ctx context.Context, _ []string) error {
	a.session.Disconnect()
	if err := a.history.SetLastAccount(ctx, ""); err != nil {
		a.logger.Warn(ctx, "failed to forget account", "error", err)
	}
	a.printf("Disconnected\n")
	return nil
}

// Roles re-reads the connected identity's roles from the ledger.
func (a *App) Roles(ctx context.Context, _ []string) error {
	rs, err := a.roles.Current(ctx)
	if err != nil {
		return err
	}
	a.printf("%s roles: %s\n", rs.Address.Hex(), roleLabel(rs))
	return nil
}

func roleLabel(rs models.RoleSet) string {
	var labels []string
	if rs.Admin {
		labels = append(labels, "admin")
	}
	if rs.Vendor {
		labels = append(labels, "vendor")
	}
	if len(labels) == 0 {
		return "none"
	}
	return strings.Join(labels, ", ")
}

// promptPassphrase asks for an encryption passphrase. An empty answer is
// returned as "".
func (a *App) promptPassphrase(prompt string) (string, error) {
	p, err := getPassword(prompt, a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(p)
	return string(p), nil
}
