package cli

import (
	"context"
	"fmt"
	"strings"
)

func (a *App) getStatus() string {
	id := a.session.Current()
	if !id.Connected() {
		return "(disconnected)"
	}
	hex := id.Address.Hex()
	s := hex[:6] + ".." + hex[len(hex)-4:]
	if rs, ok := a.roles.Last(); ok {
		if label := roleLabel(rs); label != "none" {
			s += " " + label
		}
	}
	return fmt.Sprintf("(%s)", s)
}

// Root runs the interactive session until the user exits or ctx is done.
// account, when non-empty, is connected before the first prompt.
func (a *App) Root(ctx context.Context, account string) {
	printlnFn("Welcome to giftvault CLI (type 'help' for commands)")

	if account = strings.TrimSpace(account); account != "" {
		if err := a.Connect(ctx, []string{account}); err != nil {
			printlnFn("Error:", err)
		}
	}

	a.StartTxWatcher(ctx)

	runREPL(ctx, a, a.getStatus, a.reader)
}
