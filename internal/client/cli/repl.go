package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// command is a REPL handler. args are the whitespace-separated words that
// followed the command name.
type command func(ctx context.Context, args []string) error

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isConnected() bool
	Accounts(ctx context.Context, args []string) error
	Connect(ctx context.Context, args []string) error
	Disconnect(ctx context.Context, args []string) error
	Roles(ctx context.Context, args []string) error
	Apply(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	Applications(ctx context.Context, args []string) error
	Approve(ctx context.Context, args []string) error
	Reject(ctx context.Context, args []string) error
	Mint(ctx context.Context, args []string) error
	Send(ctx context.Context, args []string) error
	Lookup(ctx context.Context, args []string) error
	Portfolio(ctx context.Context, args []string) error
	VendorMint(ctx context.Context, args []string) error
	VendorTokens(ctx context.Context, args []string) error
	Transactions(ctx context.Context, args []string) error
	Await(ctx context.Context, args []string) error
	Detach(ctx context.Context, args []string) error
	Journal(ctx context.Context, args []string) error
}

const (
	helpDisconnected = "Available commands: accounts, connect <address>, status <address>, lookup <id>, vendor-tokens <address>, journal, exit"
	helpConnected    = "Available commands: accounts, connect <address>, disconnect, roles, " +
		"apply, status [address], applications, approve <address>, reject <address>, " +
		"mint, send <id> <address>, lookup <id>, (l)ist, " +
		"vendor-mint, vendor-tokens [address], " +
		"tx, await <key>, detach <key>, journal [limit], exit"
)

// commands maps command names to handlers of a.
func commands(a execIface) map[string]command {
	return map[string]command{
		"accounts":      a.Accounts,
		"connect":       a.Connect,
		"disconnect":    a.Disconnect,
		"roles":         a.Roles,
		"apply":         a.Apply,
		"status":        a.Status,
		"applications":  a.Applications,
		"approve":       a.Approve,
		"reject":        a.Reject,
		"mint":          a.Mint,
		"send":          a.Send,
		"lookup":        a.Lookup,
		"l":             a.Portfolio,
		"list":          a.Portfolio,
		"portfolio":     a.Portfolio,
		"vendor-mint":   a.VendorMint,
		"vendor-tokens": a.VendorTokens,
		"tx":            a.Transactions,
		"await":         a.Await,
		"detach":        a.Detach,
		"journal":       a.Journal,
	}
}

// runREPL starts a simple read-eval-print loop for the giftvault CLI.
//
// It reads a line from the provided reader, parses the first token as the
// command and the rest as its arguments, and dispatches to methods on 'a'.
// Unknown commands are reported back to the user. The loop exits on
// EOF or when the user types "exit" or "quit".
//
// Commands that prompt for more input read from the same reader, so the loop
// and the prompts never buffer ahead of each other. A failing command prints
// its error and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	handlers := commands(a)
	for {
		printlnFn(fmt.Sprintf("gv %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isConnected() {
				printlnFn(helpConnected)
			} else {
				printlnFn(helpDisconnected)
			}
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		h, ok := handlers[cmd]
		if !ok {
			printlnFn("Unknown command:", cmd)
			continue
		}
		if err := h(ctx, args); err != nil {
			printlnFn("Error:", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}
