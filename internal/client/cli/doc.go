// Package cli provides the interactive giftvault command-line client.
//
// An App drives the ledger services on behalf of the connected keystore
// account: vendor onboarding, gift card issuance and transfer, vendor coupons
// and vouchers, and the lifecycle of every transaction it submits. Values
// that depend on a transaction still in flight are printed with an
// "optimistic" marker and the operation key to await.
//
// Key features:
//   - Connect / Disconnect a keystore account (passphrase read without echo)
//   - Apply for vendor status; approve or reject applications as admin
//   - Mint, send, look up and list gift cards
//   - Mint and list vendor coupons and vouchers
//   - Inspect, await and detach tracked transactions; browse the journal
//
// The REPL is started via App.Root(ctx, account), which blocks until the
// user exits. See App, StartTxWatcher, and runREPL for details.
package cli
