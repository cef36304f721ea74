package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/giftvault/internal/flagx"
)

var knownFlags = []string{"-rpc", "-keystore", "-account", "-journal", "-wait", "-log-level", "-log-format", "-log-file", "-metrics"}

// parseFlags overlays cfg with command-line flags.
//
//	-rpc string        JSON-RPC endpoint of the ledger node
//	-keystore string   directory of encrypted account keys
//	-account string    account to connect at startup
//	-journal string    path of the local submission journal
//	-wait duration     bounded confirmation wait
//	-log-level string  debug, info, warn or error
//	-log-format string text or json
//	-log-file string   rotate logs into this file instead of stderr
//	-metrics string    listen address of the Prometheus endpoint
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("giftvault", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.RPCURL, "rpc", cfg.RPCURL, "JSON-RPC endpoint of the ledger node")
	fs.StringVar(&cfg.KeystoreDir, "keystore", cfg.KeystoreDir, "directory of encrypted account keys")
	fs.StringVar(&cfg.Account, "account", cfg.Account, "account to connect at startup")
	fs.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "path of the local submission journal")
	fs.DurationVar(&cfg.ConfirmationWait, "wait", cfg.ConfirmationWait, "bounded confirmation wait")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text or json)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "log file")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus listen address")

	return fs.Parse(flagx.FilterArgs(args, knownFlags))
}
