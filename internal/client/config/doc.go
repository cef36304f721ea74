// Package config loads runtime configuration for the giftvault CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. GIFTVAULT_* environment variables.
//  4. Command-line flags, which override everything else.
//
// # JSON schema
//
// Durations use timex.Duration and may be strings like "2s" or integer
// nanoseconds:
//
//	{
//	  "rpc_url": "http://127.0.0.1:8545",
//	  "gift_card_address": "0x...",
//	  "onboarding_address": "0x...",
//	  "vendor_entity_address": "0x...",
//	  "keystore_dir": "/home/me/.giftvault/keystore",
//	  "journal_path": "/home/me/.giftvault/journal.db",
//	  "confirmation_wait": "2m",
//	  "poll_interval": "2s",
//	  "reads_per_second": 10,
//	  "log_level": "info",
//	  "metrics_addr": "127.0.0.1:9464"
//	}
package config
