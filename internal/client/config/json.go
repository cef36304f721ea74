package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/giftvault/internal/flagx"
	"github.com/dmitrijs2005/giftvault/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish "absent" from "zero".
type JsonConfig struct {
	RPCURL              *string         `json:"rpc_url"`
	GiftCardAddress     *string         `json:"gift_card_address"`
	OnboardingAddress   *string         `json:"onboarding_address"`
	VendorEntityAddress *string         `json:"vendor_entity_address"`
	KeystoreDir         *string         `json:"keystore_dir"`
	Account             *string         `json:"account"`
	JournalPath         *string         `json:"journal_path"`
	ConfirmationWait    *timex.Duration `json:"confirmation_wait"`
	PollInterval        *timex.Duration `json:"poll_interval"`
	ReadsPerSecond      *float64        `json:"reads_per_second"`
	GasMarginPercent    *uint64         `json:"gas_margin_percent"`
	LogLevel            *string         `json:"log_level"`
	LogFormat           *string         `json:"log_format"`
	LogFile             *string         `json:"log_file"`
	MetricsAddr         *string         `json:"metrics_addr"`
}

// parseJson overlays cfg with the file named by -c/-config, if any.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	set(&cfg.RPCURL, jc.RPCURL)
	set(&cfg.GiftCardAddress, jc.GiftCardAddress)
	set(&cfg.OnboardingAddress, jc.OnboardingAddress)
	set(&cfg.VendorEntityAddress, jc.VendorEntityAddress)
	set(&cfg.KeystoreDir, jc.KeystoreDir)
	set(&cfg.Account, jc.Account)
	set(&cfg.JournalPath, jc.JournalPath)
	set(&cfg.ReadsPerSecond, jc.ReadsPerSecond)
	set(&cfg.GasMarginPercent, jc.GasMarginPercent)
	set(&cfg.LogLevel, jc.LogLevel)
	set(&cfg.LogFormat, jc.LogFormat)
	set(&cfg.LogFile, jc.LogFile)
	set(&cfg.MetricsAddr, jc.MetricsAddr)
	if jc.ConfirmationWait != nil {
		cfg.ConfirmationWait = jc.ConfirmationWait.Duration
	}
	if jc.PollInterval != nil {
		cfg.PollInterval = jc.PollInterval.Duration
	}
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
