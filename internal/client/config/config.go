package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/client/models"
	"github.com/dmitrijs2005/giftvault/internal/common"
)

// Config holds runtime settings for the giftvault CLI.
type Config struct {
	RPCURL string `env:"RPC_URL"`

	GiftCardAddress     string `env:"GIFT_CARD_ADDRESS"`
	OnboardingAddress   string `env:"ONBOARDING_ADDRESS"`
	VendorEntityAddress string `env:"VENDOR_ENTITY_ADDRESS"`

	KeystoreDir string `env:"KEYSTORE_DIR"`
	// Account is connected at startup when set.
	Account     string `env:"ACCOUNT"`
	JournalPath string `env:"JOURNAL_PATH"`

	ConfirmationWait time.Duration `env:"CONFIRMATION_WAIT"`
	PollInterval     time.Duration `env:"POLL_INTERVAL"`
	ReadsPerSecond   float64       `env:"READS_PER_SECOND"`
	GasMarginPercent uint64        `env:"GAS_MARGIN_PERCENT"`

	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
	LogFile   string `env:"LOG_FILE"`

	// MetricsAddr enables the Prometheus endpoint when non-empty.
	MetricsAddr string `env:"METRICS_ADDR"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".giftvault")

	c.RPCURL = "http://127.0.0.1:8545"
	c.KeystoreDir = filepath.Join(base, "keystore")
	c.JournalPath = filepath.Join(base, "journal.db")
	c.ConfirmationWait = 2 * time.Minute
	c.PollInterval = 2 * time.Second
	c.ReadsPerSecond = 10
	c.GasMarginPercent = 20
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig builds a Config from defaults, the JSON file, the environment
// and args (usually os.Args[1:]), in that order.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that contract addresses are well formed. Empty addresses
// pass here; app.Ethereum refuses to start without them.
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"gift card":     c.GiftCardAddress,
		"onboarding":    c.OnboardingAddress,
		"vendor entity": c.VendorEntityAddress,
		"account":       c.Account,
	} {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, err := models.ParseAddress(v); err != nil {
			return fmt.Errorf("%s address: %w", name, err)
		}
	}
	if c.ConfirmationWait < 0 || c.PollInterval <= 0 {
		return fmt.Errorf("%w: confirmation wait and poll interval must be positive", common.ErrValidation)
	}
	return nil
}

// Contracts reports whether every contract address is configured.
func (c *Config) Contracts() bool {
	return c.GiftCardAddress != "" && c.OnboardingAddress != "" && c.VendorEntityAddress != ""
}
