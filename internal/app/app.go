// Package app wires the giftvault client together and runs it: configuration,
// logging, the submission journal, the ledger gateway, the transaction
// lifecycle manager, the services, the metrics endpoint and the REPL.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/client/cli"
	"github.com/dmitrijs2005/giftvault/internal/client/config"
	"github.com/dmitrijs2005/giftvault/internal/client/services"
	"github.com/dmitrijs2005/giftvault/internal/client/store"
	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/filex"
	"github.com/dmitrijs2005/giftvault/internal/identity"
	"github.com/dmitrijs2005/giftvault/internal/ledger"
	"github.com/dmitrijs2005/giftvault/internal/ledger/ethgateway"
	"github.com/dmitrijs2005/giftvault/internal/logging"
	"github.com/dmitrijs2005/giftvault/internal/server"
	"github.com/dmitrijs2005/giftvault/internal/txlife"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	logMaxSizeMB  = 10
	logMaxBackups = 3

	// exitGrace bounds the wait for the REPL after a termination signal.
	exitGrace = 2 * time.Second
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	store     *store.Store
	tx        *txlife.Manager
	registry  *prometheus.Registry
	cli       *cli.App
	closers   []io.Closer
	closeOnce sync.Once
}

// Ledger builds the gateway for a configuration. Tests replace it with an
// in-memory ledger.
type Ledger func(cfg *config.Config, logger logging.Logger) (ledger.Gateway, cli.Keyring, io.Closer, error)

// Ethereum dials cfg.RPCURL and signs with the keystore in cfg.KeystoreDir.
func Ethereum(cfg *config.Config, logger logging.Logger) (ledger.Gateway, cli.Keyring, io.Closer, error) {
	if !cfg.Contracts() {
		return nil, nil, nil, fmt.Errorf("%w: contract addresses are required", common.ErrValidation)
	}
	client, err := ethgateway.Dial(cfg.RPCURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.RPCURL, err)
	}
	signer := ethgateway.NewKeystoreSigner(cfg.KeystoreDir)
	gw := ethgateway.New(client, signer, ethgateway.Contracts{
		GiftCard:     gethcommon.HexToAddress(cfg.GiftCardAddress),
		Onboarding:   gethcommon.HexToAddress(cfg.OnboardingAddress),
		VendorEntity: gethcommon.HexToAddress(cfg.VendorEntityAddress),
	}, ethgateway.Options{
		ReadsPerSecond:   cfg.ReadsPerSecond,
		PollInterval:     cfg.PollInterval,
		GasMarginPercent: cfg.GasMarginPercent,
	}, logger)
	return gw, signer, closerFunc(func() error { client.Close(); return nil }), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// NewApp opens the journal, builds the ledger with newLedger and wires the
// services. in and out are the REPL's terminal.
func NewApp(ctx context.Context, c *config.Config, newLedger Ledger, in io.Reader, out io.Writer) (*App, error) {
	logger, logCloser := logging.New(logging.Options{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		File:       c.LogFile,
		MaxSizeMB:  logMaxSizeMB,
		MaxBackups: logMaxBackups,
	})
	app := &App{config: c, logger: logger, closers: []io.Closer{logCloser}}

	if _, err := filex.EnsureParentDir(c.JournalPath); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	st, err := store.Open(ctx, c.JournalPath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("journal init error: %w", err)
	}
	app.store = st
	app.closers = append(app.closers, st)

	gw, keys, gwCloser, err := newLedger(c, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closers = append(app.closers, gwCloser)

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app.tx = txlife.NewManager(txlife.Options{
		ConfirmationWait: c.ConfirmationWait,
		RetryDelay:       c.PollInterval,
		Journal:          st,
		Metrics:          txlife.NewMetrics(app.registry),
		Logger:           logger,
	})

	d := services.Deps{Ledger: gw, Session: identity.NewSession(), Tx: app.tx, Logger: logger}
	services.FollowIdentity(d)
	roles := services.NewRoleService(d)

	app.cli = cli.NewApp(cli.Components{
		Session:    d.Session,
		Keys:       keys,
		History:    st,
		Tx:         app.tx,
		Roles:      roles,
		Onboarding: services.NewOnboardingService(d, roles),
		GiftCards:  services.NewGiftCardService(d),
		Vendor:     services.NewVendorTokenService(d, roles),
		Logger:     logger,
	}, in, out)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc, done <-chan struct{}) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
		case <-done:
			return
		}
		cancelFunc()

		// the REPL may be blocked on a terminal read
		select {
		case <-done:
		case <-time.After(exitGrace):
			app.logger.Info(context.Background(), "Stopped by signal")
			app.Close()
			os.Exit(130)
		}
	}()
}

func (app *App) startMetricsServer(ctx context.Context) {
	s := server.NewMetricsServer(app.config.MetricsAddr, app.registry, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "metrics server failed", "error", err)
	}
}

// account picks the identity to connect at startup: the configured account,
// else the one connected last time.
func (app *App) account(ctx context.Context) string {
	if app.config.Account != "" {
		return app.config.Account
	}
	last, err := app.store.LastAccount(ctx)
	if err != nil {
		app.logger.Warn(ctx, "failed to read last account", "error", err)
	}
	return last
}

// Run blocks until the REPL exits or a termination signal arrives. Pending
// transactions stay in the journal and are resumed on the next connect.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	done := make(chan struct{})
	defer close(done)

	app.logger.Info(ctx, "Starting giftvault...")

	app.initSignalHandler(cancelFunc, done)

	var wg sync.WaitGroup

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx)
		}()
	}

	app.cli.Root(ctx, app.account(ctx))
	cancelFunc()

	wg.Wait()
}

// Close stops the lifecycle manager and releases every resource in reverse
// order of acquisition. Only the first call has an effect.
func (app *App) Close() {
	app.closeOnce.Do(func() {
		if app.tx != nil {
			app.tx.Close()
		}
		for i := len(app.closers) - 1; i >= 0; i-- {
			if err := app.closers[i].Close(); err != nil {
				app.logger.Warn(context.Background(), "close failed", "error", err)
			}
		}
	})
}
