package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
	"github.com/marwen-abid/stellar-watch-sdk-go/config"
	"github.com/marwen-abid/stellar-watch-sdk-go/core/net"
	"github.com/marwen-abid/stellar-watch-sdk-go/core/toml"
	"github.com/marwen-abid/stellar-watch-sdk-go/logging"
	"github.com/marwen-abid/stellar-watch-sdk-go/observer"
	boltstore "github.com/marwen-abid/stellar-watch-sdk-go/store/bolt"
	"github.com/marwen-abid/stellar-watch-sdk-go/store/memory"
)

var (
	envFile    string
	horizonURL string
	accountID  string
	asset      string
	homeDomain string
	cursorDB   string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stellarwatch",
	Short: "Watch a Stellar account from Horizon",
	Long: `stellarwatch follows one Stellar account on Horizon and prints what happens to it:
payments, balance changes, or the moment the account is created.

Settings come from flags, then the environment, then a .env file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to read settings from")
	rootCmd.PersistentFlags().StringVar(&horizonURL, "horizon", "", "Horizon URL (env "+config.HORIZON_URL+")")
	rootCmd.PersistentFlags().StringVarP(&accountID, "account", "a", "", "account to watch (env "+config.WATCH_ACCOUNT+")")
	rootCmd.PersistentFlags().StringVar(&asset, "asset", "", `asset filter, "native" or "CODE:ISSUER" (env `+config.WATCH_ASSET+")")
	rootCmd.PersistentFlags().StringVar(&homeDomain, "home-domain", "", "domain whose stellar.toml supplies the Horizon URL and asset issuers (env "+config.HOME_DOMAIN+")")
	rootCmd.PersistentFlags().StringVar(&cursorDB, "cursor-db", "", "BoltDB file for cursor persistence (env "+config.CURSOR_DB+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug|info|warn|error) (env "+config.LOG_LEVEL+")")
}

// env bundles what every subcommand needs.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	http   *net.Client
	source stellarwatch.EventSource
	store  stellarwatch.CursorStore
	close  func()
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load(
		config.WithEnvFile(envFile),
		config.WithOverrides(map[string]any{
			config.HORIZON_URL:   horizonURL,
			config.WATCH_ACCOUNT: accountID,
			config.WATCH_ASSET:   asset,
			config.HOME_DOMAIN:   homeDomain,
			config.CURSOR_DB:     cursorDB,
			config.LOG_LEVEL:     logLevel,
		}),
	)
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireAccount(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	httpClient := net.NewClient(net.WithLogger(logger))
	if err := applyHomeDomain(ctx, cfg, toml.NewResolver(httpClient, toml.WithLogger(logger)), logger); err != nil {
		return nil, err
	}

	// Streams stay open indefinitely, so the transport has no overall timeout.
	streamHTTP := net.NewClient(net.WithTimeout(0), net.WithLogger(logger))

	e := &env{
		cfg:    cfg,
		logger: logger,
		http:   httpClient,
		source: observer.NewHorizonSource(cfg.HorizonURL,
			observer.WithHTTP(streamHTTP.Horizon()),
			observer.WithLogger(logger),
			observer.WithReconnectBackoff(cfg.InitialBackoff, cfg.MaxBackoff),
		),
		close: func() { _ = logger.Sync() },
	}

	if cfg.CursorDB == "" {
		e.store = memory.NewCursorStore()
		return e, nil
	}

	store, err := boltstore.Open(&boltstore.Options{Path: cfg.CursorDB, Logger: logger})
	if err != nil {
		return nil, err
	}
	e.store = store
	e.close = func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close cursor database", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return e, nil
}
