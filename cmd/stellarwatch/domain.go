package main

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/marwen-abid/stellar-watch-sdk-go/config"
	"github.com/marwen-abid/stellar-watch-sdk-go/core/toml"
	"github.com/marwen-abid/stellar-watch-sdk-go/errors"
)

type domainResolver interface {
	Resolve(ctx context.Context, domain string) (*toml.DomainInfo, error)
}

// applyHomeDomain fills cfg from the home domain's stellar.toml. The
// advertised Horizon URL replaces only the default one, and a bare asset code
// is expanded to "CODE:ISSUER" using the listed currencies.
func applyHomeDomain(ctx context.Context, cfg *config.Config, r domainResolver, logger *zap.Logger) error {
	if cfg.HomeDomain == "" {
		return nil
	}

	info, err := r.Resolve(ctx, cfg.HomeDomain)
	if err != nil {
		return err
	}

	if info.HorizonURL != "" && cfg.HorizonURL == config.DefaultHorizonURL {
		logger.Info("using Horizon from stellar.toml",
			zap.String("domain", cfg.HomeDomain),
			zap.String("horizon", info.HorizonURL),
		)
		cfg.HorizonURL = info.HorizonURL
	}

	if cfg.Asset != "" && cfg.Asset != "native" && !strings.Contains(cfg.Asset, ":") {
		asset, ok := info.Asset(cfg.Asset)
		if !ok {
			return errors.NewConfigError(errors.CONFIG_INVALID, cfg.HomeDomain+" does not list asset "+cfg.Asset, nil).
				With("key", config.WATCH_ASSET)
		}
		cfg.Asset = asset
	}

	return cfg.Validate()
}
