package main

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marwen-abid/stellar-watch-sdk-go/config"
	"github.com/marwen-abid/stellar-watch-sdk-go/core/toml"
	"github.com/marwen-abid/stellar-watch-sdk-go/errors"
)

type staticResolver struct {
	info  *toml.DomainInfo
	calls int
}

func (s *staticResolver) Resolve(context.Context, string) (*toml.DomainInfo, error) {
	s.calls++
	return s.info, nil
}

func baseConfig() *config.Config {
	return &config.Config{
		HorizonURL:     config.DefaultHorizonURL,
		LogLevel:       "info",
		InitialBackoff: 1,
		MaxBackoff:     1,
	}
}

func TestApplyHomeDomain(t *testing.T) {
	r := &staticResolver{info: &toml.DomainInfo{
		HorizonURL: "https://horizon.example.com",
		Currencies: []toml.Currency{{Code: "KIN", Issuer: "GISSUER"}},
	}}

	cfg := baseConfig()
	cfg.Asset = "kin"
	require.NoError(t, applyHomeDomain(context.Background(), cfg, r, zap.NewNop()))
	assert.Equal(t, 0, r.calls, "no home domain, nothing resolved")
	assert.Equal(t, "kin", cfg.Asset)

	cfg.HomeDomain = "example.com"
	require.NoError(t, applyHomeDomain(context.Background(), cfg, r, zap.NewNop()))
	assert.Equal(t, "https://horizon.example.com", cfg.HorizonURL)
	assert.Equal(t, "KIN:GISSUER", cfg.Asset)

	explicit := baseConfig()
	explicit.HomeDomain = "example.com"
	explicit.HorizonURL = "http://localhost:8000"
	explicit.Asset = "native"
	require.NoError(t, applyHomeDomain(context.Background(), explicit, r, zap.NewNop()))
	assert.Equal(t, "http://localhost:8000", explicit.HorizonURL)
	assert.Equal(t, "native", explicit.Asset)
}

func TestApplyHomeDomain_UnknownAsset(t *testing.T) {
	cfg := baseConfig()
	cfg.HomeDomain = "example.com"
	cfg.Asset = "USDC"

	err := applyHomeDomain(context.Background(), cfg, &staticResolver{info: &toml.DomainInfo{}}, zap.NewNop())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrConfigInvalid))
}
