// Package account reads current account state from Horizon.
package account

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	hProtocol "github.com/stellar/go-stellar-sdk/protocols/horizon"
	"github.com/stellar/go/keypair"

	"github.com/marwen-abid/stellar-watch-sdk-go/errors"
	"github.com/marwen-abid/stellar-watch-sdk-go/ledger"
)

// HorizonBalanceFetcher reads account balances from a Horizon server, e.g. to
// seed a BalanceWatch.
type HorizonBalanceFetcher struct {
	client horizonclient.ClientInterface
}

// FetcherOption is a function that configures a HorizonBalanceFetcher.
type FetcherOption func(*HorizonBalanceFetcher)

// WithHTTP sets the HTTP transport used by the Horizon client.
func WithHTTP(h horizonclient.HTTP) FetcherOption {
	return func(f *HorizonBalanceFetcher) {
		if c, ok := f.client.(*horizonclient.Client); ok {
			c.HTTP = h
		}
	}
}

// NewHorizonBalanceFetcher creates a fetcher backed by the given Horizon URL.
func NewHorizonBalanceFetcher(horizonURL string, opts ...FetcherOption) *HorizonBalanceFetcher {
	f := &HorizonBalanceFetcher{
		client: &horizonclient.Client{HorizonURL: horizonURL},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchBalance returns the balance of asset held by accountID: "native" (or
// "") for XLM, "CODE:ISSUER" for a trustline. An account that does not hold
// the asset has a zero balance; an account that does not exist yields
// ACCOUNT_NOT_FOUND.
func (f *HorizonBalanceFetcher) FetchBalance(_ context.Context, accountID, asset string) (decimal.Decimal, error) {
	if _, err := keypair.ParseAddress(accountID); err != nil {
		return decimal.Zero, errors.NewCoreError(errors.ACCOUNT_INVALID, fmt.Sprintf("invalid account %q", accountID), err)
	}

	account, err := f.client.AccountDetail(horizonclient.AccountRequest{
		AccountID: accountID,
	})
	if err != nil {
		if horizonclient.IsNotFoundError(err) || statusOf(err) == http.StatusNotFound {
			return decimal.Zero, errors.NewCoreError(errors.ACCOUNT_NOT_FOUND, fmt.Sprintf("account %s not found", accountID), err)
		}
		return decimal.Zero, errors.NewCoreError(errors.NETWORK_ERROR, fmt.Sprintf("failed to fetch account %s", accountID), err)
	}

	return balanceOf(account, asset)
}

func statusOf(err error) int {
	herr := horizonclient.GetError(err)
	switch {
	case herr == nil:
		return 0
	case herr.Problem.Status != 0:
		return herr.Problem.Status
	case herr.Response != nil:
		return herr.Response.StatusCode
	}
	return 0
}

func balanceOf(account hProtocol.Account, asset string) (decimal.Decimal, error) {
	if asset == "" {
		asset = ledger.NativeAsset
	}

	for _, b := range account.Balances {
		if assetKey(b) != asset {
			continue
		}
		v, err := decimal.NewFromString(b.Balance)
		if err != nil {
			return decimal.Zero, errors.NewCoreError(errors.DECODE_FAILED, fmt.Sprintf("invalid balance %q", b.Balance), err).
				With("account", account.AccountID)
		}
		return v, nil
	}
	return decimal.Zero, nil
}

func assetKey(b hProtocol.Balance) string {
	if b.Type == "native" {
		return ledger.NativeAsset
	}
	return b.Code + ":" + b.Issuer
}
