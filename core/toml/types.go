// Package toml resolves a home domain's stellar.toml (SEP-1) into the
// settings a watcher needs: the Horizon endpoint the domain advertises and
// the issuers of the assets it lists.
package toml

import "strings"

// DomainInfo is the subset of stellar.toml a watcher cares about.
type DomainInfo struct {
	// NETWORK_PASSPHRASE identifies the Stellar network (testnet/mainnet).
	NetworkPassphrase string `toml:"NETWORK_PASSPHRASE"`

	// HORIZON_URL is the Horizon instance the domain operates, if any.
	HorizonURL string `toml:"HORIZON_URL"`

	// ACCOUNTS lists the accounts the domain controls.
	Accounts []string `toml:"ACCOUNTS"`

	Currencies []Currency `toml:"CURRENCIES"`
}

// Currency describes one asset listed under [[CURRENCIES]].
type Currency struct {
	Code            string `toml:"code"`
	Issuer          string `toml:"issuer"`
	Status          string `toml:"status"`
	DisplayDecimals int    `toml:"display_decimals"`
	Name            string `toml:"name"`
	Desc            string `toml:"desc"`
}

// Asset returns the canonical "CODE:ISSUER" form of the first listed
// currency with the given code, compared case-insensitively.
func (d *DomainInfo) Asset(code string) (string, bool) {
	for _, c := range d.Currencies {
		if c.Issuer != "" && strings.EqualFold(c.Code, code) {
			return c.Code + ":" + c.Issuer, true
		}
	}
	return "", false
}
