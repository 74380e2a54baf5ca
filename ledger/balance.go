// Package ledger interprets decoded transaction metadata for a single account.
//
// The functions here are pure: they walk the operation-level ledger entry
// changes of a transaction, in order, and pick out the entries that describe
// the watched account's holdings.
package ledger

import (
	"github.com/shopspring/decimal"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
)

// NativeAsset selects the account entry (XLM balance) in a Selector.
const NativeAsset = "native"

var divisor = decimal.NewFromInt(stellarwatch.AssetUnitDivisor)

// ScaledBalance converts raw ledger units to display units exactly.
func ScaledBalance(raw int64) decimal.Decimal {
	return decimal.NewFromInt(raw).Div(divisor)
}

// Selector decides which entries count as the watched account's balance.
// The zero Selector accepts any trustline or account entry of Account.
type Selector struct {
	Account string

	// Asset narrows matching: NativeAsset selects the account entry only,
	// "CODE:ISSUER" selects that trustline only.
	Asset string
}

// Match reports whether data belongs to the selector and returns its raw
// balance.
func (s Selector) Match(data stellarwatch.LedgerEntryData) (int64, bool) {
	switch d := data.(type) {
	case stellarwatch.TrustlineData:
		if d.Account != s.Account {
			return 0, false
		}
		if s.Asset != "" && s.Asset != d.Asset {
			return 0, false
		}
		return d.Balance, true
	case stellarwatch.AccountData:
		if d.AccountID != s.Account {
			return 0, false
		}
		if s.Asset != "" && s.Asset != NativeAsset {
			return 0, false
		}
		return d.Balance, true
	default:
		return 0, false
	}
}

// Balance returns the scaled balance carried by the first created or updated
// entry in meta that matches sel, walking operations and then their changes
// in order. The second result is false when no entry matches, including when
// meta is not an OperationsMeta.
//
// When one transaction carries both a trustline and an account entry for the
// account, whichever appears first wins.
func Balance(meta stellarwatch.TransactionMeta, sel Selector) (decimal.Decimal, bool) {
	for _, entry := range Entries(meta) {
		if raw, ok := sel.Match(entry.Data); ok {
			return ScaledBalance(raw), true
		}
	}
	return decimal.Decimal{}, false
}

// Entries returns the post-change snapshots of every created or updated entry
// in meta, in ledger order. Removed and state changes carry no usable snapshot
// and are skipped.
func Entries(meta stellarwatch.TransactionMeta) []stellarwatch.LedgerEntry {
	ops, ok := meta.(stellarwatch.OperationsMeta)
	if !ok {
		return nil
	}

	var entries []stellarwatch.LedgerEntry
	for _, op := range ops.Operations {
		for _, change := range op.Changes {
			switch c := change.(type) {
			case stellarwatch.EntryCreated:
				entries = append(entries, c.Entry)
			case stellarwatch.EntryUpdated:
				entries = append(entries, c.Entry)
			case stellarwatch.EntryRemoved, stellarwatch.EntryState:
				// no snapshot to read a balance from
			}
		}
	}
	return entries
}
