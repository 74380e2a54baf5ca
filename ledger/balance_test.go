package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
)

const (
	watched = "GWATCHED"
	other   = "GOTHER"
	kin     = "KIN:GISSUER"
)

func updated(data stellarwatch.LedgerEntryData) stellarwatch.LedgerEntryChange {
	return stellarwatch.EntryUpdated{Entry: stellarwatch.LedgerEntry{Data: data}}
}

func created(data stellarwatch.LedgerEntryData) stellarwatch.LedgerEntryChange {
	return stellarwatch.EntryCreated{Entry: stellarwatch.LedgerEntry{Data: data}}
}

func meta(ops ...[]stellarwatch.LedgerEntryChange) stellarwatch.TransactionMeta {
	m := stellarwatch.OperationsMeta{}
	for _, changes := range ops {
		m.Operations = append(m.Operations, stellarwatch.OperationMeta{Changes: changes})
	}
	return m
}

func TestScaledBalance_IsExact(t *testing.T) {
	tests := []struct {
		raw  int64
		want string
	}{
		{raw: 0, want: "0"},
		{raw: 1, want: "0.0000001"},
		{raw: 10_000_000, want: "1"},
		{raw: 12_345_678, want: "1.2345678"},
		{raw: -5_000_000, want: "-0.5"},
		// Beyond float64's 53-bit mantissa.
		{raw: 9_223_372_036_854_775_807, want: "922337203685.4775807"},
	}

	for _, tt := range tests {
		got := ScaledBalance(tt.raw)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "raw %d: got %s want %s", tt.raw, got, tt.want)
	}
}

func TestBalance(t *testing.T) {
	tests := []struct {
		name   string
		meta   stellarwatch.TransactionMeta
		sel    Selector
		want   string
		wantOK bool
	}{
		{
			name:   "trustline updated for watched account",
			meta:   meta([]stellarwatch.LedgerEntryChange{updated(stellarwatch.TrustlineData{Account: watched, Asset: kin, Balance: 250_000_000})}),
			sel:    Selector{Account: watched},
			want:   "25",
			wantOK: true,
		},
		{
			name:   "account entry created for watched account",
			meta:   meta([]stellarwatch.LedgerEntryChange{created(stellarwatch.AccountData{AccountID: watched, Balance: 15_000_000})}),
			sel:    Selector{Account: watched},
			want:   "1.5",
			wantOK: true,
		},
		{
			name: "other accounts are ignored",
			meta: meta([]stellarwatch.LedgerEntryChange{
				updated(stellarwatch.TrustlineData{Account: other, Asset: kin, Balance: 1}),
				updated(stellarwatch.AccountData{AccountID: other, Balance: 2}),
			}),
			sel: Selector{Account: watched},
		},
		{
			name: "removed and state changes never match",
			meta: meta([]stellarwatch.LedgerEntryChange{
				stellarwatch.EntryState{Entry: stellarwatch.LedgerEntry{Data: stellarwatch.AccountData{AccountID: watched, Balance: 7}}},
				stellarwatch.EntryRemoved{},
			}),
			sel: Selector{Account: watched},
		},
		{
			name: "state before update is skipped",
			meta: meta([]stellarwatch.LedgerEntryChange{
				stellarwatch.EntryState{Entry: stellarwatch.LedgerEntry{Data: stellarwatch.AccountData{AccountID: watched, Balance: 10_000_000}}},
				updated(stellarwatch.AccountData{AccountID: watched, Balance: 30_000_000}),
			}),
			sel:    Selector{Account: watched},
			want:   "3",
			wantOK: true,
		},
		{
			name: "first match wins across operations",
			meta: meta(
				[]stellarwatch.LedgerEntryChange{updated(stellarwatch.OtherData{Kind: "offer"})},
				[]stellarwatch.LedgerEntryChange{updated(stellarwatch.AccountData{AccountID: watched, Balance: 40_000_000})},
				[]stellarwatch.LedgerEntryChange{updated(stellarwatch.AccountData{AccountID: watched, Balance: 50_000_000})},
			),
			sel:    Selector{Account: watched},
			want:   "4",
			wantOK: true,
		},
		{
			name: "account entry before trustline wins",
			meta: meta([]stellarwatch.LedgerEntryChange{
				updated(stellarwatch.AccountData{AccountID: watched, Balance: 10_000_000}),
				updated(stellarwatch.TrustlineData{Account: watched, Asset: kin, Balance: 90_000_000}),
			}),
			sel:    Selector{Account: watched},
			want:   "1",
			wantOK: true,
		},
		{
			name: "trustline before account entry wins",
			meta: meta([]stellarwatch.LedgerEntryChange{
				updated(stellarwatch.TrustlineData{Account: watched, Asset: kin, Balance: 90_000_000}),
				updated(stellarwatch.AccountData{AccountID: watched, Balance: 10_000_000}),
			}),
			sel:    Selector{Account: watched},
			want:   "9",
			wantOK: true,
		},
		{
			name: "asset selector picks the trustline",
			meta: meta([]stellarwatch.LedgerEntryChange{
				updated(stellarwatch.AccountData{AccountID: watched, Balance: 10_000_000}),
				updated(stellarwatch.TrustlineData{Account: watched, Asset: kin, Balance: 90_000_000}),
			}),
			sel:    Selector{Account: watched, Asset: kin},
			want:   "9",
			wantOK: true,
		},
		{
			name: "native selector picks the account entry",
			meta: meta([]stellarwatch.LedgerEntryChange{
				updated(stellarwatch.TrustlineData{Account: watched, Asset: kin, Balance: 90_000_000}),
				updated(stellarwatch.AccountData{AccountID: watched, Balance: 10_000_000}),
			}),
			sel:    Selector{Account: watched, Asset: NativeAsset},
			want:   "1",
			wantOK: true,
		},
		{
			name: "unsupported meta is a no-op",
			meta: stellarwatch.UnsupportedMeta{Version: 4},
			sel:  Selector{Account: watched},
		},
		{
			name: "nil meta is a no-op",
			sel:  Selector{Account: watched},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Balance(tt.meta, tt.sel)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
			}
		})
	}
}

func TestEntries_SkipsSnapshotlessChanges(t *testing.T) {
	m := meta(
		[]stellarwatch.LedgerEntryChange{
			created(stellarwatch.OtherData{Kind: "data"}),
			stellarwatch.EntryRemoved{},
		},
		[]stellarwatch.LedgerEntryChange{
			stellarwatch.EntryState{Entry: stellarwatch.LedgerEntry{Data: stellarwatch.AccountData{AccountID: watched}}},
			updated(stellarwatch.AccountData{AccountID: watched, Balance: 1}),
		},
	)

	entries := Entries(m)
	assert.Len(t, entries, 2)
	assert.Equal(t, stellarwatch.OtherData{Kind: "data"}, entries[0].Data)
	assert.Equal(t, stellarwatch.AccountData{AccountID: watched, Balance: 1}, entries[1].Data)
}
