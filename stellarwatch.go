// Package stellarwatch provides a Go SDK for observing a single Stellar account
// through an ordered, resumable stream of ledger records. It derives a payment
// feed, a continuously updated balance, and an "account became active" signal
// from that stream while delegating transport, decoding, and persistence to
// pluggable collaborators.
//
// The root package holds the shared vocabulary: the decoded record types
// (TxEvent, PaymentEvent, TransactionMeta and its ledger-entry variants) and
// the EventSource and CursorStore contracts. The derived watchers live in
// package watch; the Horizon-backed EventSource lives in package observer.
package stellarwatch

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CursorNow is the sentinel cursor that skips all history and starts
// streaming after the current ledger tip.
const CursorNow = "now"

// AssetUnitDivisor is the number of raw ledger units (stroops) in one display
// unit of any Stellar asset.
const AssetUnitDivisor int64 = 10_000_000

// RecordKind selects which record stream an EventSource subscription delivers.
type RecordKind string

const (
	// KindTransaction streams full transactions (TxEvent) touching the account.
	KindTransaction RecordKind = "transaction"

	// KindPayment streams payment-like operations (PaymentEvent) touching the account.
	KindPayment RecordKind = "payment"
)

// Record is any decoded stream record. PagingToken is its cursor.
type Record interface {
	PagingToken() string
}

// StreamRequest describes one EventSource subscription.
type StreamRequest struct {
	Kind    RecordKind
	Account string

	// Cursor is the paging token to resume after. Empty means from the
	// beginning; CursorNow skips history.
	Cursor string
}

// EventSource is an ordered, cursor-addressable record stream.
// The SDK does not manage connections to the ledger; the caller provides an
// EventSource and the watchers subscribe to it.
type EventSource interface {
	// Stream delivers records matching req to handler, synchronously and in
	// ledger order, until ctx is cancelled or the stream fails. It returns nil
	// on cancellation. A cursor the source cannot resume from must produce an
	// error rather than a silent restart.
	Stream(ctx context.Context, req StreamRequest, handler func(Record)) error
}

// CursorStore persists stream cursors so a watcher can resume after restart.
// The developer implements this interface against their own database, or
// uses one of the implementations under store/.
type CursorStore interface {
	// Load returns the stored cursor for key, or "" if none has been saved.
	Load(ctx context.Context, key string) (string, error)

	// Save records cursor as the last delivered position for key.
	Save(ctx context.Context, key string, cursor string) error
}

// TxEvent is one decoded ledger transaction.
type TxEvent struct {
	// ID is the paging token of the transaction; it doubles as its cursor.
	ID            string
	Hash          string
	Ledger        int32
	SourceAccount string
	Memo          string
	CreatedAt     time.Time

	// Payments lists the payment-like operations of the transaction, in
	// operation order.
	Payments []PaymentEvent

	// Meta holds the per-operation ledger entry changes.
	Meta TransactionMeta
}

// PagingToken returns the cursor of the transaction.
func (e TxEvent) PagingToken() string {
	return e.ID
}

// PaymentType names the operation a PaymentEvent was decoded from.
type PaymentType string

const (
	PaymentTypePayment                  PaymentType = "payment"
	PaymentTypeCreateAccount            PaymentType = "create_account"
	PaymentTypePathPaymentStrictReceive PaymentType = "path_payment_strict_receive"
	PaymentTypePathPaymentStrictSend    PaymentType = "path_payment_strict_send"
	PaymentTypeAccountMerge             PaymentType = "account_merge"
)

// PaymentEvent is a single payment-like operation.
type PaymentEvent struct {
	// ID is the operation ID.
	ID string

	// Cursor is the paging token of the operation.
	Cursor string

	Type PaymentType

	// From is the source account (G...).
	From string

	// To is the destination account (G...).
	To string

	// Asset is "native" for XLM or "CODE:ISSUER" for issued assets. It is
	// the asset received by To.
	Asset string

	// Amount is the amount received by To. For an account merge it is the
	// merged balance when known, and zero otherwise.
	Amount          decimal.Decimal
	TransactionHash string
	CreatedAt       time.Time
}

// PagingToken returns the cursor of the operation.
func (p PaymentEvent) PagingToken() string {
	return p.Cursor
}

// TransactionMeta is either OperationsMeta or UnsupportedMeta.
type TransactionMeta interface {
	isTransactionMeta()
}

// OperationsMeta lists ledger entry changes per operation, in operation order.
type OperationsMeta struct {
	Operations []OperationMeta
}

// UnsupportedMeta marks metadata the decoder did not recognise. It carries no
// balance-relevant changes.
type UnsupportedMeta struct {
	Version int32
}

// OperationMeta holds the ledger entry changes produced by one operation.
type OperationMeta struct {
	Changes []LedgerEntryChange
}

func (OperationsMeta) isTransactionMeta()  {}
func (UnsupportedMeta) isTransactionMeta() {}

// LedgerEntryChange is one of EntryCreated, EntryUpdated, EntryRemoved or
// EntryState.
type LedgerEntryChange interface {
	isLedgerEntryChange()
}

// EntryCreated is a ledger entry that did not exist before the operation.
type EntryCreated struct {
	Entry LedgerEntry
}

// EntryUpdated is the post-operation snapshot of an existing ledger entry.
type EntryUpdated struct {
	Entry LedgerEntry
}

// EntryRemoved is a deleted ledger entry. It carries no snapshot.
type EntryRemoved struct{}

// EntryState is the pre-operation snapshot of an entry that is about to change.
type EntryState struct {
	Entry LedgerEntry
}

func (EntryCreated) isLedgerEntryChange() {}
func (EntryUpdated) isLedgerEntryChange() {}
func (EntryRemoved) isLedgerEntryChange() {}
func (EntryState) isLedgerEntryChange()   {}

// LedgerEntry is a persisted piece of ledger state.
type LedgerEntry struct {
	LastModifiedLedger uint32
	Data               LedgerEntryData
}

// LedgerEntryData is one of TrustlineData, AccountData or OtherData.
type LedgerEntryData interface {
	isLedgerEntryData()
}

// TrustlineData is an account's holding of a non-native asset. Balance and
// Limit are raw ledger units.
type TrustlineData struct {
	Account string
	Asset   string
	Balance int64
	Limit   int64
}

// AccountData is an account entry. Balance is the native balance in raw units.
type AccountData struct {
	AccountID string
	Balance   int64
	Sequence  int64
}

// OtherData is any entry kind the SDK does not interpret.
type OtherData struct {
	Kind string
}

func (TrustlineData) isLedgerEntryData() {}
func (AccountData) isLedgerEntryData()   {}
func (OtherData) isLedgerEntryData()     {}
