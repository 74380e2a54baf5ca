package watch

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
	"github.com/marwen-abid/stellar-watch-sdk-go/observable"
)

// PaymentInfo is an immutable view over a transaction that carried at least
// one payment, as observed for Account.
type PaymentInfo struct {
	Account   string
	Cursor    string
	Hash      string
	Memo      string
	CreatedAt time.Time
	Payments  []stellarwatch.PaymentEvent
}

// NewPaymentInfo builds the view for evt as observed by account. evt must
// carry at least one payment.
func NewPaymentInfo(evt stellarwatch.TxEvent, account string) PaymentInfo {
	return PaymentInfo{
		Account:   account,
		Cursor:    evt.ID,
		Hash:      evt.Hash,
		Memo:      evt.Memo,
		CreatedAt: evt.CreatedAt,
		Payments:  slices.Clone(evt.Payments),
	}
}

// Payment returns the first payment of the transaction.
func (p PaymentInfo) Payment() stellarwatch.PaymentEvent {
	if len(p.Payments) == 0 {
		return stellarwatch.PaymentEvent{}
	}
	return p.Payments[0]
}

// Sender returns the source account of the first payment.
func (p PaymentInfo) Sender() string { return p.Payment().From }

// Destination returns the destination account of the first payment.
func (p PaymentInfo) Destination() string { return p.Payment().To }

// Amount returns the amount of the first payment.
func (p PaymentInfo) Amount() decimal.Decimal { return p.Payment().Amount }

// Asset returns the asset of the first payment.
func (p PaymentInfo) Asset() string { return p.Payment().Asset }

// Debit reports whether the watched account sent the first payment.
func (p PaymentInfo) Debit() bool { return p.Sender() == p.Account }

// PaymentWatch emits a PaymentInfo for every transaction of the account that
// carries at least one payment.
type PaymentWatch struct {
	txWatch *EventWatcher[stellarwatch.TxEvent]
	emitter *observable.Observable[PaymentInfo]
	bag     observable.Bag
}

// NewPaymentWatch starts watching account's transactions after cursor. An
// empty cursor resumes from the cursor store when one is configured, and from
// the beginning of history otherwise.
func NewPaymentWatch(source stellarwatch.EventSource, account, cursor string, opts ...Option) (*PaymentWatch, error) {
	o := newOptions(opts)

	txWatch, err := newEventWatcher[stellarwatch.TxEvent](source, stellarwatch.KindTransaction, account, cursor, o)
	if err != nil {
		return nil, err
	}

	pw := &PaymentWatch{txWatch: txWatch}
	pw.bag.Add(func() { txWatch.Close() })

	withPayments := observable.Filter[stellarwatch.TxEvent](txWatch.Emitter(), func(evt stellarwatch.TxEvent) bool {
		return len(evt.Payments) > 0
	})
	pw.bag.Add(withPayments.Close)

	pw.emitter = observable.Map(withPayments, func(evt stellarwatch.TxEvent) PaymentInfo {
		return NewPaymentInfo(evt, account)
	})
	pw.bag.Add(pw.emitter.Close)

	if len(o.filters) > 0 {
		filtered := observable.Filter[PaymentInfo](pw.emitter, matchAll(o.filters))
		pw.bag.Add(filtered.Close)
		pw.emitter = filtered
	}

	for _, fn := range o.onPayment {
		pw.emitter.Subscribe(fn)
	}

	txWatch.start()
	return pw, nil
}

// Emitter returns the payment stream.
func (pw *PaymentWatch) Emitter() *observable.Observable[PaymentInfo] {
	return pw.emitter
}

// Cursor returns the paging token of the last transaction delivered by the
// underlying stream, including transactions without payments.
func (pw *PaymentWatch) Cursor() string {
	return pw.txWatch.Cursor()
}

// Err returns the error that terminated the stream, if any.
func (pw *PaymentWatch) Err() error {
	return pw.txWatch.Err()
}

// Done is closed once the underlying subscription has ended.
func (pw *PaymentWatch) Done() <-chan struct{} {
	return pw.txWatch.Done()
}

// Close stops the subscription and releases every stage of the chain.
func (pw *PaymentWatch) Close() error {
	pw.bag.Close()
	return nil
}
