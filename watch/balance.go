package watch

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
	"github.com/marwen-abid/stellar-watch-sdk-go/ledger"
	"github.com/marwen-abid/stellar-watch-sdk-go/observable"
)

// BalanceWatch maintains the account balance from the ledger entry changes of
// each new transaction. Late subscribers immediately receive the current
// balance.
type BalanceWatch struct {
	txWatch *EventWatcher[stellarwatch.TxEvent]
	emitter *observable.Stateful[decimal.Decimal]
	bag     observable.Bag
}

// NewBalanceWatch starts watching account from the current ledger tip. seed
// is the balance known at that point (zero if unknown); a positive seed is
// emitted right away.
//
// History is never replayed: seed is assumed to already account for it, and
// the cursor store option is ignored.
func NewBalanceWatch(source stellarwatch.EventSource, account string, seed decimal.Decimal, opts ...Option) (*BalanceWatch, error) {
	o := newOptions(opts)
	o.store = nil

	txWatch, err := newEventWatcher[stellarwatch.TxEvent](source, stellarwatch.KindTransaction, account, stellarwatch.CursorNow, o)
	if err != nil {
		return nil, err
	}

	bw := &BalanceWatch{txWatch: txWatch}
	bw.bag.Add(func() { txWatch.Close() })

	sel := ledger.Selector{Account: account, Asset: o.asset}
	balance := seed
	logger := o.logger

	balances := observable.Map(txWatch.Emitter(), func(evt stellarwatch.TxEvent) decimal.Decimal {
		if b, ok := ledger.Balance(evt.Meta, sel); ok {
			logger.Debug("balance changed",
				zap.String("account", account),
				zap.String("tx", evt.Hash),
				zap.Stringer("balance", b),
			)
			balance = b
		}
		return balance
	})
	bw.bag.Add(balances.Close)

	bw.emitter = observable.StatefulOf[decimal.Decimal](balances)
	bw.bag.Add(bw.emitter.Close)

	for _, fn := range o.onBalance {
		bw.emitter.Subscribe(fn)
	}

	if seed.IsPositive() {
		bw.emitter.Next(seed)
	}

	txWatch.start()
	return bw, nil
}

// Emitter returns the replay-latest balance stream.
func (bw *BalanceWatch) Emitter() *observable.Stateful[decimal.Decimal] {
	return bw.emitter
}

// Balance returns the most recently emitted balance, or zero if nothing has
// been emitted yet.
func (bw *BalanceWatch) Balance() decimal.Decimal {
	v, _ := bw.emitter.Value()
	return v
}

// Err returns the error that terminated the stream, if any.
func (bw *BalanceWatch) Err() error {
	return bw.txWatch.Err()
}

// Done is closed once the underlying subscription has ended.
func (bw *BalanceWatch) Done() <-chan struct{} {
	return bw.txWatch.Done()
}

// Close stops the subscription and releases every stage of the chain.
func (bw *BalanceWatch) Close() error {
	bw.bag.Close()
	return nil
}
