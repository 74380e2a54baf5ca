package watch

import (
	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
	"github.com/marwen-abid/stellar-watch-sdk-go/observable"
)

// CreationWatch emits true for every payment record of the account, starting
// from the beginning of history. The first value signals that the account
// exists on the ledger; repeats are not suppressed.
type CreationWatch struct {
	paymentWatch *EventWatcher[stellarwatch.PaymentEvent]
	emitter      *observable.Observable[bool]
	bag          observable.Bag
}

// NewCreationWatch starts watching account's payment records from the
// beginning. The cursor store option is ignored.
func NewCreationWatch(source stellarwatch.EventSource, account string, opts ...Option) (*CreationWatch, error) {
	o := newOptions(opts)
	o.store = nil

	paymentWatch, err := newEventWatcher[stellarwatch.PaymentEvent](source, stellarwatch.KindPayment, account, "", o)
	if err != nil {
		return nil, err
	}

	cw := &CreationWatch{paymentWatch: paymentWatch}
	cw.bag.Add(func() { paymentWatch.Close() })

	cw.emitter = observable.Map(paymentWatch.Emitter(), func(stellarwatch.PaymentEvent) bool {
		return true
	})
	cw.bag.Add(cw.emitter.Close)

	for _, fn := range o.onCreation {
		cw.emitter.Subscribe(fn)
	}

	paymentWatch.start()
	return cw, nil
}

// Emitter returns the creation signal stream.
func (cw *CreationWatch) Emitter() *observable.Observable[bool] {
	return cw.emitter
}

// Err returns the error that terminated the stream, if any.
func (cw *CreationWatch) Err() error {
	return cw.paymentWatch.Err()
}

// Done is closed once the underlying subscription has ended.
func (cw *CreationWatch) Done() <-chan struct{} {
	return cw.paymentWatch.Done()
}

// Close stops the subscription and releases the chain.
func (cw *CreationWatch) Close() error {
	cw.bag.Close()
	return nil
}
