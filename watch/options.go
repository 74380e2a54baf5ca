package watch

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
)

type options struct {
	logger   *zap.Logger
	store    stellarwatch.CursorStore
	storeKey string
	filters  []PaymentFilter
	asset    string

	// subscribed before the stream starts
	onPayment  []func(PaymentInfo)
	onBalance  []func(decimal.Decimal)
	onCreation []func(bool)
}

// Option configures a watcher. Options that do not apply to a watcher kind
// are ignored by it.
type Option func(*options)

// WithLogger sets the structured logger. The default discards all output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCursorStore persists the cursor under key after every delivered record.
// When the watcher is started without an explicit cursor, the stored cursor is
// used as the resume point.
func WithCursorStore(store stellarwatch.CursorStore, key string) Option {
	return func(o *options) {
		o.store = store
		o.storeKey = key
	}
}

// WithFilter narrows a PaymentWatch to payments accepted by every filter.
func WithFilter(filters ...PaymentFilter) Option {
	return func(o *options) {
		o.filters = append(o.filters, filters...)
	}
}

// WithBalanceAsset narrows a BalanceWatch to one holding: "native" for the
// account entry, or "CODE:ISSUER" for a trustline. By default the first
// matching trustline or account entry of each transaction is used.
func WithBalanceAsset(asset string) Option {
	return func(o *options) {
		o.asset = asset
	}
}

// OnPayment subscribes fn to a PaymentWatch before its stream starts.
func OnPayment(fn func(PaymentInfo)) Option {
	return func(o *options) {
		o.onPayment = append(o.onPayment, fn)
	}
}

// OnBalance subscribes fn to a BalanceWatch before its stream starts. fn
// receives a positive seed first.
func OnBalance(fn func(decimal.Decimal)) Option {
	return func(o *options) {
		o.onBalance = append(o.onBalance, fn)
	}
}

// OnCreation subscribes fn to a CreationWatch before its stream starts.
func OnCreation(fn func(bool)) Option {
	return func(o *options) {
		o.onCreation = append(o.onCreation, fn)
	}
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
