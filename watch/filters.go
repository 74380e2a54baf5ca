package watch

import "github.com/shopspring/decimal"

// PaymentFilter decides whether a PaymentInfo is emitted by a PaymentWatch.
// Return true to allow the payment, false to skip it.
type PaymentFilter func(PaymentInfo) bool

// ForAsset matches payments of a specific asset.
// For native XLM, use "native". For issued assets, use "CODE:ISSUER".
func ForAsset(asset string) PaymentFilter {
	return func(p PaymentInfo) bool {
		return p.Asset() == asset
	}
}

// Incoming matches payments received by the watched account.
func Incoming() PaymentFilter {
	return func(p PaymentInfo) bool {
		return p.Destination() == p.Account
	}
}

// Outgoing matches payments sent by the watched account.
func Outgoing() PaymentFilter {
	return func(p PaymentInfo) bool {
		return p.Debit()
	}
}

// MinAmount matches payments of at least min.
func MinAmount(min decimal.Decimal) PaymentFilter {
	return func(p PaymentInfo) bool {
		return p.Amount().GreaterThanOrEqual(min)
	}
}

func matchAll(filters []PaymentFilter) func(PaymentInfo) bool {
	return func(p PaymentInfo) bool {
		for _, f := range filters {
			if !f(p) {
				return false
			}
		}
		return true
	}
}
