package observer

import (
	"github.com/shopspring/decimal"
	"github.com/stellar/go-stellar-sdk/protocols/horizon/base"
	"github.com/stellar/go-stellar-sdk/protocols/horizon/operations"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
)

// ConvertOperation converts a Horizon payment-stream operation to a
// PaymentEvent. Payments, path payments, account creations and merges are
// converted; it reports false for any other operation type and for
// unparseable amounts.
//
// Horizon's merge record does not carry the merged balance, so merges
// converted here have a zero Amount.
func ConvertOperation(op operations.Operation) (stellarwatch.PaymentEvent, bool) {
	b := op.GetBase()

	evt := stellarwatch.PaymentEvent{
		ID:              b.ID,
		Cursor:          b.PT, // PT is the paging_token field
		TransactionHash: b.TransactionHash,
		CreatedAt:       b.LedgerCloseTime,
	}

	var payment operations.Payment
	switch o := op.(type) {
	case operations.Payment:
		evt.Type = stellarwatch.PaymentTypePayment
		payment = o

	case operations.PathPayment:
		evt.Type = stellarwatch.PaymentTypePathPaymentStrictReceive
		payment = o.Payment

	case operations.PathPaymentStrictSend:
		evt.Type = stellarwatch.PaymentTypePathPaymentStrictSend
		payment = o.Payment

	case operations.CreateAccount:
		// CreateAccount funds the new account, so it counts as a payment
		amount, err := decimal.NewFromString(o.StartingBalance)
		if err != nil {
			return stellarwatch.PaymentEvent{}, false
		}
		evt.Type = stellarwatch.PaymentTypeCreateAccount
		evt.From = o.Funder
		evt.To = o.Account
		evt.Asset = "native"
		evt.Amount = amount
		return evt, true

	case operations.AccountMerge:
		evt.Type = stellarwatch.PaymentTypeAccountMerge
		evt.From = o.Account
		evt.To = o.Into
		evt.Asset = "native"
		evt.Amount = decimal.Zero
		return evt, true

	default:
		return stellarwatch.PaymentEvent{}, false
	}

	amount, err := decimal.NewFromString(payment.Amount)
	if err != nil {
		return stellarwatch.PaymentEvent{}, false
	}
	evt.From = payment.From
	evt.To = payment.To
	evt.Asset = formatAsset(payment.Asset)
	evt.Amount = amount
	return evt, true
}

// formatAsset formats an asset for display.
// Native XLM returns "native", issued assets return "CODE:ISSUER".
func formatAsset(asset base.Asset) string {
	if asset.Type == "native" {
		return "native"
	}
	return asset.Code + ":" + asset.Issuer
}
