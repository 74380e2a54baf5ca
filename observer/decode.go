package observer

import (
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	hProtocol "github.com/stellar/go-stellar-sdk/protocols/horizon"
	"github.com/stellar/go-stellar-sdk/xdr"
	"github.com/stellar/go/amount"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
	"github.com/marwen-abid/stellar-watch-sdk-go/errors"
)

// DecodeTransaction converts a Horizon transaction record into a TxEvent.
//
// Payments are read from the envelope and ledger entry changes from the
// result meta. When either XDR blob cannot be decoded the event is still
// returned, without payments or with UnsupportedMeta respectively, together
// with a DECODE_FAILED error.
func DecodeTransaction(tx hProtocol.Transaction) (stellarwatch.TxEvent, error) {
	evt := stellarwatch.TxEvent{
		ID:            tx.PT,
		Hash:          tx.Hash,
		Ledger:        tx.Ledger,
		SourceAccount: tx.Account,
		Memo:          tx.Memo,
		CreatedAt:     tx.LedgerCloseTime,
		Meta:          stellarwatch.UnsupportedMeta{Version: -1},
	}

	var errs []error

	var env xdr.TransactionEnvelope
	if err := xdr.SafeUnmarshalBase64(tx.EnvelopeXdr, &env); err != nil {
		errs = append(errs, fmt.Errorf("envelope: %w", err))
	} else {
		var results []xdr.OperationResult
		if tx.ResultXdr != "" {
			var result xdr.TransactionResult
			if err := xdr.SafeUnmarshalBase64(tx.ResultXdr, &result); err != nil {
				errs = append(errs, fmt.Errorf("result: %w", err))
			} else {
				results, _ = result.OperationResults()
			}
		}
		if evt.Payments, err = decodePayments(env, results, evt); err != nil {
			errs = append(errs, err)
		}
	}

	if tx.ResultMetaXdr != "" {
		var meta xdr.TransactionMeta
		if err := xdr.SafeUnmarshalBase64(tx.ResultMetaXdr, &meta); err != nil {
			errs = append(errs, fmt.Errorf("result meta: %w", err))
		} else {
			evt.Meta = DecodeMeta(meta)
		}
	}

	if len(errs) > 0 {
		return evt, errors.NewSourceError(errors.DECODE_FAILED, "failed to decode transaction", stderrors.Join(errs...)).
			With("tx", tx.Hash)
	}
	return evt, nil
}

// decodePayments extracts the payment-like operations of env. Operation
// paging tokens follow Horizon's numbering: the transaction token plus the
// one-based operation index. results, when present, supply the amounts the
// envelope cannot: what a strict-send path payment delivered and what a
// merge moved.
func decodePayments(env xdr.TransactionEnvelope, results []xdr.OperationResult, evt stellarwatch.TxEvent) ([]stellarwatch.PaymentEvent, error) {
	base, err := strconv.ParseInt(evt.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("paging token %q: %w", evt.ID, err)
	}

	var payments []stellarwatch.PaymentEvent
	for i, op := range env.Operations() {
		from := evt.SourceAccount
		if op.SourceAccount != nil {
			if from, err = op.SourceAccount.GetAddress(); err != nil {
				return payments, fmt.Errorf("operation %d source: %w", i, err)
			}
		}

		token := strconv.FormatInt(base+int64(i)+1, 10)
		p := stellarwatch.PaymentEvent{
			ID:              token,
			Cursor:          token,
			From:            from,
			TransactionHash: evt.Hash,
			CreatedAt:       evt.CreatedAt,
		}

		var tr xdr.OperationResultTr
		if i < len(results) {
			tr, _ = results[i].GetTr()
		}

		var dest xdr.MuxedAccount
		switch op.Body.Type {
		case xdr.OperationTypePayment:
			pay := op.Body.MustPaymentOp()
			dest = pay.Destination
			p.Type = stellarwatch.PaymentTypePayment
			p.Asset = pay.Asset.StringCanonical()
			p.Amount = rawAmount(int64(pay.Amount))

		case xdr.OperationTypePathPaymentStrictReceive:
			pay := op.Body.MustPathPaymentStrictReceiveOp()
			dest = pay.Destination
			p.Type = stellarwatch.PaymentTypePathPaymentStrictReceive
			p.Asset = pay.DestAsset.StringCanonical()
			p.Amount = rawAmount(int64(pay.DestAmount))

		case xdr.OperationTypePathPaymentStrictSend:
			pay := op.Body.MustPathPaymentStrictSendOp()
			dest = pay.Destination
			p.Type = stellarwatch.PaymentTypePathPaymentStrictSend
			p.Asset = pay.DestAsset.StringCanonical()
			delivered := pay.DestMin
			if res, ok := tr.GetPathPaymentStrictSendResult(); ok {
				if success, ok := res.GetSuccess(); ok {
					delivered = success.Last.Amount
				}
			}
			p.Amount = rawAmount(int64(delivered))

		case xdr.OperationTypeAccountMerge:
			dest = op.Body.MustDestination()
			p.Type = stellarwatch.PaymentTypeAccountMerge
			p.Asset = "native"
			p.Amount = decimal.Zero
			if res, ok := tr.GetAccountMergeResult(); ok {
				if merged, ok := res.GetSourceAccountBalance(); ok {
					p.Amount = rawAmount(int64(merged))
				}
			}

		case xdr.OperationTypeCreateAccount:
			create := op.Body.MustCreateAccountOp()
			if p.To, err = create.Destination.GetAddress(); err != nil {
				return payments, fmt.Errorf("operation %d destination: %w", i, err)
			}
			p.Type = stellarwatch.PaymentTypeCreateAccount
			p.Asset = "native"
			p.Amount = rawAmount(int64(create.StartingBalance))
			payments = append(payments, p)
			continue

		default:
			continue
		}

		if p.To, err = dest.GetAddress(); err != nil {
			return payments, fmt.Errorf("operation %d destination: %w", i, err)
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func rawAmount(v int64) decimal.Decimal {
	return decimal.RequireFromString(amount.StringFromInt64(v))
}

// DecodeMeta converts transaction meta into the SDK's sum type. Versions 0
// through 4 carry per-operation ledger entry changes; any other version
// decodes to UnsupportedMeta.
func DecodeMeta(meta xdr.TransactionMeta) stellarwatch.TransactionMeta {
	var perOp []xdr.LedgerEntryChanges
	switch meta.V {
	case 0:
		if meta.Operations == nil {
			return stellarwatch.UnsupportedMeta{Version: meta.V}
		}
		perOp = changesOf(*meta.Operations)
	case 1:
		perOp = changesOf(meta.MustV1().Operations)
	case 2:
		perOp = changesOf(meta.MustV2().Operations)
	case 3:
		perOp = changesOf(meta.MustV3().Operations)
	case 4:
		ops := meta.MustV4().Operations
		perOp = make([]xdr.LedgerEntryChanges, len(ops))
		for i, op := range ops {
			perOp[i] = op.Changes
		}
	default:
		return stellarwatch.UnsupportedMeta{Version: meta.V}
	}

	out := stellarwatch.OperationsMeta{Operations: make([]stellarwatch.OperationMeta, len(perOp))}
	for i, opChanges := range perOp {
		changes := make([]stellarwatch.LedgerEntryChange, 0, len(opChanges))
		for _, c := range opChanges {
			if change, ok := decodeChange(c); ok {
				changes = append(changes, change)
			}
		}
		out.Operations[i] = stellarwatch.OperationMeta{Changes: changes}
	}
	return out
}

func changesOf(ops []xdr.OperationMeta) []xdr.LedgerEntryChanges {
	out := make([]xdr.LedgerEntryChanges, len(ops))
	for i, op := range ops {
		out[i] = op.Changes
	}
	return out
}

func decodeChange(c xdr.LedgerEntryChange) (stellarwatch.LedgerEntryChange, bool) {
	switch c.Type {
	case xdr.LedgerEntryChangeTypeLedgerEntryCreated:
		if e, ok := c.GetCreated(); ok {
			return stellarwatch.EntryCreated{Entry: decodeEntry(e)}, true
		}
	case xdr.LedgerEntryChangeTypeLedgerEntryUpdated:
		if e, ok := c.GetUpdated(); ok {
			return stellarwatch.EntryUpdated{Entry: decodeEntry(e)}, true
		}
	case xdr.LedgerEntryChangeTypeLedgerEntryState:
		if e, ok := c.GetState(); ok {
			return stellarwatch.EntryState{Entry: decodeEntry(e)}, true
		}
	case xdr.LedgerEntryChangeTypeLedgerEntryRemoved:
		return stellarwatch.EntryRemoved{}, true
	}
	return nil, false
}

func decodeEntry(e xdr.LedgerEntry) stellarwatch.LedgerEntry {
	return stellarwatch.LedgerEntry{
		LastModifiedLedger: uint32(e.LastModifiedLedgerSeq),
		Data:               decodeEntryData(e.Data),
	}
}

func decodeEntryData(data xdr.LedgerEntryData) stellarwatch.LedgerEntryData {
	switch data.Type {
	case xdr.LedgerEntryTypeAccount:
		if a, ok := data.GetAccount(); ok {
			return stellarwatch.AccountData{
				AccountID: a.AccountId.Address(),
				Balance:   int64(a.Balance),
				Sequence:  int64(a.SeqNum),
			}
		}
	case xdr.LedgerEntryTypeTrustline:
		if t, ok := data.GetTrustLine(); ok {
			return stellarwatch.TrustlineData{
				Account: t.AccountId.Address(),
				Asset:   trustLineAsset(t.Asset),
				Balance: int64(t.Balance),
				Limit:   int64(t.Limit),
			}
		}
	}
	return stellarwatch.OtherData{Kind: data.Type.String()}
}

// trustLineAsset formats a trustline asset as "CODE:ISSUER", or as
// "pool:<id>" for liquidity pool shares.
func trustLineAsset(a xdr.TrustLineAsset) string {
	if pool, ok := a.GetLiquidityPoolId(); ok {
		return "pool:" + hex.EncodeToString(pool[:])
	}
	return a.ToAsset().StringCanonical()
}
