package observer

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	hProtocol "github.com/stellar/go-stellar-sdk/protocols/horizon"
	"github.com/stellar/go-stellar-sdk/xdr"
	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
	"github.com/marwen-abid/stellar-watch-sdk-go/errors"
	"github.com/marwen-abid/stellar-watch-sdk-go/ledger"
)

func trustlineUpdate(account, code, issuer string, balance int64) xdr.LedgerEntryChange {
	return xdr.LedgerEntryChange{
		Type: xdr.LedgerEntryChangeTypeLedgerEntryUpdated,
		Updated: &xdr.LedgerEntry{
			LastModifiedLedgerSeq: 42,
			Data: xdr.LedgerEntryData{
				Type: xdr.LedgerEntryTypeTrustline,
				TrustLine: &xdr.TrustLineEntry{
					AccountId: xdr.MustAddress(account),
					Asset:     xdr.MustNewCreditAsset(code, issuer).ToTrustLineAsset(),
					Balance:   xdr.Int64(balance),
					Limit:     xdr.Int64(9_000_000_000_000),
				},
			},
		},
	}
}

func accountState(account string, balance int64) xdr.LedgerEntryChange {
	return xdr.LedgerEntryChange{
		Type: xdr.LedgerEntryChangeTypeLedgerEntryState,
		State: &xdr.LedgerEntry{
			LastModifiedLedgerSeq: 41,
			Data: xdr.LedgerEntryData{
				Type: xdr.LedgerEntryTypeAccount,
				Account: &xdr.AccountEntry{
					AccountId: xdr.MustAddress(account),
					Balance:   xdr.Int64(balance),
					SeqNum:    xdr.SequenceNumber(7),
				},
			},
		},
	}
}

func TestDecodeMeta_Versions(t *testing.T) {
	account := keypair.MustRandom().Address()
	issuer := keypair.MustRandom().Address()
	ops := []xdr.OperationMeta{{Changes: xdr.LedgerEntryChanges{
		accountState(account, 100),
		trustlineUpdate(account, "KIN", issuer, 5),
	}}}

	opsV2 := []xdr.OperationMetaV2{{Changes: ops[0].Changes}}

	for _, meta := range []xdr.TransactionMeta{
		{V: 0, Operations: &ops},
		{V: 1, V1: &xdr.TransactionMetaV1{Operations: ops}},
		{V: 2, V2: &xdr.TransactionMetaV2{Operations: ops}},
		{V: 3, V3: &xdr.TransactionMetaV3{Operations: ops}},
		{V: 4, V4: &xdr.TransactionMetaV4{Operations: opsV2}},
	} {
		got := DecodeMeta(meta)
		decoded, ok := got.(stellarwatch.OperationsMeta)
		require.True(t, ok, "version %d", meta.V)
		require.Len(t, decoded.Operations, 1)
		require.Len(t, decoded.Operations[0].Changes, 2)

		state, ok := decoded.Operations[0].Changes[0].(stellarwatch.EntryState)
		require.True(t, ok)
		assert.Equal(t, uint32(41), state.Entry.LastModifiedLedger)
		assert.Equal(t, stellarwatch.AccountData{AccountID: account, Balance: 100, Sequence: 7}, state.Entry.Data)

		updated, ok := decoded.Operations[0].Changes[1].(stellarwatch.EntryUpdated)
		require.True(t, ok)
		assert.Equal(t, stellarwatch.TrustlineData{
			Account: account,
			Asset:   "KIN:" + issuer,
			Balance: 5,
			Limit:   9_000_000_000_000,
		}, updated.Entry.Data)
	}
}

func TestDecodeMeta_V4AccountUpdateYieldsBalance(t *testing.T) {
	account := keypair.MustRandom().Address()
	update := accountState(account, 50_000_000)
	update.Type = xdr.LedgerEntryChangeTypeLedgerEntryUpdated
	update.Updated, update.State = update.State, nil

	metaXDR, err := xdr.MarshalBase64(xdr.TransactionMeta{
		V:  4,
		V4: &xdr.TransactionMetaV4{Operations: []xdr.OperationMetaV2{{Changes: xdr.LedgerEntryChanges{update}}}},
	})
	require.NoError(t, err)

	var meta xdr.TransactionMeta
	require.NoError(t, xdr.SafeUnmarshalBase64(metaXDR, &meta))

	balance, ok := ledger.Balance(DecodeMeta(meta), ledger.Selector{Account: account})
	require.True(t, ok)
	assert.Equal(t, "5", balance.String())
}

func TestDecodeMeta_Unsupported(t *testing.T) {
	assert.Equal(t, stellarwatch.UnsupportedMeta{Version: 0}, DecodeMeta(xdr.TransactionMeta{V: 0}))
	assert.Equal(t, stellarwatch.UnsupportedMeta{Version: 5}, DecodeMeta(xdr.TransactionMeta{V: 5}))
}

func TestDecodeMeta_RemovedAndOtherEntries(t *testing.T) {
	account := keypair.MustRandom().Address()
	key := xdr.LedgerKey{Type: xdr.LedgerEntryTypeAccount, Account: &xdr.LedgerKeyAccount{AccountId: xdr.MustAddress(account)}}
	ops := []xdr.OperationMeta{{Changes: xdr.LedgerEntryChanges{
		{Type: xdr.LedgerEntryChangeTypeLedgerEntryRemoved, Removed: &key},
		{
			Type: xdr.LedgerEntryChangeTypeLedgerEntryCreated,
			Created: &xdr.LedgerEntry{Data: xdr.LedgerEntryData{
				Type: xdr.LedgerEntryTypeData,
				Data: &xdr.DataEntry{AccountId: xdr.MustAddress(account), DataName: "k", DataValue: xdr.DataValue("v")},
			}},
		},
	}}}

	decoded, ok := DecodeMeta(xdr.TransactionMeta{V: 1, V1: &xdr.TransactionMetaV1{Operations: ops}}).(stellarwatch.OperationsMeta)
	require.True(t, ok)
	changes := decoded.Operations[0].Changes
	require.Len(t, changes, 2)
	assert.Equal(t, stellarwatch.EntryRemoved{}, changes[0])

	created, ok := changes[1].(stellarwatch.EntryCreated)
	require.True(t, ok)
	assert.IsType(t, stellarwatch.OtherData{}, created.Entry.Data)
}

func TestDecodeTransaction(t *testing.T) {
	source := keypair.MustRandom().Address()
	opSource := keypair.MustRandom().Address()
	dest := keypair.MustRandom().Address()
	issuer := keypair.MustRandom().Address()

	opSourceMuxed := xdr.MustMuxedAddress(opSource)
	env := xdr.TransactionEnvelope{
		Type: xdr.EnvelopeTypeEnvelopeTypeTx,
		V1: &xdr.TransactionV1Envelope{
			Tx: xdr.Transaction{
				SourceAccount: xdr.MustMuxedAddress(source),
				Fee:           100,
				SeqNum:        1,
				Operations: []xdr.Operation{
					{Body: xdr.OperationBody{
						Type: xdr.OperationTypePayment,
						PaymentOp: &xdr.PaymentOp{
							Destination: xdr.MustMuxedAddress(dest),
							Asset:       xdr.MustNewCreditAsset("KIN", issuer),
							Amount:      123_456_789,
						},
					}},
					{Body: xdr.OperationBody{
						Type:           xdr.OperationTypeBumpSequence,
						BumpSequenceOp: &xdr.BumpSequenceOp{BumpTo: 5},
					}},
					{
						SourceAccount: &opSourceMuxed,
						Body: xdr.OperationBody{
							Type: xdr.OperationTypeCreateAccount,
							CreateAccountOp: &xdr.CreateAccountOp{
								Destination:     xdr.MustAddress(dest),
								StartingBalance: 20_000_000,
							},
						},
					},
				},
			},
		},
	}
	envXDR, err := xdr.MarshalBase64(env)
	require.NoError(t, err)

	ops := []xdr.OperationMeta{{Changes: xdr.LedgerEntryChanges{trustlineUpdate(dest, "KIN", issuer, 1_234_567_890_123)}}}
	metaXDR, err := xdr.MarshalBase64(xdr.TransactionMeta{V: 2, V2: &xdr.TransactionMetaV2{Operations: ops}})
	require.NoError(t, err)

	closed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	evt, err := DecodeTransaction(hProtocol.Transaction{
		ID:              "abc",
		PT:              "4294967296",
		Hash:            "abc",
		Ledger:          1,
		Account:         source,
		Memo:            "order-7",
		LedgerCloseTime: closed,
		EnvelopeXdr:     envXDR,
		ResultMetaXdr:   metaXDR,
	})
	require.NoError(t, err)

	assert.Equal(t, "4294967296", evt.PagingToken())
	assert.Equal(t, "abc", evt.Hash)
	assert.Equal(t, "order-7", evt.Memo)
	assert.Equal(t, closed, evt.CreatedAt)

	require.Len(t, evt.Payments, 2)
	pay := evt.Payments[0]
	assert.Equal(t, "4294967297", pay.Cursor)
	assert.Equal(t, stellarwatch.PaymentTypePayment, pay.Type)
	assert.Equal(t, source, pay.From)
	assert.Equal(t, dest, pay.To)
	assert.Equal(t, "KIN:"+issuer, pay.Asset)
	assert.True(t, pay.Amount.Equal(decimal.RequireFromString("12.3456789")))

	create := evt.Payments[1]
	assert.Equal(t, "4294967299", create.Cursor)
	assert.Equal(t, stellarwatch.PaymentTypeCreateAccount, create.Type)
	assert.Equal(t, opSource, create.From)
	assert.Equal(t, "native", create.Asset)
	assert.True(t, create.Amount.Equal(decimal.NewFromInt(2)))

	meta, ok := evt.Meta.(stellarwatch.OperationsMeta)
	require.True(t, ok)
	updated := meta.Operations[0].Changes[0].(stellarwatch.EntryUpdated)
	assert.Equal(t, int64(1_234_567_890_123), updated.Entry.Data.(stellarwatch.TrustlineData).Balance)
}

func TestDecodeTransaction_PathPaymentsAndMerge(t *testing.T) {
	source := keypair.MustRandom().Address()
	dest := keypair.MustRandom().Address()
	issuer := keypair.MustRandom().Address()
	kin := xdr.MustNewCreditAsset("KIN", issuer)

	mergeDest := xdr.MustMuxedAddress(dest)
	env := xdr.TransactionEnvelope{
		Type: xdr.EnvelopeTypeEnvelopeTypeTx,
		V1: &xdr.TransactionV1Envelope{
			Tx: xdr.Transaction{
				SourceAccount: xdr.MustMuxedAddress(source),
				Fee:           300,
				SeqNum:        2,
				Operations: []xdr.Operation{
					{Body: xdr.OperationBody{
						Type: xdr.OperationTypePathPaymentStrictReceive,
						PathPaymentStrictReceiveOp: &xdr.PathPaymentStrictReceiveOp{
							SendAsset:   xdr.MustNewNativeAsset(),
							SendMax:     50_000_000,
							Destination: xdr.MustMuxedAddress(dest),
							DestAsset:   kin,
							DestAmount:  10_000_000,
						},
					}},
					{Body: xdr.OperationBody{
						Type: xdr.OperationTypePathPaymentStrictSend,
						PathPaymentStrictSendOp: &xdr.PathPaymentStrictSendOp{
							SendAsset:   xdr.MustNewNativeAsset(),
							SendAmount:  10_000_000,
							Destination: xdr.MustMuxedAddress(dest),
							DestAsset:   kin,
							DestMin:     1,
						},
					}},
					{Body: xdr.OperationBody{
						Type:        xdr.OperationTypeAccountMerge,
						Destination: &mergeDest,
					}},
				},
			},
		},
	}
	envXDR, err := xdr.MarshalBase64(env)
	require.NoError(t, err)

	merged := xdr.Int64(99_000_000)
	results := []xdr.OperationResult{
		{Code: xdr.OperationResultCodeOpInner, Tr: &xdr.OperationResultTr{
			Type: xdr.OperationTypePathPaymentStrictReceive,
			PathPaymentStrictReceiveResult: &xdr.PathPaymentStrictReceiveResult{
				Code:    xdr.PathPaymentStrictReceiveResultCodePathPaymentStrictReceiveSuccess,
				Success: &xdr.PathPaymentStrictReceiveResultSuccess{Last: xdr.SimplePaymentResult{Destination: xdr.MustAddress(dest), Asset: kin, Amount: 10_000_000}},
			},
		}},
		{Code: xdr.OperationResultCodeOpInner, Tr: &xdr.OperationResultTr{
			Type: xdr.OperationTypePathPaymentStrictSend,
			PathPaymentStrictSendResult: &xdr.PathPaymentStrictSendResult{
				Code:    xdr.PathPaymentStrictSendResultCodePathPaymentStrictSendSuccess,
				Success: &xdr.PathPaymentStrictSendResultSuccess{Last: xdr.SimplePaymentResult{Destination: xdr.MustAddress(dest), Asset: kin, Amount: 25_000_000}},
			},
		}},
		{Code: xdr.OperationResultCodeOpInner, Tr: &xdr.OperationResultTr{
			Type: xdr.OperationTypeAccountMerge,
			AccountMergeResult: &xdr.AccountMergeResult{
				Code:                 xdr.AccountMergeResultCodeAccountMergeSuccess,
				SourceAccountBalance: &merged,
			},
		}},
	}
	resultXDR, err := xdr.MarshalBase64(xdr.TransactionResult{
		FeeCharged: 300,
		Result:     xdr.TransactionResultResult{Code: xdr.TransactionResultCodeTxSuccess, Results: &results},
	})
	require.NoError(t, err)

	evt, err := DecodeTransaction(hProtocol.Transaction{
		PT:          "100",
		Hash:        "ghi",
		Account:     source,
		EnvelopeXdr: envXDR,
		ResultXdr:   resultXDR,
	})
	require.NoError(t, err)
	require.Len(t, evt.Payments, 3)

	receive := evt.Payments[0]
	assert.Equal(t, stellarwatch.PaymentTypePathPaymentStrictReceive, receive.Type)
	assert.Equal(t, dest, receive.To)
	assert.Equal(t, "KIN:"+issuer, receive.Asset)
	assert.Equal(t, "1", receive.Amount.String())

	send := evt.Payments[1]
	assert.Equal(t, stellarwatch.PaymentTypePathPaymentStrictSend, send.Type)
	assert.Equal(t, "2.5", send.Amount.String(), "delivered amount comes from the result")

	merge := evt.Payments[2]
	assert.Equal(t, "103", merge.Cursor)
	assert.Equal(t, stellarwatch.PaymentTypeAccountMerge, merge.Type)
	assert.Equal(t, source, merge.From)
	assert.Equal(t, dest, merge.To)
	assert.Equal(t, "native", merge.Asset)
	assert.Equal(t, "9.9", merge.Amount.String())
}

func TestDecodeTransaction_BadXDR(t *testing.T) {
	evt, err := DecodeTransaction(hProtocol.Transaction{
		PT:            "12",
		Hash:          "def",
		EnvelopeXdr:   "not base64!",
		ResultMetaXdr: "AAAA!!",
	})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, &errors.StellarWatchError{Code: errors.DECODE_FAILED}))

	assert.Equal(t, "12", evt.PagingToken())
	assert.Empty(t, evt.Payments)
	assert.IsType(t, stellarwatch.UnsupportedMeta{}, evt.Meta)
}
