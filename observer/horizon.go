package observer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	hProtocol "github.com/stellar/go-stellar-sdk/protocols/horizon"
	"github.com/stellar/go-stellar-sdk/protocols/horizon/operations"
	"go.uber.org/zap"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
	"github.com/marwen-abid/stellar-watch-sdk-go/errors"
)

// HorizonSource implements stellarwatch.EventSource by streaming account
// transactions and payment operations from Horizon. Transport failures are
// retried with exponential backoff, resuming after the last delivered cursor.
type HorizonSource struct {
	client         Streamer
	logger         *zap.Logger
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewHorizonSource creates a HorizonSource that streams from the given Horizon URL.
func NewHorizonSource(horizonURL string, opts ...SourceOption) *HorizonSource {
	h := &HorizonSource{
		client:         &horizonclient.Client{HorizonURL: horizonURL},
		logger:         zap.NewNop(),
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Stream implements stellarwatch.EventSource. It blocks until ctx is
// cancelled, returning nil, or until Horizon rejects the request in a way a
// reconnect cannot fix.
func (h *HorizonSource) Stream(ctx context.Context, req stellarwatch.StreamRequest, handler func(stellarwatch.Record)) error {
	switch req.Kind {
	case stellarwatch.KindTransaction, stellarwatch.KindPayment:
	default:
		return errors.NewSourceError(errors.STREAM_ERROR, fmt.Sprintf("unsupported record kind %q", req.Kind), nil)
	}

	logger := h.logger.With(
		zap.String("account", req.Account),
		zap.String("kind", string(req.Kind)),
	)

	// Exponential backoff state
	backoff := h.initialBackoff
	attempt := 0
	cursor := req.Cursor
	delivered := false
	rejections := 0

	deliver := func(r stellarwatch.Record) {
		// Reset backoff on successful stream
		backoff = h.initialBackoff
		attempt = 0
		rejections = 0

		delivered = true
		cursor = r.PagingToken()
		handler(r)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := h.stream(ctx, req.Kind, req.Account, cursor, deliver, logger)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			logger.Debug("stream closed by server", zap.String("cursor", cursor))
		} else {
			if delivered && isExplicitCursor(cursor) && cursorRejected(statusOf(err)) {
				rejections++
			}
			if terminal := classify(err, req.Kind, cursor, delivered, rejections); terminal != nil {
				logger.Error("stream rejected", zap.Error(terminal), zap.String("cursor", cursor))
				return terminal
			}
			logger.Warn("stream error, reconnecting",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.String("cursor", cursor),
			)
		}

		// Wait for backoff period or until cancelled
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}

		// Increase backoff exponentially: 1s, 2s, 4s, 8s, ..., max 60s
		attempt++
		backoff = backoff * 2
		if backoff > h.maxBackoff {
			backoff = h.maxBackoff
		}
	}
}

func (h *HorizonSource) stream(ctx context.Context, kind stellarwatch.RecordKind, account, cursor string, deliver func(stellarwatch.Record), logger *zap.Logger) error {
	if kind == stellarwatch.KindPayment {
		return h.client.StreamPayments(ctx, horizonclient.OperationRequest{
			ForAccount: account,
			Cursor:     cursor,
			Order:      horizonclient.OrderAsc,
		}, func(op operations.Operation) {
			evt, ok := ConvertOperation(op)
			if !ok {
				logger.Debug("skipping operation", zap.String("type", op.GetType()), zap.String("id", op.GetBase().ID))
				return
			}
			deliver(evt)
		})
	}

	return h.client.StreamTransactions(ctx, horizonclient.TransactionRequest{
		ForAccount: account,
		Cursor:     cursor,
		Order:      horizonclient.OrderAsc,
	}, func(tx hProtocol.Transaction) {
		evt, err := DecodeTransaction(tx)
		if err != nil {
			logger.Warn("transaction decoded partially",
				zap.String("code", string(errors.DECODE_FAILED)),
				zap.String("tx", tx.Hash),
				zap.Error(err),
			)
		}
		deliver(evt)
	})
}

// classify returns a terminal error for failures a reconnect cannot fix, and
// nil for failures worth retrying. A cursor Horizon rejects before anything
// was delivered is terminal at once; one it keeps rejecting after deliveries
// becomes terminal after maxCursorRejections consecutive attempts.
func classify(err error, kind stellarwatch.RecordKind, cursor string, delivered bool, rejections int) error {
	status := statusOf(err)
	if status == 0 {
		return nil
	}

	switch {
	case isExplicitCursor(cursor) && cursorRejected(status) && (!delivered || rejections >= maxCursorRejections):
		return errors.NewSourceError(
			errors.CURSOR_UNAVAILABLE,
			fmt.Sprintf("horizon cannot resume %s stream after cursor %s", kind, cursor),
			err,
		).With("cursor", cursor).With("status", status).With("attempts", rejections)
	case status == http.StatusBadRequest:
		return errors.NewSourceError(errors.STREAM_ERROR, "horizon rejected stream request", err).
			With("status", status)
	}
	return nil
}

// statusOf returns the HTTP status of a Horizon error, or 0 for transport
// failures.
func statusOf(err error) int {
	herr := horizonclient.GetError(err)
	if herr == nil {
		return 0
	}
	status := herr.Problem.Status
	if status == 0 && herr.Response != nil {
		status = herr.Response.StatusCode
	}
	return status
}

func isExplicitCursor(cursor string) bool {
	return cursor != "" && cursor != stellarwatch.CursorNow
}

func cursorRejected(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusGone:
		return true
	}
	return false
}

// Verify that HorizonSource implements stellarwatch.EventSource
var _ stellarwatch.EventSource = (*HorizonSource)(nil)
