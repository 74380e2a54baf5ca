// Package observer streams Stellar account records from Horizon and decodes
// them into the SDK's record types.
//
// HorizonSource implements stellarwatch.EventSource. It wraps Horizon
// streaming, reconnects with exponential backoff from the last delivered
// cursor, and converts transactions (envelope and result meta XDR) into
// TxEvent and payment operations into PaymentEvent.
//
// Example usage:
//
//	src := observer.NewHorizonSource(
//	    "https://horizon.stellar.org",
//	    observer.WithReconnectBackoff(time.Second, 30*time.Second),
//	    observer.WithLogger(logger),
//	)
//
//	pw, err := watch.NewPaymentWatch(src, account, stellarwatch.CursorNow)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pw.Close()
package observer

import (
	"context"
	"time"

	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	"go.uber.org/zap"
)

// Default reconnection backoff.
const (
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 60 * time.Second

	// consecutive 404/410 responses to a resumed cursor before giving up
	maxCursorRejections = 3
)

// Streamer is the subset of the Horizon client used by HorizonSource.
// *horizonclient.Client satisfies it.
type Streamer interface {
	StreamTransactions(ctx context.Context, request horizonclient.TransactionRequest, handler horizonclient.TransactionHandler) error
	StreamPayments(ctx context.Context, request horizonclient.OperationRequest, handler horizonclient.OperationHandler) error
}

// SourceOption is a function that configures a HorizonSource.
type SourceOption func(*HorizonSource)

// WithReconnectBackoff sets the initial and maximum backoff durations for reconnection.
// Default is 1s initial, 60s max with exponential growth.
func WithReconnectBackoff(initial, max time.Duration) SourceOption {
	return func(h *HorizonSource) {
		if initial > 0 {
			h.initialBackoff = initial
		}
		if max >= initial {
			h.maxBackoff = max
		}
	}
}

// WithLogger sets the structured logger. The default discards all output.
func WithLogger(logger *zap.Logger) SourceOption {
	return func(h *HorizonSource) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHTTP sets the HTTP transport used by the Horizon client, e.g. a
// core/net Client adapter.
func WithHTTP(client horizonclient.HTTP) SourceOption {
	return func(h *HorizonSource) {
		if hc, ok := h.client.(*horizonclient.Client); ok {
			hc.HTTP = client
		}
	}
}

// WithStreamer replaces the Horizon client entirely.
func WithStreamer(s Streamer) SourceOption {
	return func(h *HorizonSource) {
		h.client = s
	}
}

// Verify that *horizonclient.Client can back a HorizonSource
var _ Streamer = (*horizonclient.Client)(nil)
