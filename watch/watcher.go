// Package watch derives typed observation streams for one Stellar account
// from an EventSource.
//
// An EventWatcher owns one source subscription and pushes every decoded
// record to its emitter. PaymentWatch, BalanceWatch and CreationWatch each
// own an EventWatcher and expose a filter/map chain built on it:
//
//	src := observer.NewHorizonSource("https://horizon.stellar.org")
//	pw, err := watch.NewPaymentWatch(src, account, "",
//	    watch.WithCursorStore(store, "payments:"+account),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pw.Close()
//
//	pw.Emitter().Subscribe(func(p watch.PaymentInfo) {
//	    log.Printf("%s sent %s %s", p.Sender(), p.Amount(), p.Asset())
//	})
//
// Construction starts the subscription; Close stops it and releases every
// stage of the chain.
package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stellar/go/keypair"
	"go.uber.org/zap"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
	"github.com/marwen-abid/stellar-watch-sdk-go/errors"
	"github.com/marwen-abid/stellar-watch-sdk-go/observable"
)

const storeTimeout = 5 * time.Second

// EventWatcher pushes every record of one EventSource subscription to its
// emitter and tracks the cursor of the last record delivered.
type EventWatcher[T stellarwatch.Record] struct {
	id       string
	source   stellarwatch.EventSource
	req      stellarwatch.StreamRequest
	emitter  *observable.Observable[T]
	logger   *zap.Logger
	store    stellarwatch.CursorStore
	storeKey string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	cursor string
	closed bool
	err    error
}

// Watch subscribes to kind records of account, resuming after cursor ("" for
// the beginning, stellarwatch.CursorNow to skip history). The subscription
// starts immediately.
func Watch[T stellarwatch.Record](source stellarwatch.EventSource, kind stellarwatch.RecordKind, account, cursor string, opts ...Option) (*EventWatcher[T], error) {
	w, err := newEventWatcher[T](source, kind, account, cursor, newOptions(opts))
	if err != nil {
		return nil, err
	}
	w.start()
	return w, nil
}

func newEventWatcher[T stellarwatch.Record](source stellarwatch.EventSource, kind stellarwatch.RecordKind, account, cursor string, o options) (*EventWatcher[T], error) {
	if source == nil {
		return nil, errors.NewWatcherError(errors.STREAM_ERROR, "event source is nil", nil)
	}
	if _, err := keypair.ParseAddress(account); err != nil {
		return nil, errors.NewWatcherError(errors.ACCOUNT_INVALID, fmt.Sprintf("invalid account %q", account), err)
	}

	id := uuid.NewString()
	logger := o.logger.With(
		zap.String("watcher", id),
		zap.String("account", account),
		zap.String("kind", string(kind)),
	)

	if cursor == "" && o.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		stored, err := o.store.Load(ctx, o.storeKey)
		cancel()
		if err != nil {
			return nil, errors.NewWatcherError(errors.STORE_ERROR, "failed to load cursor", err).With("key", o.storeKey)
		}
		if stored != "" {
			logger.Info("resuming from stored cursor", zap.String("cursor", stored))
		}
		cursor = stored
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &EventWatcher[T]{
		id:       id,
		source:   source,
		req:      stellarwatch.StreamRequest{Kind: kind, Account: account, Cursor: cursor},
		emitter:  observable.New[T](),
		logger:   logger,
		store:    o.store,
		storeKey: o.storeKey,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		cursor:   cursor,
	}, nil
}

func (w *EventWatcher[T]) start() {
	w.logger.Debug("starting stream", zap.String("cursor", w.req.Cursor))
	go w.run()
}

func (w *EventWatcher[T]) run() {
	defer close(w.done)

	err := w.source.Stream(w.ctx, w.req, w.deliver)
	if w.ctx.Err() != nil {
		w.logger.Debug("stream stopped")
		return
	}
	if err == nil {
		err = fmt.Errorf("stream ended")
	}

	code := errors.CodeOf(err)
	if code == "" {
		code = errors.STREAM_ERROR
	}
	werr := errors.NewWatcherError(code, fmt.Sprintf("%s stream terminated", w.req.Kind), err).
		With("account", w.req.Account).
		With("cursor", w.Cursor())

	w.mu.Lock()
	w.err = werr
	w.mu.Unlock()

	w.logger.Error("stream terminated", zap.Error(err), zap.String("cursor", w.Cursor()))
	w.emitter.Error(werr)
}

// deliver publishes the record's token as the cursor before emitting it, so
// subscribers calling Cursor see the record they are handling. A record the
// emitter refuses because Close won the race restores the previous cursor.
func (w *EventWatcher[T]) deliver(r stellarwatch.Record) {
	v, ok := r.(T)
	if !ok {
		w.logger.Warn("skipping record of unexpected type", zap.String("type", fmt.Sprintf("%T", r)))
		return
	}

	token := r.PagingToken()
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	prev := w.cursor
	w.cursor = token
	w.mu.Unlock()

	if !w.emitter.Emit(v) {
		w.mu.Lock()
		if w.cursor == token {
			w.cursor = prev
		}
		w.mu.Unlock()
		return
	}

	if w.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := w.store.Save(ctx, w.storeKey, token); err != nil {
			// The stream keeps going; the next successful save catches up.
			w.logger.Warn("failed to save cursor",
				zap.String("code", string(errors.CURSOR_SAVE_FAILED)),
				zap.String("cursor", token),
				zap.Error(err),
			)
		}
	}
}

// Emitter returns the observable carrying every delivered record.
func (w *EventWatcher[T]) Emitter() *observable.Observable[T] {
	return w.emitter
}

// Cursor returns the paging token of the last record delivered through the
// emitter, or the starting cursor if none has been delivered yet. Inside a
// subscriber callback it is the token of the record being handled. It
// remains valid after Close.
func (w *EventWatcher[T]) Cursor() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cursor
}

// Err returns the error that terminated the stream, if any.
func (w *EventWatcher[T]) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.err
}

// Done is closed once the underlying subscription has ended.
func (w *EventWatcher[T]) Done() <-chan struct{} {
	return w.done
}

// Close cancels the subscription and drops every subscriber of the emitter.
// It does not wait for the stream goroutine; use Done for that. It is safe
// to call Close multiple times, including from a subscriber callback.
func (w *EventWatcher[T]) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.emitter.Close()
	w.logger.Debug("watcher closed", zap.String("cursor", w.Cursor()))
	return nil
}
