// Package observable provides push-based, multi-subscriber notification
// channels with composable filter and map stages.
//
// Delivery is synchronous: Next walks the subscribers registered at the time
// of the call, in registration order, and returns once every one of them has
// been called. Stages built with Filter, Map and StatefulOf subscribe to their
// upstream and forward each value at most once, without buffering.
//
// Each Observable expects a single producer. Subscribe and Unsubscribe may be
// called at any time, including from inside a subscriber's own callback, but a
// subscriber must not call Next on the Observable it is subscribed to.
package observable

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Handle identifies one registration. The zero Handle is never issued.
type Handle uint64

// Observer receives values and, at most once, a terminal error.
// Either field may be nil.
type Observer[T any] struct {
	Next  func(T)
	Error func(error)
}

// Source is anything a stage can be chained to.
type Source[T any] interface {
	Observe(obs Observer[T]) Handle
	Unsubscribe(h Handle) bool
}

type subscription[T any] struct {
	id  Handle
	obs Observer[T]

	// mu orders deliveries to this subscriber, so a replayed value always
	// precedes live values emitted after the join.
	mu     sync.Mutex
	active atomic.Bool
}

func (s *subscription[T]) next(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active.Load() || s.obs.Next == nil {
		return
	}
	s.obs.Next(v)
}

func (s *subscription[T]) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active.Swap(false) || s.obs.Error == nil {
		return
	}
	s.obs.Error(err)
}

// Observable is a multi-subscriber notification channel.
type Observable[T any] struct {
	mu     sync.Mutex
	seq    Handle
	subs   []*subscription[T]
	err    error
	closed bool

	// release unlinks this stage from its upstream.
	release func()

	// replay state, only used when stateful is set
	stateful bool
	hasValue bool
	value    T
}

// New returns an Observable with no subscribers.
func New[T any]() *Observable[T] {
	return &Observable[T]{}
}

// Subscribe registers next for every subsequent value.
func (o *Observable[T]) Subscribe(next func(T)) Handle {
	return o.Observe(Observer[T]{Next: next})
}

// Observe registers obs. If the Observable already terminated with an error,
// obs.Error is called immediately and no registration is kept. Subscribing to
// a closed Observable is a no-op and returns the zero Handle.
func (o *Observable[T]) Observe(obs Observer[T]) Handle {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return 0
	}

	o.seq++
	s := &subscription[T]{id: o.seq, obs: obs}
	s.active.Store(true)

	replay, value := o.stateful && o.hasValue, o.value
	terminal := o.err
	if terminal == nil {
		o.subs = append(o.subs, s)
	}

	// Lock the subscriber before publishing it so a concurrent Next queues
	// behind the replay below.
	s.mu.Lock()
	o.mu.Unlock()

	if replay && obs.Next != nil {
		obs.Next(value)
	}
	s.mu.Unlock()

	if terminal != nil {
		s.fail(terminal)
	}
	return s.id
}

// Unsubscribe removes the registration for h. A subscriber removed while an
// emission is in flight receives nothing further from it. It reports whether
// h was registered.
func (o *Observable[T]) Unsubscribe(h Handle) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, s := range o.subs {
		if s.id == h {
			s.active.Store(false)
			o.subs = slices.Delete(o.subs, i, i+1)
			return true
		}
	}
	return false
}

// Next delivers v to every current subscriber in registration order.
// Values emitted after Error or Close are dropped.
func (o *Observable[T]) Next(v T) {
	o.Emit(v)
}

// Emit is Next, reporting whether v was accepted. It returns false when the
// Observable had already terminated or been closed.
func (o *Observable[T]) Emit(v T) bool {
	o.mu.Lock()
	if o.closed || o.err != nil {
		o.mu.Unlock()
		return false
	}
	if o.stateful {
		o.value, o.hasValue = v, true
	}
	subs := slices.Clone(o.subs)
	o.mu.Unlock()

	for _, s := range subs {
		s.next(v)
	}
	return true
}

// Error terminates the Observable and reports err once to every current
// subscriber. Later subscribers receive err when they join.
func (o *Observable[T]) Error(err error) {
	o.mu.Lock()
	if o.closed || o.err != nil {
		o.mu.Unlock()
		return
	}
	o.err = err
	subs := o.subs
	o.subs = nil
	o.mu.Unlock()

	for _, s := range subs {
		s.fail(err)
	}
}

// Err returns the terminal error, if any.
func (o *Observable[T]) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Len returns the number of current subscribers.
func (o *Observable[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}

// Close drops every subscriber and unlinks the stage from its upstream.
// It is safe to call Close multiple times.
func (o *Observable[T]) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	for _, s := range o.subs {
		s.active.Store(false)
	}
	o.subs = nil
	release := o.release
	o.release = nil
	o.mu.Unlock()

	if release != nil {
		release()
	}
}

// Filter returns a stage forwarding only the values of src that satisfy pred.
func Filter[T any](src Source[T], pred func(T) bool) *Observable[T] {
	dst := New[T]()
	link(dst, src, func(v T) {
		if pred(v) {
			dst.Next(v)
		}
	})
	return dst
}

// Map returns a stage carrying fn applied to every value of src.
func Map[T, U any](src Source[T], fn func(T) U) *Observable[U] {
	dst := New[U]()
	link(dst, src, func(v T) {
		dst.Next(fn(v))
	})
	return dst
}

func link[T, U any](dst *Observable[U], src Source[T], next func(T)) {
	h := src.Observe(Observer[T]{Next: next, Error: dst.Error})

	dst.mu.Lock()
	dst.release = func() { src.Unsubscribe(h) }
	dst.mu.Unlock()
}
