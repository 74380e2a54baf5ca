package observable

import "sync"

// Stateful is an Observable that retains the most recently emitted value and
// replays it once to every subscriber that joins afterwards, before any later
// live value.
type Stateful[T any] struct {
	*Observable[T]
}

// NewStateful returns an empty Stateful.
func NewStateful[T any]() *Stateful[T] {
	return &Stateful[T]{Observable: &Observable[T]{stateful: true}}
}

// StatefulOf lifts src into a Stateful that caches every forwarded value.
func StatefulOf[T any](src Source[T]) *Stateful[T] {
	dst := NewStateful[T]()
	link(dst.Observable, src, dst.Next)
	return dst
}

// Value returns the cached value and whether one has been emitted.
func (s *Stateful[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.hasValue
}

// Bag collects release functions for the stages of one pipeline so they can
// be dropped together.
type Bag struct {
	mu       sync.Mutex
	releases []func()
	closed   bool
}

// Add registers release. If the bag is already closed, release runs at once.
func (b *Bag) Add(release func()) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		release()
		return
	}
	b.releases = append(b.releases, release)
	b.mu.Unlock()
}

// Close runs every release function, newest first. Only the first call has
// any effect.
func (b *Bag) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	releases := b.releases
	b.releases = nil
	b.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
}
