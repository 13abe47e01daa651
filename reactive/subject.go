package reactive

import "sync"

// Subscription cancels a registration made against a Subject or a live query.
// Unsubscribe is idempotent.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// NewSubscription wraps a cancel function.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Subject holds the latest value, hands it to new subscribers right away
// and pushes every later value to all current subscribers.
//
// Emissions are serialized: subscribers observe values in the order Next was
// called and a subscriber never sees a value older than the one it was
// registered with. Callbacks run on the emitting goroutine and must not call
// Next or Subscribe on the same Subject.
type Subject[T any] struct {
	emitMu sync.Mutex

	mu     sync.Mutex
	value  T
	nextID int
	subs   map[int]func(T)
	closed bool
}

func NewSubject[T any](initial T) *Subject[T] {
	return &Subject[T]{
		value: initial,
		subs:  make(map[int]func(T)),
	}
}

// Value returns the latest value. Safe to call from inside a callback.
func (s *Subject[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Next stores v and delivers it to every subscriber. No-op after Close.
func (s *Subject[T]) Next(v T) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.value = v
	fns := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Subscribe registers fn and immediately calls it with the current value.
func (s *Subject[T]) Subscribe(fn func(T)) *Subscription {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return NewSubscription(nil)
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	current := s.value
	s.mu.Unlock()

	fn(current)

	return NewSubscription(func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	})
}

// Subscribers reports how many callbacks are registered.
func (s *Subject[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close drops every subscriber; later Next calls are ignored.
func (s *Subject[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = make(map[int]func(T))
}
