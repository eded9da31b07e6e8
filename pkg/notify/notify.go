// Package notify provides a typed publish/subscribe primitive
package notify

import (
	"slices"
	"sync"
)

// Disposable is returned by Subscribe; Dispose removes the subscription
type Disposable interface {
	Dispose()
}

type subscriber[T any] struct {
	id      uint64
	handler func(T)
}

// Emitter delivers payloads of type T to registered handlers, synchronously
// and in registration order. Publish dispatches over a snapshot of the
// handler list, so handlers added or removed during a publish do not affect
// the dispatch in progress. The zero value is ready to use.
type Emitter[T any] struct {
	mu          sync.Mutex
	nextID      uint64
	subscribers []subscriber[T]
}

// Subscribe registers handler and returns its disposable token
func (e *Emitter[T]) Subscribe(handler func(T)) Disposable {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.subscribers = append(e.subscribers, subscriber[T]{id: id, handler: handler})

	return &subscription[T]{emitter: e, id: id}
}

// Publish invokes every registered handler with payload
func (e *Emitter[T]) Publish(payload T) {
	e.mu.Lock()
	snapshot := make([]subscriber[T], len(e.subscribers))
	copy(snapshot, e.subscribers)
	e.mu.Unlock()

	for _, s := range snapshot {
		s.handler(payload)
	}
}

// Len returns the number of registered handlers
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subscribers)
}

// Clear removes every handler
func (e *Emitter[T]) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = nil
}

func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, s := range e.subscribers {
		if s.id == id {
			e.subscribers = slices.Delete(e.subscribers, i, i+1)
			return
		}
	}
}

type subscription[T any] struct {
	once    sync.Once
	emitter *Emitter[T]
	id      uint64
}

// Dispose removes the handler; later calls are no-ops
func (s *subscription[T]) Dispose() {
	s.once.Do(func() {
		s.emitter.remove(s.id)
	})
}

// DisposeFunc adapts a function to Disposable
type DisposeFunc func()

// Dispose calls f
func (f DisposeFunc) Dispose() {
	f()
}

// Group disposes several subscriptions together
type Group []Disposable

// Dispose disposes every member of the group
func (g Group) Dispose() {
	for _, d := range g {
		if d != nil {
			d.Dispose()
		}
	}
}
