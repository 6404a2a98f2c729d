package observable

import "sync"

// Signal is a change-notification channel. Handlers run synchronously, in
// connection order, before the mutating call that emitted the value returns.
type Signal[T any] struct {
	mu       sync.Mutex
	handlers []handler[T]
	nextID   int
}

type handler[T any] struct {
	id int
	fn func(T)
}

// Connect registers fn and returns a function that disconnects it.
// Disconnecting twice is harmless.
func (s *Signal[T]) Connect(fn func(T)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers = append(s.handlers, handler[T]{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, h := range s.handlers {
			if h.id == id {
				s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers v to every connected handler. Handlers connected or
// disconnected while Emit runs take effect on the next emission.
func (s *Signal[T]) Emit(v T) {
	s.mu.Lock()
	snapshot := make([]handler[T], len(s.handlers))
	copy(snapshot, s.handlers)
	s.mu.Unlock()

	for _, h := range snapshot {
		h.fn(v)
	}
}

// disconnectAll drops every handler. Used by container Dispose so no events
// fire after disposal.
func (s *Signal[T]) disconnectAll() {
	s.mu.Lock()
	s.handlers = nil
	s.mu.Unlock()
}
