package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/alimasry/go-collab-state/collab"
	"github.com/alimasry/go-collab-state/observable"
)

// SharedSequence mirrors a local observable sequence to a remote
// collaborative list. It implements observable.Sequence itself, so hosts
// can treat a shared sequence exactly like a local one.
//
// Attachment runs in the background. The branch point is acquire-or-create:
// when the key is absent from the document the local contents seed the
// remote list (creator); when it exists the remote contents overwrite the
// local ones (joiner). Mutations issued through the SharedSequence before
// readiness are deferred and replayed in order once the gate resolves;
// their return values are zero values until then.
type SharedSequence[T any] struct {
	local observable.Sequence[T]
	ser   Serializer[T]
	key   string
	gate  *gate

	mu        sync.Mutex
	list      collab.List
	offRemote func()
	offLocal  func()
	detached  bool

	// replaying is true while a remote event is being applied to the local
	// container, so the local-change hook does not submit it back out.
	// Containers are single event-loop objects; the flag is only ever read
	// on the goroutine that set it.
	replaying bool
}

// NewSharedSequence attaches local to the remote list registered under key
// in doc, creating it when absent. The returned sequence is usable
// immediately; wait on Ready before relying on remote state.
func NewSharedSequence[T any](ctx context.Context, doc collab.Document, key string, local observable.Sequence[T], ser Serializer[T]) *SharedSequence[T] {
	s := &SharedSequence[T]{
		local: local,
		ser:   ser,
		key:   key,
		gate:  newGate(),
	}
	s.offLocal = local.Changed().Connect(s.onLocalChange)
	go s.attach(ctx, doc)
	return s
}

// Ready is closed once the remote object exists and initial contents are
// reconciled, or attachment failed; check Err afterwards. It settles
// exactly once, possibly after Detach.
func (s *SharedSequence[T]) Ready() <-chan struct{} { return s.gate.Ready() }

// Err reports why attachment failed, nil before resolution and on success.
func (s *SharedSequence[T]) Err() error { return s.gate.Err() }

// Key is the object's name in the remote document's root namespace.
func (s *SharedSequence[T]) Key() string { return s.key }

func (s *SharedSequence[T]) attach(ctx context.Context, doc collab.Document) {
	s.gate.markAttaching()

	obj, ok := doc.Get(s.key)
	if !ok {
		list, err := s.create(ctx, doc)
		if err != nil {
			// The losing side of a concurrent create falls back to joining.
			if obj, retry := doc.Get(s.key); retry {
				s.join(obj)
				return
			}
			s.gate.resolve(fmt.Errorf("create list %q: %w", s.key, err))
			return
		}
		if !s.subscribe(list) {
			return
		}
		s.gate.resolve(nil)
		return
	}
	s.join(obj)
}

// create seeds a new remote list from the local contents. The local
// container is not mutated, so a failure leaves no partial state behind.
func (s *SharedSequence[T]) create(ctx context.Context, doc collab.Document) (collab.List, error) {
	seed := make([]json.RawMessage, s.local.Len())
	for i := range seed {
		data, err := s.ser.ToJSON(s.local.At(i))
		if err != nil {
			return nil, fmt.Errorf("serialize element %d: %w", i, err)
		}
		seed[i] = data
	}
	return doc.CreateList(ctx, s.key, seed)
}

// join overwrites the local contents from an existing remote list.
func (s *SharedSequence[T]) join(obj collab.Object) {
	list, ok := obj.(collab.List)
	if !ok {
		s.gate.resolve(fmt.Errorf("object %q is not a list", s.key))
		return
	}
	if !s.subscribe(list) {
		return
	}

	values := make([]T, 0, list.Len())
	for i, data := range list.Values() {
		value, err := s.ser.FromJSON(data)
		if err != nil {
			s.gate.resolve(fmt.Errorf("deserialize element %d of %q: %w", i, s.key, err))
			return
		}
		values = append(values, value)
	}

	s.replaying = true
	s.local.Clear()
	s.local.PushAll(values)
	s.replaying = false

	s.gate.resolve(nil)
}

// subscribe attaches the remote listener, unless the bridge was detached
// while attaching. Returns false when detached.
func (s *SharedSequence[T]) subscribe(list collab.List) bool {
	off := list.Subscribe(s.onRemoteEvent)
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		off()
		return false
	}
	s.list = list
	s.offRemote = off
	s.mu.Unlock()
	return true
}

// onRemoteEvent applies a peer mutation to the local container. Own echoes
// (IsLocal) are dropped; genuinely remote changes are applied with the
// replaying flag set so they are not submitted back to the store. Local
// observers still see the resulting change event.
func (s *SharedSequence[T]) onRemoteEvent(ev collab.ListEvent) {
	if ev.IsLocal {
		return
	}
	values := make([]T, len(ev.Values))
	for i, data := range ev.Values {
		value, err := s.ser.FromJSON(data)
		if err != nil {
			log.Printf("bridge: drop remote %s on %q: %v", ev.Kind, s.key, err)
			return
		}
		values[i] = value
	}

	s.replaying = true
	defer func() { s.replaying = false }()

	switch ev.Kind {
	case collab.ListPush:
		s.local.PushAll(values)
	case collab.ListInsert:
		s.local.InsertAll(ev.Index, values)
	case collab.ListRemove:
		s.local.RemoveRange(ev.Index, ev.Index+len(ev.OldValues))
	case collab.ListSet:
		for i, value := range values {
			s.local.Set(ev.Index+i, value)
		}
	case collab.ListMove:
		s.local.Move(ev.Index, ev.ToIndex)
	default:
		log.Printf("bridge: unknown remote list event %q on %q", ev.Kind, s.key)
	}
}

// onLocalChange translates a locally-authored change into one remote
// operation. Changes made while replaying a remote event are skipped (they
// are remote-authored); changes made before readiness are skipped too, as
// reconciliation accounts for them (the creator's seed includes them, the
// joiner's overwrite supersedes them).
func (s *SharedSequence[T]) onLocalChange(c observable.SequenceChange[T]) {
	if s.replaying || !s.gate.isReady() {
		return
	}

	ctx := context.Background()
	var err error
	switch c.Kind {
	case observable.SequenceAdd:
		var values []json.RawMessage
		if values, err = s.serialize(c.NewValues); err == nil {
			if c.NewIndex+len(c.NewValues) == s.local.Len() {
				err = s.list.Push(ctx, values...)
			} else {
				err = s.list.Insert(ctx, c.NewIndex, values...)
			}
		}
	case observable.SequenceRemove:
		err = s.list.Remove(ctx, c.OldIndex, len(c.OldValues))
	case observable.SequenceSet:
		var values []json.RawMessage
		if values, err = s.serialize(c.NewValues); err == nil {
			err = s.list.Set(ctx, c.OldIndex, values...)
		}
	case observable.SequenceMove:
		err = s.list.Move(ctx, c.OldIndex, c.NewIndex)
	}
	if err != nil {
		log.Printf("bridge: submit %s on %q: %v", c.Kind, s.key, err)
	}
}

func (s *SharedSequence[T]) serialize(values []T) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(values))
	for i, value := range values {
		data, err := s.ser.ToJSON(value)
		if err != nil {
			return nil, fmt.Errorf("serialize element: %w", err)
		}
		out[i] = data
	}
	return out, nil
}

// Detach stops synchronization in both directions and leaves the local
// container intact and usable standalone. The readiness channel may settle
// after Detach; deferred mutations are dropped.
func (s *SharedSequence[T]) Detach() {
	s.gate.dispose()
	s.mu.Lock()
	off := s.offRemote
	s.offRemote = nil
	s.detached = true
	s.mu.Unlock()
	if off != nil {
		off()
	}
	if s.offLocal != nil {
		s.offLocal()
		s.offLocal = nil
	}
}

// Sequence contract. Reads always reflect the local mirror; mutators issued
// before readiness are deferred (returning zero values) and replayed in
// order once the remote object exists.

func (s *SharedSequence[T]) Len() int                                          { return s.local.Len() }
func (s *SharedSequence[T]) IsEmpty() bool                                     { return s.local.IsEmpty() }
func (s *SharedSequence[T]) At(i int) T                                        { return s.local.At(i) }
func (s *SharedSequence[T]) Front() T                                          { return s.local.Front() }
func (s *SharedSequence[T]) Back() T                                           { return s.local.Back() }
func (s *SharedSequence[T]) Changed() *observable.Signal[observable.SequenceChange[T]] { return s.local.Changed() }
func (s *SharedSequence[T]) IsDisposed() bool                                  { return s.local.IsDisposed() }

func (s *SharedSequence[T]) Set(i int, value T) {
	s.gate.enqueue(func() { s.local.Set(i, value) })
}

func (s *SharedSequence[T]) PushBack(value T) int {
	if s.gate.isReady() {
		return s.local.PushBack(value)
	}
	s.gate.enqueue(func() { s.local.PushBack(value) })
	return 0
}

func (s *SharedSequence[T]) PopBack() T {
	if s.gate.isReady() {
		return s.local.PopBack()
	}
	var zero T
	s.gate.enqueue(func() { s.local.PopBack() })
	return zero
}

func (s *SharedSequence[T]) Insert(i int, value T) {
	s.gate.enqueue(func() { s.local.Insert(i, value) })
}

func (s *SharedSequence[T]) RemoveAt(i int) T {
	if s.gate.isReady() {
		return s.local.RemoveAt(i)
	}
	var zero T
	s.gate.enqueue(func() { s.local.RemoveAt(i) })
	return zero
}

func (s *SharedSequence[T]) Remove(value T) int {
	if s.gate.isReady() {
		return s.local.Remove(value)
	}
	s.gate.enqueue(func() { s.local.Remove(value) })
	return -1
}

func (s *SharedSequence[T]) Move(from, to int) {
	s.gate.enqueue(func() { s.local.Move(from, to) })
}

func (s *SharedSequence[T]) Clear() {
	s.gate.enqueue(func() { s.local.Clear() })
}

func (s *SharedSequence[T]) PushAll(values []T) int {
	if s.gate.isReady() {
		return s.local.PushAll(values)
	}
	s.gate.enqueue(func() { s.local.PushAll(values) })
	return 0
}

func (s *SharedSequence[T]) InsertAll(i int, values []T) {
	s.gate.enqueue(func() { s.local.InsertAll(i, values) })
}

func (s *SharedSequence[T]) RemoveRange(start, end int) int {
	if s.gate.isReady() {
		return s.local.RemoveRange(start, end)
	}
	s.gate.enqueue(func() { s.local.RemoveRange(start, end) })
	return 0
}

// Dispose detaches the bridge and disposes the local container. Use Detach
// to stop synchronization while keeping the container usable.
func (s *SharedSequence[T]) Dispose() {
	s.Detach()
	s.local.Dispose()
}
