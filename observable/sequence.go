package observable

import "reflect"

// Sequence is the contract shared by every ordered observable container.
// There are two implementations: Vector (local slice-backed) and the
// bridge-backed shared sequence, which mirrors a remote collaborative list.
// Callers program against this interface so a container can be swapped for
// its synchronized counterpart without code changes.
//
// Positional arguments must be valid indices; out-of-range access panics as
// slice indexing does. Validation belongs to the caller, which keeps the hot
// path cheap.
type Sequence[T any] interface {
	Len() int
	IsEmpty() bool
	At(i int) T
	Front() T
	Back() T

	Set(i int, value T)
	PushBack(value T) int
	PopBack() T
	Insert(i int, value T)
	RemoveAt(i int) T
	// Remove deletes the first element equal to value. It returns the index
	// removed, or -1 (emitting nothing) when no element matches.
	Remove(value T) int
	Move(from, to int)
	Clear()
	PushAll(values []T) int
	InsertAll(i int, values []T)
	// RemoveRange deletes [start, end) and returns the new length.
	RemoveRange(start, end int) int

	Changed() *Signal[SequenceChange[T]]
	Dispose()
	IsDisposed() bool
}

// Vector is the local, slice-backed Sequence implementation.
type Vector[T any] struct {
	items   []T
	eq      func(a, b T) bool
	changed Signal[SequenceChange[T]]
	disposed bool
}

// NewVector creates a Vector seeded with values. Remove matches elements
// with reflect.DeepEqual; use NewVectorEq to supply a cheaper comparator.
func NewVector[T any](values ...T) *Vector[T] {
	return NewVectorEq(func(a, b T) bool {
		return reflect.DeepEqual(a, b)
	}, values...)
}

// NewVectorEq creates a Vector with a caller-supplied equality comparator.
func NewVectorEq[T any](eq func(a, b T) bool, values ...T) *Vector[T] {
	items := make([]T, len(values))
	copy(items, values)
	return &Vector[T]{items: items, eq: eq}
}

func (v *Vector[T]) Len() int      { return len(v.items) }
func (v *Vector[T]) IsEmpty() bool { return len(v.items) == 0 }
func (v *Vector[T]) At(i int) T    { return v.items[i] }
func (v *Vector[T]) Front() T      { return v.items[0] }
func (v *Vector[T]) Back() T       { return v.items[len(v.items)-1] }

// Changed is the sequence's change-notification signal. Exactly one change
// is emitted per completed mutating call, after the structural change.
func (v *Vector[T]) Changed() *Signal[SequenceChange[T]] { return &v.changed }

func (v *Vector[T]) Set(i int, value T) {
	old := v.items[i]
	v.items[i] = value
	v.changed.Emit(SequenceChange[T]{
		Kind:      SequenceSet,
		OldIndex:  i,
		NewIndex:  i,
		OldValues: []T{old},
		NewValues: []T{value},
	})
}

func (v *Vector[T]) PushBack(value T) int {
	v.items = append(v.items, value)
	n := len(v.items)
	v.changed.Emit(SequenceChange[T]{
		Kind:      SequenceAdd,
		OldIndex:  -1,
		NewIndex:  n - 1,
		NewValues: []T{value},
	})
	return n
}

func (v *Vector[T]) PopBack() T {
	i := len(v.items) - 1
	value := v.items[i]
	v.items = v.items[:i]
	v.changed.Emit(SequenceChange[T]{
		Kind:      SequenceRemove,
		OldIndex:  i,
		NewIndex:  -1,
		OldValues: []T{value},
	})
	return value
}

func (v *Vector[T]) Insert(i int, value T) {
	v.insertAt(i, []T{value})
	v.changed.Emit(SequenceChange[T]{
		Kind:      SequenceAdd,
		OldIndex:  -1,
		NewIndex:  i,
		NewValues: []T{value},
	})
}

func (v *Vector[T]) RemoveAt(i int) T {
	value := v.items[i]
	v.items = append(v.items[:i], v.items[i+1:]...)
	v.changed.Emit(SequenceChange[T]{
		Kind:      SequenceRemove,
		OldIndex:  i,
		NewIndex:  -1,
		OldValues: []T{value},
	})
	return value
}

func (v *Vector[T]) Remove(value T) int {
	for i, item := range v.items {
		if v.eq(item, value) {
			v.RemoveAt(i)
			return i
		}
	}
	return -1
}

// Move relocates the element at from to to. Structurally it is a remove
// followed by an insert, but observers see a single move change carrying the
// value unchanged.
func (v *Vector[T]) Move(from, to int) {
	value := v.items[from]
	v.items = append(v.items[:from], v.items[from+1:]...)
	v.insertAt(to, []T{value})
	v.changed.Emit(SequenceChange[T]{
		Kind:      SequenceMove,
		OldIndex:  from,
		NewIndex:  to,
		OldValues: []T{value},
		NewValues: []T{value},
	})
}

// Clear removes every element, reported as one remove change holding the
// full old contents. Clearing an empty vector emits nothing.
func (v *Vector[T]) Clear() {
	if len(v.items) == 0 {
		return
	}
	old := v.items
	v.items = nil
	v.changed.Emit(SequenceChange[T]{
		Kind:      SequenceRemove,
		OldIndex:  0,
		NewIndex:  -1,
		OldValues: old,
	})
}

func (v *Vector[T]) PushAll(values []T) int {
	if len(values) == 0 {
		return len(v.items)
	}
	start := len(v.items)
	v.items = append(v.items, values...)
	v.changed.Emit(SequenceChange[T]{
		Kind:      SequenceAdd,
		OldIndex:  -1,
		NewIndex:  start,
		NewValues: append([]T(nil), values...),
	})
	return len(v.items)
}

func (v *Vector[T]) InsertAll(i int, values []T) {
	if len(values) == 0 {
		return
	}
	v.insertAt(i, values)
	v.changed.Emit(SequenceChange[T]{
		Kind:      SequenceAdd,
		OldIndex:  -1,
		NewIndex:  i,
		NewValues: append([]T(nil), values...),
	})
}

func (v *Vector[T]) RemoveRange(start, end int) int {
	if start >= end {
		return len(v.items)
	}
	old := append([]T(nil), v.items[start:end]...)
	v.items = append(v.items[:start], v.items[end:]...)
	v.changed.Emit(SequenceChange[T]{
		Kind:      SequenceRemove,
		OldIndex:  start,
		NewIndex:  -1,
		OldValues: old,
	})
	return len(v.items)
}

// Dispose drops all handlers and releases the backing slice. No events fire
// after Dispose; further mutation of a disposed vector is a programmer error.
func (v *Vector[T]) Dispose() {
	if v.disposed {
		return
	}
	v.disposed = true
	v.changed.disconnectAll()
	v.items = nil
}

func (v *Vector[T]) IsDisposed() bool { return v.disposed }

func (v *Vector[T]) insertAt(i int, values []T) {
	v.items = append(v.items, values...)
	copy(v.items[i+len(values):], v.items[i:])
	copy(v.items[i:], values)
}
