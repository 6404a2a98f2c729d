package observable

import (
	"fmt"
	"reflect"
	"sort"
)

// Map is an observable string-keyed container. Insertion order is not
// preserved; Keys returns keys sorted for deterministic iteration.
type Map[T any] struct {
	items    map[string]T
	changed  Signal[MapChange[T]]
	disposed bool
}

// NewMap creates an empty Map.
func NewMap[T any]() *Map[T] {
	return &Map[T]{items: make(map[string]T)}
}

func (m *Map[T]) Len() int { return len(m.items) }

func (m *Map[T]) Has(key string) bool {
	_, ok := m.items[key]
	return ok
}

func (m *Map[T]) Get(key string) (T, bool) {
	v, ok := m.items[key]
	return v, ok
}

func (m *Map[T]) Keys() []string {
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Changed is the map's change-notification signal.
func (m *Map[T]) Changed() *Signal[MapChange[T]] { return &m.changed }

// Set stores value under key and returns the previous value, if any.
// Storing a nil value is a programmer error (use Delete); storing a value
// deep-equal to the current one is a silent no-op.
func (m *Map[T]) Set(key string, value T) (T, bool) {
	if isNil(value) {
		panic(fmt.Sprintf("observable: Set(%q) with nil value, use Delete", key))
	}
	old, existed := m.items[key]
	if existed && reflect.DeepEqual(old, value) {
		return old, true
	}
	m.items[key] = value
	kind := MapAdd
	if existed {
		kind = MapChanged
	}
	m.changed.Emit(MapChange[T]{
		Kind:     kind,
		Key:      key,
		OldValue: old,
		NewValue: value,
	})
	return old, existed
}

// Delete removes key and returns the removed value. Deleting an absent key
// is a silent no-op.
func (m *Map[T]) Delete(key string) (T, bool) {
	old, existed := m.items[key]
	if !existed {
		var zero T
		return zero, false
	}
	delete(m.items, key)
	m.changed.Emit(MapChange[T]{
		Kind:     MapRemove,
		Key:      key,
		OldValue: old,
	})
	return old, true
}

// Clear removes every key, emitting one remove change per key.
func (m *Map[T]) Clear() {
	for _, key := range m.Keys() {
		m.Delete(key)
	}
}

// Dispose drops all handlers and releases the backing map.
func (m *Map[T]) Dispose() {
	if m.disposed {
		return
	}
	m.disposed = true
	m.changed.disconnectAll()
	m.items = nil
}

func (m *Map[T]) IsDisposed() bool { return m.disposed }

// isNil reports whether value is a nil pointer, map, slice, interface, chan
// or func. Non-nilable types are never nil.
func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
