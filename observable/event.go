// Package observable provides mutable containers (sequence, text, map) that
// emit exactly one change event per completed mutating call. The containers
// are the substrate for undo journaling and remote synchronization; observers
// see the same event shapes whether a container is local-only or mirrored to
// a collaborative store.
package observable

// SequenceChangeKind identifies the structural mutation a sequence performed.
type SequenceChangeKind string

const (
	SequenceAdd    SequenceChangeKind = "add"
	SequenceRemove SequenceChangeKind = "remove"
	SequenceSet    SequenceChangeKind = "set"
	SequenceMove   SequenceChangeKind = "move"
)

// SequenceChange describes one mutation of a sequence. Value slices are
// contiguous runs starting at the respective index. OldIndex is -1 for add,
// NewIndex is -1 for remove. Bulk operations produce a single change whose
// value slice holds every affected element.
type SequenceChange[T any] struct {
	Kind      SequenceChangeKind
	OldIndex  int
	NewIndex  int
	OldValues []T
	NewValues []T
}

// TextChangeKind identifies the mutation a text container performed.
type TextChangeKind string

const (
	TextInsert TextChangeKind = "insert"
	TextRemove TextChangeKind = "remove"
	TextSet    TextChangeKind = "set"
)

// TextChange describes one mutation of a text container. For insert, Start
// is the insertion offset and Value the inserted text. For remove, [Start,
// End) is the removed span and Value the removed text. For set, Value is the
// full new content.
type TextChange struct {
	Kind  TextChangeKind
	Start int
	End   int
	Value string
}

// MapChangeKind identifies the mutation a map container performed.
type MapChangeKind string

const (
	MapAdd     MapChangeKind = "add"
	MapRemove  MapChangeKind = "remove"
	MapChanged MapChangeKind = "change"
)

// MapChange describes one mutation of a map container.
type MapChange[T any] struct {
	Kind     MapChangeKind
	Key      string
	OldValue T
	NewValue T
}
