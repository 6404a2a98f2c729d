package observable

// UndoableVector is a Vector with an undo/redo journal. Every change the
// vector emits while recording is enabled becomes an undo batch; compound
// operations group several changes into a single batch so one Undo reverts
// them all. Replaying a batch suppresses recording so undoing never records
// itself.
//
// The journal depth is unbounded; callers with long-lived documents should
// call ClearUndo when rebasing onto a different backing store.
type UndoableVector[T any] struct {
	*Vector[T]

	stack  [][]SequenceChange[T]
	cursor int

	inCompound        bool
	hasCompoundChange bool
	isUndoable        bool

	disconnect func()
}

// NewUndoableVector creates an undo-capable vector seeded with values.
func NewUndoableVector[T any](values ...T) *UndoableVector[T] {
	u := &UndoableVector[T]{
		Vector:     NewVector(values...),
		cursor:     -1,
		isUndoable: true,
	}
	u.disconnect = u.Changed().Connect(u.record)
	return u
}

func (u *UndoableVector[T]) CanUndo() bool { return u.cursor >= 0 }
func (u *UndoableVector[T]) CanRedo() bool { return u.cursor < len(u.stack)-1 }

// InCompoundOperation reports whether a compound operation is open.
func (u *UndoableVector[T]) InCompoundOperation() bool { return u.inCompound }

// BeginCompoundOperation starts grouping subsequent changes into one undo
// unit. Pass undoable=false to make the whole group invisible to the
// journal (e.g. when loading content that should not be undoable).
func (u *UndoableVector[T]) BeginCompoundOperation(undoable bool) {
	u.inCompound = true
	u.hasCompoundChange = false
	u.isUndoable = undoable
}

// EndCompoundOperation closes the open group. An empty group is discarded.
func (u *UndoableVector[T]) EndCompoundOperation() {
	if u.inCompound && u.hasCompoundChange {
		u.cursor++
	}
	u.inCompound = false
	u.hasCompoundChange = false
	u.isUndoable = true
}

// Undo reverts the batch at the cursor. A silent no-op when there is
// nothing to undo.
func (u *UndoableVector[T]) Undo() {
	if !u.CanUndo() {
		return
	}
	batch := u.stack[u.cursor]
	u.replay(func() {
		for i := len(batch) - 1; i >= 0; i-- {
			u.invert(batch[i])
		}
	})
	u.cursor--
}

// Redo re-applies the batch past the cursor. A silent no-op when there is
// nothing to redo.
func (u *UndoableVector[T]) Redo() {
	if !u.CanRedo() {
		return
	}
	batch := u.stack[u.cursor+1]
	u.replay(func() {
		for _, c := range batch {
			u.apply(c)
		}
	})
	u.cursor++
}

// ClearUndo empties the journal. Used after a rebase, e.g. when a bridge
// overwrites the contents from a remote document.
func (u *UndoableVector[T]) ClearUndo() {
	u.stack = nil
	u.cursor = -1
}

// Dispose closes any open compound operation, stops recording and disposes
// the underlying vector.
func (u *UndoableVector[T]) Dispose() {
	if u.IsDisposed() {
		return
	}
	if u.inCompound {
		u.EndCompoundOperation()
	}
	u.disconnect()
	u.stack = nil
	u.cursor = -1
	u.Vector.Dispose()
}

func (u *UndoableVector[T]) record(c SequenceChange[T]) {
	if !u.isUndoable {
		return
	}
	if u.inCompound {
		if !u.hasCompoundChange {
			u.stack = append(u.stack[:u.cursor+1], []SequenceChange[T]{})
			u.hasCompoundChange = true
		}
		u.stack[u.cursor+1] = append(u.stack[u.cursor+1], c)
		return
	}
	u.stack = append(u.stack[:u.cursor+1], []SequenceChange[T]{c})
	u.cursor++
}

// replay runs fn with recording suppressed.
func (u *UndoableVector[T]) replay(fn func()) {
	prev := u.isUndoable
	u.isUndoable = false
	fn()
	u.isUndoable = prev
}

// invert applies the inverse of a recorded change.
func (u *UndoableVector[T]) invert(c SequenceChange[T]) {
	switch c.Kind {
	case SequenceAdd:
		u.RemoveRange(c.NewIndex, c.NewIndex+len(c.NewValues))
	case SequenceRemove:
		u.InsertAll(c.OldIndex, c.OldValues)
	case SequenceSet:
		for i, old := range c.OldValues {
			u.Set(c.OldIndex+i, old)
		}
	case SequenceMove:
		u.Move(c.NewIndex, c.OldIndex)
	}
}

// apply re-applies a recorded change as issued.
func (u *UndoableVector[T]) apply(c SequenceChange[T]) {
	switch c.Kind {
	case SequenceAdd:
		u.InsertAll(c.NewIndex, c.NewValues)
	case SequenceRemove:
		u.RemoveRange(c.OldIndex, c.OldIndex+len(c.OldValues))
	case SequenceSet:
		for i, value := range c.NewValues {
			u.Set(c.OldIndex+i, value)
		}
	case SequenceMove:
		u.Move(c.OldIndex, c.NewIndex)
	}
}
