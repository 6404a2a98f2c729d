package observable

// Text is an observable string container addressed by character offsets.
type Text struct {
	value    string
	changed  Signal[TextChange]
	disposed bool
}

// NewText creates a Text seeded with value.
func NewText(value string) *Text {
	return &Text{value: value}
}

func (t *Text) Text() string { return t.value }
func (t *Text) Len() int     { return len(t.value) }

// Changed is the text's change-notification signal.
func (t *Text) Changed() *Signal[TextChange] { return &t.changed }

// SetText overwrites the full content. Setting an unchanged value is a
// silent no-op so redundant writes do not generate spurious events.
func (t *Text) SetText(value string) {
	if value == t.value {
		return
	}
	old := t.value
	t.value = value
	t.changed.Emit(TextChange{
		Kind:  TextSet,
		Start: 0,
		End:   len(old),
		Value: value,
	})
}

// Insert inserts text at offset i. Valid only while 0 <= i <= Len().
func (t *Text) Insert(i int, text string) {
	if text == "" {
		return
	}
	t.value = t.value[:i] + text + t.value[i:]
	t.changed.Emit(TextChange{
		Kind:  TextInsert,
		Start: i,
		End:   i + len(text),
		Value: text,
	})
}

// Remove deletes the span [start, end) and returns the removed text.
func (t *Text) Remove(start, end int) string {
	if start >= end {
		return ""
	}
	removed := t.value[start:end]
	t.value = t.value[:start] + t.value[end:]
	t.changed.Emit(TextChange{
		Kind:  TextRemove,
		Start: start,
		End:   end,
		Value: removed,
	})
	return removed
}

// Dispose drops all handlers. No events fire after Dispose.
func (t *Text) Dispose() {
	if t.disposed {
		return
	}
	t.disposed = true
	t.changed.disconnectAll()
	t.value = ""
}

func (t *Text) IsDisposed() bool { return t.disposed }
