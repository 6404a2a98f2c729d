package collab

import (
	"encoding/json"
	"fmt"
)

// CreateOp registers a new shared object under Op.Object.
type CreateOp struct {
	Kind   string            `json:"kind"` // "list" or "string"
	Values []json.RawMessage `json:"values,omitempty"`
	Text   string            `json:"text,omitempty"`
}

// DocState is the materialized contents of a document: every registered
// list and string keyed by object name. It is the single place where ops
// are validated and applied, shared by the relay server, the client-side
// mirror and the in-memory backend. The zero value is not usable; call
// NewDocState.
type DocState struct {
	Lists   map[string][]json.RawMessage `json:"lists"`
	Strings map[string]string            `json:"strings"`
}

// NewDocState creates an empty document state.
func NewDocState() *DocState {
	return &DocState{
		Lists:   make(map[string][]json.RawMessage),
		Strings: make(map[string]string),
	}
}

// DecodeDocState unmarshals a snapshot produced by Snapshot.
func DecodeDocState(data []byte) (*DocState, error) {
	s := NewDocState()
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode document snapshot: %w", err)
	}
	if s.Lists == nil {
		s.Lists = make(map[string][]json.RawMessage)
	}
	if s.Strings == nil {
		s.Strings = make(map[string]string)
	}
	return s, nil
}

// Snapshot serializes the full state for persistence or initial delivery.
func (s *DocState) Snapshot() ([]byte, error) {
	return json.Marshal(s)
}

// Has reports whether an object is registered under key, and its kind.
func (s *DocState) Has(key string) (kind string, ok bool) {
	if _, ok := s.Lists[key]; ok {
		return "list", true
	}
	if _, ok := s.Strings[key]; ok {
		return "string", true
	}
	return "", false
}

// ApplyCreate registers the object described by op. It fails if the key is
// already taken, which is how the creator-vs-joiner race resolves: the
// losing peer gets an error and loads the existing object instead.
func (s *DocState) ApplyCreate(key string, op CreateOp) error {
	if kind, ok := s.Has(key); ok {
		return fmt.Errorf("object %q already exists as %s", key, kind)
	}
	switch op.Kind {
	case "list":
		s.Lists[key] = append([]json.RawMessage(nil), op.Values...)
	case "string":
		s.Strings[key] = op.Text
	default:
		return fmt.Errorf("unknown object kind %q", op.Kind)
	}
	return nil
}

// ApplyList applies a list op to the object at key and returns the event
// describing it (IsLocal unset). Remote data is validated, never trusted:
// a malformed index is an error, not a panic.
func (s *DocState) ApplyList(key string, op ListOp) (ListEvent, error) {
	values, ok := s.Lists[key]
	if !ok {
		return ListEvent{}, fmt.Errorf("list %q not found", key)
	}
	n := len(values)

	switch op.Kind {
	case ListPush:
		s.Lists[key] = append(values, op.Values...)
		return ListEvent{Kind: ListPush, Index: n, Values: op.Values}, nil

	case ListInsert:
		if op.Index < 0 || op.Index > n {
			return ListEvent{}, fmt.Errorf("list %q: insert index %d out of range [0,%d]", key, op.Index, n)
		}
		out := make([]json.RawMessage, 0, n+len(op.Values))
		out = append(out, values[:op.Index]...)
		out = append(out, op.Values...)
		out = append(out, values[op.Index:]...)
		s.Lists[key] = out
		return ListEvent{Kind: ListInsert, Index: op.Index, Values: op.Values}, nil

	case ListRemove:
		count := op.Count
		if count <= 0 {
			count = 1
		}
		if op.Index < 0 || op.Index+count > n {
			return ListEvent{}, fmt.Errorf("list %q: remove [%d,%d) out of range [0,%d)", key, op.Index, op.Index+count, n)
		}
		old := append([]json.RawMessage(nil), values[op.Index:op.Index+count]...)
		s.Lists[key] = append(values[:op.Index], values[op.Index+count:]...)
		return ListEvent{Kind: ListRemove, Index: op.Index, OldValues: old}, nil

	case ListSet:
		if op.Index < 0 || op.Index+len(op.Values) > n {
			return ListEvent{}, fmt.Errorf("list %q: set [%d,%d) out of range [0,%d)", key, op.Index, op.Index+len(op.Values), n)
		}
		old := append([]json.RawMessage(nil), values[op.Index:op.Index+len(op.Values)]...)
		copy(values[op.Index:], op.Values)
		return ListEvent{Kind: ListSet, Index: op.Index, Values: op.Values, OldValues: old}, nil

	case ListMove:
		if op.Index < 0 || op.Index >= n || op.ToIndex < 0 || op.ToIndex >= n {
			return ListEvent{}, fmt.Errorf("list %q: move %d -> %d out of range [0,%d)", key, op.Index, op.ToIndex, n)
		}
		moved := values[op.Index]
		values = append(values[:op.Index], values[op.Index+1:]...)
		out := make([]json.RawMessage, 0, n)
		out = append(out, values[:op.ToIndex]...)
		out = append(out, moved)
		out = append(out, values[op.ToIndex:]...)
		s.Lists[key] = out
		return ListEvent{Kind: ListMove, Index: op.Index, ToIndex: op.ToIndex, Values: []json.RawMessage{moved}}, nil
	}
	return ListEvent{}, fmt.Errorf("list %q: unknown op kind %q", key, op.Kind)
}

// ApplyText applies a text op to the string at key.
func (s *DocState) ApplyText(key string, op TextOp) (TextEvent, error) {
	text, ok := s.Strings[key]
	if !ok {
		return TextEvent{}, fmt.Errorf("string %q not found", key)
	}
	n := len(text)

	switch op.Kind {
	case TextOpInsert:
		if op.Start < 0 || op.Start > n {
			return TextEvent{}, fmt.Errorf("string %q: insert offset %d out of range [0,%d]", key, op.Start, n)
		}
		s.Strings[key] = text[:op.Start] + op.Value + text[op.Start:]
		return TextEvent{Kind: TextOpInsert, Start: op.Start, End: op.Start + len(op.Value), Value: op.Value}, nil

	case TextOpRemove:
		if op.Start < 0 || op.End < op.Start || op.End > n {
			return TextEvent{}, fmt.Errorf("string %q: remove [%d,%d) out of range [0,%d)", key, op.Start, op.End, n)
		}
		removed := text[op.Start:op.End]
		s.Strings[key] = text[:op.Start] + text[op.End:]
		return TextEvent{Kind: TextOpRemove, Start: op.Start, End: op.End, Value: removed}, nil

	case TextOpSet:
		s.Strings[key] = op.Value
		return TextEvent{Kind: TextOpSet, Start: 0, End: n, Value: op.Value}, nil
	}
	return TextEvent{}, fmt.Errorf("string %q: unknown op kind %q", key, op.Kind)
}

// Apply dispatches an op to the right object.
func (s *DocState) Apply(op Op) (listEv *ListEvent, textEv *TextEvent, err error) {
	switch {
	case op.Create != nil:
		return nil, nil, s.ApplyCreate(op.Object, *op.Create)
	case op.List != nil:
		ev, err := s.ApplyList(op.Object, *op.List)
		if err != nil {
			return nil, nil, err
		}
		return &ev, nil, nil
	case op.Text != nil:
		ev, err := s.ApplyText(op.Object, *op.Text)
		if err != nil {
			return nil, nil, err
		}
		return nil, &ev, nil
	}
	return nil, nil, fmt.Errorf("op for %q has no body", op.Object)
}
