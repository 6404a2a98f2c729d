// Package collab defines the boundary to a remote collaborative store: a
// document holding named shared objects (lists of JSON values, strings) that
// several clients mutate concurrently. Every inbound event carries an
// IsLocal flag so a consumer can tell its own echoes from peer changes.
//
// The interfaces are deliberately narrow: only the capabilities the
// synchronization bridge actually calls. Implementations: MemoryBackend
// (in-process, shared state between handles) and client.Backend (websocket
// relay).
package collab

import (
	"context"
	"encoding/json"
)

// ListOpKind identifies a structural list operation.
type ListOpKind string

const (
	ListPush   ListOpKind = "push"
	ListInsert ListOpKind = "insert"
	ListRemove ListOpKind = "remove"
	ListSet    ListOpKind = "set"
	ListMove   ListOpKind = "move"
)

// ListOp is the wire form of one list mutation. Values are opaque JSON so
// the store never depends on element types.
type ListOp struct {
	Kind    ListOpKind        `json:"kind"`
	Index   int               `json:"index"`
	ToIndex int               `json:"toIndex,omitempty"`
	Count   int               `json:"count,omitempty"`
	Values  []json.RawMessage `json:"values,omitempty"`
}

// TextOpKind identifies a text operation.
type TextOpKind string

const (
	TextOpInsert TextOpKind = "insert"
	TextOpRemove TextOpKind = "remove"
	TextOpSet    TextOpKind = "set"
)

// TextOp is the wire form of one string mutation.
type TextOp struct {
	Kind  TextOpKind `json:"kind"`
	Start int        `json:"start"`
	End   int        `json:"end,omitempty"`
	Value string     `json:"value,omitempty"`
}

// Op is one mutation of a named object inside a document. Exactly one of
// Create, List and Text is set.
type Op struct {
	Object string    `json:"object"`
	Create *CreateOp `json:"create,omitempty"`
	List   *ListOp   `json:"list,omitempty"`
	Text   *TextOp   `json:"text,omitempty"`
}

// ListEvent describes one applied list mutation. OldValues holds the
// removed or overwritten run so a consumer can reconstruct the change
// without reading back the list.
type ListEvent struct {
	Kind      ListOpKind
	Index     int
	ToIndex   int
	Values    []json.RawMessage
	OldValues []json.RawMessage
	IsLocal   bool
}

// TextEvent describes one applied string mutation. For remove, Value is the
// removed text; for set, Value is the full new content.
type TextEvent struct {
	Kind    TextOpKind
	Start   int
	End     int
	Value   string
	IsLocal bool
}

// Backend creates and loads collaborative documents.
type Backend interface {
	CreateDocument(ctx context.Context) (string, error)
	LoadDocument(ctx context.Context, id string) (Document, error)
}

// Document is one loaded handle onto a collaborative document. Multiple
// handles (across processes or within one) observe the same state. Closing
// a handle detaches its subscriptions; the document itself persists.
type Document interface {
	ID() string
	// Get looks up a shared object registered under key.
	Get(key string) (Object, bool)
	// CreateList creates and registers a list seeded with values. It fails
	// if key is already registered.
	CreateList(ctx context.Context, key string, seed []json.RawMessage) (List, error)
	// CreateString creates and registers a string seeded with text.
	CreateString(ctx context.Context, key string, seed string) (String, error)
	Close() error
}

// Object is a shared object registered in a document's root namespace.
type Object interface {
	Key() string
}

// List is a shared ordered collection of JSON values.
type List interface {
	Object
	Len() int
	Values() []json.RawMessage
	Push(ctx context.Context, values ...json.RawMessage) error
	Insert(ctx context.Context, i int, values ...json.RawMessage) error
	Remove(ctx context.Context, i, count int) error
	Set(ctx context.Context, i int, values ...json.RawMessage) error
	Move(ctx context.Context, from, to int) error
	// Subscribe registers fn for every applied mutation, own writes
	// included (IsLocal true). It returns a function that unsubscribes.
	Subscribe(fn func(ListEvent)) func()
}

// String is a shared text object.
type String interface {
	Object
	Text() string
	InsertText(ctx context.Context, i int, text string) error
	RemoveText(ctx context.Context, start, end int) error
	SetText(ctx context.Context, text string) error
	Subscribe(fn func(TextEvent)) func()
}
