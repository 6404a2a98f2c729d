package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
)

// MemoryBackend is an in-process Backend. Every handle loaded from the same
// document id shares one underlying state; a write through any handle is
// delivered synchronously to every subscriber, with IsLocal true only on
// the handle that issued it. It backs tests and single-process use, and is
// the reference implementation of the event contract.
type MemoryBackend struct {
	mu   sync.Mutex
	docs map[string]*sharedDoc
}

// NewMemoryBackend creates an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string]*sharedDoc)}
}

func (b *MemoryBackend) CreateDocument(_ context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := ulid.Make().String()
	b.docs[id] = newSharedDoc(id)
	return id, nil
}

func (b *MemoryBackend) LoadDocument(_ context.Context, id string) (Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok := b.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %q not found", id)
	}
	return &memoryHandle{doc: doc}, nil
}

// sharedDoc is the state shared by every handle of one document.
type sharedDoc struct {
	mu       sync.Mutex
	id       string
	state    *DocState
	nextSub  int
	listSubs map[string]map[int]*listSub
	textSubs map[string]map[int]*textSub
}

type listSub struct {
	owner *memoryHandle
	fn    func(ListEvent)
}

type textSub struct {
	owner *memoryHandle
	fn    func(TextEvent)
}

func newSharedDoc(id string) *sharedDoc {
	return &sharedDoc{
		id:       id,
		state:    NewDocState(),
		listSubs: make(map[string]map[int]*listSub),
		textSubs: make(map[string]map[int]*textSub),
	}
}

// apply runs op against the shared state and fans the resulting event out
// to every subscriber of the touched object. Dispatch happens outside the
// state lock so handlers may issue further writes.
func (d *sharedDoc) apply(origin *memoryHandle, op Op) error {
	d.mu.Lock()
	listEv, textEv, err := d.state.Apply(op)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	var lsubs []*listSub
	var tsubs []*textSub
	if listEv != nil {
		for _, s := range d.listSubs[op.Object] {
			lsubs = append(lsubs, s)
		}
	}
	if textEv != nil {
		for _, s := range d.textSubs[op.Object] {
			tsubs = append(tsubs, s)
		}
	}
	d.mu.Unlock()

	for _, s := range lsubs {
		ev := *listEv
		ev.IsLocal = s.owner == origin
		s.fn(ev)
	}
	for _, s := range tsubs {
		ev := *textEv
		ev.IsLocal = s.owner == origin
		s.fn(ev)
	}
	return nil
}

// memoryHandle is one client's view of a shared document.
type memoryHandle struct {
	doc    *sharedDoc
	mu     sync.Mutex
	closed bool
	subs   []func()
}

func (h *memoryHandle) ID() string { return h.doc.id }

func (h *memoryHandle) Get(key string) (Object, bool) {
	h.doc.mu.Lock()
	kind, ok := h.doc.state.Has(key)
	h.doc.mu.Unlock()
	if !ok {
		return nil, false
	}
	if kind == "list" {
		return &memoryList{h: h, key: key}, true
	}
	return &memoryString{h: h, key: key}, true
}

func (h *memoryHandle) CreateList(_ context.Context, key string, seed []json.RawMessage) (List, error) {
	op := Op{Object: key, Create: &CreateOp{Kind: "list", Values: seed}}
	if err := h.doc.apply(h, op); err != nil {
		return nil, err
	}
	return &memoryList{h: h, key: key}, nil
}

func (h *memoryHandle) CreateString(_ context.Context, key string, seed string) (String, error) {
	op := Op{Object: key, Create: &CreateOp{Kind: "string", Text: seed}}
	if err := h.doc.apply(h, op); err != nil {
		return nil, err
	}
	return &memoryString{h: h, key: key}, nil
}

// Close detaches every subscription made through this handle. The shared
// document keeps serving other handles.
func (h *memoryHandle) Close() error {
	h.mu.Lock()
	subs := h.subs
	h.subs = nil
	h.closed = true
	h.mu.Unlock()
	for _, off := range subs {
		off()
	}
	return nil
}

func (h *memoryHandle) track(off func()) {
	h.mu.Lock()
	h.subs = append(h.subs, off)
	h.mu.Unlock()
}

// memoryList is a handle-bound view of a shared list.
type memoryList struct {
	h   *memoryHandle
	key string
}

func (l *memoryList) Key() string { return l.key }

func (l *memoryList) Len() int {
	l.h.doc.mu.Lock()
	defer l.h.doc.mu.Unlock()
	return len(l.h.doc.state.Lists[l.key])
}

func (l *memoryList) Values() []json.RawMessage {
	l.h.doc.mu.Lock()
	defer l.h.doc.mu.Unlock()
	return append([]json.RawMessage(nil), l.h.doc.state.Lists[l.key]...)
}

func (l *memoryList) Push(_ context.Context, values ...json.RawMessage) error {
	return l.h.doc.apply(l.h, Op{Object: l.key, List: &ListOp{Kind: ListPush, Values: values}})
}

func (l *memoryList) Insert(_ context.Context, i int, values ...json.RawMessage) error {
	return l.h.doc.apply(l.h, Op{Object: l.key, List: &ListOp{Kind: ListInsert, Index: i, Values: values}})
}

func (l *memoryList) Remove(_ context.Context, i, count int) error {
	return l.h.doc.apply(l.h, Op{Object: l.key, List: &ListOp{Kind: ListRemove, Index: i, Count: count}})
}

func (l *memoryList) Set(_ context.Context, i int, values ...json.RawMessage) error {
	return l.h.doc.apply(l.h, Op{Object: l.key, List: &ListOp{Kind: ListSet, Index: i, Values: values}})
}

func (l *memoryList) Move(_ context.Context, from, to int) error {
	return l.h.doc.apply(l.h, Op{Object: l.key, List: &ListOp{Kind: ListMove, Index: from, ToIndex: to}})
}

func (l *memoryList) Subscribe(fn func(ListEvent)) func() {
	d := l.h.doc
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	if d.listSubs[l.key] == nil {
		d.listSubs[l.key] = make(map[int]*listSub)
	}
	d.listSubs[l.key][id] = &listSub{owner: l.h, fn: fn}
	d.mu.Unlock()

	off := func() {
		d.mu.Lock()
		delete(d.listSubs[l.key], id)
		d.mu.Unlock()
	}
	l.h.track(off)
	return off
}

// memoryString is a handle-bound view of a shared string.
type memoryString struct {
	h   *memoryHandle
	key string
}

func (s *memoryString) Key() string { return s.key }

func (s *memoryString) Text() string {
	s.h.doc.mu.Lock()
	defer s.h.doc.mu.Unlock()
	return s.h.doc.state.Strings[s.key]
}

func (s *memoryString) InsertText(_ context.Context, i int, text string) error {
	return s.h.doc.apply(s.h, Op{Object: s.key, Text: &TextOp{Kind: TextOpInsert, Start: i, Value: text}})
}

func (s *memoryString) RemoveText(_ context.Context, start, end int) error {
	return s.h.doc.apply(s.h, Op{Object: s.key, Text: &TextOp{Kind: TextOpRemove, Start: start, End: end}})
}

func (s *memoryString) SetText(_ context.Context, text string) error {
	return s.h.doc.apply(s.h, Op{Object: s.key, Text: &TextOp{Kind: TextOpSet, Value: text}})
}

func (s *memoryString) Subscribe(fn func(TextEvent)) func() {
	d := s.h.doc
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	if d.textSubs[s.key] == nil {
		d.textSubs[s.key] = make(map[int]*textSub)
	}
	d.textSubs[s.key][id] = &textSub{owner: s.h, fn: fn}
	d.mu.Unlock()

	off := func() {
		d.mu.Lock()
		delete(d.textSubs[s.key], id)
		d.mu.Unlock()
	}
	s.h.track(off)
	return off
}
