package bridge

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/alimasry/go-collab-state/collab"
	"github.com/alimasry/go-collab-state/observable"
)

// SharedText mirrors a local observable text to a remote collaborative
// string, with the same origin rules as SharedSequence: remote events are
// applied locally without re-submission, local edits are submitted exactly
// once, and edits issued before readiness are deferred.
type SharedText struct {
	local *observable.Text
	key   string
	gate  *gate

	mu        sync.Mutex
	str       collab.String
	offRemote func()
	offLocal  func()
	detached  bool

	replaying bool
}

// NewSharedText attaches local to the remote string registered under key in
// doc, creating it seeded with the local content when absent.
func NewSharedText(ctx context.Context, doc collab.Document, key string, local *observable.Text) *SharedText {
	t := &SharedText{
		local: local,
		key:   key,
		gate:  newGate(),
	}
	t.offLocal = local.Changed().Connect(t.onLocalChange)
	go t.attach(ctx, doc)
	return t
}

// Ready is closed once the remote string exists and initial content is
// reconciled, or attachment failed; check Err afterwards.
func (t *SharedText) Ready() <-chan struct{} { return t.gate.Ready() }

func (t *SharedText) Err() error { return t.gate.Err() }

func (t *SharedText) Key() string { return t.key }

func (t *SharedText) attach(ctx context.Context, doc collab.Document) {
	t.gate.markAttaching()

	obj, ok := doc.Get(t.key)
	if !ok {
		str, err := doc.CreateString(ctx, t.key, t.local.Text())
		if err != nil {
			if obj, retry := doc.Get(t.key); retry {
				t.join(obj)
				return
			}
			t.gate.resolve(fmt.Errorf("create string %q: %w", t.key, err))
			return
		}
		if !t.subscribe(str) {
			return
		}
		t.gate.resolve(nil)
		return
	}
	t.join(obj)
}

func (t *SharedText) join(obj collab.Object) {
	str, ok := obj.(collab.String)
	if !ok {
		t.gate.resolve(fmt.Errorf("object %q is not a string", t.key))
		return
	}
	if !t.subscribe(str) {
		return
	}

	t.replaying = true
	t.local.SetText(str.Text())
	t.replaying = false

	t.gate.resolve(nil)
}

func (t *SharedText) subscribe(str collab.String) bool {
	off := str.Subscribe(t.onRemoteEvent)
	t.mu.Lock()
	if t.detached {
		t.mu.Unlock()
		off()
		return false
	}
	t.str = str
	t.offRemote = off
	t.mu.Unlock()
	return true
}

func (t *SharedText) onRemoteEvent(ev collab.TextEvent) {
	if ev.IsLocal {
		return
	}
	t.replaying = true
	defer func() { t.replaying = false }()

	switch ev.Kind {
	case collab.TextOpInsert:
		t.local.Insert(ev.Start, ev.Value)
	case collab.TextOpRemove:
		t.local.Remove(ev.Start, ev.End)
	case collab.TextOpSet:
		t.local.SetText(ev.Value)
	default:
		log.Printf("bridge: unknown remote text event %q on %q", ev.Kind, t.key)
	}
}

func (t *SharedText) onLocalChange(c observable.TextChange) {
	if t.replaying || !t.gate.isReady() {
		return
	}

	ctx := context.Background()
	var err error
	switch c.Kind {
	case observable.TextInsert:
		err = t.str.InsertText(ctx, c.Start, c.Value)
	case observable.TextRemove:
		err = t.str.RemoveText(ctx, c.Start, c.End)
	case observable.TextSet:
		err = t.str.SetText(ctx, c.Value)
	}
	if err != nil {
		log.Printf("bridge: submit %s on %q: %v", c.Kind, t.key, err)
	}
}

// Text reads the local mirror.
func (t *SharedText) Text() string { return t.local.Text() }

func (t *SharedText) Len() int { return t.local.Len() }

// Changed is the underlying text's change signal; observers see local and
// remote-originated changes alike.
func (t *SharedText) Changed() *observable.Signal[observable.TextChange] { return t.local.Changed() }

// SetText overwrites the content. Deferred until ready.
func (t *SharedText) SetText(value string) {
	t.gate.enqueue(func() { t.local.SetText(value) })
}

// Insert inserts text at offset i. Deferred until ready.
func (t *SharedText) Insert(i int, text string) {
	t.gate.enqueue(func() { t.local.Insert(i, text) })
}

// Remove deletes [start, end). Deferred until ready, returning "" then.
func (t *SharedText) Remove(start, end int) string {
	if t.gate.isReady() {
		return t.local.Remove(start, end)
	}
	t.gate.enqueue(func() { t.local.Remove(start, end) })
	return ""
}

// Detach stops synchronization and leaves the local text usable standalone.
func (t *SharedText) Detach() {
	t.gate.dispose()
	t.mu.Lock()
	off := t.offRemote
	t.offRemote = nil
	t.detached = true
	t.mu.Unlock()
	if off != nil {
		off()
	}
	if t.offLocal != nil {
		t.offLocal()
		t.offLocal = nil
	}
}

// Dispose detaches and disposes the local text.
func (t *SharedText) Dispose() {
	t.Detach()
	t.local.Dispose()
}

func (t *SharedText) IsDisposed() bool { return t.local.IsDisposed() }
