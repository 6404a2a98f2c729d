package bridge

import (
	"testing"

	"github.com/alimasry/go-collab-state/collab"
	"github.com/alimasry/go-collab-state/observable"
)

func TestSharedText_CreatorSeedsRemote(t *testing.T) {
	docA, docB := newSharedDocHandles(t)

	shared := NewSharedText(ctx(), docA, "source", observable.NewText("print(1)"))
	waitReady(t, shared)
	defer shared.Detach()

	obj, ok := docB.Get("source")
	if !ok {
		t.Fatal("remote string not registered")
	}
	if got := obj.(collab.String).Text(); got != "print(1)" {
		t.Errorf("remote seed = %q, want %q", got, "print(1)")
	}
}

func TestSharedText_JoinerPullsRemote(t *testing.T) {
	docA, docB := newSharedDocHandles(t)

	creator := NewSharedText(ctx(), docA, "source", observable.NewText("authoritative"))
	waitReady(t, creator)
	defer creator.Detach()

	local := observable.NewText("stale")
	joiner := NewSharedText(ctx(), docB, "source", local)
	waitReady(t, joiner)
	defer joiner.Detach()

	if local.Text() != "authoritative" {
		t.Errorf("joiner text = %q, want %q", local.Text(), "authoritative")
	}
}

func TestSharedText_EditsConvergeWithoutEcho(t *testing.T) {
	docA, docB := newSharedDocHandles(t)

	a := NewSharedText(ctx(), docA, "source", observable.NewText(""))
	waitReady(t, a)
	defer a.Detach()
	b := NewSharedText(ctx(), docB, "source", observable.NewText(""))
	waitReady(t, b)
	defer b.Detach()

	var aEvents, bEvents int
	a.Changed().Connect(func(observable.TextChange) { aEvents++ })
	b.Changed().Connect(func(observable.TextChange) { bEvents++ })

	a.Insert(0, "hello")
	b.Insert(5, " world")
	a.Remove(0, 1)

	if a.Text() != b.Text() {
		t.Errorf("peers diverged: a=%q b=%q", a.Text(), b.Text())
	}
	if a.Text() != "ello world" {
		t.Errorf("text = %q, want %q", a.Text(), "ello world")
	}
	// Three edits, three events per peer: no echoes, no duplication.
	if aEvents != 3 || bEvents != 3 {
		t.Errorf("events = %d/%d, want 3/3", aEvents, bEvents)
	}
}

func TestSharedText_SetTextPropagates(t *testing.T) {
	docA, docB := newSharedDocHandles(t)

	a := NewSharedText(ctx(), docA, "source", observable.NewText("old"))
	waitReady(t, a)
	defer a.Detach()
	b := NewSharedText(ctx(), docB, "source", observable.NewText(""))
	waitReady(t, b)
	defer b.Detach()

	a.SetText("new content")
	if b.Text() != "new content" {
		t.Errorf("b text = %q, want %q", b.Text(), "new content")
	}
}
