// Package bridge keeps a local observable container and a remote
// collaborative object consistent. A shared container behaves exactly like
// its local counterpart (same interface, same change events) while mirroring
// every mutation to the remote store and applying every peer mutation
// locally, without echoing either back to its origin.
//
// Bridges follow the single event-loop model of the containers they wrap:
// local mutations are synchronous, remote events arrive as callbacks, and a
// mutation is attributed to exactly one origin and propagated only in the
// opposite direction.
package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Serializer converts sequence elements to and from plain JSON values.
// Every element type stored in a shared sequence needs one.
type Serializer[T any] interface {
	ToJSON(value T) (json.RawMessage, error)
	FromJSON(data json.RawMessage) (T, error)
}

type jsonSerializer[T any] struct{}

func (jsonSerializer[T]) ToJSON(value T) (json.RawMessage, error) {
	return json.Marshal(value)
}

func (jsonSerializer[T]) FromJSON(data json.RawMessage) (T, error) {
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("deserialize element: %w", err)
	}
	return value, nil
}

// JSONSerializer returns a Serializer backed by encoding/json, sufficient
// for element types that marshal naturally.
func JSONSerializer[T any]() Serializer[T] { return jsonSerializer[T]{} }

// gateState is the bridge lifecycle.
type gateState int

const (
	gateUninitialized gateState = iota
	gateAttaching               // creating or loading the remote object
	gateReady
	gateDisposed
)

// gate is the single-resolution readiness signal. It resolves exactly once:
// either ready (after the remote object exists and initial content is
// reconciled) or failed. Work enqueued before resolution runs, in order,
// right after a successful resolution.
type gate struct {
	mu       sync.Mutex
	state    gateState
	resolved bool
	done     chan struct{}
	err      error
	pending  []func()
}

func newGate() *gate {
	return &gate{done: make(chan struct{})}
}

// Ready is closed once the gate resolves, successfully or not. Check Err
// after it closes.
func (g *gate) Ready() <-chan struct{} { return g.done }

func (g *gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

func (g *gate) isReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == gateReady
}

// enqueue runs fn now when ready, otherwise defers it until resolution.
// Deferred work is dropped if the gate fails or the bridge is disposed.
func (g *gate) enqueue(fn func()) {
	g.mu.Lock()
	if g.state == gateReady {
		g.mu.Unlock()
		fn()
		return
	}
	if g.state == gateDisposed {
		g.mu.Unlock()
		return
	}
	g.pending = append(g.pending, fn)
	g.mu.Unlock()
}

// resolve settles the gate. On success the deferred work runs in order;
// on failure it is dropped. Resolving twice is a no-op so a late attach
// result cannot reopen a disposed gate.
func (g *gate) resolve(err error) {
	g.mu.Lock()
	if g.resolved {
		g.mu.Unlock()
		return
	}
	g.resolved = true
	disposed := g.state == gateDisposed
	if err == nil && !disposed {
		g.state = gateReady
	}
	g.err = err
	pending := g.pending
	g.pending = nil
	close(g.done)
	g.mu.Unlock()

	if err == nil && !disposed {
		for _, fn := range pending {
			fn()
		}
	}
}

// dispose moves the gate to its terminal state. The readiness channel may
// still settle afterwards; enqueued work is dropped either way.
func (g *gate) dispose() {
	g.mu.Lock()
	g.state = gateDisposed
	g.pending = nil
	g.mu.Unlock()
}

func (g *gate) markAttaching() {
	g.mu.Lock()
	if g.state == gateUninitialized {
		g.state = gateAttaching
	}
	g.mu.Unlock()
}
