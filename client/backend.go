// Package client implements collab.Backend over a WebSocket connection to
// the relay server. Each loaded document owns one connection and keeps a
// local mirror of the document state: every broadcast op is applied to the
// mirror in server order, so all connected mirrors converge. Events carry
// IsLocal based on the origin id the server stamps on each broadcast.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/alimasry/go-collab-state/collab"
	"github.com/alimasry/go-collab-state/server"
)

// ErrClosed is returned by operations on a closed document.
var ErrClosed = errors.New("document closed")

// Backend connects to a relay server. The URL is the WebSocket endpoint,
// e.g. "ws://localhost:8080/ws".
type Backend struct {
	url string
}

func NewBackend(url string) *Backend {
	return &Backend{url: url}
}

// CreateDocument asks the server to create a new empty document and returns
// its id. The connection used for the request is not kept; call LoadDocument
// to start collaborating.
func (b *Backend) CreateDocument(ctx context.Context) (string, error) {
	conn, err := b.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if _, err := readHandshake(conn, server.MsgHello); err != nil {
		return "", err
	}
	if err := conn.WriteJSON(server.ClientMessage{Type: server.MsgCreate, Seq: 1}); err != nil {
		return "", fmt.Errorf("send create: %w", err)
	}
	msg, err := readHandshake(conn, server.MsgCreated)
	if err != nil {
		return "", err
	}
	return msg.DocID, nil
}

// LoadDocument connects to the server, joins the document and returns a
// handle mirroring its state.
func (b *Backend) LoadDocument(ctx context.Context, id string) (collab.Document, error) {
	conn, err := b.dial(ctx)
	if err != nil {
		return nil, err
	}

	hello, err := readHandshake(conn, server.MsgHello)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.WriteJSON(server.ClientMessage{Type: server.MsgLoad, Seq: 1, DocID: id}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send load: %w", err)
	}
	doc, err := readHandshake(conn, server.MsgDoc)
	if err != nil {
		conn.Close()
		return nil, err
	}
	state, err := collab.DecodeDocState(doc.Snapshot)
	if err != nil {
		conn.Close()
		return nil, err
	}

	d := &Document{
		id:       id,
		clientID: hello.ClientID,
		conn:     conn,
		state:    state,
		version:  doc.Revision,
		waiters:  make(map[int]chan error),
		listSubs: make(map[string]map[int]func(collab.ListEvent)),
		textSubs: make(map[string]map[int]func(collab.TextEvent)),
		nextSeq:  1, // 1 was the load request
		done:     make(chan struct{}),
	}
	go d.readLoop()
	return d, nil
}

func (b *Backend) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", b.url, err)
	}
	return conn, nil
}

// readHandshake reads messages until one of the wanted type arrives. An
// error message aborts the handshake.
func readHandshake(conn *websocket.Conn, want string) (server.ServerMessage, error) {
	for {
		var msg server.ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return server.ServerMessage{}, fmt.Errorf("read %s: %w", want, err)
		}
		switch msg.Type {
		case want:
			return msg, nil
		case server.MsgError:
			return server.ServerMessage{}, errors.New(msg.Message)
		}
	}
}

// Document is one client's handle onto a server-hosted document.
type Document struct {
	id       string
	clientID string
	conn     *websocket.Conn

	writeMu sync.Mutex // serializes conn writes

	mu       sync.Mutex
	state    *collab.DocState
	version  int
	nextSeq  int
	waiters  map[int]chan error
	listSubs map[string]map[int]func(collab.ListEvent)
	textSubs map[string]map[int]func(collab.TextEvent)
	nextSub  int
	closed   bool

	done chan struct{}
}

func (d *Document) ID() string { return d.id }

// Get looks up an object in the mirror. Objects created by peers become
// visible once their create op has been broadcast.
func (d *Document) Get(key string) (collab.Object, bool) {
	d.mu.Lock()
	kind, ok := d.state.Has(key)
	d.mu.Unlock()
	if !ok {
		return nil, false
	}
	switch kind {
	case "list":
		return &remoteList{doc: d, key: key}, true
	default:
		return &remoteString{doc: d, key: key}, true
	}
}

func (d *Document) CreateList(ctx context.Context, key string, seed []json.RawMessage) (collab.List, error) {
	d.mu.Lock()
	_, exists := d.state.Has(key)
	d.mu.Unlock()
	if exists {
		return nil, fmt.Errorf("object %q already exists", key)
	}
	op := collab.Op{Object: key, Create: &collab.CreateOp{Kind: "list", Values: seed}}
	if err := d.submit(ctx, op); err != nil {
		return nil, err
	}
	return &remoteList{doc: d, key: key}, nil
}

func (d *Document) CreateString(ctx context.Context, key string, seed string) (collab.String, error) {
	d.mu.Lock()
	_, exists := d.state.Has(key)
	d.mu.Unlock()
	if exists {
		return nil, fmt.Errorf("object %q already exists", key)
	}
	op := collab.Op{Object: key, Create: &collab.CreateOp{Kind: "string", Text: seed}}
	if err := d.submit(ctx, op); err != nil {
		return nil, err
	}
	return &remoteString{doc: d, key: key}, nil
}

// Close tears down the connection. Pending submissions fail.
func (d *Document) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()
	return d.conn.Close()
}

// submit sends one op and waits for the server's echo (success) or an error
// reply. The echo also applies the op to the mirror, so by the time submit
// returns the mirror reflects the mutation.
func (d *Document) submit(ctx context.Context, op collab.Op) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.nextSeq++
	seq := d.nextSeq
	ch := make(chan error, 1)
	d.waiters[seq] = ch
	d.mu.Unlock()

	msg := server.ClientMessage{Type: server.MsgOp, Seq: seq, DocID: d.id, Op: &op}
	d.writeMu.Lock()
	err := d.conn.WriteJSON(msg)
	d.writeMu.Unlock()
	if err != nil {
		d.dropWaiter(seq)
		return fmt.Errorf("send op: %w", err)
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		d.dropWaiter(seq)
		return ctx.Err()
	case <-d.done:
		return ErrClosed
	}
}

func (d *Document) dropWaiter(seq int) {
	d.mu.Lock()
	delete(d.waiters, seq)
	d.mu.Unlock()
}

func (d *Document) resolveWaiter(seq int, err error) {
	d.mu.Lock()
	ch, ok := d.waiters[seq]
	if ok {
		delete(d.waiters, seq)
	}
	d.mu.Unlock()
	if ok {
		ch <- err
	}
}

func (d *Document) readLoop() {
	defer func() {
		d.mu.Lock()
		waiters := d.waiters
		d.waiters = make(map[int]chan error)
		if !d.closed {
			d.closed = true
			close(d.done)
		}
		d.mu.Unlock()
		for _, ch := range waiters {
			ch <- ErrClosed
		}
	}()

	for {
		var msg server.ServerMessage
		if err := d.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case server.MsgOp:
			d.handleOp(msg)
		case server.MsgError:
			if msg.Seq != 0 {
				d.resolveWaiter(msg.Seq, errors.New(msg.Message))
			} else {
				log.Printf("client %s: server error: %s", d.clientID, msg.Message)
			}
		}
	}
}

// handleOp applies a broadcast op to the mirror and fans events out to
// subscribers. Ops arrive in server order, own ops included, which is what
// keeps every mirror identical.
func (d *Document) handleOp(msg server.ServerMessage) {
	if msg.Op == nil {
		return
	}

	d.mu.Lock()
	listEv, textEv, err := d.state.Apply(*msg.Op)
	if err != nil {
		d.mu.Unlock()
		log.Printf("client %s: mirror apply failed for %q: %v", d.clientID, msg.Op.Object, err)
		if msg.Seq != 0 {
			d.resolveWaiter(msg.Seq, err)
		}
		return
	}
	d.version = msg.Revision
	isLocal := msg.Origin == d.clientID

	var listFns []func(collab.ListEvent)
	var textFns []func(collab.TextEvent)
	if listEv != nil {
		for _, fn := range d.listSubs[msg.Op.Object] {
			listFns = append(listFns, fn)
		}
	}
	if textEv != nil {
		for _, fn := range d.textSubs[msg.Op.Object] {
			textFns = append(textFns, fn)
		}
	}
	d.mu.Unlock()

	if listEv != nil {
		listEv.IsLocal = isLocal
		for _, fn := range listFns {
			fn(*listEv)
		}
	}
	if textEv != nil {
		textEv.IsLocal = isLocal
		for _, fn := range textFns {
			fn(*textEv)
		}
	}

	// Resolve after dispatch so the submitter observes its own event before
	// the call returns.
	if msg.Seq != 0 {
		d.resolveWaiter(msg.Seq, nil)
	}
}

func (d *Document) subscribeList(key string, fn func(collab.ListEvent)) func() {
	d.mu.Lock()
	d.nextSub++
	id := d.nextSub
	if d.listSubs[key] == nil {
		d.listSubs[key] = make(map[int]func(collab.ListEvent))
	}
	d.listSubs[key][id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.listSubs[key], id)
		d.mu.Unlock()
	}
}

func (d *Document) subscribeText(key string, fn func(collab.TextEvent)) func() {
	d.mu.Lock()
	d.nextSub++
	id := d.nextSub
	if d.textSubs[key] == nil {
		d.textSubs[key] = make(map[int]func(collab.TextEvent))
	}
	d.textSubs[key][id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.textSubs[key], id)
		d.mu.Unlock()
	}
}
