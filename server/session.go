package server

import (
	"context"
	"log"

	"github.com/alimasry/go-collab-state/collab"
	"github.com/alimasry/go-collab-state/store"
)

type opMessage struct {
	client *Client
	msg    ClientMessage
}

// Session manages collaboration for a single document. All operations are
// serialized through a single goroutine, which is what gives connected
// clients a total order over ops.
type Session struct {
	docID   string
	state   *collab.DocState
	version int
	store   store.DocumentStore
	clients map[*Client]bool

	incoming chan opMessage
	join     chan *Client
	leave    chan *Client
	stop     chan struct{}
}

func newSession(docID string, state *collab.DocState, version int, st store.DocumentStore) *Session {
	return &Session{
		docID:    docID,
		state:    state,
		version:  version,
		store:    st,
		clients:  make(map[*Client]bool),
		incoming: make(chan opMessage, 64),
		join:     make(chan *Client, 16),
		leave:    make(chan *Client, 16),
		stop:     make(chan struct{}),
	}
}

// Run is the session's main loop.
func (s *Session) Run() {
	for {
		select {
		case c := <-s.join:
			s.handleJoin(c)
		case c := <-s.leave:
			s.handleLeave(c)
		case om := <-s.incoming:
			s.handleOp(om)
		case <-s.stop:
			return
		}
	}
}

func (s *Session) handleJoin(c *Client) {
	s.clients[c] = true
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	snapshot, err := s.state.Snapshot()
	if err != nil {
		log.Printf("session %s: snapshot error: %v", s.docID, err)
		c.sendError("failed to snapshot document")
		return
	}

	// Send the current document state to the joining client.
	c.sendMsg(ServerMessage{
		Type:     MsgDoc,
		DocID:    s.docID,
		Snapshot: snapshot,
		Revision: s.version,
	})
}

func (s *Session) handleLeave(c *Client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	close(c.send)
}

func (s *Session) handleOp(om opMessage) {
	if om.msg.Op == nil {
		om.client.sendError("op message without op")
		return
	}

	// Apply to the authoritative state, in arrival order. Conflicting
	// concurrent edits are resolved by that order alone; there is no
	// operational transform here.
	if _, _, err := s.state.Apply(*om.msg.Op); err != nil {
		log.Printf("session %s: apply error: %v", s.docID, err)
		om.client.sendMsg(ServerMessage{
			Type:    MsgError,
			Seq:     om.msg.Seq,
			Message: "apply error: " + err.Error(),
		})
		return
	}
	s.version++

	// Persist.
	ctx := context.Background()
	if err := s.store.AppendOp(ctx, s.docID, *om.msg.Op, s.version); err != nil {
		log.Printf("session %s: persist op: %v", s.docID, err)
	}
	if snapshot, err := s.state.Snapshot(); err == nil {
		if err := s.store.UpdateSnapshot(ctx, s.docID, snapshot, s.version); err != nil {
			log.Printf("session %s: persist snapshot: %v", s.docID, err)
		}
	}

	// Broadcast to every client, the sender included: the sender applies
	// its own op when the echo arrives, so all clients observe the same
	// total order. The echo carries the sender's seq so it doubles as the
	// acknowledgement.
	for c := range s.clients {
		msg := ServerMessage{
			Type:     MsgOp,
			DocID:    s.docID,
			Revision: s.version,
			Op:       om.msg.Op,
			Origin:   om.client.ID,
		}
		if c == om.client {
			msg.Seq = om.msg.Seq
		}
		c.sendMsg(msg)
	}
}
