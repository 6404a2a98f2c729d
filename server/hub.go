package server

import (
	"context"
	"log"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/alimasry/go-collab-state/collab"
	"github.com/alimasry/go-collab-state/store"
)

type createRequest struct {
	client *Client
	seq    int
}

type loadRequest struct {
	client *Client
	seq    int
	docID  string
}

// Hub creates documents and routes clients to the right session.
type Hub struct {
	store    store.DocumentStore
	sessions map[string]*Session
	mu       sync.RWMutex

	createDoc chan createRequest
	loadDoc   chan loadRequest
}

func NewHub(st store.DocumentStore) *Hub {
	return &Hub{
		store:     st,
		sessions:  make(map[string]*Session),
		createDoc: make(chan createRequest, 64),
		loadDoc:   make(chan loadRequest, 64),
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case req := <-h.createDoc:
			h.handleCreateDoc(req)
		case req := <-h.loadDoc:
			h.handleLoadDoc(req)
		}
	}
}

func (h *Hub) handleCreateDoc(req createRequest) {
	docID := ulid.Make().String()
	state := collab.NewDocState()
	snapshot, _ := state.Snapshot()

	if err := h.store.Create(context.Background(), docID, snapshot); err != nil {
		log.Printf("hub: failed to create doc %q: %v", docID, err)
		req.client.sendMsg(ServerMessage{Type: MsgError, Seq: req.seq, Message: "failed to create document"})
		return
	}

	h.mu.Lock()
	s := newSession(docID, state, 0, h.store)
	h.sessions[docID] = s
	h.mu.Unlock()
	go s.Run()

	req.client.sendMsg(ServerMessage{
		Type:  MsgCreated,
		Seq:   req.seq,
		DocID: docID,
	})
}

func (h *Hub) handleLoadDoc(req loadRequest) {
	h.mu.Lock()
	s, ok := h.sessions[req.docID]
	if !ok {
		info, err := h.store.Get(context.Background(), req.docID)
		if err != nil {
			log.Printf("hub: failed to load doc %q: %v", req.docID, err)
			h.mu.Unlock()
			req.client.sendMsg(ServerMessage{Type: MsgError, Seq: req.seq, Message: "failed to load document"})
			return
		}
		state, err := collab.DecodeDocState(info.Snapshot)
		if err != nil {
			log.Printf("hub: corrupt snapshot for doc %q: %v", req.docID, err)
			h.mu.Unlock()
			req.client.sendMsg(ServerMessage{Type: MsgError, Seq: req.seq, Message: "failed to load document"})
			return
		}
		s = newSession(req.docID, state, info.Version, h.store)
		h.sessions[req.docID] = s
		go s.Run()
	}
	h.mu.Unlock()

	s.join <- req.client
}

// GetSession returns the session for a document, if active.
func (h *Hub) GetSession(docID string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[docID]
}
