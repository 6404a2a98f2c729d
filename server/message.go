package server

import (
	"encoding/json"

	"github.com/alimasry/go-collab-state/collab"
)

// Message types exchanged over WebSocket.
const (
	MsgHello   = "hello"   // server -> client: assigned client id
	MsgCreate  = "create"  // client -> server: create a new document
	MsgCreated = "created" // server -> client: create succeeded
	MsgLoad    = "load"    // client -> server: load an existing document
	MsgDoc     = "doc"     // server -> client: full snapshot on load
	MsgOp      = "op"      // both directions: one document operation
	MsgError   = "error"
)

// ClientMessage is a message from client to server. Seq correlates a
// request with its reply.
type ClientMessage struct {
	Type  string     `json:"type"`
	Seq   int        `json:"seq,omitempty"`
	DocID string     `json:"docId,omitempty"`
	Op    *collab.Op `json:"op,omitempty"`
}

// ServerMessage is a message from server to client. Broadcast ops carry the
// origin client id so receivers can tell their own echoes from peer
// changes.
type ServerMessage struct {
	Type     string          `json:"type"`
	Seq      int             `json:"seq,omitempty"`
	DocID    string          `json:"docId,omitempty"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
	Revision int             `json:"revision,omitempty"`
	Op       *collab.Op      `json:"op,omitempty"`
	Origin   string          `json:"origin,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Encode serializes a ServerMessage to JSON bytes.
func (m ServerMessage) Encode() []byte {
	b, _ := json.Marshal(m)
	return b
}
