package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alimasry/go-collab-state/collab"
	"github.com/alimasry/go-collab-state/store"
)

func setupTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	st := store.NewMemoryStore()
	hub := NewHub(st)
	go hub.Run()
	handler := NewHandler(hub)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, hub
}

func wsConnect(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWsMsg(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func TestHandler_HelloOnConnect(t *testing.T) {
	server, _ := setupTestServer(t)

	conn := wsConnect(t, server)
	hello := readWsMsg(t, conn)
	if hello.Type != MsgHello {
		t.Fatalf("expected hello, got %q", hello.Type)
	}
	if hello.ClientID == "" {
		t.Error("hello message has no client id")
	}
}

func TestHandler_TwoClientsCollaborate(t *testing.T) {
	server, _ := setupTestServer(t)

	conn1 := wsConnect(t, server)
	conn2 := wsConnect(t, server)

	hello1 := readWsMsg(t, conn1)
	readWsMsg(t, conn2) // hello

	// c1 creates a document.
	conn1.WriteJSON(ClientMessage{Type: MsgCreate, Seq: 1})
	created := readWsMsg(t, conn1)
	if created.Type != MsgCreated {
		t.Fatalf("expected created, got %q", created.Type)
	}
	docID := created.DocID

	// Both load it.
	conn1.WriteJSON(ClientMessage{Type: MsgLoad, Seq: 2, DocID: docID})
	if doc := readWsMsg(t, conn1); doc.Type != MsgDoc {
		t.Fatalf("c1 expected doc, got %q", doc.Type)
	}
	conn2.WriteJSON(ClientMessage{Type: MsgLoad, Seq: 1, DocID: docID})
	if doc := readWsMsg(t, conn2); doc.Type != MsgDoc {
		t.Fatalf("c2 expected doc, got %q", doc.Type)
	}

	// c1 registers a string object.
	op := collab.Op{Object: "source", Create: &collab.CreateOp{Kind: "string", Text: "hi"}}
	conn1.WriteJSON(ClientMessage{Type: MsgOp, DocID: docID, Op: &op})

	// Both clients receive the broadcast, tagged with c1's id.
	for i, conn := range []*websocket.Conn{conn1, conn2} {
		msg := readWsMsg(t, conn)
		if msg.Type != MsgOp {
			t.Fatalf("conn%d: expected op, got %q", i+1, msg.Type)
		}
		if msg.Origin != hello1.ClientID {
			t.Errorf("conn%d: origin = %q, want %q", i+1, msg.Origin, hello1.ClientID)
		}
		if msg.Op == nil || msg.Op.Create == nil || msg.Op.Create.Text != "hi" {
			t.Errorf("conn%d: unexpected op: %+v", i+1, msg.Op)
		}
	}
}

func TestHandler_OpBeforeLoadRejected(t *testing.T) {
	server, _ := setupTestServer(t)

	conn := wsConnect(t, server)
	readWsMsg(t, conn) // hello

	op := collab.Op{Object: "source", Create: &collab.CreateOp{Kind: "string"}}
	conn.WriteJSON(ClientMessage{Type: MsgOp, Op: &op})

	msg := readWsMsg(t, conn)
	if msg.Type != MsgError {
		t.Fatalf("expected error, got %q", msg.Type)
	}
}

func TestHandler_ListDocuments(t *testing.T) {
	server, _ := setupTestServer(t)

	conn := wsConnect(t, server)
	readWsMsg(t, conn) // hello
	conn.WriteJSON(ClientMessage{Type: MsgCreate, Seq: 1})
	created := readWsMsg(t, conn)

	resp, err := http.Get(server.URL + "/documents")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}

	var entries []struct {
		ID      string `json:"id"`
		Version int    `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != created.DocID {
		t.Errorf("entries = %+v, want one entry for %q", entries, created.DocID)
	}
}
