package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewHandler creates the HTTP handler with all routes.
func NewHandler(hub *Hub) http.Handler {
	mux := http.NewServeMux()

	// Document listing.
	mux.HandleFunc("/documents", func(w http.ResponseWriter, r *http.Request) {
		infos, err := hub.store.List(r.Context())
		if err != nil {
			log.Printf("list documents: %v", err)
			http.Error(w, "failed to list documents", http.StatusInternalServerError)
			return
		}
		type docEntry struct {
			ID      string `json:"id"`
			Version int    `json:"version"`
		}
		entries := make([]docEntry, 0, len(infos))
		for _, info := range infos {
			entries = append(entries, docEntry{ID: info.ID, Version: info.Version})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	})

	// WebSocket endpoint.
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade error: %v", err)
			return
		}
		client := newClient(hub, conn)
		go client.WritePump()
		go client.ReadPump()
	})

	return mux
}
