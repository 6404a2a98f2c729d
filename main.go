package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/alimasry/go-collab-state/server"
	"github.com/alimasry/go-collab-state/store"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	firestoreProject := flag.String("firestore-project", "", "GCP project for Firestore persistence (empty = in-memory)")
	flushInterval := flag.Duration("flush", 5*time.Second, "write-back flush interval for the Firestore cache")
	flag.Parse()

	var docStore store.DocumentStore
	if *firestoreProject != "" {
		client, err := firestore.NewClient(context.Background(), *firestoreProject)
		if err != nil {
			log.Fatalf("firestore client: %v", err)
		}
		defer client.Close()

		cached := store.NewCachedStore(store.NewFirestoreStore(client), *flushInterval)
		defer cached.Close()
		docStore = cached
		log.Printf("Using Firestore persistence (project %s)", *firestoreProject)
	} else {
		docStore = store.NewMemoryStore()
		log.Print("Using in-memory persistence")
	}

	hub := server.NewHub(docStore)
	go hub.Run()

	handler := server.NewHandler(hub)

	log.Printf("Starting server on %s", *addr)
	if err := http.ListenAndServe(*addr, handler); err != nil {
		log.Fatal(err)
	}
}
