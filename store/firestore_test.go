package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/alimasry/go-collab-state/collab"
)

func testFirestoreClient(t *testing.T) *firestore.Client {
	t.Helper()
	projectID := os.Getenv("FIRESTORE_PROJECT")
	if projectID == "" {
		t.Skip("FIRESTORE_PROJECT not set, skipping Firestore tests")
	}
	client, err := firestore.NewClient(context.Background(), projectID)
	if err != nil {
		t.Fatalf("failed to create Firestore client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// uniqueDocID returns a unique document ID for test isolation.
func uniqueDocID(t *testing.T) string {
	return fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano())
}

// cleanupDoc deletes a document and its ops subcollection.
func cleanupDoc(t *testing.T, s *FirestoreStore, docID string) {
	t.Helper()
	ctx := context.Background()

	ops := s.opsCollection(docID).Documents(ctx)
	for {
		snap, err := ops.Next()
		if err != nil {
			break
		}
		snap.Ref.Delete(ctx)
	}

	s.docRef(docID).Delete(ctx)
}

func TestFirestoreStore_CreateAndGet(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	docID := uniqueDocID(t)
	t.Cleanup(func() { cleanupDoc(t, s, docID) })

	if err := s.Create(ctx, docID, []byte(`{"strings":{"source":"hello"}}`)); err != nil {
		t.Fatal(err)
	}

	info, err := s.Get(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	if string(info.Snapshot) != `{"strings":{"source":"hello"}}` || info.Version != 0 || info.ID != docID {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestFirestoreStore_CreateDuplicate(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	docID := uniqueDocID(t)
	t.Cleanup(func() { cleanupDoc(t, s, docID) })

	s.Create(ctx, docID, nil)
	if err := s.Create(ctx, docID, nil); err == nil {
		t.Error("expected error for duplicate create")
	}
}

func TestFirestoreStore_GetNotFound(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	_, err := s.Get(context.Background(), "nonexistent-doc-xyz")
	if err == nil {
		t.Error("expected error for missing document")
	}
}

func TestFirestoreStore_UpdateSnapshot(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	docID := uniqueDocID(t)
	t.Cleanup(func() { cleanupDoc(t, s, docID) })

	s.Create(ctx, docID, nil)
	if err := s.UpdateSnapshot(ctx, docID, []byte(`{"lists":{"cells":[]}}`), 1); err != nil {
		t.Fatal(err)
	}

	info, _ := s.Get(ctx, docID)
	if string(info.Snapshot) != `{"lists":{"cells":[]}}` || info.Version != 1 {
		t.Errorf("unexpected: snapshot=%q version=%d", info.Snapshot, info.Version)
	}
}

func TestFirestoreStore_Ops(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	docID := uniqueDocID(t)
	t.Cleanup(func() { cleanupDoc(t, s, docID) })

	s.Create(ctx, docID, nil)

	if err := s.AppendOp(ctx, docID, pushOp("cells", "a"), 1); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendOp(ctx, docID, pushOp("cells", "b"), 2); err != nil {
		t.Fatal(err)
	}

	// Get all ops.
	ops, err := s.Ops(ctx, docID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 2 {
		t.Fatalf("got %d ops, want 2", len(ops))
	}
	if ops[0].List == nil || ops[0].List.Kind != collab.ListPush {
		t.Errorf("unexpected op: %+v", ops[0])
	}

	// Get ops from version 1 (skip the first op).
	ops, err = s.Ops(ctx, docID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 {
		t.Fatalf("got %d ops, want 1", len(ops))
	}
}

func TestFirestoreStore_OpsNotFound(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	_, err := s.Ops(context.Background(), "nonexistent-doc-xyz", 0)
	if err == nil {
		t.Error("expected error for missing document")
	}
}
