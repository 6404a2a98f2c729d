package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alimasry/go-collab-state/collab"
)

func pushOp(object, value string) collab.Op {
	data, _ := json.Marshal(value)
	return collab.Op{
		Object: object,
		List:   &collab.ListOp{Kind: collab.ListPush, Values: []json.RawMessage{data}},
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Create(ctx, "doc1", []byte(`{"lists":{"cells":[]}}`)); err != nil {
		t.Fatal(err)
	}

	info, err := s.Get(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if string(info.Snapshot) != `{"lists":{"cells":[]}}` || info.Version != 0 || info.ID != "doc1" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Create(ctx, "doc1", nil)
	if err := s.Create(ctx, "doc1", nil); err == nil {
		t.Error("expected error for duplicate create")
	}
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "nope")
	if err == nil {
		t.Error("expected error for missing document")
	}
}

func TestMemoryStore_List(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Create(ctx, "a", nil)
	s.Create(ctx, "b", nil)
	s.Create(ctx, "c", nil)

	docs, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Errorf("got %d docs, want 3", len(docs))
	}
}

func TestMemoryStore_UpdateSnapshot(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Create(ctx, "doc1", nil)
	if err := s.UpdateSnapshot(ctx, "doc1", []byte(`{"strings":{"source":"hi"}}`), 1); err != nil {
		t.Fatal(err)
	}

	info, _ := s.Get(ctx, "doc1")
	if string(info.Snapshot) != `{"strings":{"source":"hi"}}` || info.Version != 1 {
		t.Errorf("unexpected: snapshot=%q version=%d", info.Snapshot, info.Version)
	}
}

func TestMemoryStore_Ops(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Create(ctx, "doc1", nil)

	if err := s.AppendOp(ctx, "doc1", pushOp("cells", "a"), 1); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendOp(ctx, "doc1", pushOp("cells", "b"), 2); err != nil {
		t.Fatal(err)
	}

	// Get all ops.
	ops, err := s.Ops(ctx, "doc1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 2 {
		t.Fatalf("got %d ops, want 2", len(ops))
	}

	// Get ops from version 1.
	ops, err = s.Ops(ctx, "doc1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 {
		t.Fatalf("got %d ops, want 1", len(ops))
	}
	if ops[0].List == nil || ops[0].List.Kind != collab.ListPush {
		t.Errorf("unexpected op: %+v", ops[0])
	}
}

func TestMemoryStore_OpsNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Ops(context.Background(), "nope", 0)
	if err == nil {
		t.Error("expected error for missing document")
	}
}
