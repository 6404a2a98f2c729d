package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alimasry/go-collab-state/collab"
)

// FirestoreStore is a Firestore-backed implementation of DocumentStore.
// Snapshots live on the document itself; the op log is a subcollection with
// zero-padded ids so lexical order matches version order.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore creates a new FirestoreStore using the given Firestore client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client:     client,
		collection: "documents",
	}
}

func (s *FirestoreStore) docRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func (s *FirestoreStore) opsCollection(docID string) *firestore.CollectionRef {
	return s.docRef(docID).Collection("ops")
}

func zeroPad(version int) string {
	return fmt.Sprintf("%010d", version)
}

func (s *FirestoreStore) Create(ctx context.Context, id string, snapshot []byte) error {
	now := time.Now()
	_, err := s.docRef(id).Create(ctx, map[string]interface{}{
		"snapshot":  string(snapshot),
		"version":   0,
		"createdAt": now,
		"updatedAt": now,
	})
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("document %q already exists", id)
	}
	return err
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (*DocumentInfo, error) {
	snap, err := s.docRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("document %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	return snapshotToDocInfo(id, snap)
}

func snapshotToDocInfo(id string, snap *firestore.DocumentSnapshot) (*DocumentInfo, error) {
	data := snap.Data()
	content, _ := data["snapshot"].(string)
	version, _ := data["version"].(int64)
	createdAt, _ := data["createdAt"].(time.Time)
	updatedAt, _ := data["updatedAt"].(time.Time)
	return &DocumentInfo{
		ID:        id,
		Snapshot:  []byte(content),
		Version:   int(version),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func (s *FirestoreStore) List(ctx context.Context) ([]DocumentInfo, error) {
	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()

	var result []DocumentInfo
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		info, err := snapshotToDocInfo(snap.Ref.ID, snap)
		if err != nil {
			return nil, err
		}
		result = append(result, *info)
	}
	return result, nil
}

func (s *FirestoreStore) UpdateSnapshot(ctx context.Context, id string, snapshot []byte, version int) error {
	_, err := s.docRef(id).Update(ctx, []firestore.Update{
		{Path: "snapshot", Value: string(snapshot)},
		{Path: "version", Value: version},
		{Path: "updatedAt", Value: time.Now()},
	})
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("document %q not found", id)
	}
	return err
}

func (s *FirestoreStore) AppendOp(ctx context.Context, id string, op collab.Op, version int) error {
	encoded, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("encode op: %w", err)
	}

	// Store with 0-based index: version 1 -> index 0, matching MemoryStore's
	// op slice semantics where Ops(fromVersion) returns ops[fromVersion:].
	index := version - 1
	_, err = s.opsCollection(id).Doc(zeroPad(index)).Set(ctx, map[string]interface{}{
		"op":      string(encoded),
		"version": version,
	})
	return err
}

func (s *FirestoreStore) Ops(ctx context.Context, id string, fromVersion int) ([]collab.Op, error) {
	// Verify document exists.
	_, err := s.docRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("document %q not found", id)
	}
	if err != nil {
		return nil, err
	}

	iter := s.opsCollection(id).
		OrderBy(firestore.DocumentID, firestore.Asc).
		StartAt(zeroPad(fromVersion)).
		Documents(ctx)
	defer iter.Stop()

	var ops []collab.Op
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		op, err := snapshotToOp(snap)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func snapshotToOp(snap *firestore.DocumentSnapshot) (collab.Op, error) {
	data := snap.Data()
	encoded, ok := data["op"].(string)
	if !ok {
		return collab.Op{}, fmt.Errorf("invalid op field in op record %s", snap.Ref.ID)
	}
	var op collab.Op
	if err := json.Unmarshal([]byte(encoded), &op); err != nil {
		return collab.Op{}, fmt.Errorf("decode op record %s: %w", snap.Ref.ID, err)
	}
	return op, nil
}
