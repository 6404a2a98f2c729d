package store

import (
	"context"
	"time"

	"github.com/alimasry/go-collab-state/collab"
)

// DocumentInfo holds collaborative document metadata and its latest
// materialized snapshot.
type DocumentInfo struct {
	ID        string
	Snapshot  []byte // collab.DocState snapshot
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentStore abstracts persistence for collaborative documents: the
// current snapshot plus the ordered op log, so a restarted relay can replay
// the ops a snapshot write missed.
// Implementations: MemoryStore, FirestoreStore, CachedStore.
type DocumentStore interface {
	Create(ctx context.Context, id string, snapshot []byte) error
	Get(ctx context.Context, id string) (*DocumentInfo, error)
	List(ctx context.Context) ([]DocumentInfo, error)
	UpdateSnapshot(ctx context.Context, id string, snapshot []byte, version int) error
	AppendOp(ctx context.Context, id string, op collab.Op, version int) error
	Ops(ctx context.Context, id string, fromVersion int) ([]collab.Op, error)
}
