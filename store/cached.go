package store

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/alimasry/go-collab-state/collab"
)

// dirtyState tracks what needs flushing for a single document.
type dirtyState struct {
	snapshotDirty bool // snapshot/version needs writing to the backing store
	flushedOps    int  // number of ops already flushed (index into the log)
	created       bool // doc created locally but not yet in the backing store
}

// CachedStore wraps a backing DocumentStore with an in-memory cache.
// All reads and writes are served from the cache. Dirty documents are
// flushed to the backing store periodically in the background.
type CachedStore struct {
	cache         *MemoryStore
	backing       DocumentStore
	mu            sync.Mutex
	dirty         map[string]*dirtyState
	flushInterval time.Duration
	stop          chan struct{}
	done          chan struct{}
}

// NewCachedStore creates a CachedStore that caches in memory and flushes
// dirty documents to the backing store every flushInterval.
func NewCachedStore(backing DocumentStore, flushInterval time.Duration) *CachedStore {
	cs := &CachedStore{
		cache:         NewMemoryStore(),
		backing:       backing,
		dirty:         make(map[string]*dirtyState),
		flushInterval: flushInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go cs.flushLoop()
	return cs
}

func (cs *CachedStore) Create(ctx context.Context, id string, snapshot []byte) error {
	if err := cs.cache.Create(ctx, id, snapshot); err != nil {
		return err
	}
	cs.mu.Lock()
	cs.dirty[id] = &dirtyState{snapshotDirty: true, created: true}
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) Get(ctx context.Context, id string) (*DocumentInfo, error) {
	info, err := cs.cache.Get(ctx, id)
	if err == nil {
		return info, nil
	}
	// Cache miss — load from the backing store.
	if err := cs.loadFromBacking(ctx, id); err != nil {
		return nil, err
	}
	return cs.cache.Get(ctx, id)
}

func (cs *CachedStore) List(ctx context.Context) ([]DocumentInfo, error) {
	return cs.backing.List(ctx)
}

func (cs *CachedStore) UpdateSnapshot(ctx context.Context, id string, snapshot []byte, version int) error {
	// Ensure the doc is in the cache.
	if _, err := cs.Get(ctx, id); err != nil {
		return err
	}
	if err := cs.cache.UpdateSnapshot(ctx, id, snapshot, version); err != nil {
		return err
	}
	cs.mu.Lock()
	ds := cs.dirty[id]
	if ds == nil {
		cs.cache.mu.RLock()
		flushed := len(cs.cache.docs[id].ops)
		cs.cache.mu.RUnlock()
		ds = &dirtyState{flushedOps: flushed}
		cs.dirty[id] = ds
	}
	ds.snapshotDirty = true
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) AppendOp(ctx context.Context, id string, op collab.Op, version int) error {
	// Ensure the doc is in the cache.
	if _, err := cs.Get(ctx, id); err != nil {
		return err
	}

	// Snapshot the log length before the append so we know how many ops were
	// already flushed if this doc was previously clean (removed from dirty map).
	cs.cache.mu.RLock()
	prevLen := len(cs.cache.docs[id].ops)
	cs.cache.mu.RUnlock()

	if err := cs.cache.AppendOp(ctx, id, op, version); err != nil {
		return err
	}
	// Mark dirty so the flush loop picks up the new op.
	cs.mu.Lock()
	if cs.dirty[id] == nil {
		cs.dirty[id] = &dirtyState{flushedOps: prevLen}
	}
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) Ops(ctx context.Context, id string, fromVersion int) ([]collab.Op, error) {
	// Ensure the doc is in the cache.
	if _, err := cs.Get(ctx, id); err != nil {
		return nil, err
	}
	return cs.cache.Ops(ctx, id, fromVersion)
}

// loadFromBacking loads a document and its op log from the backing store
// into the cache. It sets flushedOps so that already-persisted ops are not
// re-flushed.
func (cs *CachedStore) loadFromBacking(ctx context.Context, id string) error {
	info, err := cs.backing.Get(ctx, id)
	if err != nil {
		return err
	}
	ops, err := cs.backing.Ops(ctx, id, 0)
	if err != nil {
		return err
	}

	// Write directly into the cache's internal map.
	cs.cache.mu.Lock()
	if _, exists := cs.cache.docs[id]; !exists {
		cs.cache.docs[id] = &docRecord{
			info: *info,
			ops:  ops,
		}
	}
	cs.cache.mu.Unlock()

	// Set flushedOps so we don't re-flush existing ops.
	cs.mu.Lock()
	if cs.dirty[id] == nil {
		cs.dirty[id] = &dirtyState{flushedOps: len(ops)}
	}
	cs.mu.Unlock()

	return nil
}

func (cs *CachedStore) flushLoop() {
	ticker := time.NewTicker(cs.flushInterval)
	defer ticker.Stop()
	defer close(cs.done)

	for {
		select {
		case <-ticker.C:
			cs.flush()
		case <-cs.stop:
			cs.flush()
			return
		}
	}
}

// flush writes all dirty documents to the backing store.
func (cs *CachedStore) flush() {
	cs.mu.Lock()
	// Snapshot the dirty map and work on a copy.
	snapshot := make(map[string]*dirtyState, len(cs.dirty))
	for id, ds := range cs.dirty {
		cp := *ds
		snapshot[id] = &cp
	}
	cs.mu.Unlock()

	ctx := context.Background()

	for id, ds := range snapshot {
		// Read the current state from the cache.
		cs.cache.mu.RLock()
		rec, ok := cs.cache.docs[id]
		if !ok {
			cs.cache.mu.RUnlock()
			continue
		}
		info := rec.info
		totalOps := len(rec.ops)
		// Copy the new ops slice while holding the lock.
		var newOps []collab.Op
		if ds.flushedOps < totalOps {
			newOps = make([]collab.Op, totalOps-ds.flushedOps)
			copy(newOps, rec.ops[ds.flushedOps:])
		}
		cs.cache.mu.RUnlock()

		// 1. Create the doc in the backing store if needed.
		if ds.created {
			if err := cs.backing.Create(ctx, id, nil); err != nil {
				log.Printf("cached store: failed to create doc %q in backing store: %v", id, err)
				continue
			}
		}

		// 2. Flush new ops (before the snapshot, so crash-recovery can replay).
		for i, op := range newOps {
			version := ds.flushedOps + i + 1
			if err := cs.backing.AppendOp(ctx, id, op, version); err != nil {
				log.Printf("cached store: failed to flush op %d for doc %q: %v", version, id, err)
				// Stop flushing this doc — will retry next cycle.
				break
			}
			ds.flushedOps++
		}

		// 3. Flush the snapshot if dirty.
		if ds.snapshotDirty {
			if err := cs.backing.UpdateSnapshot(ctx, id, info.Snapshot, info.Version); err != nil {
				log.Printf("cached store: failed to flush snapshot for doc %q: %v", id, err)
			} else {
				ds.snapshotDirty = false
			}
		}

		ds.created = false

		// Update the authoritative dirty state.
		cs.mu.Lock()
		cur := cs.dirty[id]
		if cur != nil {
			cur.flushedOps = ds.flushedOps
			cur.created = ds.created
			// Only clear snapshotDirty if no new writes happened since the snapshot.
			if !ds.snapshotDirty {
				cur.snapshotDirty = false
			}
			// Remove from the dirty map if fully clean.
			if !cur.snapshotDirty && !cur.created && cur.flushedOps >= totalOps {
				// Re-check the current log length — new ops may have arrived.
				cs.cache.mu.RLock()
				if r, ok := cs.cache.docs[id]; ok && cur.flushedOps >= len(r.ops) {
					delete(cs.dirty, id)
				}
				cs.cache.mu.RUnlock()
			}
		}
		cs.mu.Unlock()
	}
}

// Close signals the flush loop to perform a final flush and waits for it
// to complete.
func (cs *CachedStore) Close() {
	close(cs.stop)
	<-cs.done
}
