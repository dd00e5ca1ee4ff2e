// Package pagecache implements PageCache (spec.md §4.3): demand paging over
// a fixed-capacity buffer.PageBuffer, tracked by an evict.CacheManager, with
// a dirty set flushed back to a storage.Storage collaborator. It is the
// "PageCache" row of spec.md §2's component table, composing the two
// leaf components instead of re-implementing their bookkeeping, the way
// the teacher's Pager composed its inlined map/lru/MemoryStorage pieces —
// pulled apart here into the spec's named components.
package pagecache

import (
	"fmt"
	"sync"

	"acorn/pkg/buffer"
	"acorn/pkg/evict"
	"acorn/pkg/pageid"
	"acorn/pkg/storage"
)

// PageCache maps PageId to a resident buffer slot, demand-loading from
// storage and tracking which resident pages are dirty.
type PageCache struct {
	mu      sync.Mutex // guards everything below; callers' frame guards are acquired only after releasing it (spec.md §5), while the cache's own transient guards for loading, eviction write-back and Flush are taken under it
	buf     *buffer.PageBuffer
	mgr     *evict.CacheManager
	storage storage.Storage

	mapping map[pageid.PageId]int
	dirty   map[pageid.PageId]bool
}

// New creates a PageCache with room for capacity resident pages, backed by
// storage.
func New(backend storage.Storage, capacity int) (*PageCache, error) {
	pageSize := int(backend.PageSize())
	buf, err := buffer.New(pageSize, capacity)
	if err != nil {
		return nil, fmt.Errorf("pagecache: %w", err)
	}
	return &PageCache{
		buf:     buf,
		mgr:     evict.New(),
		storage: backend,
		mapping: make(map[pageid.PageId]int),
		dirty:   make(map[pageid.PageId]bool),
	}, nil
}

// Close releases the underlying PageBuffer's arena. Callers should Flush
// first if dirty pages must survive.
func (c *PageCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Close()
}

// PageSize returns the fixed page size.
func (c *PageCache) PageSize() int { return c.buf.PageSize() }

// SegmentNums delegates to the storage collaborator.
func (c *PageCache) SegmentNums() []uint32 { return c.storage.SegmentNums() }

// NumDirty returns how many resident pages are currently dirty.
func (c *PageCache) NumDirty() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dirty)
}

// ReadPage resolves id to a resident frame, loading it from storage if
// necessary, and returns a shared guard over its bytes.
func (c *PageCache) ReadPage(id pageid.PageId) (buffer.ReadGuard, error) {
	slot, err := c.resolve(id, false)
	if err != nil {
		return buffer.ReadGuard{}, err
	}
	return c.buf.ReadPage(slot), nil
}

// WritePage resolves id to a resident frame as ReadPage does, marks it
// dirty on first acquisition, and returns an exclusive guard. Callers that
// intend to hold the guard across more than this single access (as
// txn.Transaction does until commit/cancel) must do so; see
// buffer.PageBuffer.TryWritePage for how eviction tells such a page apart
// from a merely-resident one.
func (c *PageCache) WritePage(id pageid.PageId) (buffer.WriteGuard, error) {
	slot, err := c.resolve(id, true)
	if err != nil {
		return buffer.WriteGuard{}, err
	}
	return c.buf.WritePage(slot), nil
}

// resolve implements the access algorithm of spec.md §4.3 steps 1-5,
// returning the buffer slot holding id. The state mutex is held for the
// whole resolution, including any eviction write-back and any storage
// load; it is released before the caller acquires its own frame guard, per
// the lock-ordering rule of spec.md §5.
func (c *PageCache) resolve(id pageid.PageId, markDirty bool) (int, error) {
	c.mu.Lock()

	c.mgr.Access(id)
	if markDirty {
		c.dirty[id] = true
	}

	if slot, ok := c.mapping[id]; ok {
		c.mu.Unlock()
		return slot, nil
	}

	if !c.buf.HasSpace() {
		if err := c.evictOneLocked(); err != nil {
			c.mu.Unlock()
			return 0, err
		}
	}

	slot, ok := c.buf.AllocatePage()
	if !ok {
		c.mu.Unlock()
		panic("pagecache: AllocatePage failed immediately after confirming space")
	}

	loadGuard := c.buf.WritePage(slot)
	err := c.storage.ReadPage(loadGuard.Bytes(), id)
	loadGuard.Release()
	if err != nil {
		c.buf.FreePage(slot)
		c.mgr.Remove(id)
		if markDirty {
			delete(c.dirty, id)
		}
		c.mu.Unlock()
		return 0, fmt.Errorf("pagecache: load %s: %w", id, err)
	}

	c.mapping[id] = slot
	c.mu.Unlock()
	return slot, nil
}

// evictOneLocked picks an LRU victim not pinned by a live write-guard,
// writes it back if dirty, and frees its slot. Called with c.mu held.
func (c *PageCache) evictOneLocked() error {
	victim, ok := c.mgr.Reclaim(func(id pageid.PageId) bool {
		slot := c.mapping[id]
		guard, locked := c.buf.TryWritePage(slot)
		if !locked {
			return true // pinned: spec.md P-NoEvictPinned
		}
		guard.Release()
		return false
	})
	if !ok {
		// The buffer reported no space yet every resident page is pinned:
		// an invariant violation per spec.md §7, not a recoverable error.
		panic("pagecache: buffer full but no evictable page found")
	}

	slot, mapped := c.mapping[victim]
	if !mapped {
		panic(fmt.Sprintf("pagecache: eviction victim %s is not resident", victim))
	}
	delete(c.mapping, victim)

	if c.dirty[victim] {
		guard := c.buf.WritePage(slot)
		err := c.storage.WritePage(guard.Bytes(), victim)
		guard.Release()
		delete(c.dirty, victim)
		if err != nil {
			return fmt.Errorf("pagecache: evict %s: %w", victim, err)
		}
	}

	c.buf.FreePage(slot)
	return nil
}

// Flush writes every dirty page back to storage and clears the dirty set.
// It assumes no outstanding write-guard is held on a dirty page (the
// normal case: spec.md §4.6 has Transaction release its guards at
// commit/cancel before a later Flush runs) — calling it while a
// transaction still holds a write-guard on a dirty page will block on that
// guard's release rather than skip it, since ordering among dirty pages is
// implementation-defined but atomicity of each individual write is not
// optional.
func (c *PageCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.dirty {
		slot := c.mapping[id]
		guard := c.buf.WritePage(slot)
		err := c.storage.WritePage(guard.Bytes(), id)
		guard.Release()
		if err != nil {
			return fmt.Errorf("pagecache: flush %s: %w", id, err)
		}
		delete(c.dirty, id)
	}
	return nil
}
