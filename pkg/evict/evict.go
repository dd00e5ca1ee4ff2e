// Package evict implements the cache eviction policy: LRU over the set of
// currently resident PageIds (spec.md §4.2). It is deliberately ignorant of
// the PageBuffer and storage layer — PageCache composes it with those,
// matching the component split of spec.md §2. The recency structure itself
// is the same container/list-based LRU the teacher repo inlined directly
// into Pager (p.lru), pulled out into its own type per the spec's
// component boundary.
package evict

import (
	"container/list"

	"acorn/pkg/pageid"
)

// CacheManager tracks recency order over resident PageIds and picks
// eviction victims.
//
// Tie-break policy (spec.md §4.2 requires one be documented): touching a
// page always moves it to the MRU end, even if it was already there;
// Reclaim always inspects from the LRU end first and returns the first
// candidate the caller's skip predicate accepts, so among pages of equal
// "recency" (never touched since insertion) the one inserted earliest is
// evicted first — insertion order breaks ties, not any secondary clock.
type CacheManager struct {
	order *list.List // MRU at Front, LRU at Back
	index map[pageid.PageId]*list.Element
}

// New creates an empty CacheManager.
func New() *CacheManager {
	return &CacheManager{
		order: list.New(),
		index: make(map[pageid.PageId]*list.Element),
	}
}

// Access records a touch of id, moving it to the MRU end. It is also how a
// newly resident page is registered: Access on an id the manager has not
// seen before inserts it fresh at the MRU end.
func (m *CacheManager) Access(id pageid.PageId) {
	if elem, ok := m.index[id]; ok {
		m.order.MoveToFront(elem)
		return
	}
	m.index[id] = m.order.PushFront(id)
}

// Remove drops id from the recency structure entirely, used when a page is
// freed or evicted outside the normal Reclaim path.
func (m *CacheManager) Remove(id pageid.PageId) {
	if elem, ok := m.index[id]; ok {
		m.order.Remove(elem)
		delete(m.index, id)
	}
}

// Len reports how many PageIds are currently tracked.
func (m *CacheManager) Len() int { return m.order.Len() }

// Reclaim walks from the LRU end toward the MRU end, skipping any id for
// which skip returns true (per spec.md §4.2, pages pinned by an outstanding
// write-guard of a live transaction must never be chosen — P-NoEvictPinned).
// The first accepted id is removed from the structure and returned. ok is
// false when every tracked id was skipped, or the manager is empty.
func (m *CacheManager) Reclaim(skip func(pageid.PageId) bool) (pageid.PageId, bool) {
	for elem := m.order.Back(); elem != nil; elem = elem.Prev() {
		id := elem.Value.(pageid.PageId)
		if skip != nil && skip(id) {
			continue
		}
		m.order.Remove(elem)
		delete(m.index, id)
		return id, true
	}
	return pageid.PageId{}, false
}
