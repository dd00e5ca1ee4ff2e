// Package txn implements the transaction manager (spec.md §4.6): atomic
// commit/cancel layered on top of pkg/pagecache and pkg/wal. A
// Transaction pins every page it writes (via a long-lived
// buffer.WriteGuard obtained through the cache) until it reaches a
// terminal state, logs each byte-range write before applying it, and on
// Cancel undoes its own writes by retracing its WAL records the same way
// pkg/recovery undoes a crashed transaction — deliberately the same
// mechanism, not a separate in-memory snapshot, so live cancellation and
// crash recovery share one notion of "undo a transaction". Grounded in
// the reverse-order undo log the teacher's mvcc package used for
// savepoint rollback (RollbackToSavepoint), adapted to read pre-images
// back from the log instead of an in-memory stack.
package txn

import (
	"errors"
	"fmt"
	"sync"

	"acorn/pkg/buffer"
	"acorn/pkg/page"
	"acorn/pkg/pagecache"
	"acorn/pkg/pageid"
	"acorn/pkg/wal"
)

// ErrTransactionClosed is returned by any operation attempted on a
// Transaction that has already committed or canceled.
var ErrTransactionClosed = errors.New("txn: transaction is no longer active")

// Manager owns the shared cache, log, and id/sequence counters for every
// Transaction it begins. Its mutex is held across both counter assignment
// and the corresponding WAL append, so records reach the log in strictly
// increasing seq order; records of concurrent transactions may alternate.
// A Transaction takes it after the cache and frame locks it already holds,
// and no other lock is acquired while it is held.
type Manager struct {
	mu      sync.Mutex
	cache   *pagecache.PageCache
	log     *wal.WAL
	nextTid uint64
	seq     uint64
}

// NewManager creates a Manager over an already-open cache and log. seq
// should be seeded with the highest sequence number recovery observed, so
// freshly begun transactions continue the same monotonic counter
// (spec.md P-WalMonotonic spans restarts).
func NewManager(cache *pagecache.PageCache, log *wal.WAL, seq uint64) *Manager {
	return &Manager{cache: cache, log: log, seq: seq}
}

// Begin starts a new active transaction.
func (m *Manager) Begin() *Transaction {
	m.mu.Lock()
	m.nextTid++
	tid := m.nextTid
	m.mu.Unlock()

	return &Transaction{
		mgr:    m,
		tid:    tid,
		state:  stateActive,
		guards: make(map[pageid.PageId]buffer.WriteGuard),
	}
}

func (m *Manager) appendWrite(tid uint64, id pageid.PageId, diffStart uint16, before, after []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.log.PushWrite(tid, m.seq, id, diffStart, before, after)
}

func (m *Manager) appendCommit(tid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if err := m.log.PushCommit(tid, m.seq); err != nil {
		return err
	}
	return m.log.Flush()
}

func (m *Manager) appendCancel(tid uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	seq := m.seq
	if err := m.log.PushCancel(tid, seq); err != nil {
		return 0, err
	}
	return seq, m.log.Flush()
}

type state int

const (
	stateActive state = iota
	stateCommitted
	stateCanceled
)

// Transaction is a single unit of atomic work: a set of byte-range page
// writes that become durable together at Commit, or are undone together
// at Cancel.
type Transaction struct {
	mgr *Manager
	tid uint64

	mu     sync.Mutex
	state  state
	guards map[pageid.PageId]buffer.WriteGuard
}

// Tid returns the transaction's id, assigned once at Begin and never
// reused (spec.md §4.6).
func (t *Transaction) Tid() uint64 { return t.tid }

// ReadPage returns a copy of the current bytes of id, reflecting this
// transaction's own uncommitted writes if it has already written to id.
func (t *Transaction) ReadPage(id pageid.PageId) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateActive {
		return nil, ErrTransactionClosed
	}

	if guard, ok := t.guards[id]; ok {
		return append([]byte(nil), guard.Bytes()...), nil
	}

	guard, err := t.mgr.cache.ReadPage(id)
	if err != nil {
		return nil, fmt.Errorf("txn: read %s: %w", id, err)
	}
	data := append([]byte(nil), guard.Bytes()...)
	guard.Release()
	return data, nil
}

// WriteRange overwrites the diffLen bytes of page id starting at
// diffStart with data, logging the pre-image before applying it. The
// page's write-guard is pinned against eviction until Commit or Cancel
// (spec.md P-NoEvictPinned).
func (t *Transaction) WriteRange(id pageid.PageId, diffStart uint16, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateActive {
		return ErrTransactionClosed
	}

	guard, err := t.guardForLocked(id)
	if err != nil {
		return err
	}

	end := int(diffStart) + len(data)
	if end > len(guard.Bytes()) {
		return fmt.Errorf("txn: write %s: range [%d:%d) exceeds page size %d", id, diffStart, end, len(guard.Bytes()))
	}

	before := append([]byte(nil), guard.Bytes()[diffStart:end]...)
	if err := t.mgr.appendWrite(t.tid, id, diffStart, before, data); err != nil {
		return fmt.Errorf("txn: log write %s: %w", id, err)
	}
	copy(guard.Bytes()[diffStart:end], data)
	return nil
}

// WritePage replaces page id's entire contents with fullNewContents. It
// derives the minimal [start,end) range that actually changed by diffing
// fullNewContents against the page's current bytes (spec.md §4.6 step 2,
// property P-DiffRoundTrip), rather than requiring the caller to know the
// range up front, then logs and applies just that range via the same path
// WriteRange uses.
func (t *Transaction) WritePage(id pageid.PageId, fullNewContents []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateActive {
		return ErrTransactionClosed
	}

	guard, err := t.guardForLocked(id)
	if err != nil {
		return err
	}

	if len(fullNewContents) != len(guard.Bytes()) {
		return fmt.Errorf("txn: write %s: new contents length %d does not match page size %d", id, len(fullNewContents), len(guard.Bytes()))
	}

	start, end, changed := page.Diff(guard.Bytes(), fullNewContents)
	if !changed {
		return nil
	}

	before := append([]byte(nil), guard.Bytes()[start:end]...)
	after := fullNewContents[start:end]
	if err := t.mgr.appendWrite(t.tid, id, uint16(start), before, after); err != nil {
		return fmt.Errorf("txn: log write %s: %w", id, err)
	}
	copy(guard.Bytes()[start:end], after)
	return nil
}

// guardForLocked returns the write-guard this transaction holds for id,
// obtaining and pinning one from the cache on first touch. Callers must
// hold t.mu.
func (t *Transaction) guardForLocked(id pageid.PageId) (buffer.WriteGuard, error) {
	if guard, ok := t.guards[id]; ok {
		return guard, nil
	}
	guard, err := t.mgr.cache.WritePage(id)
	if err != nil {
		return buffer.WriteGuard{}, fmt.Errorf("txn: write %s: %w", id, err)
	}
	t.guards[id] = guard
	return guard, nil
}

// Commit logs a Commit record, fsyncs the log, and releases every
// write-guard this transaction held. The cache entries remain dirty until
// a later pagecache.PageCache.Flush.
func (t *Transaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateActive {
		return ErrTransactionClosed
	}

	if err := t.mgr.appendCommit(t.tid); err != nil {
		return fmt.Errorf("txn: commit: %w", err)
	}
	t.releaseGuardsLocked()
	t.state = stateCommitted
	return nil
}

// Cancel logs a Cancel record, fsyncs the log, undoes every byte range
// this transaction wrote (by retracing its own WAL records in reverse),
// and releases its write-guards.
func (t *Transaction) Cancel() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateActive {
		return ErrTransactionClosed
	}

	seq, err := t.mgr.appendCancel(t.tid)
	if err != nil {
		return fmt.Errorf("txn: cancel: %w", err)
	}

	records, err := t.mgr.log.RetraceTransaction(t.tid, seq)
	if err != nil {
		return fmt.Errorf("txn: cancel: retrace: %w", err)
	}
	for _, rec := range records {
		guard, ok := t.guards[rec.Page]
		if !ok {
			return fmt.Errorf("txn: cancel: retraced write to %s with no held guard", rec.Page)
		}
		end := int(rec.DiffStart) + len(rec.Before)
		copy(guard.Bytes()[rec.DiffStart:end], rec.Before)
	}

	t.releaseGuardsLocked()
	t.state = stateCanceled
	return nil
}

func (t *Transaction) releaseGuardsLocked() {
	for id, guard := range t.guards {
		guard.Release()
		delete(t.guards, id)
	}
}
