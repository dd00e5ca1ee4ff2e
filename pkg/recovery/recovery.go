// Package recovery implements crash recovery (spec.md §4.5): replaying a
// write-ahead log against a page cache to restore the state a crash
// interrupted. The algorithm is a forward fast-forward pass over every
// record, optimistically applying all Write deltas since their eventual
// transaction outcome isn't known yet, followed by a selective revert
// pass that undoes the writes of any transaction that turns out not to
// have committed — grounded in the reverse, LIFO undo-log pattern the
// teacher's mvcc package used for savepoint rollback, adapted here to
// operate against wal.WAL.RetraceTransaction instead of an in-memory undo
// log.
package recovery

import (
	"errors"
	"fmt"
	"io"

	"acorn/pkg/pagecache"
	"acorn/pkg/pageid"
	"acorn/pkg/wal"
)

type txState int

const (
	stateActive txState = iota
	stateCommitted
	stateCanceled
)

// Run replays every record in log against cache: Write records are applied
// forward immediately, then any transaction that never reached a Commit
// record (including one that crashed mid-write, and one that explicitly
// Canceled) has its writes undone by applying their pre-images in reverse.
// The cache is flushed before Run returns, so a second crash immediately
// afterward has nothing left to redo.
func Run(cache *pagecache.PageCache, log *wal.WAL) error {
	state := make(map[uint64]txState)
	lastSeq := make(map[uint64]uint64)

	it, err := log.Iter()
	if err != nil {
		return fmt.Errorf("recovery: %w", err)
	}
	defer it.Close()

	for {
		rec, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("recovery: %w", err)
		}

		tid := rec.Tid()
		lastSeq[tid] = rec.Seq()

		switch rec.Type {
		case wal.RecordWrite:
			if _, ok := state[tid]; !ok {
				state[tid] = stateActive
			}
			if err := applyRange(cache, rec.Write.Page, rec.Write.DiffStart, rec.Write.After); err != nil {
				return fmt.Errorf("recovery: redo %s: %w", rec.Write.Page, err)
			}
		case wal.RecordCommit:
			state[tid] = stateCommitted
		case wal.RecordCancel:
			state[tid] = stateCanceled
		}
	}

	for tid, st := range state {
		if st == stateCommitted {
			continue
		}
		if err := revert(cache, log, tid, lastSeq[tid]); err != nil {
			return fmt.Errorf("recovery: revert tid %d: %w", tid, err)
		}
	}

	return cache.Flush()
}

func revert(cache *pagecache.PageCache, log *wal.WAL, tid, startingSeq uint64) error {
	records, err := log.RetraceTransaction(tid, startingSeq)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := applyRange(cache, rec.Page, rec.DiffStart, rec.Before); err != nil {
			return fmt.Errorf("undo %s: %w", rec.Page, err)
		}
	}
	return nil
}

func applyRange(cache *pagecache.PageCache, id pageid.PageId, diffStart uint16, data []byte) error {
	guard, err := cache.WritePage(id)
	if err != nil {
		return err
	}
	copy(guard.Bytes()[diffStart:int(diffStart)+len(data)], data)
	guard.Release()
	return nil
}
