package workflow

import (
	"context"
	"errors"
	"sync"
	"time"
)

const defaultJournalCapacity = 1000

// ErrJournalClosed is returned by a waiting Fetch once the journal is closed
// and no further entries are buffered.
var ErrJournalClosed = errors.New("journal closed")

// Journal stores recent job log entries and wakes waiters when new entries
// arrive. Sequence numbers keep increasing across Reset so a follower's
// cursor stays valid when a new job starts.
type Journal struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []LogEntry
	nextSeq  uint64
	closed   bool
}

// NewJournal constructs a bounded in-memory job log.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = defaultJournalCapacity
	}
	j := &Journal{capacity: capacity}
	j.cond = sync.NewCond(&j.mu)
	return j
}

// Publish appends entry, assigns its sequence number and returns the stored copy.
func (j *Journal) Publish(entry LogEntry) LogEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.nextSeq++
	entry.Seq = j.nextSeq
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	if len(j.buffer) == j.capacity {
		copy(j.buffer, j.buffer[1:])
		j.buffer = j.buffer[:j.capacity-1]
	}
	j.buffer = append(j.buffer, entry)
	j.cond.Broadcast()
	return entry
}

// Reset drops buffered entries. The sequence counter is kept.
func (j *Journal) Reset() {
	j.mu.Lock()
	j.buffer = nil
	j.mu.Unlock()
}

// Close wakes all waiters; later Fetch calls never block.
func (j *Journal) Close() {
	j.mu.Lock()
	j.closed = true
	j.cond.Broadcast()
	j.mu.Unlock()
}

// Fetch returns up to limit entries with a sequence greater than since and the
// cursor for the next call. When wait is true, Fetch blocks until at least one
// entry is available or the context ends.
func (j *Journal) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEntry, uint64, error) {
	if limit <= 0 || limit > j.capacity {
		limit = j.capacity
	}

	stop := context.AfterFunc(ctx, func() {
		j.mu.Lock()
		j.cond.Broadcast()
		j.mu.Unlock()
	})
	defer stop()

	j.mu.Lock()
	defer j.mu.Unlock()
	for {
		entries, next := j.snapshotLocked(since, limit)
		if len(entries) > 0 || !wait {
			return entries, next, ctx.Err()
		}
		if j.closed {
			return nil, next, ErrJournalClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, next, err
		}
		j.cond.Wait()
	}
}

// Tail returns the most recent limit entries without blocking.
func (j *Journal) Tail(limit int) ([]LogEntry, uint64) {
	if limit <= 0 || limit > j.capacity {
		limit = j.capacity
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	start := len(j.buffer) - limit
	if start < 0 {
		start = 0
	}
	out := make([]LogEntry, len(j.buffer)-start)
	copy(out, j.buffer[start:])
	return out, j.nextSeq
}

func (j *Journal) snapshotLocked(since uint64, limit int) ([]LogEntry, uint64) {
	start := len(j.buffer)
	for i, entry := range j.buffer {
		if entry.Seq > since {
			start = i
			break
		}
	}
	if start == len(j.buffer) {
		return nil, j.nextSeq
	}
	end := start + limit
	if end > len(j.buffer) {
		end = len(j.buffer)
	}
	out := make([]LogEntry, end-start)
	copy(out, j.buffer[start:end])
	return out, out[len(out)-1].Seq
}
