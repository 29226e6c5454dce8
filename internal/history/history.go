// Package history keeps a bounded window of past arena states for lag
// compensation.
package history

import (
	"github.com/vovakirdan/hexarena/internal/delta"
	"github.com/vovakirdan/hexarena/internal/sim"
)

// Snapshot is the arena at Tick after that tick's external changes were
// applied and before it was integrated. Changes are those external
// changes (joins, disconnects, inputs), kept so a replay can redo them.
type Snapshot struct {
	Tick    int
	State   *sim.State
	Changes []delta.Change
}

// History is a ring buffer of snapshots, newest last. It is owned by a
// single goroutine.
type History struct {
	slots []Snapshot
	head  int // index of the next write
	size  int
}

// New returns a history holding up to capacity snapshots.
func New(capacity int) *History {
	return &History{slots: make([]Snapshot, max(capacity, 1))}
}

// Cap returns the window size.
func (h *History) Cap() int {
	return len(h.slots)
}

// Len returns the number of snapshots held.
func (h *History) Len() int {
	return h.size
}

// Push appends snap, evicting the oldest snapshot when full. The history
// takes ownership of snap.State.
func (h *History) Push(snap Snapshot) {
	h.slots[h.head] = snap
	h.head = (h.head + 1) % len(h.slots)
	if h.size < len(h.slots) {
		h.size++
	}
}

// At returns the snapshot pushed age-1 pushes ago: At(1) is the newest.
// The pointer stays valid until the slot is overwritten by Push.
func (h *History) At(age int) (*Snapshot, bool) {
	if age < 1 || age > h.size {
		return nil, false
	}
	i := (h.head - age + len(h.slots)) % len(h.slots)
	return &h.slots[i], true
}

// Newest returns the most recent snapshot.
func (h *History) Newest() (*Snapshot, bool) {
	return h.At(1)
}

// Oldest returns the oldest retained snapshot.
func (h *History) Oldest() (*Snapshot, bool) {
	return h.At(h.size)
}

// ByTick returns the snapshot of tick, if retained.
func (h *History) ByTick(tick int) (*Snapshot, bool) {
	newest, ok := h.Newest()
	if !ok {
		return nil, false
	}
	snap, ok := h.At(newest.Tick - tick + 1)
	if !ok || snap.Tick != tick {
		return nil, false
	}
	return snap, true
}

// Reset drops every snapshot.
func (h *History) Reset() {
	clear(h.slots)
	h.head, h.size = 0, 0
}
