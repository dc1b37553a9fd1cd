package registry

import (
	"container/list"
	"sync"
)

// Deduper remembers the last capacity message IDs and rejects repeats. The
// set gives O(1) lookups, the list evicts oldest first.
type Deduper struct {
	mu       sync.Mutex
	capacity int
	seen     map[int64]struct{}
	order    *list.List
}

// NewDeduper returns a deduper that remembers up to capacity IDs.
func NewDeduper(capacity int) *Deduper {
	if capacity < 1 {
		capacity = 1
	}
	return &Deduper{
		capacity: capacity,
		seen:     make(map[int64]struct{}, capacity),
		order:    list.New(),
	}
}

// Seen records id and reports whether it was already known.
func (d *Deduper) Seen(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	d.order.PushBack(id)
	for d.order.Len() > d.capacity {
		front := d.order.Front()
		d.order.Remove(front)
		delete(d.seen, front.Value.(int64))
	}
	return false
}
