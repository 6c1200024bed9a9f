package subscription

import "sync"

// Index is the subscribe/unsubscribe table. It is guarded by its own mutex,
// never the signal tree's, so a burst of subscribe calls never contends
// with a concurrent get/set.
type Index struct {
	mu     sync.Mutex
	byUUID map[string]map[uint32]uint32 // signal uuid -> wire sub-id -> conn-id
	byID   map[uint32]string            // wire sub-id -> signal uuid
	alloc  *idAllocator
}

// NewIndex builds an empty Index. mask configures the wire sub-id packing
// scheme (CLIENT_MASK); 0 selects DefaultClientMask.
func NewIndex(mask uint32) *Index {
	return &Index{
		byUUID: make(map[string]map[uint32]uint32),
		byID:   make(map[uint32]string),
		alloc:  newIDAllocator(mask),
	}
}

// Subscribe registers connID's interest in signalUUID and returns the new
// subscription's wire-form sub-id.
func (idx *Index) Subscribe(signalUUID string, connID uint32) uint32 {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	id := idx.alloc.allocate(connID)
	wire := idx.alloc.pack(id)

	if idx.byUUID[signalUUID] == nil {
		idx.byUUID[signalUUID] = make(map[uint32]uint32)
	}
	idx.byUUID[signalUUID][wire] = connID
	idx.byID[wire] = signalUUID
	return wire
}

// Unsubscribe removes one subscription by its wire sub-id, returning the
// conn-id it belonged to.
func (idx *Index) Unsubscribe(wireSubID uint32) (connID uint32, ok bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.unlocked(wireSubID)
}

func (idx *Index) unlocked(wireSubID uint32) (uint32, bool) {
	uuid, ok := idx.byID[wireSubID]
	if !ok {
		return 0, false
	}
	connID := idx.byUUID[uuid][wireSubID]
	delete(idx.byUUID[uuid], wireSubID)
	if len(idx.byUUID[uuid]) == 0 {
		delete(idx.byUUID, uuid)
	}
	delete(idx.byID, wireSubID)
	return connID, true
}

// UnsubscribeAll removes every subscription belonging to connID (on
// disconnect) and reports how many were removed.
func (idx *Index) UnsubscribeAll(connID uint32) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var toRemove []uint32
	for wire, uuid := range idx.byID {
		if idx.byUUID[uuid][wire] == connID {
			toRemove = append(toRemove, wire)
		}
	}
	for _, wire := range toRemove {
		idx.unlocked(wire)
	}
	return len(toRemove)
}

// Subscribers returns a snapshot of wire-sub-id -> conn-id for signalUUID.
func (idx *Index) Subscribers(signalUUID string) map[uint32]uint32 {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	src := idx.byUUID[signalUUID]
	out := make(map[uint32]uint32, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Count returns the total number of active subscriptions, for metrics.
func (idx *Index) Count() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.byID)
}
