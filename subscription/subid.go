package subscription

import (
	"math/rand/v2"
	"sync"
)

// DefaultClientMask is the default modulus used to pack a sub-id's conn-id
// and local components into a single wire integer. Configurable via
// signals.client_mask.
const DefaultClientMask = 1_000_000

// subID is a subscription identifier's unpacked form. On the wire it is a
// single uint32: ConnID*mask + Local.
type subID struct {
	ConnID uint32
	Local  uint32
}

// idAllocator hands out subID values with a random Local component, and
// packs/unpacks them against a configured CLIENT_MASK.
type idAllocator struct {
	mu   sync.Mutex
	mask uint32
}

func newIDAllocator(mask uint32) *idAllocator {
	if mask == 0 {
		mask = DefaultClientMask
	}
	return &idAllocator{mask: mask}
}

// allocate returns a fresh subID for connID. Local is drawn from
// math/rand/v2, bounded below mask-1 so the packed value never collides
// with the next conn-id's range.
func (a *idAllocator) allocate(connID uint32) subID {
	a.mu.Lock()
	defer a.mu.Unlock()
	local := rand.Uint32N(a.mask - 1)
	return subID{ConnID: connID, Local: local}
}

// pack serializes a subID to its wire representation.
func (a *idAllocator) pack(id subID) uint32 {
	return id.ConnID*a.mask + id.Local
}

// unpack recovers a subID from its wire representation.
func (a *idAllocator) unpack(wire uint32) subID {
	return subID{ConnID: wire / a.mask, Local: wire % a.mask}
}
