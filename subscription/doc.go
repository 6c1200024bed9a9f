// Package subscription tracks which connections are watching which
// signals, and fans out value changes to them.
//
// Index is the subscribe/unsubscribe table: signal UUID to sub-id to
// conn-id, guarded by its own mutex, entirely separate from the tree's
// lock. A sub-id is allocated as an internal {ConnID, Local} pair and packed
// into a single wire integer (connID*CLIENT_MASK + local) as soon as
// Subscribe allocates it; the Index keys its tables by that wire integer.
//
// Engine owns the delivery pump: a single-worker pool draining a bounded,
// drop-oldest queue of notifications, so one slow publish never blocks
// another and a burst of writes never queues unbounded memory.
package subscription
