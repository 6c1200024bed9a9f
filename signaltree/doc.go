// Package signaltree is the in-memory store for a VSS signal tree.
//
// A Store holds a typed, discriminated tree (Node, with Branch/Leaf
// variants) decoded from a VSS JSON document. Branch nodes remember their
// children's declaration order so path expansion and metadata responses
// match the source document instead of Go's unordered map iteration. Reads
// and writes run under the store's own RWMutex; New takes a publish
// callback invoked after a write releases the lock, so signaltree has no
// import-time dependency on the subscription fan-out that consumes it.
package signaltree
