// Package mdlist implements the lock-free multi-dimensional list used as the
// per-vertex edge index.
//
// A 32-bit key is mapped to a 16-dimensional coordinate of 2-bit digits, most
// significant digit first. Nodes are kept in a trie-like ordering: each node has one
// child slot per dimension and a child at dimension d shares the first d digits of
// its parent. Inserting a node above an existing one requires the new node to adopt
// some of the displaced node's children; that work is published in a Desc so any
// thread that walks past can finish it.
//
// Child slots carry two tag bits:
//
//	AdoptionInvalid  the slot was handed to another node and must not be used
//	DeletionInvalid  the child is logically deleted and may be replaced
//
// The list never frees nodes; memory comes from arena regions owned by the caller.
package mdlist
