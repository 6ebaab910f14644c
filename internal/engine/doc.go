// Package engine implements the transactional vertex list and the helping protocol
// that drives transactions over it.
//
// Vertices live in a sorted lock-free linked list bounded by two sentinels. Every
// vertex owns an mdlist.List holding its outgoing edges. Each vertex and edge node
// carries a reference to a txn.NodeDesc; its logical presence is derived from that
// descriptor and the owning transaction's status.
//
// A Worker executes transactions. When it runs into a node bound to another active
// transaction it finishes that transaction first (helping), so no worker ever waits
// on another. A worker that is asked to help a transaction it is already helping has
// found a dependency cycle and aborts that transaction.
//
// Within one transaction later operators observe the effects of earlier ones. When an
// operator rebinds a node its own transaction already owns, the new descriptor is
// chosen so that an abort restores the node's state from before the transaction.
package engine
