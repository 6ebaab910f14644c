// Package txn defines the transaction descriptors shared by every structure of the graph.
//
// A Desc describes one transaction: its ordered operators, its status word and a
// per-operator pending flag. A NodeDesc binds a single node to the operator that last
// touched it. Logical presence of a node is never stored directly; it is derived from
// the node's NodeDesc and the status of the owning transaction (see Exists).
package txn
