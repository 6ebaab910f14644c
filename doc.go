// Package txgraph provides a lock-free transactional directed graph for Go.
//
// A transaction is an ordered list of vertex and edge operators that is applied
// atomically: either every operator takes effect or none does. Transactions never
// take locks. A worker that runs into another worker's unfinished transaction
// completes it first, so some transaction always makes progress.
//
// # Quick Start
//
//	g, _ := txgraph.New(4, 4, 10_000)
//	defer g.Close()
//
//	w, _ := g.NewWorker() // one per goroutine
//
//	tx, _ := w.NewTransaction(3)
//	_ = tx.InsertVertex(1)
//	_ = tx.InsertVertex(2)
//	_ = tx.InsertEdge(1, 2)
//
//	if w.Execute(tx) {
//	    fmt.Println(g.ContainsEdge(1, 2)) // true
//	}
//
// # Semantics
//
// Operators run in order and see the effects of earlier operators of the same
// transaction. A transaction aborts as soon as one operator fails:
//
//   - InsertVertex fails if the vertex is present.
//   - DeleteVertex fails if the vertex is absent. It removes all outgoing edges.
//   - InsertEdge fails if the source vertex is absent or the edge is present.
//   - DeleteEdge fails if the source vertex or the edge is absent.
//   - Find fails if the vertex is absent.
//
// Concurrent transactions that help each other in a cycle are aborted.
//
// # Memory Model
//
// All nodes and descriptors are carved out of arenas reserved by New and never
// freed. Size estimatedOps to the number of operators a worker executes over the
// lifetime of the graph; a worker that exceeds its budget panics with an error
// wrapping ErrExhausted. Use WithMemoryLimit to cap the reservation and
// WithSlotMargin to widen the per-worker node budget.
//
// # Observability
//
//	metrics := &txgraph.BasicMetricsCollector{}
//	g, _ := txgraph.New(4, 4, 10_000,
//	    txgraph.WithMetricsCollector(metrics),
//	    txgraph.WithLogLevel(slog.LevelDebug),
//	)
//
// Graph.Stats reports commits, aborts, helping and arena usage.
package txgraph
