package txgraph_test

import (
	"fmt"
	"log"

	"github.com/hupe1980/txgraph"
)

// Example demonstrates an atomic multi-operator transaction.
func Example() {
	g, err := txgraph.New(1, 4, 1024)
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	w, err := g.NewWorker()
	if err != nil {
		log.Fatal(err)
	}

	tx, _ := w.NewTransaction(3)
	_ = tx.InsertVertex(1)
	_ = tx.InsertVertex(2)
	_ = tx.InsertEdge(1, 2)

	fmt.Println(w.Execute(tx), g.ContainsEdge(1, 2))
	// Output: true true
}

// Example_abort demonstrates that a failing operator rolls back the whole transaction.
func Example_abort() {
	g, err := txgraph.New(1, 4, 1024)
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	w, _ := g.NewWorker()

	tx, _ := w.NewTransaction(2)
	_ = tx.InsertVertex(1)
	_ = tx.DeleteVertex(2) // 2 was never inserted

	fmt.Println(w.Execute(tx), g.ContainsVertex(1))
	// Output: false false
}
