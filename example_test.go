package valori_test

import (
	"context"
	"fmt"
	"os"

	valori "github.com/varshith-Git/valori"
	"github.com/varshith-Git/valori/model"
)

func Example() {
	dir, err := os.MkdirTemp("", "valori-example")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	db, err := valori.Open(dir, valori.Config{
		Dim:        4,
		CapRecords: 64,
		CapNodes:   64,
		CapEdges:   256,
	})
	if err != nil {
		panic(err)
	}
	defer db.Close()

	ctx := context.Background()

	// Insert a few memories with tags.
	a, _ := db.InsertFloat32(ctx, []float32{1, 0, 0, 0}, 1, []byte("first"))
	b, _ := db.InsertFloat32(ctx, []float32{0, 1, 0, 0}, 1, nil)
	db.InsertFloat32(ctx, []float32{0, 0, 1, 0}, 2, nil)

	// Link them in the knowledge graph, atomically.
	asns, err := db.ApplyBatch(ctx, []model.Command{
		model.CreateNode(1, a),
		model.CreateNode(1, b),
	})
	if err != nil {
		panic(err)
	}
	if _, err := db.Apply(ctx, model.CreateEdge(1, asns[0].Node, asns[1].Node)); err != nil {
		panic(err)
	}

	results, err := db.SearchFloat32(ctx, []float32{1, 0, 0, 0}, 2)
	if err != nil {
		panic(err)
	}
	for _, r := range results {
		fmt.Printf("record %d score %d\n", r.ID, r.Score)
	}

	fmt.Printf("records=%d nodes=%d edges=%d version=%d\n",
		db.RecordCount(), db.NodeCount(), db.EdgeCount(), db.Version())

	// Output:
	// record 0 score 0
	// record 1 score 131072
	// records=3 nodes=2 edges=1 version=6
}
