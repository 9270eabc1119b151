package covertree_test

import (
	"context"
	"fmt"
	"log"
	"os"

	covertree "github.com/hupe1980/covertree"
	"github.com/hupe1980/covertree/persistence"
	"github.com/hupe1980/covertree/pointstore"
)

// Example_insert demonstrates building a tree and inserting points.
func Example_insert() {
	ctx := context.Background()

	store, err := pointstore.FromVectors([][]float32{
		{0, 0},
		{1, 0},
		{0, 1},
		{5, 5},
	})
	if err != nil {
		log.Fatal(err)
	}

	tree, err := covertree.New(store,
		covertree.WithScaleBase(2.0),
		covertree.WithCutoff(4),
	)
	if err != nil {
		log.Fatal(err)
	}

	for i := 0; i < store.Len(); i++ {
		if err := tree.Insert(ctx, uint32(i)); err != nil {
			log.Fatal(err)
		}
	}

	fmt.Println("indexed points:", tree.Count())
	// Output: indexed points: 4
}

// Example_kNNSearch demonstrates an exact k-nearest-neighbor query.
func Example_kNNSearch() {
	ctx := context.Background()

	store, _ := pointstore.FromVectors([][]float32{
		{0, 0},
		{3, 4},
		{10, 0},
	})
	tree, _ := covertree.New(store)
	for i := 0; i < store.Len(); i++ {
		if err := tree.Insert(ctx, uint32(i)); err != nil {
			log.Fatal(err)
		}
	}

	results, err := tree.KNNSearch(ctx, []float32{0.5, 0}, 2)
	if err != nil {
		log.Fatal(err)
	}

	for _, r := range results {
		fmt.Printf("point %d at distance %.1f\n", r.Index, r.Distance)
	}
	// Output:
	// point 0 at distance 0.5
	// point 1 at distance 4.7
}

// Example_snapshot demonstrates saving a tree and loading it back.
func Example_snapshot() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "covertree-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, _ := pointstore.FromVectors([][]float32{
		{0, 0},
		{1, 1},
		{2, 2},
	})
	tree, _ := covertree.New(store)
	for i := 0; i < store.Len(); i++ {
		if err := tree.Insert(ctx, uint32(i)); err != nil {
			log.Fatal(err)
		}
	}

	manager, err := persistence.NewManager(persistence.WithDir(dir))
	if err != nil {
		log.Fatal(err)
	}
	defer manager.Close()

	if err := manager.Save(ctx, tree, "tree.snapshot"); err != nil {
		log.Fatal(err)
	}

	loaded, err := manager.Load(ctx, store, "tree.snapshot")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("restored points:", loaded.Count())
	// Output: restored points: 3
}
