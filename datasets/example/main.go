package main

// Example command that resolves a ColabFit dataset, materializes a couple of
// batches and converts them into gomlx tensors the way a training loop would.
//
// Records are fetched lazily - the catalog only holds record ids, and each
// batch is fetched with a single request when it is needed.
//
// Usage:
//   go run ./datasets/example
//
// Note: this example talks to the public ColabFit service and needs network
// access.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/Noofbiz/cfstream/datasets"
)

func main() {
	ctx := context.Background()
	client := datasets.NewClient(datasets.DefaultBaseURL)

	cat, err := datasets.NewCatalog(ctx, client, []string{"DS_q4h7q8q0fnve_0"}, datasets.InMemory)
	if err != nil {
		log.Fatalf("failed to resolve dataset: %v", err)
	}
	fmt.Printf("Datasets: %v\n", cat.Datasets().IDs())
	fmt.Printf("Total records available: %d\n", cat.Len())

	loader, err := datasets.NewLoader(cat, client, datasets.WithBatchSize(8), datasets.WithShuffle(1))
	if err != nil {
		log.Fatalf("failed to create loader: %v", err)
	}

	// Materialize one batch and show its first structure.
	batch, err := loader.Batch(ctx, 0)
	if err != nil {
		log.Fatalf("failed to materialize batch: %v", err)
	}
	fmt.Printf("Loaded batch of %d structures\n", len(batch))
	if len(batch) > 0 {
		s := batch[0]
		fmt.Printf("  First structure: po=%s co=%s dataset_idx=%d atoms=%d energy=%g\n",
			s.Info.PoID, s.Info.CoID, s.Info.DatasetIdx, s.NumAtoms(), s.Info.Energy)
		fmt.Printf("  Cell volume: %.3f\n", s.Volume())
	}

	// Pull two batches through the gomlx dataset interface.
	for range 2 {
		_, inputs, labels, err := loader.Yield()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Fatalf("failed to yield batch: %v", err)
		}
		fmt.Printf("Yielded tensors: positions=%s energy=%s\n", inputs[1].Shape(), labels[0].Shape())
	}

	// Per-structure tensors through the conversion hook.
	ids, err := loader.BatchIDs(0)
	if err != nil {
		log.Fatalf("failed to read batch ids: %v", err)
	}
	converted, err := datasets.MaterializeWith(ctx, client, ids, cat.Datasets(), datasets.TensorConverter{})
	if err != nil {
		log.Fatalf("failed to convert batch: %v", err)
	}
	fmt.Printf("Converted %d structures to tensors\n", len(converted))

	fmt.Println("\nExample completed successfully!")
}
