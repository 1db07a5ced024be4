package main

// cfstream streams ColabFit records in batches, the way a training loop
// would consume them, and reports what it saw.
//
// Usage:
//   cfstream count  --dataset DS_q4h7q8q0fnve_0
//   cfstream stream --dataset DS_q4h7q8q0fnve_0 --batch-size 64 --workers 2
//   cfstream plot   --config cfstream.yaml --out plots/energy.png

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
