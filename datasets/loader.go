package datasets

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize = 64
	DefaultWorkers   = 2
)

// Loader drives a Catalog through a Fetcher: it groups catalog positions
// into batches, optionally shuffles them once per epoch and materializes
// batches from several workers at once. Batches are always delivered in
// batch order.
//
// Loader also implements the gomlx train.Dataset methods (Name, Yield and
// Reset) so it can feed a gomlx training loop directly.
type Loader struct {
	// BatchSize is the number of record ids per fetch request.
	BatchSize int

	// Workers is the number of batches fetched concurrently.
	Workers int

	// DropLast drops the final batch when it is shorter than BatchSize.
	DropLast bool

	catalog  *Catalog
	fetcher  Fetcher
	shuffle  bool
	logger   zerolog.Logger
	yieldCtx context.Context

	mu sync.Mutex
	// Random generator for shuffling
	rand *rand.Rand
	// Catalog positions in epoch order
	order []int
	// Next batch handed out by Yield
	next int
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithBatchSize sets the number of records per batch.
func WithBatchSize(n int) LoaderOption {
	return func(l *Loader) {
		l.BatchSize = n
	}
}

// WithWorkers sets the number of batches fetched concurrently.
func WithWorkers(n int) LoaderOption {
	return func(l *Loader) {
		l.Workers = n
	}
}

// WithShuffle shuffles catalog positions at the start of every epoch using
// a generator seeded with seed. A zero seed uses the current time.
func WithShuffle(seed int64) LoaderOption {
	return func(l *Loader) {
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		l.shuffle = true
		l.rand = rand.New(rand.NewSource(seed))
	}
}

// WithDropLast drops a trailing batch shorter than the batch size.
func WithDropLast() LoaderOption {
	return func(l *Loader) {
		l.DropLast = true
	}
}

// WithLoaderLogger sets the logger used for batch progress.
func WithLoaderLogger(logger zerolog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithYieldContext sets the context used by Yield, which has no context
// parameter of its own.
func WithYieldContext(ctx context.Context) LoaderOption {
	return func(l *Loader) {
		l.yieldCtx = ctx
	}
}

// NewLoader creates a loader over cat that fetches through f.
func NewLoader(cat *Catalog, f Fetcher, opts ...LoaderOption) (*Loader, error) {
	if cat == nil {
		return nil, fmt.Errorf("%w: catalog is nil", ErrConfig)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: fetcher is nil", ErrConfig)
	}

	l := &Loader{
		BatchSize: DefaultBatchSize,
		Workers:   DefaultWorkers,
		catalog:   cat,
		fetcher:   f,
		logger:    zerolog.Nop(),
		yieldCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", ErrConfig, l.BatchSize)
	}
	if l.Workers <= 0 {
		return nil, fmt.Errorf("%w: workers must be positive, got %d", ErrConfig, l.Workers)
	}

	l.order = make([]int, cat.Len())
	for i := range l.order {
		l.order[i] = i
	}
	l.shuffleLocked()

	return l, nil
}

// shuffleLocked permutes the epoch order. Must be called with mu held.
func (l *Loader) shuffleLocked() {
	if !l.shuffle {
		return
	}
	l.rand.Shuffle(len(l.order), func(i, j int) {
		l.order[i], l.order[j] = l.order[j], l.order[i]
	})
}

// snapshot returns the current epoch order. A new slice is installed on
// Reset, so the returned one is never modified.
func (l *Loader) snapshot() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order
}

func (l *Loader) numBatches(n int) int {
	if l.DropLast {
		return n / l.BatchSize
	}
	return (n + l.BatchSize - 1) / l.BatchSize
}

// NumBatches returns the number of batches in one epoch.
func (l *Loader) NumBatches() int {
	return l.numBatches(l.catalog.Len())
}

func (l *Loader) batchIDs(order []int, b int) ([]string, error) {
	if b < 0 || b >= l.numBatches(len(order)) {
		return nil, fmt.Errorf("%w: batch %d out of range [0, %d)", ErrOutOfRange, b, l.numBatches(len(order)))
	}
	start := b * l.BatchSize
	end := min(start+l.BatchSize, len(order))
	return l.catalog.IDs(order[start:end])
}

// BatchIDs returns the record ids of batch b in the current epoch.
func (l *Loader) BatchIDs(b int) ([]string, error) {
	return l.batchIDs(l.snapshot(), b)
}

// Batch materializes batch b of the current epoch.
func (l *Loader) Batch(ctx context.Context, b int) ([]*Structure, error) {
	ids, err := l.BatchIDs(b)
	if err != nil {
		return nil, err
	}
	return Materialize(ctx, l.fetcher, ids, l.catalog.Datasets())
}

// Iterate materializes every batch of the current epoch and calls fn with
// each one in batch order. The first error stops the iteration.
func (l *Loader) Iterate(ctx context.Context, fn func(b int, batch []*Structure) error) error {
	load := func(ctx context.Context, ids []string) ([]*Structure, error) {
		return Materialize(ctx, l.fetcher, ids, l.catalog.Datasets())
	}
	return iterate(ctx, l, load, fn)
}

// IterateWith is Iterate with every structure passed through conv.
func IterateWith[T any](ctx context.Context, l *Loader, conv Converter[T], fn func(b int, batch []T) error) error {
	if conv == nil {
		return fmt.Errorf("%w: converter is nil", ErrConfig)
	}
	load := func(ctx context.Context, ids []string) ([]T, error) {
		return MaterializeWith(ctx, l.fetcher, ids, l.catalog.Datasets(), conv)
	}
	return iterate(ctx, l, load, fn)
}

// iterate fetches up to Workers batches at a time, then hands them to fn in
// order before starting the next window.
func iterate[T any](ctx context.Context, l *Loader, load func(context.Context, []string) ([]T, error), fn func(int, []T) error) error {
	order := l.snapshot()
	n := l.numBatches(len(order))

	for start := 0; start < n; start += l.Workers {
		end := min(start+l.Workers, n)
		results := make([][]T, end-start)

		g, gctx := errgroup.WithContext(ctx)
		for b := start; b < end; b++ {
			g.Go(func() error {
				ids, err := l.batchIDs(order, b)
				if err != nil {
					return err
				}
				batch, err := load(gctx, ids)
				if err != nil {
					return fmt.Errorf("batch %d: %w", b, err)
				}
				results[b-start] = batch
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for i, batch := range results {
			l.logger.Debug().
				Int("batch", start+i).
				Int("of", n).
				Int("records", len(batch)).
				Msg("batch ready")
			if err := fn(start+i, batch); err != nil {
				return err
			}
		}
	}
	return nil
}

// Name returns the name of the dataset.
func (l *Loader) Name() string {
	return "ColabFitStreamingDataset"
}

// Yield returns the next batch of the epoch as gomlx tensors, see
// StructureBatchFlat.ToGomlxTensors for the layout. It returns io.EOF once
// the epoch is exhausted; call Reset to start the next one.
func (l *Loader) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	l.mu.Lock()
	order := l.order
	b := l.next
	l.next++
	l.mu.Unlock()

	if b >= l.numBatches(len(order)) {
		return nil, nil, nil, io.EOF
	}

	ids, err := l.batchIDs(order, b)
	if err != nil {
		return nil, nil, nil, err
	}
	batch, err := Materialize(l.yieldCtx, l.fetcher, ids, l.catalog.Datasets())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("batch %d: %w", b, err)
	}
	flat, err := MakeStructureBatchFlat(batch)
	if err != nil {
		return nil, nil, nil, err
	}
	inputs, labels, err = flat.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, inputs, labels, nil
}

// Reset starts a new epoch, reshuffling when shuffling is enabled.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	order := make([]int, len(l.order))
	copy(order, l.order)
	l.order = order
	l.shuffleLocked()
	l.next = 0
}
