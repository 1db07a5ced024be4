package datasets

import (
	"context"
	"fmt"
)

// ListMode selects where a Catalog keeps its record identifiers.
type ListMode int

const (
	// InMemory keeps the resolved identifiers in a slice.
	InMemory ListMode = iota
	// OnDisk would persist identifiers to a file. Not supported yet.
	OnDisk
)

func (m ListMode) String() string {
	switch m {
	case InMemory:
		return "in-memory"
	case OnDisk:
		return "on-disk"
	default:
		return fmt.Sprintf("ListMode(%d)", int(m))
	}
}

// Catalog holds the record identifiers of a set of datasets. It is filled
// once by NewCatalog and never modified, so it can be read from many
// goroutines without locking.
type Catalog struct {
	datasets *DatasetSet
	records  []string
}

// NewCatalog resolves the record identifiers of datasetIDs with a single
// request. The identifiers are sorted first; the sorted order is the
// dataset index basis for everything built from this catalog. Records are
// kept in the order the service returned them.
func NewCatalog(ctx context.Context, r Resolver, datasetIDs []string, mode ListMode) (*Catalog, error) {
	if mode != InMemory {
		return nil, fmt.Errorf("%w: catalog mode %s, only %s is supported", ErrNotImplemented, mode, InMemory)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: resolver is nil", ErrConfig)
	}

	set, err := NewDatasetSet(datasetIDs)
	if err != nil {
		return nil, err
	}

	records, err := r.ResolveRecords(ctx, set.IDs())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve records for %d datasets: %w", set.Len(), err)
	}

	return &Catalog{datasets: set, records: records}, nil
}

// Len returns the number of record identifiers.
func (c *Catalog) Len() int {
	return len(c.records)
}

// Get returns the record identifier at position i.
func (c *Catalog) Get(i int) (string, error) {
	if i < 0 || i >= len(c.records) {
		return "", fmt.Errorf("%w: index %d out of range [0, %d)", ErrOutOfRange, i, len(c.records))
	}
	return c.records[i], nil
}

// IDs returns the record identifiers at the given positions.
func (c *Catalog) IDs(positions []int) ([]string, error) {
	ids := make([]string, len(positions))
	for k, i := range positions {
		id, err := c.Get(i)
		if err != nil {
			return nil, err
		}
		ids[k] = id
	}
	return ids, nil
}

// Datasets returns the canonical dataset set of this catalog.
func (c *Catalog) Datasets() *DatasetSet {
	return c.datasets
}
