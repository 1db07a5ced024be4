package datasets

import (
	"context"
	"fmt"
)

// Converter turns a materialized structure into the representation a model
// consumes, e.g. a graph or a set of tensors.
type Converter[T any] interface {
	Convert(s *Structure) (T, error)
}

// ConverterFunc adapts a plain function to Converter.
type ConverterFunc[T any] func(s *Structure) (T, error)

// Convert calls f(s).
func (f ConverterFunc[T]) Convert(s *Structure) (T, error) {
	return f(s)
}

// Materialize fetches the records named by ids with one request and builds
// one Structure per returned payload.
//
// The result follows the order of the service's response, which need not
// match ids, and is shorter than ids when the service returns fewer
// records. A payload from a dataset outside set, or one that was not asked
// for, fails the whole batch.
func Materialize(ctx context.Context, f Fetcher, ids []string, set *DatasetSet) ([]*Structure, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: fetcher is nil", ErrConfig)
	}
	if set == nil {
		return nil, fmt.Errorf("%w: dataset set is nil", ErrConfig)
	}

	payloads, err := f.FetchRecords(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch batch of %d records: %w", len(ids), err)
	}

	requested := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		requested[id] = struct{}{}
	}

	out := make([]*Structure, 0, len(payloads))
	for _, p := range payloads {
		if _, ok := requested[p.PoID]; !ok {
			return nil, integrityErrorf("record %s was returned but not requested", p.PoID)
		}
		idx, ok := set.IndexOf(p.DatasetID)
		if !ok {
			return nil, integrityErrorf("record %s belongs to dataset %s, which is not in the selected datasets",
				p.PoID, p.DatasetID)
		}
		out = append(out, newStructure(p, idx))
	}
	return out, nil
}

// MaterializeWith is Materialize followed by conv on every structure. The
// converted values keep the order Materialize would have produced.
func MaterializeWith[T any](ctx context.Context, f Fetcher, ids []string, set *DatasetSet, conv Converter[T]) ([]T, error) {
	if conv == nil {
		return nil, fmt.Errorf("%w: converter is nil", ErrConfig)
	}

	structures, err := Materialize(ctx, f, ids, set)
	if err != nil {
		return nil, err
	}

	out := make([]T, len(structures))
	for i, s := range structures {
		v, err := conv.Convert(s)
		if err != nil {
			return nil, fmt.Errorf("failed to convert record %s: %w", s.Info.PoID, err)
		}
		out[i] = v
	}
	return out, nil
}
