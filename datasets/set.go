package datasets

import (
	"fmt"
	"sort"
)

// DatasetSet is the canonical, sorted list of dataset identifiers. Its order
// fixes the dataset index stamped on every materialized structure, so a
// Catalog and the batches built from it must share the same set.
type DatasetSet struct {
	ids   []string
	index map[string]int
}

// NewDatasetSet sorts a copy of ids. Duplicates are kept; IndexOf reports
// the first occurrence.
func NewDatasetSet(ids []string) (*DatasetSet, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one dataset id is required", ErrConfig)
	}

	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	index := make(map[string]int, len(sorted))
	for i, id := range sorted {
		if _, ok := index[id]; !ok {
			index[id] = i
		}
	}
	return &DatasetSet{ids: sorted, index: index}, nil
}

// IDs returns a copy of the sorted identifiers.
func (s *DatasetSet) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the number of identifiers, duplicates included.
func (s *DatasetSet) Len() int {
	return len(s.ids)
}

// IndexOf returns the position of id in the sorted list.
func (s *DatasetSet) IndexOf(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}
