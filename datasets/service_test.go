package datasets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// wireRecord builds a record in the service's wire format: numeric fields
// are JSON documents embedded in strings.
func wireRecord(po, co, dataset string) map[string]any {
	return map[string]any{
		"po_id":          po,
		"co_id":          co,
		"dataset_id":     dataset,
		"atomic_numbers": "[1, 8]",
		"positions_00":   "[[0.0, 0.0, 0.0], [0.0, 0.0, 0.96]]",
		"cell":           "[[10.0, 0.0, 0.0], [0.0, 10.0, 0.0], [0.0, 0.0, 10.0]]",
		"pbc":            []bool{true, true, false},
		"forces":         "[[1.0, 2.0, 3.0], [-1.0, -2.0, -3.0]]",
		"stress":         "[1.0, 2.0, 3.0, 4.0, 5.0, 6.0]",
		"energy":         -14.25,
	}
}

// fakeService imitates the resolve and fetch endpoints.
type fakeService struct {
	t *testing.T

	// resolved is the body of every resolve response.
	resolved []string
	// records maps po_id to a wire record served by the fetch endpoint.
	records map[string]map[string]any
	// reverse serves fetched records in reverse request order.
	reverse bool
	// extra records are appended to every fetch response.
	extra []map[string]any
	// status, when non-zero, is returned by both endpoints with no body.
	status int

	resolveCalls atomic.Int32
	fetchCalls   atomic.Int32

	mu           sync.Mutex
	lastDatasets []string
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	return &fakeService{t: t, records: make(map[string]map[string]any)}
}

func (f *fakeService) add(po, dataset string) {
	f.resolved = append(f.resolved, po)
	f.records[po] = wireRecord(po, "CO_"+po, dataset)
}

func (f *fakeService) datasetsSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.lastDatasets)
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		f.t.Errorf("expected POST, got %s", r.Method)
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}

	switch r.URL.Path {
	case DefaultResolvePath:
		f.resolveCalls.Add(1)
		var req resolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("bad resolve request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.lastDatasets = req.Datasets
		f.mu.Unlock()
		writeJSON(w, f.resolved)

	case DefaultFetchPath:
		f.fetchCalls.Add(1)
		var req fetchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("bad fetch request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		out := make([]map[string]any, 0, len(req.POList))
		for _, id := range req.POList {
			if rec, ok := f.records[id]; ok {
				out = append(out, rec)
			}
		}
		if f.reverse {
			slices.Reverse(out)
		}
		out = append(out, f.extra...)
		writeJSON(w, out)

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// start serves f and returns a client pointed at it.
func (f *fakeService) start() *Client {
	f.t.Helper()
	srv := httptest.NewServer(f)
	f.t.Cleanup(srv.Close)
	return NewClient(srv.URL, WithHTTPClient(srv.Client()))
}

// memFetcher serves decoded payloads from memory in request order.
type memFetcher struct {
	payloads map[string]RecordPayload
	calls    atomic.Int32
	fail     map[string]error
}

func newMemFetcher(n int, datasets ...string) (*memFetcher, []string) {
	m := &memFetcher{payloads: make(map[string]RecordPayload, n)}
	ids := make([]string, n)
	for i := range n {
		id := fmt.Sprintf("PO_%03d", i)
		ids[i] = id
		m.payloads[id] = RecordPayload{
			PoID:          id,
			CoID:          "CO_" + id,
			DatasetID:     datasets[i%len(datasets)],
			AtomicNumbers: []int{6},
			Positions:     [][3]float64{{float64(i), 0, 0}},
			Cell:          [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
			PBC:           [3]bool{true, true, true},
			Forces:        [][3]float64{{0, 0, float64(i)}},
			Stress:        []float64{0, 0, 0, 0, 0, 0},
			Energy:        float64(-i),
		}
	}
	return m, ids
}

func (m *memFetcher) FetchRecords(_ context.Context, ids []string) ([]RecordPayload, error) {
	m.calls.Add(1)
	out := make([]RecordPayload, 0, len(ids))
	for _, id := range ids {
		if err, ok := m.fail[id]; ok {
			return nil, err
		}
		if p, ok := m.payloads[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// staticResolver returns a fixed list of ids.
type staticResolver struct {
	ids   []string
	calls int
}

func (s *staticResolver) ResolveRecords(_ context.Context, _ []string) ([]string, error) {
	s.calls++
	return s.ids, nil
}

func newMemCatalog(t *testing.T, ids []string, datasets ...string) *Catalog {
	t.Helper()
	cat, err := NewCatalog(context.Background(), &staticResolver{ids: ids}, datasets, InMemory)
	require.NoError(t, err)
	return cat
}
