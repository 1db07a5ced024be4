package datasets

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMaterialize_DatasetIndex is the basic end-to-end scenario: a record
// from the second dataset in sorted order is tagged with index 1.
func TestMaterialize_DatasetIndex(t *testing.T) {
	svc := newFakeService(t)
	svc.add("r1", "DS_b")
	svc.add("r2", "DS_a")
	client := svc.start()

	cat, err := NewCatalog(context.Background(), client, []string{"DS_a", "DS_b"}, InMemory)
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())

	id, err := cat.Get(0)
	require.NoError(t, err)

	out, err := Materialize(context.Background(), client, []string{id}, cat.Datasets())
	require.NoError(t, err)
	require.Len(t, out, 1)

	s := out[0]
	assert.Equal(t, 1, s.Info.DatasetIdx)
	assert.Equal(t, "r1", s.Info.PoID)
	assert.Equal(t, "CO_r1", s.Info.CoID)
	assert.Equal(t, -14.25, s.Info.Energy)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, s.Info.Stress)
	assert.Equal(t, []int{1, 8}, s.Numbers)
	assert.Equal(t, [][3]float64{{0, 0, 0}, {0, 0, 0.96}}, s.Positions)
	assert.Equal(t, [3]bool{true, true, false}, s.PBC)
	assert.Equal(t, [][3]float64{{1, 2, 3}, {-1, -2, -3}}, s.Forces)
	assert.Equal(t, 2, s.NumAtoms())
	assert.InDelta(t, 1000.0, s.Volume(), 1e-9)

	assert.Equal(t, int32(1), svc.fetchCalls.Load())
}

// TestMaterialize_KeepsServerOrder checks that the output follows the
// response order rather than the request order.
func TestMaterialize_KeepsServerOrder(t *testing.T) {
	svc := newFakeService(t)
	svc.add("r1", "DS_a")
	svc.add("r2", "DS_a")
	svc.add("r3", "DS_b")
	svc.reverse = true
	client := svc.start()

	set, err := NewDatasetSet([]string{"DS_b", "DS_a"})
	require.NoError(t, err)

	out, err := Materialize(context.Background(), client, []string{"r1", "r2", "r3"}, set)
	require.NoError(t, err)

	got := make([]string, len(out))
	for i, s := range out {
		got[i] = s.Info.PoID
	}
	assert.Equal(t, []string{"r3", "r2", "r1"}, got)
	assert.Equal(t, 1, out[0].Info.DatasetIdx)
	assert.Equal(t, 0, out[1].Info.DatasetIdx)
}

// TestMaterialize_ShortResponse checks that missing records shorten the
// batch without an error.
func TestMaterialize_ShortResponse(t *testing.T) {
	svc := newFakeService(t)
	svc.add("r1", "DS_a")
	client := svc.start()

	set, err := NewDatasetSet([]string{"DS_a"})
	require.NoError(t, err)

	out, err := Materialize(context.Background(), client, []string{"r1", "gone", "also-gone"}, set)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestMaterialize_UnknownDataset(t *testing.T) {
	svc := newFakeService(t)
	svc.add("r1", "DS_other")
	client := svc.start()

	set, err := NewDatasetSet([]string{"DS_a"})
	require.NoError(t, err)

	_, err = Materialize(context.Background(), client, []string{"r1"}, set)
	assert.ErrorIs(t, err, ErrDataIntegrity)
}

func TestMaterialize_UnrequestedRecord(t *testing.T) {
	svc := newFakeService(t)
	svc.add("r1", "DS_a")
	svc.extra = []map[string]any{wireRecord("stranger", "CO_x", "DS_a")}
	client := svc.start()

	set, err := NewDatasetSet([]string{"DS_a"})
	require.NoError(t, err)

	_, err = Materialize(context.Background(), client, []string{"r1"}, set)
	assert.ErrorIs(t, err, ErrDataIntegrity)
}

// TestMaterialize_MalformedRecordFailsBatch checks that one bad payload
// fails the whole batch.
func TestMaterialize_MalformedRecordFailsBatch(t *testing.T) {
	svc := newFakeService(t)
	svc.add("r1", "DS_a")
	svc.add("r2", "DS_a")
	svc.records["r2"]["forces"] = "not json"
	client := svc.start()

	set, err := NewDatasetSet([]string{"DS_a"})
	require.NoError(t, err)

	out, err := Materialize(context.Background(), client, []string{"r1", "r2"}, set)
	assert.ErrorIs(t, err, ErrDataIntegrity)
	assert.Nil(t, out)
}

func TestMaterialize_TransportFailure(t *testing.T) {
	svc := newFakeService(t)
	svc.status = http.StatusBadGateway
	client := svc.start()

	set, err := NewDatasetSet([]string{"DS_a"})
	require.NoError(t, err)

	_, err = Materialize(context.Background(), client, []string{"r1"}, set)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestMaterializeWith_AppliesConverter(t *testing.T) {
	fetcher, ids := newMemFetcher(5, "DS_a", "DS_b")
	set, err := NewDatasetSet([]string{"DS_b", "DS_a"})
	require.NoError(t, err)

	plain, err := Materialize(context.Background(), fetcher, ids, set)
	require.NoError(t, err)

	conv := ConverterFunc[string](func(s *Structure) (string, error) {
		return s.Info.PoID + "@" + s.Info.CoID, nil
	})
	converted, err := MaterializeWith(context.Background(), fetcher, ids, set, conv)
	require.NoError(t, err)

	require.Len(t, converted, len(plain))
	for i, s := range plain {
		assert.Equal(t, s.Info.PoID+"@"+s.Info.CoID, converted[i])
	}
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestMaterializeWith_ConverterError(t *testing.T) {
	fetcher, ids := newMemFetcher(3, "DS_a")
	set, err := NewDatasetSet([]string{"DS_a"})
	require.NoError(t, err)

	boom := errors.New("boom")
	conv := ConverterFunc[int](func(s *Structure) (int, error) {
		if s.Info.PoID == ids[1] {
			return 0, boom
		}
		return s.NumAtoms(), nil
	})

	_, err = MaterializeWith(context.Background(), fetcher, ids, set, conv)
	assert.ErrorIs(t, err, boom)
}

func TestMaterializeWith_NilConverter(t *testing.T) {
	fetcher, ids := newMemFetcher(1, "DS_a")
	set, err := NewDatasetSet([]string{"DS_a"})
	require.NoError(t, err)

	_, err = MaterializeWith[int](context.Background(), fetcher, ids, set, nil)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Zero(t, fetcher.calls.Load())
}
