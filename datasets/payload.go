package datasets

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RecordPayload is one record returned by the fetch endpoint, with every
// string-encoded numeric field decoded into its declared shape.
type RecordPayload struct {
	PoID      string
	CoID      string
	DatasetID string

	AtomicNumbers []int
	Positions     [][3]float64
	Cell          [3][3]float64
	PBC           [3]bool
	Forces        [][3]float64

	// Stress holds 6 (Voigt) or 9 (row-major 3x3) values.
	Stress []float64
	Energy float64
}

// wirePayload mirrors the JSON object sent by the service. Pointers tell a
// missing or null field apart from a zero value.
type wirePayload struct {
	PoID      *string `json:"po_id"`
	CoID      *string `json:"co_id"`
	DatasetID *string `json:"dataset_id"`

	AtomicNumbers *string  `json:"atomic_numbers"`
	Positions     *string  `json:"positions_00"`
	Cell          *string  `json:"cell"`
	PBC           []bool   `json:"pbc"`
	Forces        *string  `json:"forces"`
	Stress        *string  `json:"stress"`
	Energy        *float64 `json:"energy"`
}

// UnmarshalJSON decodes and validates a record from its wire form. Any
// missing field or shape mismatch yields an error wrapping ErrDataIntegrity.
func (p *RecordPayload) UnmarshalJSON(data []byte) error {
	var w wirePayload
	if err := json.Unmarshal(data, &w); err != nil {
		return integrityErrorf("malformed record: %v", err)
	}

	record := "<unknown>"
	if w.PoID != nil && *w.PoID != "" {
		record = *w.PoID
	}
	fail := func(err error) error {
		return integrityErrorf("record %s: %v", record, err)
	}

	ids := []struct {
		name string
		val  *string
	}{
		{"po_id", w.PoID},
		{"co_id", w.CoID},
		{"dataset_id", w.DatasetID},
	}
	for _, id := range ids {
		if id.val == nil || *id.val == "" {
			return fail(fmt.Errorf("missing field %s", id.name))
		}
	}

	texts := []struct {
		name string
		val  *string
	}{
		{"atomic_numbers", w.AtomicNumbers},
		{"positions_00", w.Positions},
		{"cell", w.Cell},
		{"forces", w.Forces},
		{"stress", w.Stress},
	}
	for _, t := range texts {
		if t.val == nil {
			return fail(fmt.Errorf("missing field %s", t.name))
		}
	}
	if w.Energy == nil {
		return fail(errors.New("missing field energy"))
	}
	if len(w.PBC) != 3 {
		return fail(fmt.Errorf("pbc: has %d flags, expected 3", len(w.PBC)))
	}

	numbers, err := decodeInts("atomic_numbers", *w.AtomicNumbers)
	if err != nil {
		return fail(err)
	}
	positions, err := decodeVec3s("positions_00", *w.Positions)
	if err != nil {
		return fail(err)
	}
	if len(positions) != len(numbers) {
		return fail(fmt.Errorf("positions_00: has %d rows for %d atoms", len(positions), len(numbers)))
	}
	cell, err := decodeMatrix3("cell", *w.Cell)
	if err != nil {
		return fail(err)
	}
	forces, err := decodeVec3s("forces", *w.Forces)
	if err != nil {
		return fail(err)
	}
	if len(forces) != len(numbers) {
		return fail(fmt.Errorf("forces: has %d rows for %d atoms", len(forces), len(numbers)))
	}
	stress, err := decodeStress("stress", *w.Stress)
	if err != nil {
		return fail(err)
	}

	*p = RecordPayload{
		PoID:          *w.PoID,
		CoID:          *w.CoID,
		DatasetID:     *w.DatasetID,
		AtomicNumbers: numbers,
		Positions:     positions,
		Cell:          cell,
		PBC:           [3]bool{w.PBC[0], w.PBC[1], w.PBC[2]},
		Forces:        forces,
		Stress:        stress,
		Energy:        *w.Energy,
	}
	return nil
}
