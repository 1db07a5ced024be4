package datasets

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeText parses a JSON document that the service ships inside a string
// field.
func decodeText(field, s string, v any) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s: empty string", field)
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

func decodeInts(field, s string) ([]int, error) {
	var out []int
	if err := decodeText(field, s, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%s: expected an array, got null", field)
	}
	return out, nil
}

// decodeVec3s parses a list of 3-vectors. Rows are decoded as slices first
// since a Go array target would silently pad or truncate short rows.
func decodeVec3s(field, s string) ([][3]float64, error) {
	var rows [][]float64
	if err := decodeText(field, s, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		return nil, fmt.Errorf("%s: expected an array, got null", field)
	}
	out := make([][3]float64, len(rows))
	for i, row := range rows {
		if len(row) != 3 {
			return nil, fmt.Errorf("%s: row %d has %d components, expected 3", field, i, len(row))
		}
		copy(out[i][:], row)
	}
	return out, nil
}

func decodeMatrix3(field, s string) ([3][3]float64, error) {
	var m [3][3]float64
	rows, err := decodeVec3s(field, s)
	if err != nil {
		return m, err
	}
	if len(rows) != 3 {
		return m, fmt.Errorf("%s: has %d rows, expected 3", field, len(rows))
	}
	copy(m[:], rows)
	return m, nil
}

// decodeStress accepts either a flat list of 6 (Voigt) or 9 values, or a
// nested 3x3 matrix which is flattened row-major.
func decodeStress(field, s string) ([]float64, error) {
	var flat []float64
	if err := decodeText(field, s, &flat); err == nil {
		if len(flat) != 6 && len(flat) != 9 {
			return nil, fmt.Errorf("%s: has %d values, expected 6 or 9", field, len(flat))
		}
		return flat, nil
	}

	m, err := decodeMatrix3(field, s)
	if err != nil {
		return nil, err
	}
	flat = make([]float64, 0, 9)
	for _, row := range m {
		flat = append(flat, row[:]...)
	}
	return flat, nil
}
