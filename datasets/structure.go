package datasets

import "math"

// Info is the metadata attached to a materialized structure.
type Info struct {
	// DatasetIdx is the position of the owning dataset in the DatasetSet.
	DatasetIdx int
	PoID       string
	CoID       string
	Energy     float64
	Stress     []float64
}

// Structure is one materialized record: the geometry of an atomic
// configuration plus its computed properties.
type Structure struct {
	Numbers   []int
	Positions [][3]float64
	Cell      [3][3]float64
	PBC       [3]bool

	Info Info

	// Forces holds one vector per atom.
	Forces [][3]float64
}

// NumAtoms returns the number of atoms.
func (s *Structure) NumAtoms() int {
	return len(s.Numbers)
}

// Volume returns the absolute volume spanned by the cell vectors.
func (s *Structure) Volume() float64 {
	a, b, c := s.Cell[0], s.Cell[1], s.Cell[2]
	det := a[0]*(b[1]*c[2]-b[2]*c[1]) -
		a[1]*(b[0]*c[2]-b[2]*c[0]) +
		a[2]*(b[0]*c[1]-b[1]*c[0])
	return math.Abs(det)
}

// newStructure builds a structure from a decoded payload. The payload's
// slices are handed over, not copied.
func newStructure(p RecordPayload, datasetIdx int) *Structure {
	return &Structure{
		Numbers:   p.AtomicNumbers,
		Positions: p.Positions,
		Cell:      p.Cell,
		PBC:       p.PBC,
		Info: Info{
			DatasetIdx: datasetIdx,
			PoID:       p.PoID,
			CoID:       p.CoID,
			Energy:     p.Energy,
			Stress:     p.Stress,
		},
		Forces: p.Forces,
	}
}
