package datasets

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// StructureBatchFlat stores a batch of structures in flat contiguous
// buffers. Structures have different atom counts, so per-atom buffers are
// concatenated and AtomBatch records which structure each atom belongs to.
type StructureBatchFlat struct {
	BatchSize int
	NumAtoms  int

	// Per-atom buffers.
	Numbers   []int32
	Positions []float32 // NumAtoms*3
	Forces    []float32 // NumAtoms*3
	AtomBatch []int32

	// Per-structure buffers.
	Cells      []float32 // BatchSize*9
	PBC        []bool    // BatchSize*3
	Energy     []float32
	DatasetIdx []int32
}

// MakeStructureBatchFlat flattens a batch of structures into contiguous
// buffers.
func MakeStructureBatchFlat(batch []*Structure) (*StructureBatchFlat, error) {
	total := 0
	for i, s := range batch {
		if s == nil {
			return nil, fmt.Errorf("structure %d is nil", i)
		}
		if len(s.Positions) != s.NumAtoms() || len(s.Forces) != s.NumAtoms() {
			return nil, fmt.Errorf("inconsistent atom counts in structure %d (%s): numbers=%d positions=%d forces=%d",
				i, s.Info.PoID, s.NumAtoms(), len(s.Positions), len(s.Forces))
		}
		total += s.NumAtoms()
	}

	b := &StructureBatchFlat{
		BatchSize:  len(batch),
		NumAtoms:   total,
		Numbers:    make([]int32, 0, total),
		Positions:  make([]float32, 0, total*3),
		Forces:     make([]float32, 0, total*3),
		AtomBatch:  make([]int32, 0, total),
		Cells:      make([]float32, 0, len(batch)*9),
		PBC:        make([]bool, 0, len(batch)*3),
		Energy:     make([]float32, 0, len(batch)),
		DatasetIdx: make([]int32, 0, len(batch)),
	}

	for i, s := range batch {
		for a, z := range s.Numbers {
			b.Numbers = append(b.Numbers, int32(z))
			b.AtomBatch = append(b.AtomBatch, int32(i))
			for k := range 3 {
				b.Positions = append(b.Positions, float32(s.Positions[a][k]))
				b.Forces = append(b.Forces, float32(s.Forces[a][k]))
			}
		}
		for _, row := range s.Cell {
			for _, v := range row {
				b.Cells = append(b.Cells, float32(v))
			}
		}
		b.PBC = append(b.PBC, s.PBC[:]...)
		b.Energy = append(b.Energy, float32(s.Info.Energy))
		b.DatasetIdx = append(b.DatasetIdx, int32(s.Info.DatasetIdx))
	}

	return b, nil
}

// rows3 reshapes a flat buffer into rows of three values.
func rows3(flat []float32) [][]float32 {
	out := make([][]float32, len(flat)/3)
	for i := range out {
		out[i] = flat[i*3 : (i+1)*3]
	}
	return out
}

// ToGomlxTensors converts the batch to gomlx tensors.
//
// Inputs are, in order: atomic numbers [atoms], positions [atoms, 3], atom
// to structure index [atoms] and cells [batch, 3, 3]. Labels are energy
// [batch] and forces [atoms, 3].
func (b *StructureBatchFlat) ToGomlxTensors() (inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if b.BatchSize == 0 || b.NumAtoms == 0 {
		return nil, nil, fmt.Errorf("cannot build tensors for an empty batch (%d structures, %d atoms)", b.BatchSize, b.NumAtoms)
	}
	cells := make([][][]float32, b.BatchSize)
	for i := range cells {
		cells[i] = rows3(b.Cells[i*9 : (i+1)*9])
	}

	inputs = []*tensors.Tensor{
		tensors.FromAnyValue(b.Numbers),
		tensors.FromAnyValue(rows3(b.Positions)),
		tensors.FromAnyValue(b.AtomBatch),
		tensors.FromAnyValue(cells),
	}
	labels = []*tensors.Tensor{
		tensors.FromAnyValue(b.Energy),
		tensors.FromAnyValue(rows3(b.Forces)),
	}
	return inputs, labels, nil
}

// StructureTensors is the per-structure tensor form produced by
// TensorConverter.
type StructureTensors struct {
	PoID       string
	DatasetIdx int
	Energy     float32

	Numbers   *tensors.Tensor // [atoms] int32
	Positions *tensors.Tensor // [atoms, 3] float32
	Cell      *tensors.Tensor // [3, 3] float32
	Forces    *tensors.Tensor // [atoms, 3] float32
}

// TensorConverter converts structures to StructureTensors. It can be passed
// wherever a Converter is accepted.
type TensorConverter struct{}

// Convert implements Converter.
func (TensorConverter) Convert(s *Structure) (*StructureTensors, error) {
	flat, err := MakeStructureBatchFlat([]*Structure{s})
	if err != nil {
		return nil, err
	}
	if flat.NumAtoms == 0 {
		return nil, fmt.Errorf("structure %s has no atoms", s.Info.PoID)
	}
	return &StructureTensors{
		PoID:       s.Info.PoID,
		DatasetIdx: s.Info.DatasetIdx,
		Energy:     flat.Energy[0],
		Numbers:    tensors.FromAnyValue(flat.Numbers),
		Positions:  tensors.FromAnyValue(rows3(flat.Positions)),
		Cell:       tensors.FromAnyValue(rows3(flat.Cells)),
		Forces:     tensors.FromAnyValue(rows3(flat.Forces)),
	}, nil
}
