package report

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Noofbiz/cfstream/datasets"
)

// Summary accumulates statistics over streamed batches. It is not safe for
// concurrent use; Loader.Iterate calls its callback from one goroutine.
type Summary struct {
	Batches    int
	Structures int
	Atoms      int

	// PerDataset counts structures by dataset index.
	PerDataset map[int]int

	// BatchTimes holds the wall time between consecutive batches.
	BatchTimes []time.Duration

	energies []float64
	last     time.Time
}

// NewSummary starts the batch clock at start.
func NewSummary(start time.Time) *Summary {
	return &Summary{PerDataset: make(map[int]int), last: start}
}

// Add records one batch received at time now.
func (s *Summary) Add(batch []*datasets.Structure, now time.Time) {
	s.Batches++
	s.BatchTimes = append(s.BatchTimes, now.Sub(s.last))
	s.last = now
	for _, st := range batch {
		s.Structures++
		s.Atoms += st.NumAtoms()
		s.PerDataset[st.Info.DatasetIdx]++
		s.energies = append(s.energies, st.Info.Energy)
	}
}

// Energies returns the energies seen so far in arrival order.
func (s *Summary) Energies() []float64 {
	out := make([]float64, len(s.energies))
	copy(out, s.energies)
	return out
}

// MeanBatchTime returns the mean time between batches.
func (s *Summary) MeanBatchTime() time.Duration {
	if len(s.BatchTimes) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range s.BatchTimes {
		total += d
	}
	return total / time.Duration(len(s.BatchTimes))
}

// EnergyRange returns the smallest and largest energy seen.
func (s *Summary) EnergyRange() (lo, hi float64, ok bool) {
	if len(s.energies) == 0 {
		return 0, 0, false
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, e := range s.energies {
		lo = math.Min(lo, e)
		hi = math.Max(hi, e)
	}
	return lo, hi, true
}

// DatasetIndices returns the dataset indices seen, sorted.
func (s *Summary) DatasetIndices() []int {
	out := make([]int, 0, len(s.PerDataset))
	for idx := range s.PerDataset {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// EnergyHistogram writes a histogram of energies to path. The image format
// follows the file extension (png, svg, pdf, ...).
func EnergyHistogram(energies []float64, bins int, path string) error {
	if len(energies) == 0 {
		return errors.New("no energies to plot")
	}
	if bins <= 0 {
		return fmt.Errorf("bins must be positive, got %d", bins)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Energy distribution (%d structures)", len(energies))
	p.X.Label.Text = "Energy (eV)"
	p.Y.Label.Text = "Count"

	h, err := plotter.NewHist(plotter.Values(energies), bins)
	if err != nil {
		return fmt.Errorf("failed to build histogram: %w", err)
	}
	p.Add(h, plotter.NewGrid())

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
