package terrain

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDimensions is returned when a grid is requested with a width or
// depth below one.
var ErrInvalidDimensions = errors.New("terrain: width and depth must be at least 1")

// HeightGrid is a dense row-major grid of scalar heights indexed by (x, z).
type HeightGrid struct {
	Width  int
	Depth  int
	Values []float64
}

// NewHeightGrid allocates a zeroed grid.
func NewHeightGrid(width, depth int) (*HeightGrid, error) {
	if err := checkDimensions(width, depth); err != nil {
		return nil, err
	}
	return &HeightGrid{
		Width:  width,
		Depth:  depth,
		Values: make([]float64, width*depth),
	}, nil
}

func checkDimensions(width, depth int) error {
	if width < 1 || depth < 1 {
		return fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, width, depth)
	}
	return nil
}

func (g *HeightGrid) index(x, z int) int {
	return z*g.Width + x
}

// At returns the height at (x, z).
func (g *HeightGrid) At(x, z int) float64 {
	return g.Values[g.index(x, z)]
}

// Set stores a height at (x, z).
func (g *HeightGrid) Set(x, z int, v float64) {
	g.Values[g.index(x, z)] = v
}

// Clone returns a deep copy of the grid.
func (g *HeightGrid) Clone() *HeightGrid {
	return &HeightGrid{
		Width:  g.Width,
		Depth:  g.Depth,
		Values: append([]float64(nil), g.Values...),
	}
}

// Range reports the minimum and maximum stored heights.
func (g *HeightGrid) Range() (min, max float64) {
	min = math.Inf(1)
	max = math.Inf(-1)
	for _, v := range g.Values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// Sum returns the total of all heights.
func (g *HeightGrid) Sum() float64 {
	total := 0.0
	for _, v := range g.Values {
		total += v
	}
	return total
}

// BiomeGrid holds one biome per cell, parallel to a HeightGrid.
type BiomeGrid struct {
	Width  int
	Depth  int
	Values []Biome
}

func newBiomeGrid(width, depth int) *BiomeGrid {
	return &BiomeGrid{
		Width:  width,
		Depth:  depth,
		Values: make([]Biome, width*depth),
	}
}

// At returns the biome at (x, z).
func (g *BiomeGrid) At(x, z int) Biome {
	return g.Values[z*g.Width+x]
}

// Set stores the biome at (x, z).
func (g *BiomeGrid) Set(x, z int, b Biome) {
	g.Values[z*g.Width+x] = b
}

// Counts tallies cells per biome.
func (g *BiomeGrid) Counts() map[Biome]int {
	counts := make(map[Biome]int, 3)
	for _, b := range g.Values {
		counts[b]++
	}
	return counts
}

// LakeMask marks the cells lying below the lake threshold.
type LakeMask struct {
	Width  int
	Depth  int
	Values []bool
}

// NewLakeMask allocates an all-false mask.
func NewLakeMask(width, depth int) (*LakeMask, error) {
	if err := checkDimensions(width, depth); err != nil {
		return nil, err
	}
	return &LakeMask{
		Width:  width,
		Depth:  depth,
		Values: make([]bool, width*depth),
	}, nil
}

// At reports whether (x, z) is lake.
func (m *LakeMask) At(x, z int) bool {
	return m.Values[z*m.Width+x]
}

// Set marks (x, z).
func (m *LakeMask) Set(x, z int, v bool) {
	m.Values[z*m.Width+x] = v
}

// BuildLakeMask marks every cell of grid strictly below threshold. The lake
// threshold is configured separately from the biome water thresholds and the
// two are allowed to disagree.
func BuildLakeMask(grid *HeightGrid, threshold float64) *LakeMask {
	mask := &LakeMask{
		Width:  grid.Width,
		Depth:  grid.Depth,
		Values: make([]bool, len(grid.Values)),
	}
	for i, v := range grid.Values {
		mask.Values[i] = v < threshold
	}
	return mask
}

// Normalize linearly remaps the grid from its own observed [min,max] onto
// [0,1] in place. The range is taken from this grid only, so normalizing a
// sub-window does not reproduce the normalization of the whole. A constant
// grid becomes all zeros.
func Normalize(grid *HeightGrid) *HeightGrid {
	if grid == nil || len(grid.Values) == 0 {
		return grid
	}
	min, max := grid.Range()
	span := max - min
	if span == 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		for i := range grid.Values {
			grid.Values[i] = 0
		}
		return grid
	}
	for i, v := range grid.Values {
		grid.Values[i] = (v - min) / span
	}
	return grid
}
