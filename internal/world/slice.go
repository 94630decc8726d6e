package world

import (
	"math"

	"terrainstream/internal/terrain"
)

// DefaultUniformEpsilon is the tolerance under which a slice counts as flat.
const DefaultUniformEpsilon = 0.001

// ChunkSlice is a (chunkSize+1)² window of the global grids, one sample
// wider than the chunk so neighbouring chunk meshes share their edges.
type ChunkSlice struct {
	Coord   ChunkCoord
	Heights *terrain.HeightGrid
	Lakes   *terrain.LakeMask
	Uniform bool
	Epoch   uint64
}

// Slice copies the window for coord out of the heightmap using wrapped
// indices. The slice is flagged Uniform when every height lies within
// epsilon of the first sample.
func (h *Heightmap) Slice(coord ChunkCoord, chunkSize int, epsilon float64) *ChunkSlice {
	size := chunkSize + 1
	heights := &terrain.HeightGrid{Width: size, Depth: size, Values: make([]float64, size*size)}
	lakes := &terrain.LakeMask{Width: size, Depth: size, Values: make([]bool, size*size)}

	globalW := h.Width()
	globalD := h.Depth()
	uniform := true
	first := 0.0

	for z := 0; z < size; z++ {
		gz := WrapIndex(coord.Z, chunkSize, z, globalD)
		for x := 0; x < size; x++ {
			gx := WrapIndex(coord.X, chunkSize, x, globalW)

			v := h.Heights.At(gx, gz)
			heights.Set(x, z, v)
			lakes.Set(x, z, h.Lakes.At(gx, gz))

			if x == 0 && z == 0 {
				first = v
			} else if uniform && math.Abs(v-first) > epsilon {
				uniform = false
			}
		}
	}

	return &ChunkSlice{
		Coord:   coord,
		Heights: heights,
		Lakes:   lakes,
		Uniform: uniform,
		Epoch:   h.Epoch,
	}
}
