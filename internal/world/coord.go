package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ChunkCoord identifies a chunk in chunk space.
type ChunkCoord struct {
	X int
	Z int
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Z)
}

// Add offsets a coordinate.
func (c ChunkCoord) Add(dx, dz int) ChunkCoord {
	return ChunkCoord{X: c.X + dx, Z: c.Z + dz}
}

// ChebyshevDistance returns max(|dx|, |dz|).
func (c ChunkCoord) ChebyshevDistance(o ChunkCoord) int {
	dx := c.X - o.X
	if dx < 0 {
		dx = -dx
	}
	dz := c.Z - o.Z
	if dz < 0 {
		dz = -dz
	}
	if dx > dz {
		return dx
	}
	return dz
}

// CoordForPosition returns floor(position / chunkSize) on the X and Z axes.
func CoordForPosition(pos mgl32.Vec3, chunkSize int) ChunkCoord {
	if chunkSize <= 0 {
		return ChunkCoord{}
	}
	size := float64(chunkSize)
	return ChunkCoord{
		X: int(math.Floor(float64(pos.X()) / size)),
		Z: int(math.Floor(float64(pos.Z()) / size)),
	}
}

// WorldPosition returns the world-space origin of a chunk.
func WorldPosition(coord ChunkCoord, chunkSize int) mgl32.Vec3 {
	return mgl32.Vec3{float32(coord.X * chunkSize), 0, float32(coord.Z * chunkSize)}
}

// Wrap maps any integer onto [0, max). It panics on max <= 0, which callers
// rule out by construction.
func Wrap(i, max int) int {
	return ((i % max) + max) % max
}

// WrapIndex maps a chunk-local sample onto the global grid so that chunk
// (0,0) starts at the grid centre and every coordinate, negative included,
// resolves to a valid index.
func WrapIndex(coord, chunkSize, local, dimension int) int {
	return Wrap(coord*chunkSize+local+dimension/2, dimension)
}

// Within lists every coordinate within Chebyshev radius of centre, row by
// row starting at the lowest X.
func Within(centre ChunkCoord, radius int) []ChunkCoord {
	if radius < 0 {
		return nil
	}
	side := 2*radius + 1
	out := make([]ChunkCoord, 0, side*side)
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			out = append(out, centre.Add(dx, dz))
		}
	}
	return out
}
