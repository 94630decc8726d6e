package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"terrainstream/internal/mesh"
)

// Materials names the render materials bound to a chunk's meshes.
type Materials struct {
	Terrain string
	Water   string
}

// Chunk is a pooled renderable unit. A chunk owns its meshes until it is
// reset and returned to the pool.
type Chunk struct {
	id        int
	Coord     ChunkCoord
	Name      string
	Position  mgl32.Vec3
	Terrain   *mesh.Mesh
	Water     *mesh.Mesh
	Materials Materials

	active bool
	pooled bool
}

// ID is the pool-assigned identity, stable across reuse.
func (c *Chunk) ID() int {
	return c.id
}

// Active reports whether the chunk is currently displayed.
func (c *Chunk) Active() bool {
	return c.active
}

// Pooled reports whether the chunk sits on the pool's free list.
func (c *Chunk) Pooled() bool {
	return c.pooled
}

// HasWater reports whether a water sub-mesh is attached.
func (c *Chunk) HasWater() bool {
	return c.Water != nil
}

// Install attaches geometry for coord and marks the chunk active.
func (c *Chunk) Install(coord ChunkCoord, chunkSize int, terrain, water *mesh.Mesh, materials Materials) {
	c.Coord = coord
	c.Name = fmt.Sprintf("Chunk_%d_%d", coord.X, coord.Z)
	c.Position = WorldPosition(coord, chunkSize)
	c.Terrain = terrain
	c.Water = water
	c.Materials = materials
	c.active = true
}

// Reset drops every mesh reference and deactivates the chunk.
func (c *Chunk) Reset() {
	c.Coord = ChunkCoord{}
	c.Name = ""
	c.Position = mgl32.Vec3{}
	c.Terrain = nil
	c.Water = nil
	c.Materials = Materials{}
	c.active = false
}
