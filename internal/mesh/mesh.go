// Package mesh triangulates height grids and lake masks into plain geometry
// that a rendering backend can upload.
package mesh

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"

	"terrainstream/internal/curve"
	"terrainstream/internal/terrain"
)

// ErrDegenerate is returned for grids that cannot form a single triangle.
var ErrDegenerate = errors.New("mesh: grid needs at least 2x2 samples")

// Mesh is an indexed triangle list.
type Mesh struct {
	Vertices []mgl32.Vec3
	UVs      []mgl32.Vec2
	Normals  []mgl32.Vec3
	Indices  []uint32
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	if m == nil {
		return 0
	}
	return len(m.Vertices)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	if m == nil {
		return 0
	}
	return len(m.Indices) / 3
}

// Valid reports whether the mesh carries at least one triangle over three
// or more vertices.
func (m *Mesh) Valid() bool {
	return m.VertexCount() >= 3 && m.TriangleCount() > 0
}

// HeightRange returns the lowest and highest vertex Y.
func (m *Mesh) HeightRange() (min, max float32) {
	if m.VertexCount() == 0 {
		return 0, 0
	}
	min, max = m.Vertices[0].Y(), m.Vertices[0].Y()
	for _, v := range m.Vertices[1:] {
		if v.Y() < min {
			min = v.Y()
		}
		if v.Y() > max {
			max = v.Y()
		}
	}
	return min, max
}

func (m *Mesh) addTriangle(a, b, c int) {
	m.Indices = append(m.Indices, uint32(a), uint32(b), uint32(c))
}

// BuildTerrain emits one vertex per grid sample, centred on the origin, and
// two triangles per grid quad with consistent winding.
func BuildTerrain(grid *terrain.HeightGrid, master curve.Curve, verticalScale float64) (*Mesh, error) {
	if grid == nil || grid.Width < 2 || grid.Depth < 2 {
		return nil, ErrDegenerate
	}
	if master == nil {
		master = curve.Linear()
	}

	w, d := grid.Width, grid.Depth
	widthOffset := float32(w-1) / 2
	depthOffset := float32(d-1) / 2
	total := w * d

	m := &Mesh{
		Vertices: make([]mgl32.Vec3, total),
		UVs:      make([]mgl32.Vec2, total),
		Indices:  make([]uint32, 0, (w-1)*(d-1)*6),
	}

	for i := 0; i < total; i++ {
		row := i / w
		col := i % w

		height := verticalScale * master.Evaluate(grid.At(col, row))
		m.Vertices[i] = mgl32.Vec3{float32(col) - widthOffset, float32(height), float32(row) - depthOffset}
		m.UVs[i] = mgl32.Vec2{float32(col) / float32(w-1), float32(row) / float32(d-1)}

		if col < w-1 && row < d-1 {
			m.addTriangle(i, i+w+1, i+1)
			m.addTriangle(i, i+w, i+w+1)
		}
	}

	m.Normals = computeNormals(m.Vertices, m.Indices)
	return m, nil
}

// BuildWater emits a flat quad at baseHeight for every 2x2 block of the mask
// whose four cells are all set. Quads do not share vertices.
func BuildWater(mask *terrain.LakeMask, baseHeight float64) *Mesh {
	m := &Mesh{}
	if mask == nil || mask.Width < 2 || mask.Depth < 2 {
		return m
	}

	offsetX := float32(mask.Width-1) / 2
	offsetZ := float32(mask.Depth-1) / 2
	y := float32(baseHeight)
	up := mgl32.Vec3{0, 1, 0}

	for x := 0; x < mask.Width-1; x++ {
		for z := 0; z < mask.Depth-1; z++ {
			if !(mask.At(x, z) && mask.At(x+1, z) && mask.At(x, z+1) && mask.At(x+1, z+1)) {
				continue
			}
			fx := float32(x) - offsetX
			fz := float32(z) - offsetZ
			start := len(m.Vertices)

			m.Vertices = append(m.Vertices,
				mgl32.Vec3{fx, y, fz},
				mgl32.Vec3{fx + 1, y, fz},
				mgl32.Vec3{fx, y, fz + 1},
				mgl32.Vec3{fx + 1, y, fz + 1},
			)
			m.UVs = append(m.UVs,
				mgl32.Vec2{0, 0},
				mgl32.Vec2{1, 0},
				mgl32.Vec2{0, 1},
				mgl32.Vec2{1, 1},
			)
			m.Normals = append(m.Normals, up, up, up, up)

			m.addTriangle(start, start+2, start+1)
			m.addTriangle(start+1, start+2, start+3)
		}
	}
	return m
}

// QuadCount returns the number of water quads in a mesh built by BuildWater.
func QuadCount(m *Mesh) int {
	return m.TriangleCount() / 2
}

// computeNormals accumulates area-weighted face normals onto each vertex.
func computeNormals(vertices []mgl32.Vec3, indices []uint32) []mgl32.Vec3 {
	normals := make([]mgl32.Vec3, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		face := vertices[b].Sub(vertices[a]).Cross(vertices[c].Sub(vertices[a]))
		normals[a] = normals[a].Add(face)
		normals[b] = normals[b].Add(face)
		normals[c] = normals[c].Add(face)
	}
	for i, n := range normals {
		if n.Len() == 0 {
			normals[i] = mgl32.Vec3{0, 1, 0}
			continue
		}
		normals[i] = n.Normalize()
	}
	return normals
}
