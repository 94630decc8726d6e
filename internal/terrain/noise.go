package terrain

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

const (
	falloffExponent = 2.5
	minResolution   = 0.001

	perlinAlpha = 2.0
	perlinBeta  = 2.0

	// go-perlin truncates lattice coordinates below -4096 towards zero, which
	// tears the field apart. Seeds only shift sampling by a small positive
	// amount; the permutation table already depends on the full seed.
	seedOffsetPeriod = 256
)

// RegionBackend selects the coherent noise used for the region bias field.
type RegionBackend string

const (
	RegionPerlin  RegionBackend = "perlin"
	RegionSimplex RegionBackend = "simplex"
)

// NoiseParams describes one call to SampleNoise.
type NoiseParams struct {
	Width       int
	Depth       int
	Resolution  float64
	Octaves     int
	Lacunarity  float64
	Persistence float64
	Seed        int64
	// OffsetX and OffsetZ shift the sampled window. Keep
	// (x+OffsetX)/Resolution above -4096 so the noise stays coherent.
	OffsetX int
	OffsetZ int
	// Workers bounds the number of goroutines filling rows. Zero picks a
	// value from GOMAXPROCS.
	Workers int
}

// source yields coherent noise in [0,1].
type source interface {
	sample(x, y float64) float64
}

type perlinSource struct {
	p *perlin.Perlin
}

func newPerlinSource(seed int64) perlinSource {
	return perlinSource{p: perlin.NewPerlin(perlinAlpha, perlinBeta, 1, seed)}
}

func (s perlinSource) sample(x, y float64) float64 {
	return clamp01((s.p.Noise2D(x, y) + 1) * 0.5)
}

type simplexSource struct {
	n opensimplex.Noise
}

func (s simplexSource) sample(x, y float64) float64 {
	return clamp01(s.n.Eval2(x, y))
}

func newSource(backend RegionBackend, seed int64) (source, error) {
	switch backend {
	case "", RegionPerlin:
		return newPerlinSource(seed), nil
	case RegionSimplex:
		return simplexSource{n: opensimplex.NewNormalized(seed)}, nil
	default:
		return nil, fmt.Errorf("terrain: unknown region backend %q", backend)
	}
}

// SampleNoise fills a width×depth grid with multi-octave noise minus the
// radial falloff. The result is raw; callers normalize at global scope.
func SampleNoise(p NoiseParams) (*HeightGrid, error) {
	grid, err := NewHeightGrid(p.Width, p.Depth)
	if err != nil {
		return nil, err
	}

	resolution := math.Max(p.Resolution, minResolution)
	falloff := RadialFalloff(p.Width, p.Depth)
	src := newPerlinSource(p.Seed)
	seed := seedOffset(p.Seed)

	fillRows(p.Depth, workerCount(p.Workers, p.Depth), func(z int) {
		for x := 0; x < p.Width; x++ {
			frequency := 1.0
			amplitude := 1.0
			total := 0.0
			for octave := 0; octave < p.Octaves; octave++ {
				k := float64(octave)
				sx := (float64(x+p.OffsetX)/resolution)*frequency + seed + k*float64(p.Width)
				sz := (float64(z+p.OffsetZ)/resolution)*frequency + seed + k*float64(p.Depth)
				total += (src.sample(sx, sz)*2 - 1) * amplitude

				frequency *= p.Lacunarity
				amplitude *= p.Persistence
			}
			idx := grid.index(x, z)
			grid.Values[idx] = total - falloff.Values[idx]
		}
	})
	return grid, nil
}

// RadialFalloff returns (distance/maxDistance)^2.5 measured from the grid
// centre, so edges trend towards 1.
func RadialFalloff(width, depth int) *HeightGrid {
	grid := &HeightGrid{Width: width, Depth: depth, Values: make([]float64, width*depth)}
	cx := float64(width) / 2
	cz := float64(depth) / 2
	maxDist := math.Sqrt(cx*cx + cz*cz)
	if maxDist == 0 {
		return grid
	}
	for z := 0; z < depth; z++ {
		for x := 0; x < width; x++ {
			dx := float64(x) - cx
			dz := float64(z) - cz
			dist := math.Sqrt(dx*dx + dz*dz)
			grid.Set(x, z, math.Pow(dist/maxDist, falloffExponent))
		}
	}
	return grid
}

// RegionBias samples the low-frequency flatness field in [0,1]: 0 leans
// mountainous, 1 leans flat.
func RegionBias(width, depth int, seed int64, scale float64, backend RegionBackend) (*HeightGrid, error) {
	grid, err := NewHeightGrid(width, depth)
	if err != nil {
		return nil, err
	}
	src, err := newSource(backend, seed)
	if err != nil {
		return nil, err
	}
	offset := seedOffset(seed)
	for z := 0; z < depth; z++ {
		for x := 0; x < width; x++ {
			grid.Set(x, z, src.sample((float64(x)+offset)*scale, (float64(z)+offset)*scale))
		}
	}
	return grid, nil
}

// seedOffset maps any seed onto [0, seedOffsetPeriod).
func seedOffset(seed int64) float64 {
	return float64(((seed % seedOffsetPeriod) + seedOffsetPeriod) % seedOffsetPeriod)
}

func fillRows(rows, workers int, fn func(z int)) {
	if workers <= 1 {
		for z := 0; z < rows; z++ {
			fn(z)
		}
		return
	}

	tasks := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for z := range tasks {
				fn(z)
			}
		}()
	}
	for z := 0; z < rows; z++ {
		tasks <- z
	}
	close(tasks)
	wg.Wait()
}

func workerCount(requested, rows int) int {
	if rows <= 0 {
		return 0
	}
	if requested > 0 {
		if requested < rows {
			return requested
		}
		return rows
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > rows {
		workers = rows
	}
	if workers <= 0 {
		workers = 1
	}
	return workers
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}
