package terrain

import (
	"fmt"
	"math"

	"terrainstream/internal/curve"
)

// Params carries every input of a global generation call. Two calls with
// identical Params produce identical grids.
type Params struct {
	Width       int
	Depth       int
	Resolution  float64
	Octaves     int
	Lacunarity  float64
	Persistence float64
	Seed        int64
	Workers     int

	VerticalScale float64
	MasterCurve   curve.Curve
	WaterCurve    curve.Curve
	PlainsCurve   curve.Curve
	MountainCurve curve.Curve

	RegionNoiseScale float64
	RegionBackend    RegionBackend
	Thresholds       Thresholds

	// PeakNoisePower raises the normalized noise before shaping. Values
	// <= 0 and exactly 1 leave the noise untouched.
	PeakNoisePower float64
}

func (p Params) noise() NoiseParams {
	return NoiseParams{
		Width:       p.Width,
		Depth:       p.Depth,
		Resolution:  p.Resolution,
		Octaves:     p.Octaves,
		Lacunarity:  p.Lacunarity,
		Persistence: p.Persistence,
		Seed:        p.Seed,
		Workers:     p.Workers,
	}
}

func (p Params) classifier() Classifier {
	return Classifier{
		VerticalScale: p.VerticalScale,
		Master:        p.MasterCurve,
		Water:         p.WaterCurve,
		Plains:        p.PlainsCurve,
		Mountain:      p.MountainCurve,
		Thresholds:    p.Thresholds,
	}
}

// Generate samples noise, normalizes it over the whole grid and classifies
// every cell in the same pass, so the biome grid reflects pre-erosion noise.
// The returned heights are the biome-reshaped values.
func Generate(p Params) (*HeightGrid, *BiomeGrid, error) {
	raw, err := SampleNoise(p.noise())
	if err != nil {
		return nil, nil, err
	}
	Normalize(raw)

	bias, err := RegionBias(p.Width, p.Depth, p.Seed, p.RegionNoiseScale, p.RegionBackend)
	if err != nil {
		return nil, nil, err
	}

	classifier := p.classifier()
	biomes := newBiomeGrid(p.Width, p.Depth)
	applyPower := p.PeakNoisePower > 0 && p.PeakNoisePower != 1
	for i, normalized := range raw.Values {
		if applyPower {
			normalized = math.Pow(normalized, p.PeakNoisePower)
		}
		biome, shaped := classifier.Classify(normalized, bias.Values[i])
		biomes.Values[i] = biome
		raw.Values[i] = shaped
	}
	return raw, biomes, nil
}

// ErosionParams configures Relax.
type ErosionParams struct {
	Iterations int
	Talus      float64
	Factor     float64
}

// World is the output of the full generation pipeline.
type World struct {
	Heights *HeightGrid
	Biomes  *BiomeGrid
	Lakes   *LakeMask
}

// Build runs Generate, erodes, renormalizes to [0,1] and derives the lake
// mask. This is the one place global normalization happens.
func Build(p Params, e ErosionParams, lakeThreshold float64) (*World, error) {
	heights, biomes, err := Generate(p)
	if err != nil {
		return nil, fmt.Errorf("generate heights: %w", err)
	}
	Relax(heights, e.Iterations, e.Talus, e.Factor)
	Normalize(heights)
	return &World{
		Heights: heights,
		Biomes:  biomes,
		Lakes:   BuildLakeMask(heights, lakeThreshold),
	}, nil
}
