package world

import (
	"context"
	"log"
	"time"

	"terrainstream/internal/config"
	"terrainstream/internal/curve"
	"terrainstream/internal/terrain"
)

// Pipeline is the Generator backed by the terrain package: noise and biome
// classification, erosion, global normalization and the lake mask.
type Pipeline struct {
	params        terrain.Params
	erosion       terrain.ErosionParams
	lakeThreshold float64
	logger        *log.Logger
}

// NewPipeline maps configuration onto terrain parameters. The global grid is
// one sample larger than the configured mesh in each direction.
func NewPipeline(cfg *config.Config, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		params:        TerrainParams(cfg),
		erosion:       ErosionParams(cfg),
		lakeThreshold: cfg.Lakes.HeightThreshold,
		logger:        logger,
	}
}

// TerrainParams converts configuration to terrain.Params. The export tool
// and the streamer both go through here so they reproduce the same grid.
func TerrainParams(cfg *config.Config) terrain.Params {
	t := cfg.Terrain
	b := cfg.Biomes
	return terrain.Params{
		Width:            t.MeshWidth + 1,
		Depth:            t.MeshDepth + 1,
		Resolution:       t.Resolution,
		Octaves:          t.Octaves,
		Lacunarity:       t.Lacunarity,
		Persistence:      t.Persistence,
		Seed:             t.Seed,
		Workers:          t.Workers,
		VerticalScale:    t.VerticalScale,
		MasterCurve:      curve.New(t.HeightCurve...),
		WaterCurve:       curve.New(b.WaterCurve...),
		PlainsCurve:      curve.New(b.PlainsCurve...),
		MountainCurve:    curve.New(b.MountainCurve...),
		RegionNoiseScale: b.RegionNoiseScale,
		RegionBackend:    terrain.RegionBackend(b.RegionBackend),
		Thresholds: terrain.Thresholds{
			WaterFlat:      b.WaterThresholdFlat,
			WaterMountain:  b.WaterThresholdMountain,
			PlainsFlat:     b.PlainsThresholdFlat,
			PlainsMountain: b.PlainsThresholdMountain,
		},
		PeakNoisePower: t.PeakNoisePower,
	}
}

// ErosionParams converts the erosion section.
func ErosionParams(cfg *config.Config) terrain.ErosionParams {
	return terrain.ErosionParams{
		Iterations: cfg.Erosion.Iterations,
		Talus:      cfg.Erosion.Talus,
		Factor:     cfg.Erosion.Factor,
	}
}

// MasterCurve returns the configured height curve used for meshing.
func MasterCurve(cfg *config.Config) curve.Curve {
	return curve.New(cfg.Terrain.HeightCurve...)
}

func (p *Pipeline) Generate(ctx context.Context, seed int64) (*terrain.World, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params := p.params
	params.Seed = seed

	start := time.Now()
	p.logger.Printf("world seed %d generation progress: 0%%", seed)

	world, err := terrain.Build(params, p.erosion, p.lakeThreshold)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := world.Biomes.Counts()
	p.logger.Printf("world seed %d generation progress: 100%% (%s) water=%d plains=%d mountain=%d",
		seed, time.Since(start).Round(time.Millisecond),
		counts[terrain.Water], counts[terrain.Plains], counts[terrain.Mountain])
	return world, nil
}
