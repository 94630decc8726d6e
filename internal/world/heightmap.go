package world

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"terrainstream/internal/terrain"
)

// ErrNotBuilt is returned when the cache is read before its first build.
var ErrNotBuilt = errors.New("heightmap cache has not been built")

// Generator produces the global grids for a seed.
type Generator interface {
	Generate(ctx context.Context, seed int64) (*terrain.World, error)
}

// Heightmap is one immutable epoch of the global grids. Nothing writes to a
// Heightmap after the cache publishes it, so readers need no locking.
type Heightmap struct {
	Heights *terrain.HeightGrid
	Biomes  *terrain.BiomeGrid
	Lakes   *terrain.LakeMask
	Seed    int64
	Epoch   uint64
}

// Width returns the global grid width in samples.
func (h *Heightmap) Width() int { return h.Heights.Width }

// Depth returns the global grid depth in samples.
func (h *Heightmap) Depth() int { return h.Heights.Depth }

// HeightmapCache owns the authoritative global grids. They are built once
// per world and replaced wholesale on regeneration.
type HeightmapCache struct {
	generator Generator
	seed      int64
	randomize bool
	logger    *log.Logger
	rng       *rand.Rand

	buildMu sync.Mutex

	mu      sync.RWMutex
	current *Heightmap
	epoch   uint64
}

// NewHeightmapCache creates an empty cache. When randomize is set the first
// build draws its seed instead of using seed.
func NewHeightmapCache(generator Generator, seed int64, randomize bool, logger *log.Logger) *HeightmapCache {
	if logger == nil {
		logger = log.Default()
	}
	return &HeightmapCache{
		generator: generator,
		seed:      seed,
		randomize: randomize,
		logger:    logger,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Current returns the published heightmap or ErrNotBuilt.
func (c *HeightmapCache) Current() (*Heightmap, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil, ErrNotBuilt
	}
	return c.current, nil
}

// Epoch returns the epoch of the published heightmap, zero before the first
// build.
func (c *HeightmapCache) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// Build generates the grids on first use and returns the cached heightmap
// afterwards.
func (c *HeightmapCache) Build(ctx context.Context) (*Heightmap, error) {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	if hm, err := c.Current(); err == nil {
		return hm, nil
	}
	seed := c.seed
	if c.randomize {
		seed = RandomSeed(c.rng)
	}
	return c.build(ctx, seed)
}

// Regenerate replaces the grids with a fresh world for seed.
func (c *HeightmapCache) Regenerate(ctx context.Context, seed int64) (*Heightmap, error) {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	return c.build(ctx, seed)
}

func (c *HeightmapCache) build(ctx context.Context, seed int64) (*Heightmap, error) {
	if c.generator == nil {
		return nil, errors.New("heightmap cache has no generator")
	}
	world, err := c.generator.Generate(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("generate world for seed %d: %w", seed, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.seed = seed
	c.current = &Heightmap{
		Heights: world.Heights,
		Biomes:  world.Biomes,
		Lakes:   world.Lakes,
		Seed:    seed,
		Epoch:   c.epoch,
	}
	c.logger.Printf("heightmap epoch %d ready: seed=%d size=%dx%d", c.epoch, seed, c.current.Width(), c.current.Depth())
	return c.current, nil
}

// RandomSeed draws a seed in [-100000, 100000).
func RandomSeed(rng *rand.Rand) int64 {
	return int64(rng.Intn(200000)) - 100000
}
