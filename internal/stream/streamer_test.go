package stream

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrainstream/internal/config"
	"terrainstream/internal/terrain"
	"terrainstream/internal/world"
)

const testGrid = 17

type fieldGenerator struct {
	height func(x, z int) float64
	lake   func(x, z int) bool
}

func (g fieldGenerator) Generate(_ context.Context, seed int64) (*terrain.World, error) {
	heights, err := terrain.NewHeightGrid(testGrid, testGrid)
	if err != nil {
		return nil, err
	}
	lakes, _ := terrain.NewLakeMask(testGrid, testGrid)
	biomes := &terrain.BiomeGrid{Width: testGrid, Depth: testGrid, Values: make([]terrain.Biome, testGrid*testGrid)}
	for z := 0; z < testGrid; z++ {
		for x := 0; x < testGrid; x++ {
			heights.Set(x, z, g.height(x, z))
			if g.lake != nil {
				lakes.Set(x, z, g.lake(x, z))
			}
		}
	}
	return &terrain.World{Heights: heights, Biomes: biomes, Lakes: lakes}, nil
}

func bumpy(x, z int) float64 {
	return float64((x*7+z*13)%17) / 16
}

func flat(int, int) float64 {
	return 0.5
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Stream.ChunkSize = 4
	cfg.Stream.ViewDistance = 1
	cfg.Stream.PoolInitialSize = 0
	cfg.Stream.InstallBudget = 1
	cfg.Stream.ResultBuffer = 4
	return cfg
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestStreamer(t *testing.T, gen world.Generator, cfg *config.Config) (*Streamer, *world.HeightmapCache) {
	t.Helper()
	cache := world.NewHeightmapCache(gen, 1, false, discardLogger())
	_, err := cache.Build(context.Background())
	require.NoError(t, err)

	s, err := New(cache, cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, cache
}

func waitForActive(t *testing.T, s *Streamer, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.Tick()
		return s.Stats().Active == want
	}, 2*time.Second, time.Millisecond)
}

func requirePoolConsistent(t *testing.T, s *Streamer) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[*world.Chunk]string)
	for _, c := range s.pool.FreeChunks() {
		require.True(t, c.Pooled(), "free chunk %d not marked pooled", c.ID())
		require.False(t, c.Active(), "free chunk %d still active", c.ID())
		seen[c] = "free"
	}
	for coord, c := range s.active {
		require.Equal(t, coord, c.Coord)
		require.False(t, c.Pooled(), "active chunk %d marked pooled", c.ID())
		_, dup := seen[c]
		require.False(t, dup, "chunk %d is both free and active", c.ID())
		seen[c] = "active"
	}
	require.Equal(t, s.pool.Allocated(), len(seen), "every allocated chunk must be free or active")
}

func TestNewValidatesConfiguration(t *testing.T) {
	cache := world.NewHeightmapCache(fieldGenerator{height: bumpy}, 1, false, discardLogger())

	cfg := testConfig()
	cfg.Materials.Water = ""
	_, err := New(cache, cfg, discardLogger())
	assert.ErrorIs(t, err, ErrMissingMaterial)

	cfg = testConfig()
	cfg.Stream.ChunkSize = 0
	_, err = New(cache, cfg, discardLogger())
	assert.Error(t, err)

	_, err = New(cache, testConfig(), discardLogger())
	assert.ErrorIs(t, err, world.ErrNotBuilt)
}

func TestStreamerFillsViewWithinBudget(t *testing.T) {
	s, _ := newTestStreamer(t, fieldGenerator{height: bumpy}, testConfig())

	s.Update(mgl32.Vec3{1, 0, 1})
	require.Equal(t, 9, s.Stats().Queued)

	maxPerTick := 0
	require.Eventually(t, func() bool {
		if n := s.Tick(); n > maxPerTick {
			maxPerTick = n
		}
		return s.Stats().Active == 9
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, 1, maxPerTick, "install budget exceeded")

	chunks := s.ActiveChunks()
	require.Len(t, chunks, 9)
	want := world.Within(world.ChunkCoord{}, 1)
	for i, c := range chunks {
		assert.Equal(t, want[i], c.Coord)
		assert.Equal(t, world.WorldPosition(c.Coord, 4), c.Position)
		assert.Equal(t, "terrain", c.Materials.Terrain)
		assert.Equal(t, 25, c.Terrain.VertexCount())
		assert.False(t, c.HasWater())
	}

	st := s.Stats()
	assert.Equal(t, 9, st.Installed)
	assert.Equal(t, 9, st.Allocated)
	assert.Zero(t, st.Stale)
	requirePoolConsistent(t, s)

	lo, hi := chunks[0].Terrain.HeightRange()
	for _, c := range chunks[1:] {
		clo, chi := c.Terrain.HeightRange()
		lo, hi = min(lo, clo), max(hi, chi)
	}
	assert.Equal(t, lo, st.MinHeight, "tracked minimum height")
	assert.Equal(t, hi, st.MaxHeight, "tracked maximum height")
	assert.Less(t, st.MinHeight, st.MaxHeight)
}

func TestStreamerDeduplicatesScheduledWork(t *testing.T) {
	s, _ := newTestStreamer(t, fieldGenerator{height: bumpy}, testConfig())

	s.Update(mgl32.Vec3{0, 0, 0})
	s.Update(mgl32.Vec3{3.5, 10, 2})
	s.Refresh()
	assert.Equal(t, 9, s.Stats().Queued)

	waitForActive(t, s, 9)
	s.Refresh()
	assert.Equal(t, 9, s.Stats().Queued)
}

func TestStreamerEvictsImmediatelyAndReusesChunks(t *testing.T) {
	s, _ := newTestStreamer(t, fieldGenerator{height: bumpy}, testConfig())

	s.Update(mgl32.Vec3{})
	waitForActive(t, s, 9)

	s.Update(mgl32.Vec3{100, 0, -100})
	st := s.Stats()
	assert.Zero(t, st.Active, "eviction must not wait for a tick")
	assert.Equal(t, 9, st.Evicted)
	assert.Equal(t, 9, st.Free)
	requirePoolConsistent(t, s)

	waitForActive(t, s, 9)
	centre, ok := s.Centre()
	require.True(t, ok)
	assert.Equal(t, world.ChunkCoord{X: 25, Z: -25}, centre)
	assert.Equal(t, 9, s.Stats().Allocated, "freed chunks should be reused")
	requirePoolConsistent(t, s)
}

func TestStreamerPartialMoveKeepsOverlap(t *testing.T) {
	s, _ := newTestStreamer(t, fieldGenerator{height: bumpy}, testConfig())

	s.Update(mgl32.Vec3{})
	waitForActive(t, s, 9)
	before := make(map[world.ChunkCoord]*world.Chunk)
	for _, c := range s.ActiveChunks() {
		before[c.Coord] = c
	}

	s.Update(mgl32.Vec3{4, 0, 0})
	assert.Equal(t, 6, s.Stats().Active)
	assert.Equal(t, 3, s.Stats().Evicted)
	waitForActive(t, s, 9)

	for _, c := range s.ActiveChunks() {
		if prev, ok := before[c.Coord]; ok {
			assert.Same(t, prev, c, "overlapping chunk %s was rebuilt", c.Coord)
		}
	}
	requirePoolConsistent(t, s)
}

func TestStreamerSkipsUniformSlices(t *testing.T) {
	s, _ := newTestStreamer(t, fieldGenerator{height: flat}, testConfig())

	s.Update(mgl32.Vec3{})
	require.Eventually(t, func() bool {
		s.Tick()
		return s.Stats().SkippedUniform == 9
	}, 2*time.Second, time.Millisecond)

	st := s.Stats()
	assert.Zero(t, st.Active)
	assert.Zero(t, st.Allocated)

	s.Refresh()
	assert.Equal(t, 9, s.Stats().Queued, "uniform chunks should not be rescheduled")
}

func TestStreamerAttachesWaterOverLakes(t *testing.T) {
	gen := fieldGenerator{height: bumpy, lake: func(int, int) bool { return true }}
	cfg := testConfig()
	cfg.Stream.ViewDistance = 0
	s, _ := newTestStreamer(t, gen, cfg)

	s.Update(mgl32.Vec3{})
	waitForActive(t, s, 1)

	chunk := s.ActiveChunks()[0]
	require.True(t, chunk.HasWater())
	assert.Equal(t, "water", chunk.Materials.Water)
	assert.Equal(t, 16, chunk.Water.TriangleCount()/2)
	min, max := chunk.Water.HeightRange()
	assert.InDelta(t, cfg.Lakes.WaterLevel, min, 1e-6)
	assert.InDelta(t, cfg.Lakes.WaterLevel, max, 1e-6)
}

func TestStreamerRegenerateRestartsFromEmpty(t *testing.T) {
	s, cache := newTestStreamer(t, fieldGenerator{height: bumpy}, testConfig())

	s.Update(mgl32.Vec3{})
	waitForActive(t, s, 9)

	require.NoError(t, s.Regenerate(context.Background(), 42))
	assert.Zero(t, s.Stats().Active)
	assert.Equal(t, uint64(2), cache.Epoch())

	waitForActive(t, s, 9)
	st := s.Stats()
	assert.Equal(t, 18, st.Installed)
	assert.Equal(t, 9, st.Evicted)
	requirePoolConsistent(t, s)
}

func TestStreamerRegenerateReportsGeneratorError(t *testing.T) {
	gen := &flakyGenerator{}
	s, _ := newTestStreamer(t, gen, testConfig())
	gen.fail(errors.New("out of noise"))

	err := s.Regenerate(context.Background(), 3)
	assert.ErrorContains(t, err, "out of noise")
}

type flakyGenerator struct {
	mu  sync.Mutex
	err error
}

func (g *flakyGenerator) fail(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

func (g *flakyGenerator) Generate(ctx context.Context, seed int64) (*terrain.World, error) {
	g.mu.Lock()
	err := g.err
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return fieldGenerator{height: bumpy}.Generate(ctx, seed)
}

func TestApplyDiscardsStaleResults(t *testing.T) {
	cfg := testConfig()
	cfg.Stream.ViewDistance = 0
	s, cache := newTestStreamer(t, fieldGenerator{height: bumpy}, cfg)
	s.Close()
	s.Update(mgl32.Vec3{})

	hm, err := cache.Current()
	require.NoError(t, err)
	slice := hm.Slice(world.ChunkCoord{}, 4, world.DefaultUniformEpsilon)

	stale := *slice
	stale.Epoch = hm.Epoch - 1
	assert.False(t, s.apply(result{coord: stale.Coord, slice: &stale}))
	assert.Equal(t, 1, s.Stats().Stale)
	assert.Zero(t, s.Stats().Active)

	assert.True(t, s.apply(result{coord: slice.Coord, slice: slice}))
	assert.Equal(t, 1, s.Stats().Active)
	requirePoolConsistent(t, s)
}

func TestApplyDropsUndesiredCoordinates(t *testing.T) {
	cfg := testConfig()
	cfg.Stream.ViewDistance = 0
	s, cache := newTestStreamer(t, fieldGenerator{height: bumpy}, cfg)
	s.Close()
	s.Update(mgl32.Vec3{})

	hm, err := cache.Current()
	require.NoError(t, err)
	far := world.ChunkCoord{X: 5, Z: 5}
	assert.False(t, s.apply(result{coord: far, slice: hm.Slice(far, 4, world.DefaultUniformEpsilon)}))
	assert.Equal(t, 1, s.Stats().Dropped)
	assert.Zero(t, s.Stats().Allocated)
}

func TestApplyReturnsDegenerateChunksToPool(t *testing.T) {
	cfg := testConfig()
	cfg.Stream.ViewDistance = 0
	s, cache := newTestStreamer(t, fieldGenerator{height: bumpy}, cfg)
	s.Close()
	s.Update(mgl32.Vec3{})

	heights, err := terrain.NewHeightGrid(1, 1)
	require.NoError(t, err)
	lakes, err := terrain.NewLakeMask(1, 1)
	require.NoError(t, err)
	slice := &world.ChunkSlice{Heights: heights, Lakes: lakes, Epoch: cache.Epoch()}

	assert.False(t, s.apply(result{coord: world.ChunkCoord{}, slice: slice}))
	st := s.Stats()
	assert.Equal(t, 1, st.Rejected)
	assert.Zero(t, st.Active)
	assert.Equal(t, 1, st.Free)
	assert.Equal(t, 1, st.Allocated)
	requirePoolConsistent(t, s)
}

func TestRunDrivesUpdatesFromTicker(t *testing.T) {
	s, _ := newTestStreamer(t, fieldGenerator{height: bumpy}, testConfig())

	ticks := make(chan time.Time)
	stopped := make(chan struct{})
	s.runner.newTicker = func(time.Duration) (<-chan time.Time, func()) {
		return ticks, func() { close(stopped) }
	}
	start := time.Unix(1_700_000_000, 0)
	s.runner.now = func() time.Time { return start }

	var mu sync.Mutex
	var samples []time.Time
	observer := func(now time.Time) mgl32.Vec3 {
		mu.Lock()
		samples = append(samples, now)
		mu.Unlock()
		return mgl32.Vec3{-2, 0, -2}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, observer) }()

	tick := start
	require.Eventually(t, func() bool {
		tick = tick.Add(16 * time.Millisecond)
		select {
		case ticks <- tick:
		case <-time.After(10 * time.Millisecond):
		}
		return s.Stats().Active == 9
	}, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	<-stopped

	centre, _ := s.Centre()
	assert.Equal(t, world.ChunkCoord{X: -1, Z: -1}, centre)
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, samples)
	assert.Equal(t, start, samples[0], "observer sampled before the first tick")
}
