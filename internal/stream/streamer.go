package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"terrainstream/internal/config"
	"terrainstream/internal/curve"
	"terrainstream/internal/mesh"
	"terrainstream/internal/world"
)

// ErrMissingMaterial is returned by New when the terrain or water material
// is not configured.
var ErrMissingMaterial = errors.New("stream: terrain and water materials must be set")

// Stats counts streaming activity since construction.
type Stats struct {
	Queued         int
	Generated      int
	SkippedUniform int
	Rejected       int
	Installed      int
	Evicted        int
	Stale          int
	Dropped        int

	Active    int
	Pending   int
	InFlight  int
	Free      int
	Allocated int

	// MinHeight and MaxHeight bound the vertex Y of every terrain mesh
	// installed so far; shaders take them as height parameters.
	MinHeight float32
	MaxHeight float32
}

type result struct {
	coord world.ChunkCoord
	slice *world.ChunkSlice
}

// Streamer keeps the chunks around an observer resident. Update, Tick and
// Regenerate are meant to be driven from one loop; a single background
// worker slices coordinates out of the heightmap cache in between.
type Streamer struct {
	cache         *world.HeightmapCache
	chunkSize     int
	viewDistance  int
	budget        int
	epsilon       float64
	verticalScale float64
	waterLevel    float64
	master        curve.Curve
	materials     world.Materials
	logger        *log.Logger

	queue   *Queue
	results chan result
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once

	mu        sync.Mutex
	pool      *world.Pool
	centre    world.ChunkCoord
	hasCentre bool
	desired   map[world.ChunkCoord]struct{}
	active    map[world.ChunkCoord]*world.Chunk
	empty     map[world.ChunkCoord]struct{}
	stats     Stats
	hasHeight bool

	runner *runner
}

// New creates a streamer over a built cache and starts its worker. Close
// stops the worker.
func New(cache *world.HeightmapCache, cfg *config.Config, logger *log.Logger) (*Streamer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if cfg.Materials.Terrain == "" || cfg.Materials.Water == "" {
		return nil, ErrMissingMaterial
	}
	sc := cfg.Stream
	if sc.ChunkSize <= 0 {
		return nil, fmt.Errorf("stream: chunk size must be positive, got %d", sc.ChunkSize)
	}
	if sc.ViewDistance < 0 {
		return nil, fmt.Errorf("stream: view distance cannot be negative, got %d", sc.ViewDistance)
	}
	if cache == nil {
		return nil, errors.New("stream: nil heightmap cache")
	}
	if _, err := cache.Current(); err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}

	budget := sc.InstallBudget
	if budget <= 0 {
		budget = 1
	}
	epsilon := sc.UniformEpsilon
	if epsilon <= 0 {
		epsilon = world.DefaultUniformEpsilon
	}
	buffer := sc.ResultBuffer
	if buffer < 0 {
		buffer = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Streamer{
		cache:         cache,
		chunkSize:     sc.ChunkSize,
		viewDistance:  sc.ViewDistance,
		budget:        budget,
		epsilon:       epsilon,
		verticalScale: cfg.Terrain.VerticalScale,
		waterLevel:    cfg.Lakes.WaterLevel,
		master:        world.MasterCurve(cfg),
		materials:     world.Materials{Terrain: cfg.Materials.Terrain, Water: cfg.Materials.Water},
		logger:        logger,
		queue:         NewQueue(),
		results:       make(chan result, buffer),
		cancel:        cancel,
		pool:          world.NewPool(sc.PoolInitialSize),
		desired:       make(map[world.ChunkCoord]struct{}),
		active:        make(map[world.ChunkCoord]*world.Chunk),
		empty:         make(map[world.ChunkCoord]struct{}),
	}
	s.runner = newRunner(s, sc.TickRate.Duration())

	s.wg.Add(1)
	go s.work(ctx)
	return s, nil
}

// Close stops the worker and waits for it. Pending work is abandoned.
func (s *Streamer) Close() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}

func (s *Streamer) work(ctx context.Context) {
	defer s.wg.Done()
	for {
		coord, ok := s.queue.Pop(ctx)
		if !ok {
			return
		}
		hm, err := s.cache.Current()
		if err != nil {
			s.logger.Printf("chunk %s: %v", coord, err)
			s.queue.Done(coord)
			continue
		}
		r := result{coord: coord, slice: hm.Slice(coord, s.chunkSize, s.epsilon)}
		select {
		case s.results <- r:
		case <-ctx.Done():
			return
		}
	}
}

// Update recomputes the desired set when the observer has entered a new
// chunk. The first call always recomputes.
func (s *Streamer) Update(observer mgl32.Vec3) {
	coord := world.CoordForPosition(observer, s.chunkSize)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasCentre && coord == s.centre {
		return
	}
	s.refreshLocked(coord)
}

// Refresh recomputes the desired set around the current centre.
func (s *Streamer) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked(s.centre)
}

func (s *Streamer) refreshLocked(centre world.ChunkCoord) {
	s.centre = centre
	s.hasCentre = true

	coords := world.Within(centre, s.viewDistance)
	desired := make(map[world.ChunkCoord]struct{}, len(coords))
	for _, c := range coords {
		desired[c] = struct{}{}
	}
	s.desired = desired

	for coord, chunk := range s.active {
		if _, keep := desired[coord]; keep {
			continue
		}
		delete(s.active, coord)
		s.pool.Release(chunk)
		s.stats.Evicted++
	}
	for coord := range s.empty {
		if _, keep := desired[coord]; !keep {
			delete(s.empty, coord)
		}
	}
	s.stats.Dropped += s.queue.Retain(s.isDesiredLocked)

	for _, coord := range coords {
		if _, ok := s.active[coord]; ok {
			continue
		}
		if _, ok := s.empty[coord]; ok {
			continue
		}
		if s.queue.Enqueue(coord) {
			s.stats.Queued++
		}
	}
}

func (s *Streamer) isDesiredLocked(coord world.ChunkCoord) bool {
	_, ok := s.desired[coord]
	return ok
}

// Tick installs at most the configured budget of finished chunks and
// reports how many it installed. Results that install nothing do not count
// against the budget. Tick never blocks on the worker.
func (s *Streamer) Tick() int {
	installed := 0
	for installed < s.budget {
		select {
		case r := <-s.results:
			if s.apply(r) {
				installed++
			}
		default:
			return installed
		}
	}
	return installed
}

func (s *Streamer) apply(r result) bool {
	epoch := s.cache.Epoch()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Done(r.coord)

	if r.slice.Epoch != epoch {
		s.stats.Stale++
		s.requeueLocked(r.coord)
		return false
	}
	s.stats.Generated++
	if !s.isDesiredLocked(r.coord) {
		s.stats.Dropped++
		return false
	}
	if _, ok := s.active[r.coord]; ok {
		s.stats.Dropped++
		return false
	}
	if r.slice.Uniform {
		s.stats.SkippedUniform++
		s.empty[r.coord] = struct{}{}
		return false
	}

	chunk := s.pool.Acquire()
	terrainMesh, err := mesh.BuildTerrain(r.slice.Heights, s.master, s.verticalScale)
	if err != nil || !terrainMesh.Valid() {
		s.pool.Release(chunk)
		s.stats.Rejected++
		s.empty[r.coord] = struct{}{}
		if err != nil {
			s.logger.Printf("chunk %s rejected: %v", r.coord, err)
		}
		return false
	}

	var waterMesh *mesh.Mesh
	if water := mesh.BuildWater(r.slice.Lakes, s.waterLevel); water.Valid() {
		waterMesh = water
	}
	chunk.Install(r.coord, s.chunkSize, terrainMesh, waterMesh, s.materials)
	s.active[r.coord] = chunk
	s.stats.Installed++
	s.trackHeightLocked(terrainMesh)
	return true
}

func (s *Streamer) trackHeightLocked(m *mesh.Mesh) {
	lo, hi := m.HeightRange()
	if s.hasHeight && lo >= s.stats.MinHeight && hi <= s.stats.MaxHeight {
		return
	}
	if !s.hasHeight || lo < s.stats.MinHeight {
		s.stats.MinHeight = lo
	}
	if !s.hasHeight || hi > s.stats.MaxHeight {
		s.stats.MaxHeight = hi
	}
	s.hasHeight = true
	s.logger.Printf("terrain height range now %.2f..%.2f", s.stats.MinHeight, s.stats.MaxHeight)
}

// requeueLocked schedules coord again once its stale result is discarded.
func (s *Streamer) requeueLocked(coord world.ChunkCoord) {
	if !s.isDesiredLocked(coord) {
		return
	}
	if _, ok := s.active[coord]; ok {
		return
	}
	if s.queue.Enqueue(coord) {
		s.stats.Queued++
	}
}

// Regenerate rebuilds the heightmap for seed, evicts every active chunk and
// restarts streaming around the last observer position. Results produced
// from the previous heightmap are discarded when they arrive.
func (s *Streamer) Regenerate(ctx context.Context, seed int64) error {
	hm, err := s.cache.Regenerate(ctx, seed)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := len(s.active)
	for coord, chunk := range s.active {
		delete(s.active, coord)
		s.pool.Release(chunk)
	}
	s.stats.Evicted += evicted
	clear(s.empty)
	s.stats.Dropped += s.queue.Clear()
	s.logger.Printf("regenerated heightmap epoch %d (seed %d), evicted %d chunks", hm.Epoch, seed, evicted)

	if s.hasCentre {
		s.refreshLocked(s.centre)
	}
	return nil
}

// ActiveChunks returns the installed chunks ordered by coordinate.
func (s *Streamer) ActiveChunks() []*world.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*world.Chunk, 0, len(s.active))
	for _, chunk := range s.active {
		out = append(out, chunk)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Coord.X != out[j].Coord.X {
			return out[i].Coord.X < out[j].Coord.X
		}
		return out[i].Coord.Z < out[j].Coord.Z
	})
	return out
}

// Stats returns the counters together with current pool and queue sizes.
func (s *Streamer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Active = len(s.active)
	st.Pending = s.queue.Len()
	st.InFlight = s.queue.InFlight()
	st.Free = s.pool.Free()
	st.Allocated = s.pool.Allocated()
	return st
}

// Centre returns the chunk the observer was last seen in.
func (s *Streamer) Centre() (world.ChunkCoord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.centre, s.hasCentre
}
