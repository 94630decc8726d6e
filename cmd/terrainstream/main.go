package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/src-d/go-billy.v4/osfs"

	"terrainstream/internal/config"
	"terrainstream/internal/export"
	"terrainstream/internal/stream"
	"terrainstream/internal/world"
)

func main() {
	var (
		cfgPath   string
		cfgSource string
		exportDir string
		runFor    time.Duration
		statsRate time.Duration
	)
	flag.StringVar(&cfgPath, "config", "", "path to terrain configuration file (JSON or YAML)")
	flag.StringVar(&cfgSource, "config-source", "", "go-getter source to fetch the configuration from; written to -config")
	flag.StringVar(&exportDir, "export", "", "bake height and biome images into this directory and enable export")
	flag.DurationVar(&runFor, "duration", 0, "stop streaming after this long (0 runs until signalled)")
	flag.DurationVar(&statsRate, "stats", 5*time.Second, "interval between streaming stats log lines")
	flag.Parse()

	logger := log.New(log.Writer(), "terrainstream ", log.LstdFlags|log.Lmicroseconds)

	wrote, err := writeConfigFromEnv(cfgPath)
	if err != nil {
		logger.Fatalf("sync config from environment: %v", err)
	}
	if wrote {
		logger.Printf("wrote configuration from environment to %s", cfgPath)
	}

	ctx, cancel := signalContext(logger)
	defer cancel()
	if runFor > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, runFor)
		defer stop()
	}

	cfg, err := loadConfig(ctx, cfgPath, cfgSource)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if exportDir != "" {
		cfg.Export.Enabled = true
		cfg.Export.Directory = exportDir
	}

	cache := world.NewHeightmapCache(world.NewPipeline(cfg, logger), cfg.Terrain.Seed, cfg.Terrain.RandomizeSeed, logger)
	hm, err := cache.Build(ctx)
	if err != nil {
		logger.Fatalf("build heightmap: %v", err)
	}

	if cfg.Export.Enabled {
		w := &export.Writer{FS: osfs.New(cfg.Export.Directory)}
		if err := w.Export(hm, cfg.Export); err != nil {
			logger.Fatalf("export heightmap: %v", err)
		}
		logger.Printf("exported heightmap to %s", cfg.Export.Directory)
	}

	streamer, err := stream.New(cache, cfg, logger)
	if err != nil {
		logger.Fatalf("initialise streamer: %v", err)
	}
	defer streamer.Close()

	go logStats(ctx, streamer, statsRate, logger)

	observer := newScriptedObserver(cfg.Observer, time.Now())
	if err := streamer.Run(ctx, observer.Position); err != nil {
		logger.Fatalf("streamer exited with error: %v", err)
	}

	st := streamer.Stats()
	logger.Printf("shutdown: active=%d installed=%d evicted=%d skipped=%d pool=%d/%d height=%.2f..%.2f",
		st.Active, st.Installed, st.Evicted, st.SkippedUniform, st.Free, st.Allocated, st.MinHeight, st.MaxHeight)
}

func loadConfig(ctx context.Context, path, source string) (*config.Config, error) {
	if source == "" {
		return config.Load(path)
	}
	if path == "" {
		path = filepath.Join(os.TempDir(), "terrainstream", "config"+filepath.Ext(source))
	}
	return config.Fetch(ctx, source, path)
}

func logStats(ctx context.Context, s *stream.Streamer, every time.Duration, logger *log.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.Stats()
			centre, _ := s.Centre()
			logger.Printf("centre=%s active=%d pending=%d inflight=%d installed=%d evicted=%d skipped=%d stale=%d pool=%d/%d",
				centre, st.Active, st.Pending, st.InFlight, st.Installed, st.Evicted, st.SkippedUniform, st.Stale, st.Free, st.Allocated)
		}
	}
}

func signalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}

		time.AfterFunc(10*time.Second, func() {
			logger.Printf("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	return ctx, cancel
}
