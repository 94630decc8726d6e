package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"terrainstream/internal/curve"
)

// Duration is a JSON- and YAML-friendly wrapper around time.Duration that
// accepts human readable strings such as "150ms" in configuration files while
// still allowing numeric representations when necessary.
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration using the canonical string representation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration from either a string (e.g. "250ms") or a
// numeric value representing nanoseconds. Empty strings and null values decode
// to zero.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("duration: empty value")
	}
	if string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("duration: decode string: %w", err)
		}
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Duration(time.Duration(f))
		return nil
	}
	return fmt.Errorf("duration: invalid value %s", string(b))
}

// MarshalYAML encodes the duration as its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration: expected scalar, got kind %d", value.Kind)
	}
	if value.Tag == "!!int" {
		var n int64
		if err := value.Decode(&n); err != nil {
			return fmt.Errorf("duration: decode int: %w", err)
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	if value.Tag == "!!null" {
		*d = 0
		return nil
	}
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: parse %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config captures every tunable needed to build a world and stream it.
type Config struct {
	Terrain   TerrainConfig  `json:"terrain" yaml:"terrain"`
	Biomes    BiomeConfig    `json:"biomes" yaml:"biomes"`
	Erosion   ErosionConfig  `json:"erosion" yaml:"erosion"`
	Lakes     LakeConfig     `json:"lakes" yaml:"lakes"`
	Stream    StreamConfig   `json:"stream" yaml:"stream"`
	Materials MaterialConfig `json:"materials" yaml:"materials"`
	Export    ExportConfig   `json:"export" yaml:"export"`
	Observer  ObserverConfig `json:"observer" yaml:"observer"`
}

type TerrainConfig struct {
	MeshWidth      int         `json:"meshWidth" yaml:"mesh_width"` // global grid is meshWidth+1 samples wide
	MeshDepth      int         `json:"meshDepth" yaml:"mesh_depth"`
	Resolution     float64     `json:"resolution" yaml:"resolution"`
	Octaves        int         `json:"octaves" yaml:"octaves"`
	Lacunarity     float64     `json:"lacunarity" yaml:"lacunarity"`
	Persistence    float64     `json:"persistence" yaml:"persistence"`
	Seed           int64       `json:"seed" yaml:"seed"`
	RandomizeSeed  bool        `json:"randomizeSeed" yaml:"randomize_seed"`
	VerticalScale  float64     `json:"verticalScale" yaml:"vertical_scale"`
	PeakNoisePower float64     `json:"peakNoisePower" yaml:"peak_noise_power"`
	Workers        int         `json:"workers" yaml:"workers"` // 0 = GOMAXPROCS
	HeightCurve    []curve.Key `json:"heightCurve" yaml:"height_curve"`
}

type BiomeConfig struct {
	RegionNoiseScale        float64     `json:"regionNoiseScale" yaml:"region_noise_scale"`
	RegionBackend           string      `json:"regionBackend" yaml:"region_backend"` // "perlin" or "simplex"
	WaterThresholdFlat      float64     `json:"waterThresholdFlat" yaml:"water_threshold_flat"`
	WaterThresholdMountain  float64     `json:"waterThresholdMountain" yaml:"water_threshold_mountain"`
	PlainsThresholdFlat     float64     `json:"plainsThresholdFlat" yaml:"plains_threshold_flat"`
	PlainsThresholdMountain float64     `json:"plainsThresholdMountain" yaml:"plains_threshold_mountain"`
	WaterCurve              []curve.Key `json:"waterCurve" yaml:"water_curve"`
	PlainsCurve             []curve.Key `json:"plainsCurve" yaml:"plains_curve"`
	MountainCurve           []curve.Key `json:"mountainCurve" yaml:"mountain_curve"`
}

type ErosionConfig struct {
	Iterations int     `json:"iterations" yaml:"iterations"`
	Talus      float64 `json:"talus" yaml:"talus"`
	Factor     float64 `json:"factor" yaml:"factor"`
}

type LakeConfig struct {
	HeightThreshold float64 `json:"heightThreshold" yaml:"height_threshold"` // normalized height below which a cell is lake
	WaterLevel      float64 `json:"waterLevel" yaml:"water_level"`           // world Y of the flat water surface
}

type StreamConfig struct {
	ChunkSize       int      `json:"chunkSize" yaml:"chunk_size"`
	ViewDistance    int      `json:"viewDistance" yaml:"view_distance"`
	PoolInitialSize int      `json:"poolInitialSize" yaml:"pool_initial_size"`
	InstallBudget   int      `json:"installBudget" yaml:"install_budget"` // chunks installed per tick
	TickRate        Duration `json:"tickRate" yaml:"tick_rate"`
	UniformEpsilon  float64  `json:"uniformEpsilon" yaml:"uniform_epsilon"`
	ResultBuffer    int      `json:"resultBuffer" yaml:"result_buffer"`
}

type MaterialConfig struct {
	Terrain string `json:"terrain" yaml:"terrain"`
	Water   string `json:"water" yaml:"water"`
}

type ExportConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Directory string `json:"directory" yaml:"directory"`
	Height    string `json:"height" yaml:"height"` // file name of the baked height image
	Biomes    string `json:"biomes" yaml:"biomes"` // file name of the biome preview, empty to skip
}

// ObserverConfig scripts the observer the binary drives through the world.
type ObserverConfig struct {
	StartX    float64 `json:"startX" yaml:"start_x"`
	StartZ    float64 `json:"startZ" yaml:"start_z"`
	VelocityX float64 `json:"velocityX" yaml:"velocity_x"` // world units per second
	VelocityZ float64 `json:"velocityZ" yaml:"velocity_z"`
}

// Load reads configuration from a JSON or YAML file, picked by extension.
// An empty path returns defaults. Fields absent from the file keep their
// default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := Decode(data, formatFor(path), cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Format names a configuration encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode parses data into cfg using the given format.
func Decode(data []byte, format Format, cfg *Config) error {
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config yaml: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	default:
		return fmt.Errorf("unknown config format %q", format)
	}
	return nil
}

func Default() *Config {
	return &Config{
		Terrain: TerrainConfig{
			MeshWidth:      512,
			MeshDepth:      512,
			Resolution:     48,
			Octaves:        5,
			Lacunarity:     2.0,
			Persistence:    0.5,
			Seed:           1337,
			VerticalScale:  60,
			PeakNoisePower: 1,
			HeightCurve: []curve.Key{
				{T: 0, V: 0},
				{T: 0.4, V: 0.2},
				{T: 1, V: 1},
			},
		},
		Biomes: BiomeConfig{
			RegionNoiseScale:        0.004,
			RegionBackend:           "perlin",
			WaterThresholdFlat:      12,
			WaterThresholdMountain:  8,
			PlainsThresholdFlat:     30,
			PlainsThresholdMountain: 20,
			WaterCurve: []curve.Key{
				{T: 0, V: 0},
				{T: 1, V: 0.15},
			},
			PlainsCurve: []curve.Key{
				{T: 0, V: 0.1},
				{T: 1, V: 0.45},
			},
			MountainCurve: []curve.Key{
				{T: 0, V: 0.2},
				{T: 0.6, V: 0.55},
				{T: 1, V: 1.2},
			},
		},
		Erosion: ErosionConfig{
			Iterations: 20,
			Talus:      0.02,
			Factor:     0.25,
		},
		Lakes: LakeConfig{
			HeightThreshold: 0.18,
			WaterLevel:      6,
		},
		Stream: StreamConfig{
			ChunkSize:       64,
			ViewDistance:    3,
			PoolInitialSize: 20,
			InstallBudget:   1,
			TickRate:        Duration(16 * time.Millisecond),
			UniformEpsilon:  0.001,
			ResultBuffer:    4,
		},
		Materials: MaterialConfig{
			Terrain: "terrain",
			Water:   "water",
		},
		Export: ExportConfig{
			Enabled:   false,
			Directory: "export",
			Height:    "terrain_height.png",
			Biomes:    "terrain_biomes.png",
		},
		Observer: ObserverConfig{
			VelocityX: 12,
			VelocityZ: 4,
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	add := func(msg string) {
		err = multierr.Append(err, errors.New(msg))
	}

	if c.Terrain.MeshWidth < 1 || c.Terrain.MeshDepth < 1 {
		add("terrain.meshWidth and terrain.meshDepth must be at least 1")
	}
	if c.Terrain.Octaves < 0 {
		add("terrain.octaves cannot be negative")
	}
	if c.Terrain.Lacunarity < 1 {
		add("terrain.lacunarity must be >= 1")
	}
	if c.Terrain.Persistence < 0 || c.Terrain.Persistence > 1 {
		add("terrain.persistence must be within [0,1]")
	}
	if c.Terrain.Workers < 0 {
		add("terrain.workers cannot be negative")
	}
	if c.Terrain.PeakNoisePower < 0 {
		add("terrain.peakNoisePower cannot be negative")
	}
	switch c.Biomes.RegionBackend {
	case "", "perlin", "simplex":
	default:
		add(fmt.Sprintf("biomes.regionBackend %q is not one of perlin, simplex", c.Biomes.RegionBackend))
	}
	if c.Biomes.RegionNoiseScale < 0 {
		add("biomes.regionNoiseScale cannot be negative")
	}
	if c.Erosion.Iterations < 0 {
		add("erosion.iterations cannot be negative")
	}
	if c.Erosion.Talus < 0 || c.Erosion.Talus > 1 {
		add("erosion.talus must be within [0,1]")
	}
	if c.Erosion.Factor < 0 || c.Erosion.Factor > 1 {
		add("erosion.factor must be within [0,1]")
	}
	if c.Stream.ChunkSize < 1 {
		add("stream.chunkSize must be positive")
	}
	if c.Stream.ViewDistance < 0 {
		add("stream.viewDistance cannot be negative")
	}
	if c.Stream.PoolInitialSize < 0 {
		add("stream.poolInitialSize cannot be negative")
	}
	if c.Stream.InstallBudget < 1 {
		add("stream.installBudget must be positive")
	}
	if c.Stream.UniformEpsilon < 0 {
		add("stream.uniformEpsilon cannot be negative")
	}
	if c.Stream.ResultBuffer < 0 {
		add("stream.resultBuffer cannot be negative")
	}
	if c.Materials.Terrain == "" {
		add("materials.terrain must be set")
	}
	if c.Materials.Water == "" {
		add("materials.water must be set")
	}
	if c.Export.Enabled && c.Export.Height == "" {
		add("export.height must be set when export is enabled")
	}
	return err
}
