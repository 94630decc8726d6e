package terrain

import (
	"terrainstream/internal/curve"
)

// Biome classifies a terrain cell.
type Biome uint8

const (
	Water Biome = iota
	Plains
	Mountain
)

func (b Biome) String() string {
	switch b {
	case Water:
		return "water"
	case Plains:
		return "plains"
	case Mountain:
		return "mountain"
	default:
		return "unknown"
	}
}

// Thresholds are world-height cut-offs. Each pair is blended by the region
// bias: bias 0 selects the mountain value, bias 1 the flat value.
type Thresholds struct {
	WaterFlat      float64
	WaterMountain  float64
	PlainsFlat     float64
	PlainsMountain float64
}

// Blend returns the water and plains thresholds for a region bias.
func (t Thresholds) Blend(bias float64) (water, plains float64) {
	return lerp(t.WaterMountain, t.WaterFlat, bias), lerp(t.PlainsMountain, t.PlainsFlat, bias)
}

// Classifier assigns biomes and reshapes heights per biome.
type Classifier struct {
	VerticalScale float64
	Master        curve.Curve
	Water         curve.Curve
	Plains        curve.Curve
	Mountain      curve.Curve
	Thresholds    Thresholds
}

// Classify compares the master-shaped world height against the blended
// thresholds and returns the biome plus the height reshaped by that biome's
// curve. The biome curve is sampled at the unshaped normalized value. When
// the blended water threshold reaches the plains threshold, water wins.
func (c Classifier) Classify(normalized, bias float64) (Biome, float64) {
	worldY := evaluate(c.Master, normalized) * c.VerticalScale
	water, plains := c.Thresholds.Blend(bias)

	switch {
	case worldY < water:
		return Water, evaluate(c.Water, normalized)
	case worldY < plains:
		return Plains, evaluate(c.Plains, normalized)
	default:
		return Mountain, evaluate(c.Mountain, normalized)
	}
}

func evaluate(c curve.Curve, t float64) float64 {
	if c == nil {
		return t
	}
	return c.Evaluate(t)
}
