package export

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/hsluv/hsluv-go"

	"terrainstream/internal/terrain"
)

// BakeHeight writes the grid into a 16-bit grayscale image, one pixel per
// sample with x to the right and z downwards. Heights are clamped to [0,1].
func BakeHeight(grid *terrain.HeightGrid) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, grid.Width, grid.Depth))
	for z := 0; z < grid.Depth; z++ {
		for x := 0; x < grid.Width; x++ {
			img.SetGray16(x, z, color.Gray16{Y: heightToGray(grid.At(x, z))})
		}
	}
	return img
}

func heightToGray(h float64) uint16 {
	if math.IsNaN(h) || h <= 0 {
		return 0
	}
	if h >= 1 {
		return math.MaxUint16
	}
	return uint16(math.Round(h * math.MaxUint16))
}

var biomeHues = map[terrain.Biome]float64{
	terrain.Water:    250,
	terrain.Plains:   125,
	terrain.Mountain: 35,
}

const (
	previewSaturation = 70
	previewMinLight   = 20
	previewLightRange = 65
)

// BiomePreview colours each cell by biome, brighter where the cell is
// higher. The two grids must have the same dimensions.
func BiomePreview(biomes *terrain.BiomeGrid, heights *terrain.HeightGrid) (*image.NRGBA, error) {
	if biomes == nil || heights == nil {
		return nil, fmt.Errorf("biome preview needs both grids")
	}
	if biomes.Width != heights.Width || biomes.Depth != heights.Depth {
		return nil, fmt.Errorf("biome grid %dx%d does not match height grid %dx%d",
			biomes.Width, biomes.Depth, heights.Width, heights.Depth)
	}

	img := image.NewNRGBA(image.Rect(0, 0, biomes.Width, biomes.Depth))
	for z := 0; z < biomes.Depth; z++ {
		for x := 0; x < biomes.Width; x++ {
			img.SetNRGBA(x, z, biomeColor(biomes.At(x, z), heights.At(x, z)))
		}
	}
	return img, nil
}

func biomeColor(b terrain.Biome, h float64) color.NRGBA {
	hue, ok := biomeHues[b]
	saturation := float64(previewSaturation)
	if !ok {
		saturation = 0
	}
	light := previewMinLight + previewLightRange*clamp01(h)
	r, g, bl := hsluv.HsluvToRGB(hue, saturation, light)
	return color.NRGBA{
		R: channel(r),
		G: channel(g),
		B: channel(bl),
		A: 0xff,
	}
}

func channel(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 0xff))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
