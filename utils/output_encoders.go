package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

type Raster interface {
	GetNoData() float64
}

type ByteRaster struct {
	Data          []uint8
	Height, Width int
	NoData        float64
}

func (r *ByteRaster) GetNoData() float64 {
	return r.NoData
}

type Float32Raster struct {
	Data          []float32
	Height, Width int
	NoData        float64
}

func (r *Float32Raster) GetNoData() float64 {
	return r.NoData
}

type Palette struct {
	Interpolate bool         `json:"interpolate" yaml:"interpolate"`
	Colours     []color.RGBA `json:"colours" yaml:"colours"`
}

func interpolateUint8(a, b uint8, i, sectionLength int) uint8 {
	return a + uint8((i * (int(b) - int(a)) / sectionLength))
}

func interpolateColor(a, b color.RGBA, i, sectionLength int) color.RGBA {
	return color.RGBA{interpolateUint8(a.R, b.R, i, sectionLength),
		interpolateUint8(a.G, b.G, i, sectionLength),
		interpolateUint8(a.B, b.B, i, sectionLength),
		255}
}

// GradientRGBAPalette expands a palette into a 256 colour ramp, either
// interpolating between consecutive colours or repeating each one.
func GradientRGBAPalette(palette *Palette) ([]color.RGBA, error) {
	if palette == nil {
		return nil, nil
	}
	if len(palette.Colours) == 0 {
		return nil, fmt.Errorf("palette has no colours")
	}
	if palette.Interpolate && len(palette.Colours) < 2 {
		return nil, fmt.Errorf("an interpolated palette needs at least 2 colours")
	}

	ramp := make([]color.RGBA, 256)
	colours := palette.Colours
	bins := len(colours)
	if palette.Interpolate {
		bins--
	}
	sectionLength := 256 / bins
	bonus := 256 - (sectionLength * bins)

	index := 0
	for section := 0; section < bins; section++ {
		n := sectionLength
		if section < bonus {
			n++
		}
		for i := 0; i < n; i++ {
			if palette.Interpolate {
				ramp[index] = interpolateColor(colours[section], colours[section+1], i, sectionLength)
			} else {
				ramp[index] = colours[section]
			}
			index++
		}
	}

	return ramp, nil
}

// EncodePNG renders one band through a palette (grey ramp when the palette
// is nil) or three bands as RGB. Pixels equal to 0xFF are transparent.
func EncodePNG(br []*ByteRaster, palette *Palette) ([]byte, error) {
	if len(br) == 0 || br[0] == nil {
		return nil, fmt.Errorf("no raster to encode")
	}
	buf := new(bytes.Buffer)
	canvas := image.NewRGBA(image.Rect(0, 0, br[0].Width, br[0].Height))

	switch len(br) {
	case 1:
		plt, err := GradientRGBAPalette(palette)
		if err != nil {
			return nil, err
		}

		raster := br[0]
		for i, v := range raster.Data {
			if v == 0xFF {
				continue
			}
			c := color.RGBA{v, v, v, 0xff}
			if plt != nil {
				c = plt[v]
			}
			start := i * 4
			canvas.Pix[start] = c.R
			canvas.Pix[start+1] = c.G
			canvas.Pix[start+2] = c.B
			canvas.Pix[start+3] = 0xff
		}

	case 3:
		rasterR := br[0]
		rasterG := br[1]
		rasterB := br[2]

		if rasterR == nil || rasterG == nil || rasterB == nil {
			return nil, fmt.Errorf("At least one of the bands is nil")
		}

		var start int
		for i := 0; i < rasterR.Width*rasterR.Height; i++ {
			if rasterR.Data[i] != 0xFF || rasterG.Data[i] != 0xFF || rasterB.Data[i] != 0xFF {
				start = i * 4
				canvas.Pix[start] = rasterR.Data[i]
				canvas.Pix[start+1] = rasterG.Data[i]
				canvas.Pix[start+2] = rasterB.Data[i]
				canvas.Pix[start+3] = 0xff
			}
		}

	default:
		return nil, fmt.Errorf("Cannot encode other than 1 or 3 bands into a PNG: Received %d", len(br))
	}

	err := png.Encode(buf, canvas)
	return buf.Bytes(), err
}
