package utils

import (
	"fmt"
	"math"
)

// ScaleParams maps a value v to uint8((min(v+Offset, Clip)) * Scale).
// A zero Scale stretches [0, Clip] over [0, 254]; 0xFF is kept for nodata.
type ScaleParams struct {
	Offset float64
	Scale  float64
	Clip   float64
}

// AutoScaleParams stretches the value range [min, max] over the byte range.
func AutoScaleParams(min, max float64) ScaleParams {
	if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) || max <= min {
		return ScaleParams{Offset: 0, Scale: 1, Clip: 254}
	}
	return ScaleParams{Offset: -min, Scale: 0, Clip: max - min}
}

func scale(r Raster, params ScaleParams) (*ByteRaster, error) {
	switch t := r.(type) {
	case *ByteRaster:
		out := &ByteRaster{NoData: t.NoData, Data: make([]uint8, len(t.Data)), Width: t.Width, Height: t.Height}
		noData := uint8(t.NoData)
		for i, value := range t.Data {
			if value == noData {
				out.Data[i] = 0xFF
				continue
			}
			out.Data[i] = scaleValue(float64(value), params)
		}
		return out, nil

	case *Float32Raster:
		out := &ByteRaster{NoData: t.NoData, Data: make([]uint8, len(t.Data)), Width: t.Width, Height: t.Height}
		noData := float32(t.NoData)
		for i, value := range t.Data {
			if value == noData || math.IsNaN(float64(value)) {
				out.Data[i] = 0xFF
				continue
			}
			out.Data[i] = scaleValue(float64(value), params)
		}
		return out, nil

	default:
		return &ByteRaster{}, fmt.Errorf("Raster type not implemented")
	}
}

func scaleValue(value float64, params ScaleParams) uint8 {
	value += params.Offset
	if value > params.Clip {
		value = params.Clip
	}
	if value < 0 {
		value = 0
	}

	if params.Scale == 0 {
		if params.Clip <= 0 {
			return 0
		}
		return uint8(value * 254.0 / params.Clip)
	}
	v := value * params.Scale
	if v > 254 {
		v = 254
	}
	return uint8(v)
}

func Scale(rs []Raster, params ScaleParams) ([]*ByteRaster, error) {
	out := make([]*ByteRaster, len(rs))

	for i, r := range rs {
		br, err := scale(r, params)
		if err != nil {
			return out, err
		}
		out[i] = br
	}

	return out, nil
}
