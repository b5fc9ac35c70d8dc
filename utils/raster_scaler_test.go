package utils

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"
)

func assert(t *testing.T, out *ByteRaster, expected *ByteRaster, err error) {
	if err != nil {
		t.Errorf("byte raster test failed,  %v", err)
		return
	}
	if len(out.Data) != len(expected.Data) {
		t.Errorf("byte raster test failed, expecting %v, actual %v", expected.Data, out.Data)
		return
	}
	for i := range out.Data {
		if out.Data[i] != expected.Data[i] {
			t.Errorf("byte raster test failed, expecting %v, actual %v", expected.Data, out.Data)
			return
		}
	}
}

func testByteRaster(t *testing.T) {
	inRaster := make([]Raster, 1)

	sp := ScaleParams{Offset: 1, Scale: 1, Clip: 1000}
	inRaster[0] = &ByteRaster{Data: []uint8{1, 2}, NoData: 100}
	out, err := Scale(inRaster, sp)
	assert(t, out[0], &ByteRaster{Data: []uint8{2, 3}}, err)

	sp = ScaleParams{Offset: 0, Scale: 0, Clip: 2}
	out, err = Scale(inRaster, sp)
	assert(t, out[0], &ByteRaster{Data: []uint8{127, 254}}, err)

	sp = ScaleParams{Offset: 3, Scale: 2, Clip: 1000}
	out, err = Scale(inRaster, sp)
	assert(t, out[0], &ByteRaster{Data: []uint8{8, 10}}, err)

	sp = ScaleParams{Offset: 3, Scale: 2, Clip: 2}
	out, err = Scale(inRaster, sp)
	assert(t, out[0], &ByteRaster{Data: []uint8{4, 4}}, err)

	inRaster[0] = &ByteRaster{Data: []uint8{1, 100}, NoData: 100}
	sp = ScaleParams{Offset: 0, Scale: 1, Clip: 1000}
	out, err = Scale(inRaster, sp)
	assert(t, out[0], &ByteRaster{Data: []uint8{1, 0xFF}}, err)
}

func testFloat32Raster(t *testing.T) {
	inRaster := make([]Raster, 1)

	sp := ScaleParams{Offset: 1, Scale: 1, Clip: 1000}
	inRaster[0] = &Float32Raster{Data: []float32{1, 2}, Height: 2, Width: 1, NoData: -1}
	out, err := Scale(inRaster, sp)
	assert(t, out[0], &ByteRaster{Data: []uint8{2, 3}}, err)

	sp = ScaleParams{Offset: 0, Scale: 0, Clip: 2}
	out, err = Scale(inRaster, sp)
	assert(t, out[0], &ByteRaster{Data: []uint8{127, 254}}, err)

	sp = ScaleParams{Offset: 3, Scale: 2, Clip: 2}
	out, err = Scale(inRaster, sp)
	assert(t, out[0], &ByteRaster{Data: []uint8{4, 4}}, err)

	inRaster[0] = &Float32Raster{Data: []float32{-100, -200}, Height: 2, Width: 1, NoData: -1}
	out, err = Scale(inRaster, sp)
	assert(t, out[0], &ByteRaster{Data: []uint8{0, 0}}, err)

	inRaster[0] = &Float32Raster{Data: []float32{-1, 10}, Height: 2, Width: 1, NoData: -1}
	sp = AutoScaleParams(0, 10)
	out, err = Scale(inRaster, sp)
	assert(t, out[0], &ByteRaster{Data: []uint8{0xFF, 254}}, err)
}

func TestScale(t *testing.T) {
	testByteRaster(t)
	testFloat32Raster(t)
}

func TestGradientRGBAPalette(t *testing.T) {
	plt, err := GradientRGBAPalette(&Palette{
		Interpolate: true,
		Colours:     []color.RGBA{{0, 0, 0, 255}, {255, 255, 255, 255}},
	})
	if err != nil {
		t.Fatalf("palette failed: %v", err)
	}
	if len(plt) != 256 {
		t.Fatalf("expected 256 colours, got %d", len(plt))
	}
	if plt[0].R != 0 || plt[255].R < 250 {
		t.Errorf("unexpected ramp ends %v %v", plt[0], plt[255])
	}

	if _, err := GradientRGBAPalette(&Palette{Interpolate: true, Colours: []color.RGBA{{1, 2, 3, 255}}}); err == nil {
		t.Errorf("expected error for single colour gradient")
	}
}

func TestEncodePNG(t *testing.T) {
	br := &ByteRaster{Data: []uint8{0, 127, 254, 0xFF}, Width: 2, Height: 2}
	out, err := EncodePNG([]*ByteRaster{br}, nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Errorf("unexpected bounds %v", b)
	}
	if _, _, _, a := img.At(1, 1).RGBA(); a != 0 {
		t.Errorf("nodata pixel should be transparent")
	}
	if r, _, _, a := img.At(0, 1).RGBA(); a == 0 || r>>8 != 254 {
		t.Errorf("unexpected pixel value %d", r>>8)
	}

	if _, err := EncodePNG([]*ByteRaster{br, br}, nil); err == nil {
		t.Errorf("expected error for two bands")
	}
}
