package processor

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/nci/gstream/region"
)

func TestParsePixelExpression(t *testing.T) {
	if _, err := ParsePixelExpression("x * 2 + y", 2); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if _, err := ParsePixelExpression("x + z", 2); !errors.Is(err, region.ErrInvalidArgument) {
		t.Errorf("z should be rejected for 2-D regions, got %v", err)
	}
	if _, err := ParsePixelExpression("x + z", 3); err != nil {
		t.Errorf("z should be valid for 3-D regions: %v", err)
	}
	if _, err := ParsePixelExpression("  ", 2); !errors.Is(err, region.ErrInvalidArgument) {
		t.Errorf("empty expression should be rejected, got %v", err)
	}
	if _, err := ParsePixelExpression("x +* (", 2); !errors.Is(err, region.ErrInvalidArgument) {
		t.Errorf("malformed expression should be rejected, got %v", err)
	}
}

func TestExprSource(t *testing.T) {
	full := region.New2D(0, 0, 8, 6)
	src, err := NewExprSource(full, "x + 10 * y", -1, 3)
	if err != nil {
		t.Fatal(err)
	}

	sub := region.New2D(2, 3, 3, 2)
	tile, err := src.ComputeRegion(context.Background(), sub)
	if err != nil {
		t.Fatal(err)
	}
	expected := []float32{32, 33, 34, 42, 43, 44}
	for i, v := range expected {
		if tile.Data[i] != v {
			t.Errorf("pixel %d: expected %v, got %v", i, v, tile.Data[i])
		}
	}

	if _, err := src.ComputeRegion(context.Background(), region.New2D(6, 0, 4, 1)); !errors.Is(err, region.ErrInvalidArgument) {
		t.Errorf("region outside the source should be rejected, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.ComputeRegion(ctx, full); !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation error, got %v", err)
	}
}

func TestExprSource3D(t *testing.T) {
	full, _ := region.MakeRegion(region.Index{0, 0, 0}, region.Size{2, 2, 3})
	src, err := NewExprSource(full, "z > 1", -1, 0)
	if err != nil {
		t.Fatal(err)
	}
	tile, err := src.ComputeRegion(context.Background(), full)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range tile.Data {
		exp := float32(0)
		if i >= 8 {
			exp = 1
		}
		if v != exp {
			t.Errorf("pixel %d: expected %v, got %v", i, exp, v)
		}
	}
}

func TestComputeTileStats(t *testing.T) {
	tile := &Tile{Region: region.New2D(0, 0, 5, 1), Data: []float32{1, 2, -9, 3, float32(math.NaN())}, NoData: -9}
	st := ComputeTileStats(tile)
	if st.Count != 3 || st.Mean != 2 || st.Min != 1 || st.Max != 3 || st.StdDev != 1 {
		t.Errorf("unexpected stats %+v", st)
	}

	empty := &Tile{Region: region.New2D(0, 0, 2, 1), Data: []float32{-9, -9}, NoData: -9}
	st = ComputeTileStats(empty)
	if st.Count != 0 || !math.IsNaN(st.Mean) {
		t.Errorf("unexpected stats for nodata tile %+v", st)
	}
}

func TestRasterStitcher(t *testing.T) {
	full := region.New2D(10, 10, 6, 4)
	src, err := NewExprSource(full, "x + 100 * y", -1, 2)
	if err != nil {
		t.Fatal(err)
	}

	stitcher := NewRasterStitcher(full, -1)
	d := NewStreamDriver(NewAdaptiveTileSplitter(region.Size{4, 3}))
	if err := d.Run(context.Background(), full, 16, src, stitcher); err != nil {
		t.Fatal(err)
	}

	raster, err := stitcher.Raster()
	if err != nil {
		t.Fatal(err)
	}
	if raster.Width != 6 || raster.Height != 4 {
		t.Fatalf("unexpected raster size %dx%d", raster.Width, raster.Height)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			exp := float32(10 + x + 100*(10+y))
			if v := raster.Data[y*6+x]; v != exp {
				t.Errorf("pixel (%d,%d): expected %v, got %v", x, y, exp, v)
			}
		}
	}

	outside := NewTile(region.New2D(0, 0, 2, 2), -1)
	if err := stitcher.Accept(outside.Region, outside); !errors.Is(err, region.ErrOutOfRange) {
		t.Errorf("tile outside the canvas should be rejected, got %v", err)
	}
}

func TestExprSourcePixelValues(t *testing.T) {
	src, err := NewExprSource(region.New2D(0, 0, 2, 3), "x + y", -1, 1)
	if err != nil {
		t.Fatal(err)
	}
	tile, err := src.ComputeRegion(context.Background(), region.New2D(1, 2, 1, 1))
	if err != nil {
		t.Fatalf("evaluating x + y failed: %v", err)
	}
	if tile.Data[0] != 3 {
		t.Errorf("expected 3 at (1, 2), got %v", tile.Data[0])
	}

	tests := []struct {
		in  interface{}
		out float32
		ok  bool
	}{
		{float32(2.5), 2.5, true},
		{float64(-4), -4, true},
		{true, 1, true},
		{false, 0, true},
		{"7", 0, false},
	}
	for _, tc := range tests {
		v, err := toFloat32(tc.in)
		if (err == nil) != tc.ok || v != tc.out {
			t.Errorf("toFloat32(%#v): expected %v (ok %v), got %v, %v", tc.in, tc.out, tc.ok, v, err)
		}
	}
}
