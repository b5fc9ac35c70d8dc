package region

import (
	"errors"
	"testing"
)

func TestMakeRegion(t *testing.T) {
	r, err := MakeRegion(Index{3, 4}, Size{10, 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Dim() != 2 || r.NumberOfPixels() != 200 {
		t.Errorf("unexpected region: %v", r)
	}

	upper := r.UpperCorner()
	if upper[0] != 12 || upper[1] != 23 {
		t.Errorf("expected upper corner (12, 23), actual %v", upper)
	}

	_, err = MakeRegion(Index{0, 0}, Size{-1, 4})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for negative size, actual %v", err)
	}

	_, err = MakeRegion(Index{0}, Size{1, 4})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for mismatched axes, actual %v", err)
	}
}

func TestMakeRegionCopiesInputs(t *testing.T) {
	origin := Index{1, 1}
	size := Size{5, 5}
	r, _ := MakeRegion(origin, size)
	origin[0] = 100
	size[0] = 100
	if r.Origin[0] != 1 || r.Size[0] != 5 {
		t.Errorf("region shares storage with its inputs: %v", r)
	}
}

func TestIsNull(t *testing.T) {
	cases := []struct {
		r    Region
		null bool
	}{
		{New2D(0, 0, 1, 1), false},
		{New2D(0, 0, 0, 5), true},
		{New2D(7, 7, 5, 0), true},
		{Region{}, true},
	}

	for i, c := range cases {
		if c.r.IsNull() != c.null {
			t.Errorf("[%d] %v: expected null=%v", i, c.r, c.null)
		}
		if c.null && c.r.NumberOfPixels() != 0 {
			t.Errorf("[%d] null region reports %d pixels", i, c.r.NumberOfPixels())
		}
	}
}

func TestCrop(t *testing.T) {
	cases := []struct {
		a, b     Region
		expected Region
		null     bool
	}{
		{New2D(0, 0, 10, 10), New2D(5, 5, 10, 10), New2D(5, 5, 5, 5), false},
		{New2D(0, 0, 10, 10), New2D(2, 3, 4, 4), New2D(2, 3, 4, 4), false},
		{New2D(0, 0, 10, 10), New2D(10, 0, 5, 5), Region{}, true},
		{New2D(0, 0, 10, 10), New2D(-5, -5, 3, 30), Region{}, true},
	}

	for i, c := range cases {
		out := Crop(c.a, c.b)
		if out.IsNull() != c.null {
			t.Errorf("[%d] crop %v by %v: expected null=%v, actual %v", i, c.a, c.b, c.null, out)
			continue
		}
		if !c.null && !out.Equal(c.expected) {
			t.Errorf("[%d] crop %v by %v: expected %v, actual %v", i, c.a, c.b, c.expected, out)
		}
		if c.null {
			for _, s := range out.Size {
				if s != 0 {
					t.Errorf("[%d] null crop keeps non-zero size %v", i, out.Size)
				}
			}
		}
	}

	mixed := Crop(New2D(0, 0, 4, 4), Region{Origin: Index{0, 0, 0}, Size: Size{4, 4, 4}})
	if !mixed.IsNull() {
		t.Errorf("crop of mismatched dimensions should be null, actual %v", mixed)
	}
}

func TestContainsOverlaps(t *testing.T) {
	outer := New2D(0, 0, 100, 100)
	if !Contains(outer, New2D(50, 50, 50, 50)) {
		t.Errorf("expected containment at the far corner")
	}
	if Contains(outer, New2D(50, 50, 51, 50)) {
		t.Errorf("region past the upper corner must not be contained")
	}
	if !Overlaps(outer, New2D(99, 99, 10, 10)) {
		t.Errorf("expected overlap on the last pixel")
	}
	if Overlaps(New2D(0, 0, 10, 10), New2D(10, 10, 1, 1)) {
		t.Errorf("adjacent regions must not overlap")
	}
}

func TestString(t *testing.T) {
	if s := New2D(0, 256, 256, 128).String(); s != "[0:256)x[256:384)" {
		t.Errorf("unexpected string %q", s)
	}
}
