// Package region describes axis-aligned integer boxes over an image's
// pixel grid. The dimension is carried by the length of the vectors, so the
// same code serves 2-D rasters and 3-D cubes.
package region

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOutOfRange      = errors.New("out of range")
)

// Index is the inclusive lower corner of a region.
type Index []int

// Size is the per-axis extent of a region.
type Size []int

// Region is an N-dimensional box. A region with any zero size component
// is the null region and contains no pixels.
type Region struct {
	Origin Index
	Size   Size
}

// MakeRegion copies origin and size into a new Region.
func MakeRegion(origin Index, size Size) (Region, error) {
	if len(origin) != len(size) {
		return Region{}, fmt.Errorf("%w: origin has %d axes, size has %d", ErrInvalidArgument, len(origin), len(size))
	}
	for d, s := range size {
		if s < 0 {
			return Region{}, fmt.Errorf("%w: negative size %d on axis %d", ErrInvalidArgument, s, d)
		}
	}
	r := Region{Origin: make(Index, len(origin)), Size: make(Size, len(size))}
	copy(r.Origin, origin)
	copy(r.Size, size)
	return r, nil
}

// New2D is a shorthand for literal 2-D regions. It panics on negative sizes.
func New2D(x, y, width, height int) Region {
	r, err := MakeRegion(Index{x, y}, Size{width, height})
	if err != nil {
		panic(err)
	}
	return r
}

func (r Region) Dim() int {
	return len(r.Size)
}

func (r Region) IsNull() bool {
	if len(r.Size) == 0 {
		return true
	}
	for _, s := range r.Size {
		if s <= 0 {
			return true
		}
	}
	return false
}

func (r Region) NumberOfPixels() int {
	if r.IsNull() {
		return 0
	}
	n := 1
	for _, s := range r.Size {
		n *= s
	}
	return n
}

// UpperCorner returns the inclusive upper corner. It is only meaningful
// for non-null regions.
func (r Region) UpperCorner() Index {
	upper := make(Index, len(r.Origin))
	for d := range r.Origin {
		upper[d] = r.Origin[d] + r.Size[d] - 1
	}
	return upper
}

func (r Region) Clone() Region {
	c := Region{Origin: make(Index, len(r.Origin)), Size: make(Size, len(r.Size))}
	copy(c.Origin, r.Origin)
	copy(c.Size, r.Size)
	return c
}

func (r Region) Equal(o Region) bool {
	if len(r.Origin) != len(o.Origin) || len(r.Size) != len(o.Size) {
		return false
	}
	for d := range r.Origin {
		if r.Origin[d] != o.Origin[d] || r.Size[d] != o.Size[d] {
			return false
		}
	}
	return true
}

// String formats the region as half-open intervals, e.g. [0:256)x[0:128).
func (r Region) String() string {
	if len(r.Origin) == 0 {
		return "[]"
	}
	parts := make([]string, len(r.Origin))
	for d := range r.Origin {
		parts[d] = fmt.Sprintf("[%d:%d)", r.Origin[d], r.Origin[d]+r.Size[d])
	}
	return strings.Join(parts, "x")
}

// Crop intersects r with bounding. Disjoint boxes, and boxes of different
// dimension, yield a null region rather than an error.
func Crop(r, bounding Region) Region {
	if r.Dim() != bounding.Dim() {
		return Region{Origin: make(Index, r.Dim()), Size: make(Size, r.Dim())}
	}

	out := Region{Origin: make(Index, r.Dim()), Size: make(Size, r.Dim())}
	null := false
	for d := range r.Origin {
		lo := max(r.Origin[d], bounding.Origin[d])
		hi := min(r.Origin[d]+r.Size[d], bounding.Origin[d]+bounding.Size[d])
		out.Origin[d] = lo
		if hi <= lo {
			null = true
			continue
		}
		out.Size[d] = hi - lo
	}

	if null {
		for d := range out.Size {
			out.Size[d] = 0
		}
	}
	return out
}

// Contains reports whether every pixel of inner lies in outer. The null
// region is contained in any region of the same dimension.
func Contains(outer, inner Region) bool {
	if outer.Dim() != inner.Dim() {
		return false
	}
	if inner.IsNull() {
		return true
	}
	for d := range outer.Origin {
		if inner.Origin[d] < outer.Origin[d] {
			return false
		}
		if inner.Origin[d]+inner.Size[d] > outer.Origin[d]+outer.Size[d] {
			return false
		}
	}
	return true
}

func Overlaps(a, b Region) bool {
	return !Crop(a, b).IsNull()
}
