package processor

import (
	"github.com/nci/gstream/region"
)

// AdaptiveTileSplitter cuts a region into TileHint-sized tiles, truncated
// at the far edges. When there are more tiles than requested, contiguous
// tiles in row-major order are grouped into exactly the requested number
// of boxes. A missing or degenerate hint streams the region as one piece.
type AdaptiveTileSplitter struct {
	TileHint region.Size
}

func NewAdaptiveTileSplitter(tileHint region.Size) *AdaptiveTileSplitter {
	hint := make(region.Size, len(tileHint))
	copy(hint, tileHint)
	return &AdaptiveTileSplitter{TileHint: hint}
}

func (s *AdaptiveTileSplitter) GetNumberOfSplits(r region.Region, requested int) (int, error) {
	if err := checkRequested(requested); err != nil {
		return 0, err
	}
	if r.IsNull() {
		return 0, nil
	}

	tiles, ok := s.tileCounts(r)
	if !ok {
		return 1, nil
	}
	total := product(tiles)
	if total <= requested {
		return total, nil
	}
	return requested, nil
}

func (s *AdaptiveTileSplitter) GetSplit(i, actual int, r region.Region) (region.Region, error) {
	if err := checkSplitIndex(i, actual, r, s); err != nil {
		return region.Region{}, err
	}

	tiles, ok := s.tileCounts(r)
	if !ok {
		return r.Clone(), nil
	}

	var lo, hi []int
	if product(tiles) == actual {
		lo = decodeRowMajor(i, tiles)
		hi = make([]int, len(lo))
		for d := range lo {
			hi[d] = lo[d] + 1
		}
	} else {
		lo, hi = tileGroup(tiles, actual, i)
	}

	out := r.Clone()
	for d := range tiles {
		start := lo[d] * s.TileHint[d]
		end := min(hi[d]*s.TileHint[d], r.Size[d])
		out.Origin[d] = r.Origin[d] + start
		out.Size[d] = end - start
	}
	return out, nil
}

func (s *AdaptiveTileSplitter) tileCounts(r region.Region) ([]int, bool) {
	if len(s.TileHint) != r.Dim() {
		return nil, false
	}
	tiles := make([]int, r.Dim())
	for d, h := range s.TileHint {
		if h <= 0 {
			return nil, false
		}
		tiles[d] = ceilDiv(r.Size[d], h)
	}
	return tiles, true
}

// tileGroup returns the half-open tile box [lo, hi) of group g when the
// tile grid is shared out between groups boxes. Groups are allotted from
// the outermost axis inwards; earlier bands absorb the remainder.
func tileGroup(tiles []int, groups, g int) ([]int, []int) {
	dim := len(tiles)
	lo := make([]int, dim)
	hi := make([]int, dim)
	copy(hi, tiles)

	for d := dim - 1; d >= 0; d-- {
		if groups <= tiles[d] || d == 0 {
			off, length := pieceBounds(tiles[d], groups, g)
			lo[d] = off
			hi[d] = off + length
			return lo, hi
		}

		// every slab along d gets at least one group
		slabs := tiles[d]
		for slab := 0; slab < slabs; slab++ {
			_, n := pieceBounds(groups, slabs, slab)
			if g < n {
				lo[d] = slab
				hi[d] = slab + 1
				groups = n
				break
			}
			g -= n
		}
	}
	return lo, hi
}
