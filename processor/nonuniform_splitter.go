package processor

import (
	"github.com/nci/gstream/region"
)

// NonUniformSplitter divides a region by repeatedly halving the axis with
// the largest piece extent. Pieces along an axis differ by at most one
// pixel, the lower pieces taking the extra ones.
type NonUniformSplitter struct{}

func (s NonUniformSplitter) GetNumberOfSplits(r region.Region, requested int) (int, error) {
	if err := checkRequested(requested); err != nil {
		return 0, err
	}
	if r.IsNull() {
		return 0, nil
	}
	counts := s.splitCounts(r.Size, requested)
	return product(counts), nil
}

func (s NonUniformSplitter) GetSplit(i, actual int, r region.Region) (region.Region, error) {
	if err := checkSplitIndex(i, actual, r, s); err != nil {
		return region.Region{}, err
	}

	counts := s.splitCounts(r.Size, actual)
	slots := decodeRowMajor(i, counts)

	out := r.Clone()
	for d := range counts {
		off, length := pieceBounds(r.Size[d], counts[d], slots[d])
		out.Origin[d] += off
		out.Size[d] = length
	}
	return out, nil
}

// splitCounts returns the number of pieces per axis. The product never
// exceeds requested and no axis is cut below one pixel per piece.
func (s NonUniformSplitter) splitCounts(size region.Size, requested int) []int {
	counts := make([]int, len(size))
	for d := range counts {
		counts[d] = 1
	}

	total := 1
	for {
		axis := -1
		widest := 0
		// ties go to the outermost axis so 2-D images are cut into row strips first
		for d := len(size) - 1; d >= 0; d-- {
			if counts[d] >= size[d] {
				continue
			}
			piece := ceilDiv(size[d], counts[d])
			if piece > widest {
				widest = piece
				axis = d
			}
		}
		if axis < 0 {
			break
		}

		others := total / counts[axis]
		next := min(2*counts[axis], size[axis])
		if others*next > requested {
			next = requested / others
			if next > counts[axis] {
				counts[axis] = next
			}
			break
		}
		counts[axis] = next
		total = others * next
	}
	return counts
}

func product(v []int) int {
	p := 1
	for _, x := range v {
		p *= x
	}
	return p
}
