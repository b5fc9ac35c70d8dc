package processor

import (
	"github.com/nci/gstream/region"
)

// StripSplitter cuts a region into strips along its outermost axis whose
// extent is not 1. Every strip but the last has ceil(range/requested)
// lines; the last takes the rest.
type StripSplitter struct{}

func (s StripSplitter) GetNumberOfSplits(r region.Region, requested int) (int, error) {
	if err := checkRequested(requested); err != nil {
		return 0, err
	}
	if r.IsNull() {
		return 0, nil
	}

	axis := stripAxis(r.Size)
	if axis < 0 {
		return 1, nil
	}
	perPiece := ceilDiv(r.Size[axis], requested)
	return ceilDiv(r.Size[axis], perPiece), nil
}

func (s StripSplitter) GetSplit(i, actual int, r region.Region) (region.Region, error) {
	if err := checkSplitIndex(i, actual, r, s); err != nil {
		return region.Region{}, err
	}

	out := r.Clone()
	axis := stripAxis(r.Size)
	if axis < 0 {
		return out, nil
	}

	perPiece := ceilDiv(r.Size[axis], actual)
	out.Origin[axis] += i * perPiece
	if i == actual-1 {
		out.Size[axis] = r.Size[axis] - i*perPiece
	} else {
		out.Size[axis] = perPiece
	}
	return out, nil
}

func stripAxis(size region.Size) int {
	for d := len(size) - 1; d >= 0; d-- {
		if size[d] != 1 {
			return d
		}
	}
	return -1
}
