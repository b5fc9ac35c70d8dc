package processor

import (
	"fmt"

	"github.com/nci/gstream/region"
)

// RegionSplitter partitions a region into disjoint sub-regions.
//
// GetNumberOfSplits returns the number of pieces actually produced for a
// requested count; it never exceeds the request and is 0 only for a null
// region. GetSplit must be given that same actual count back, since the
// partition layout is keyed on it.
type RegionSplitter interface {
	GetNumberOfSplits(r region.Region, requested int) (int, error)
	GetSplit(i, actual int, r region.Region) (region.Region, error)
}

func checkRequested(requested int) error {
	if requested <= 0 {
		return fmt.Errorf("%w: requested split count must be positive, got %d", region.ErrInvalidArgument, requested)
	}
	return nil
}

func checkSplitIndex(i, actual int, r region.Region, splitter RegionSplitter) error {
	if actual <= 0 || i < 0 || i >= actual {
		return fmt.Errorf("%w: split %d of %d for region %v", region.ErrOutOfRange, i, actual, r)
	}
	n, err := splitter.GetNumberOfSplits(r, actual)
	if err != nil {
		return err
	}
	if n != actual {
		return fmt.Errorf("%w: %d is not a split count of region %v (splitter yields %d)", region.ErrOutOfRange, actual, r, n)
	}
	return nil
}

// pieceBounds cuts extent into k contiguous pieces and returns the offset
// and length of piece j. The first extent%k pieces are one pixel longer.
func pieceBounds(extent, k, j int) (int, int) {
	base := extent / k
	rem := extent % k
	if j < rem {
		return j * (base + 1), base + 1
	}
	return rem*(base+1) + (j-rem)*base, base
}

// decodeRowMajor turns a linear index into per-axis slots, axis 0 fastest.
func decodeRowMajor(i int, counts []int) []int {
	slots := make([]int, len(counts))
	for d, c := range counts {
		slots[d] = i % c
		i /= c
	}
	return slots
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
