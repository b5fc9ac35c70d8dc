package processor

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nci/gstream/region"
)

const SizeofFloat32 = 4

// Tile is the pixel buffer of one sub-region: a single float32 band laid
// out row-major with axis 0 varying fastest.
type Tile struct {
	Region region.Region
	Data   []float32
	NoData float64
}

func NewTile(r region.Region, noData float64) *Tile {
	return &Tile{Region: r, Data: make([]float32, r.NumberOfPixels()), NoData: noData}
}

// Offset maps a pixel index inside the tile to its position in Data.
func (t *Tile) Offset(idx region.Index) int {
	off := 0
	stride := 1
	for d := range idx {
		off += (idx[d] - t.Region.Origin[d]) * stride
		stride *= t.Region.Size[d]
	}
	return off
}

func (t *Tile) Validate() error {
	if len(t.Data) != t.Region.NumberOfPixels() {
		return fmt.Errorf("tile %v holds %d pixels, expected %d", t.Region, len(t.Data), t.Region.NumberOfPixels())
	}
	return nil
}

// Bytes encodes the tile pixels as little-endian float32.
func (t *Tile) Bytes() []byte {
	return Float32ToBytes(t.Data)
}

func Float32ToBytes(data []float32) []byte {
	out := make([]byte, len(data)*SizeofFloat32)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*SizeofFloat32:], math.Float32bits(v))
	}
	return out
}

func BytesToFloat32(raw []byte) ([]float32, error) {
	if len(raw)%SizeofFloat32 != 0 {
		return nil, fmt.Errorf("buffer of %d bytes is not a float32 array", len(raw))
	}
	out := make([]float32, len(raw)/SizeofFloat32)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*SizeofFloat32:]))
	}
	return out, nil
}

// Source materialises pixel data for any sub-region of its full region.
// Implementations recompute on every call; the driver relies on nothing
// being cached between sub-regions so memory stays bounded by one tile.
type Source interface {
	FullRegion() region.Region
	ComputeRegion(ctx context.Context, r region.Region) (*Tile, error)
}

// Sink consumes one (sub-region, tile) pair at a time. Ownership of the
// tile passes to the sink.
type Sink interface {
	Accept(r region.Region, t *Tile) error
}

type SourceFunc func(ctx context.Context, r region.Region) (*Tile, error)

type SinkFunc func(r region.Region, t *Tile) error

func (f SinkFunc) Accept(r region.Region, t *Tile) error {
	return f(r, t)
}

// ProgressFunc receives the completed fraction after each sub-region.
// Returning false asks the driver to stop before the next one.
type ProgressFunc func(fraction float64) bool

// eachLine calls fn for every axis-0 line of r with the index of the
// line's first pixel. Lines are visited in buffer order.
func eachLine(r region.Region, fn func(line int, start region.Index) error) error {
	if r.IsNull() {
		return nil
	}
	lines := r.NumberOfPixels() / r.Size[0]
	start := make(region.Index, r.Dim())
	for line := 0; line < lines; line++ {
		start[0] = r.Origin[0]
		rest := line
		for d := 1; d < r.Dim(); d++ {
			start[d] = r.Origin[d] + rest%r.Size[d]
			rest /= r.Size[d]
		}
		if err := fn(line, start); err != nil {
			return err
		}
	}
	return nil
}
