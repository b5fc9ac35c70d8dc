package processor

import (
	"fmt"

	"github.com/nci/gstream/region"
	"github.com/nci/gstream/utils"
)

// RasterStitcher pastes every tile it accepts into a canvas covering the
// full region. It holds the whole image in memory and is meant for outputs
// that cannot be written piecewise, such as PNG previews.
type RasterStitcher struct {
	Canvas *Tile
}

func NewRasterStitcher(full region.Region, noData float64) *RasterStitcher {
	canvas := NewTile(full.Clone(), noData)
	fill := float32(noData)
	for i := range canvas.Data {
		canvas.Data[i] = fill
	}
	return &RasterStitcher{Canvas: canvas}
}

func (stch *RasterStitcher) Accept(r region.Region, t *Tile) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if !region.Contains(stch.Canvas.Region, r) {
		return fmt.Errorf("%w: tile %v is outside canvas %v", region.ErrOutOfRange, r, stch.Canvas.Region)
	}
	if r.IsNull() {
		return nil
	}

	width := r.Size[0]
	return eachLine(r, func(line int, start region.Index) error {
		dst := stch.Canvas.Offset(start)
		copy(stch.Canvas.Data[dst:dst+width], t.Data[line*width:(line+1)*width])
		return nil
	})
}

// Raster returns the canvas of a 2-D stitcher as a float32 raster.
func (stch *RasterStitcher) Raster() (*utils.Float32Raster, error) {
	if stch.Canvas.Region.Dim() != 2 {
		return nil, fmt.Errorf("%w: only 2-D canvases convert to rasters, got %d axes", region.ErrInvalidArgument, stch.Canvas.Region.Dim())
	}
	return &utils.Float32Raster{
		Data:   stch.Canvas.Data,
		Width:  stch.Canvas.Region.Size[0],
		Height: stch.Canvas.Region.Size[1],
		NoData: stch.Canvas.NoData,
	}, nil
}
