package processor

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"strings"

	"github.com/nci/gstream/region"
	"github.com/nci/gstream/utils"
)

var ErrResourcesExhausted = errors.New("server resources exhausted")

// StreamingConfig is declared with the rest of the job configuration.
type StreamingConfig = utils.StreamingConfig

// RAMSplitCount is the number of splits needed so that one split of full
// fits in the memory budget of cfg.
func RAMSplitCount(cfg StreamingConfig, full region.Region, bytesPerPixel int) int {
	bias := cfg.Bias
	if bias <= 0 {
		bias = 1
	}
	if bytesPerPixel <= 0 {
		bytesPerPixel = SizeofFloat32
	}

	total := float64(full.NumberOfPixels()) * float64(bytesPerPixel) * bias
	budget := float64(cfg.RAM()) * 1024 * 1024
	n := int(total / budget)
	if float64(n)*budget < total {
		n++
	}
	return max(n, 1)
}

func validTileHint(hint region.Size, dim int) bool {
	if len(hint) != dim {
		return false
	}
	for _, h := range hint {
		if h <= 0 {
			return false
		}
	}
	return true
}

// PrepareStreaming returns the splitter and the requested split count for
// streaming full under cfg. An empty type or size mode means auto.
func PrepareStreaming(cfg StreamingConfig, full region.Region, bytesPerPixel int, tileHint region.Size) (RegionSplitter, int, error) {
	streamType := strings.ToLower(strings.TrimSpace(cfg.Type))
	sizeMode := strings.ToLower(strings.TrimSpace(cfg.SizeMode))
	if len(streamType) == 0 {
		streamType = "auto"
	}
	if len(sizeMode) == 0 {
		sizeMode = "auto"
	}

	switch streamType {
	case "auto":
		if validTileHint(tileHint, full.Dim()) {
			return NewAdaptiveTileSplitter(tileHint), RAMSplitCount(cfg, full, bytesPerPixel), nil
		}
		return StripSplitter{}, RAMSplitCount(cfg, full, bytesPerPixel), nil

	case "none":
		return StripSplitter{}, 1, nil

	case "tiled", "stripped":
	default:
		return nil, 0, fmt.Errorf("%w: unknown streaming type %q", region.ErrInvalidArgument, cfg.Type)
	}

	switch sizeMode {
	case "auto":
	case "nbsplits", "height":
		if cfg.SizeValue <= 0 {
			return nil, 0, fmt.Errorf("%w: streaming size mode %s needs a positive size value, got %d", region.ErrInvalidArgument, sizeMode, cfg.SizeValue)
		}
	default:
		return nil, 0, fmt.Errorf("%w: unknown streaming size mode %q", region.ErrInvalidArgument, cfg.SizeMode)
	}

	if streamType == "tiled" {
		switch sizeMode {
		case "nbsplits":
			return NonUniformSplitter{}, cfg.SizeValue, nil
		case "height":
			hint := make(region.Size, full.Dim())
			for d := range hint {
				hint[d] = cfg.SizeValue
			}
			s := NewAdaptiveTileSplitter(hint)
			tiles, ok := s.tileCounts(full)
			if !ok {
				return s, 1, nil
			}
			return s, max(product(tiles), 1), nil
		default:
			return NonUniformSplitter{}, RAMSplitCount(cfg, full, bytesPerPixel), nil
		}
	}

	switch sizeMode {
	case "nbsplits":
		return StripSplitter{}, cfg.SizeValue, nil
	case "height":
		lines := 1
		if axis := stripAxis(full.Size); axis >= 0 {
			lines = full.Size[axis]
		}
		return StripSplitter{}, max(ceilDiv(lines, cfg.SizeValue), 1), nil
	default:
		return StripSplitter{}, RAMSplitCount(cfg, full, bytesPerPixel), nil
	}
}

// LargestSplitBytes is the buffer size of the biggest split. Lower pieces
// are never smaller than later ones with these splitters, so split 0 is it.
func LargestSplitBytes(s RegionSplitter, full region.Region, actual int, bytesPerPixel int) (int64, error) {
	if actual == 0 {
		return 0, nil
	}
	first, err := s.GetSplit(0, actual, full)
	if err != nil {
		return 0, err
	}
	return int64(first.NumberOfPixels()) * int64(bytesPerPixel), nil
}

// CheckMemory fails with ErrResourcesExhausted when a buffer of the given
// size does not fit in the memory currently available to the process.
func CheckMemory(requestedBytes int64) error {
	freeMem, err := availableMemory()
	if err != nil {
		log.Printf("streaming manager: skipping memory check: %v", err)
		return nil
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	available := freeMem + int64(mem.HeapIdle)
	if requestedBytes > available {
		return fmt.Errorf("%w: split needs %d bytes, %d available", ErrResourcesExhausted, requestedBytes, available)
	}
	return nil
}
