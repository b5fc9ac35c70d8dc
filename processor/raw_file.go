package processor

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/nci/gstream/region"
	"gopkg.in/yaml.v2"
)

const RawHeaderSuffix = ".hdr.yaml"

// RawHeader describes a raw raster file: float32 little-endian pixels of
// the full region, row-major with axis 0 varying fastest.
type RawHeader struct {
	Origin   []int   `yaml:"origin"`
	Size     []int   `yaml:"size"`
	DataType string  `yaml:"data_type"`
	NoData   float64 `yaml:"nodata"`
	Splits   int     `yaml:"splits,omitempty"`

	// splits written by each shard of a sharded run
	ShardSplits map[int]int `yaml:"shard_splits,omitempty"`
}

func (h *RawHeader) Region() (region.Region, error) {
	return region.MakeRegion(h.Origin, h.Size)
}

func WriteRawHeader(path string, h *RawHeader) error {
	out, err := yaml.Marshal(h)
	if err != nil {
		return err
	}
	return os.WriteFile(path+RawHeaderSuffix, out, 0644)
}

func ReadRawHeader(path string) (*RawHeader, error) {
	data, err := os.ReadFile(path + RawHeaderSuffix)
	if err != nil {
		return nil, err
	}
	h := &RawHeader{}
	if err := yaml.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("%s%s: %v", path, RawHeaderSuffix, err)
	}
	if h.DataType != "float32" {
		return nil, fmt.Errorf("%s: unsupported data type %q", path, h.DataType)
	}
	return h, nil
}

// RawFileSink writes each tile it accepts straight to its place in a raw
// float32 file, so the full image is never held in memory. The file is
// sized for the full region up front; pixels never accepted stay zero.
type RawFileSink struct {
	Path  string
	Full  region.Region
	Shard Shard

	file    *os.File
	header  *RawHeader
	written int
	mu      sync.Mutex
}

func NewRawFileSink(path string, full region.Region, noData float64) (*RawFileSink, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(full.NumberOfPixels()) * SizeofFloat32); err != nil {
		f.Close()
		return nil, err
	}

	header := &RawHeader{Origin: full.Origin, Size: full.Size, DataType: "float32", NoData: noData}
	if err := WriteRawHeader(path, header); err != nil {
		f.Close()
		return nil, err
	}
	return &RawFileSink{Path: path, Full: full.Clone(), file: f, header: header}, nil
}

// NewShardedRawFileSink opens the raw file shared by every shard of a run.
// The file is never truncated: it is sized only when missing or of the
// wrong size, so pixels written by other shards survive. Each shard
// records its split count in the header under an exclusive file lock.
func NewShardedRawFileSink(path string, full region.Region, noData float64, shard Shard) (*RawFileSink, error) {
	if shard.Count <= 1 {
		return NewRawFileSink(path, full, noData)
	}
	if shard.Index < 0 || shard.Index >= shard.Count {
		return nil, fmt.Errorf("%w: shard %d of %d", region.ErrInvalidArgument, shard.Index, shard.Count)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	sink := &RawFileSink{Path: path, Full: full.Clone(), Shard: shard, file: f}
	err = withFileLock(f, func() error {
		st, err := f.Stat()
		if err != nil {
			return err
		}
		if expected := int64(full.NumberOfPixels()) * SizeofFloat32; st.Size() != expected {
			if err := f.Truncate(expected); err != nil {
				return err
			}
		}

		header := sharedHeader(path, full, noData)
		if _, ok := header.ShardSplits[shard.Index]; !ok {
			header.ShardSplits[shard.Index] = 0
		}
		header.Splits = sumSplits(header.ShardSplits)
		sink.header = header
		return WriteRawHeader(path, header)
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	return sink, nil
}

// sharedHeader reads the header left by other shards, starting afresh when
// it is missing or describes another raster.
func sharedHeader(path string, full region.Region, noData float64) *RawHeader {
	h, err := ReadRawHeader(path)
	if err == nil {
		if r, rerr := h.Region(); rerr == nil && r.Equal(full) && h.NoData == noData {
			if h.ShardSplits == nil {
				h.ShardSplits = make(map[int]int)
			}
			return h
		}
	}
	return &RawHeader{Origin: full.Origin, Size: full.Size, DataType: "float32", NoData: noData, ShardSplits: make(map[int]int)}
}

func sumSplits(m map[int]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

func (s *RawFileSink) Accept(r region.Region, t *Tile) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if !region.Contains(s.Full, r) {
		return fmt.Errorf("%w: tile %v is outside %v", region.ErrOutOfRange, r, s.Full)
	}
	if r.IsNull() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("%s: sink is closed", s.Path)
	}

	canvas := &Tile{Region: s.Full}
	width := r.Size[0]
	err := eachLine(r, func(line int, start region.Index) error {
		off := int64(canvas.Offset(start)) * SizeofFloat32
		_, err := s.file.WriteAt(Float32ToBytes(t.Data[line*width:(line+1)*width]), off)
		return err
	})
	if err != nil {
		return err
	}
	s.written++
	return nil
}

// Close flushes the file and rewrites the header with the number of
// splits written. A sharded sink merges its count with the other shards'.
func (s *RawFileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}

	var err error
	if s.Shard.Count > 1 {
		err = withFileLock(s.file, func() error {
			h := sharedHeader(s.Path, s.Full, s.header.NoData)
			h.ShardSplits[s.Shard.Index] = s.written
			h.Splits = sumSplits(h.ShardSplits)
			s.header = h
			return WriteRawHeader(s.Path, h)
		})
	} else {
		s.header.Splits = s.written
		err = WriteRawHeader(s.Path, s.header)
	}

	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	s.file = nil
	return err
}

// RawFileSource reads sub-regions back from a raw float32 file.
type RawFileSource struct {
	Path   string
	Header *RawHeader

	full region.Region
	file *os.File
}

func OpenRawFileSource(path string) (*RawFileSource, error) {
	h, err := ReadRawHeader(path)
	if err != nil {
		return nil, err
	}
	full, err := h.Region()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if expected := int64(full.NumberOfPixels()) * SizeofFloat32; st.Size() != expected {
		f.Close()
		return nil, fmt.Errorf("%s: file holds %d bytes, header describes %d", path, st.Size(), expected)
	}
	return &RawFileSource{Path: path, Header: h, full: full, file: f}, nil
}

func (s *RawFileSource) FullRegion() region.Region {
	return s.full
}

func (s *RawFileSource) ComputeRegion(ctx context.Context, r region.Region) (*Tile, error) {
	if !region.Contains(s.full, r) {
		return nil, fmt.Errorf("%w: %v is outside %v", region.ErrInvalidArgument, r, s.full)
	}

	t := NewTile(r, s.Header.NoData)
	if r.IsNull() {
		return t, nil
	}

	canvas := &Tile{Region: s.full}
	width := r.Size[0]
	buf := make([]byte, width*SizeofFloat32)
	err := eachLine(r, func(line int, start region.Index) error {
		if line%256 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		off := int64(canvas.Offset(start)) * SizeofFloat32
		if _, err := s.file.ReadAt(buf, off); err != nil {
			return fmt.Errorf("%s: %v", s.Path, err)
		}
		values, err := BytesToFloat32(buf)
		if err != nil {
			return err
		}
		copy(t.Data[line*width:], values)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *RawFileSource) Close() error {
	return s.file.Close()
}
