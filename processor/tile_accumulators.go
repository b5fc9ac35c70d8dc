package processor

import (
	"math"

	"github.com/nci/gstream/region"
	"gonum.org/v1/gonum/stat"
)

// PixelCounter counts the pixels it is handed.
type PixelCounter struct {
	Pixels int
	Tiles  int
}

func (c *PixelCounter) Accept(r region.Region, t *Tile) error {
	if err := t.Validate(); err != nil {
		return err
	}
	c.Pixels += len(t.Data)
	c.Tiles++
	return nil
}

func isNoData(v float32, noData float64) bool {
	return math.IsNaN(float64(v)) || v == float32(noData)
}

// validValues returns the tile pixels that are not nodata, widened to float64.
func validValues(t *Tile) []float64 {
	out := make([]float64, 0, len(t.Data))
	for _, v := range t.Data {
		if !isNoData(v, t.NoData) {
			out = append(out, float64(v))
		}
	}
	return out
}

// MinMaxSink keeps the running extrema of the valid pixels.
type MinMaxSink struct {
	Min   float64
	Max   float64
	Count int
}

func NewMinMaxSink() *MinMaxSink {
	return &MinMaxSink{Min: math.Inf(1), Max: math.Inf(-1)}
}

func (s *MinMaxSink) Accept(r region.Region, t *Tile) error {
	if err := t.Validate(); err != nil {
		return err
	}
	for _, v := range t.Data {
		if isNoData(v, t.NoData) {
			continue
		}
		s.Min = math.Min(s.Min, float64(v))
		s.Max = math.Max(s.Max, float64(v))
		s.Count++
	}
	return nil
}

// TileStats are the moments of the valid pixels of one tile.
type TileStats struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

func ComputeTileStats(t *Tile) TileStats {
	values := validValues(t)
	st := TileStats{Count: len(values), Min: math.NaN(), Max: math.NaN(), Mean: math.NaN(), StdDev: math.NaN()}
	if len(values) == 0 {
		return st
	}

	st.Min, st.Max = values[0], values[0]
	for _, v := range values[1:] {
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
	}

	if len(values) == 1 {
		st.Mean = values[0]
		st.StdDev = 0
		return st
	}
	mean, variance := stat.MeanVariance(values, nil)
	st.Mean = mean
	st.StdDev = math.Sqrt(variance)
	return st
}

// StatisticsSink merges per-tile moments into whole-region statistics.
// Tiles are merged in the order the driver visits them, which fixes the
// floating point accumulation order for a given splitter.
type StatisticsSink struct {
	Count int
	Mean  float64
	Min   float64
	Max   float64

	m2 float64
}

func NewStatisticsSink() *StatisticsSink {
	return &StatisticsSink{Min: math.Inf(1), Max: math.Inf(-1)}
}

func (s *StatisticsSink) Accept(r region.Region, t *Tile) error {
	if err := t.Validate(); err != nil {
		return err
	}
	st := ComputeTileStats(t)
	s.merge(st)
	return nil
}

func (s *StatisticsSink) merge(st TileStats) {
	if st.Count == 0 {
		return
	}
	m2 := st.StdDev * st.StdDev * float64(st.Count-1)

	n := s.Count + st.Count
	delta := st.Mean - s.Mean
	s.Mean += delta * float64(st.Count) / float64(n)
	s.m2 += m2 + delta*delta*float64(s.Count)*float64(st.Count)/float64(n)
	s.Count = n

	s.Min = math.Min(s.Min, st.Min)
	s.Max = math.Max(s.Max, st.Max)
}

// Variance is the unbiased sample variance of all valid pixels seen.
func (s *StatisticsSink) Variance() float64 {
	if s.Count < 2 {
		return 0
	}
	return s.m2 / float64(s.Count-1)
}

func (s *StatisticsSink) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// MultiSink hands every tile to each of its sinks in turn.
type MultiSink []Sink

func (m MultiSink) Accept(r region.Region, t *Tile) error {
	for _, s := range m {
		if err := s.Accept(r, t); err != nil {
			return err
		}
	}
	return nil
}
