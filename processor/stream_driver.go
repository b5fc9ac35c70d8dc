package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nci/gstream/metrics"
	"github.com/nci/gstream/region"
)

var (
	// ErrAborted is returned by Run when streaming stopped on request
	// before every sub-region was processed.
	ErrAborted = errors.New("streaming aborted")

	// ErrStopStreaming may be returned by a sink to request cancellation
	// once the sub-region it was given has been accepted.
	ErrStopStreaming = errors.New("stop streaming")
)

type State int

const (
	Idle State = iota
	Splitting
	Iterating
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Splitting:
		return "splitting"
	case Iterating:
		return "iterating"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SplitError reports the sub-region that was in flight when a source or
// sink failed. Unwrap yields the upstream error unchanged.
type SplitError struct {
	Index  int
	Region region.Region
	Err    error
}

func (e *SplitError) Error() string {
	return fmt.Sprintf("split %d %v: %v", e.Index, e.Region, e.Err)
}

func (e *SplitError) Unwrap() error {
	return e.Err
}

// Shard restricts a run to the splits i with i % Count == Index, so that
// several processes can stream disjoint parts of the same output.
type Shard struct {
	Index int
	Count int
}

func (s Shard) owns(i int) bool {
	if s.Count <= 1 {
		return true
	}
	return i%s.Count == s.Index
}

func (s Shard) size(actual int) int {
	if s.Count <= 1 {
		return actual
	}
	n := actual / s.Count
	if s.Index < actual%s.Count {
		n++
	}
	return n
}

// StreamDriver pulls every sub-region of a region through a source into a
// sink, one at a time. A StreamDriver runs a single stream at a time; the
// splitter may be shared between drivers.
type StreamDriver struct {
	Splitter RegionSplitter
	Progress ProgressFunc
	Shard    Shard
	Metrics  *metrics.MetricsCollector
	Verbose  bool

	state   State
	current int
}

func NewStreamDriver(splitter RegionSplitter) *StreamDriver {
	return &StreamDriver{Splitter: splitter}
}

func (d *StreamDriver) State() State {
	return d.state
}

// Current returns the index of the last split that was started.
func (d *StreamDriver) Current() int {
	return d.current
}

func (d *StreamDriver) Run(ctx context.Context, full region.Region, requested int, src Source, sink Sink) (err error) {
	start := time.Now()
	d.state = Idle
	d.current = -1

	if d.Metrics != nil {
		d.Metrics.Info.ReqTime = start.Format(time.RFC3339)
		d.Metrics.Info.Region = full.String()
		d.Metrics.Info.Splitter = fmt.Sprintf("%T", d.Splitter)
		d.Metrics.Info.RequestedSplits = requested
		defer func() {
			d.Metrics.Info.ReqDuration = time.Since(start)
			d.Metrics.Info.State = d.state.String()
			if err != nil {
				d.Metrics.Info.Error = err.Error()
			}
		}()
	}

	if d.Splitter == nil || src == nil || sink == nil {
		return fmt.Errorf("%w: stream driver needs a splitter, a source and a sink", region.ErrInvalidArgument)
	}
	if d.Shard.Count > 1 && (d.Shard.Index < 0 || d.Shard.Index >= d.Shard.Count) {
		return fmt.Errorf("%w: shard %d of %d", region.ErrInvalidArgument, d.Shard.Index, d.Shard.Count)
	}

	d.state = Splitting
	actual, err := d.Splitter.GetNumberOfSplits(full, requested)
	if err != nil {
		d.state = Idle
		return err
	}
	if d.Metrics != nil {
		d.Metrics.Info.ActualSplits = actual
	}

	if actual == 0 {
		d.state = Done
		return nil
	}

	if d.Verbose {
		if first, err := d.Splitter.GetSplit(0, actual, full); err != nil {
			log.Printf("stream driver: region %v will be processed in %d splits, first split unavailable: %v", full, actual, err)
		} else {
			log.Printf("stream driver: region %v will be processed in %d splits, first split %v", full, actual, first)
		}
	}

	d.state = Iterating
	owned := d.Shard.size(actual)
	completed := 0
	for i := 0; i < actual; i++ {
		if !d.Shard.owns(i) {
			continue
		}

		select {
		case <-ctx.Done():
			d.state = Aborted
			return fmt.Errorf("%w after %d of %d splits: %v", ErrAborted, completed, owned, ctx.Err())
		default:
		}

		d.current = i
		sub, err := d.Splitter.GetSplit(i, actual, full)
		if err != nil {
			d.state = Aborted
			return fmt.Errorf("split %d of %d of region %v: %w", i, actual, full, err)
		}

		stop, err := d.processSplit(ctx, i, sub, src, sink)
		if err != nil {
			d.state = Aborted
			return err
		}

		completed++
		if d.Metrics != nil {
			d.Metrics.Info.CompletedSplits = completed
		}
		if d.Verbose {
			log.Printf("stream driver: split %d/%d %v done", i+1, actual, sub)
		}

		if d.Progress != nil && !d.Progress(float64(completed)/float64(owned)) {
			stop = true
		}
		if stop && completed < owned {
			d.state = Aborted
			return fmt.Errorf("%w after %d of %d splits", ErrAborted, completed, owned)
		}
	}

	d.state = Done
	return nil
}

func (d *StreamDriver) processSplit(ctx context.Context, i int, sub region.Region, src Source, sink Sink) (bool, error) {
	t0 := time.Now()
	tile, err := src.ComputeRegion(ctx, sub)
	if err != nil {
		return false, &SplitError{Index: i, Region: sub, Err: err}
	}
	if tile == nil {
		return false, &SplitError{Index: i, Region: sub, Err: fmt.Errorf("source returned no data")}
	}
	if !tile.Region.Equal(sub) {
		return false, &SplitError{Index: i, Region: sub, Err: fmt.Errorf("%w: source returned tile %v", region.ErrOutOfRange, tile.Region)}
	}
	if err := tile.Validate(); err != nil {
		return false, &SplitError{Index: i, Region: sub, Err: fmt.Errorf("%w: %v", region.ErrOutOfRange, err)}
	}
	pixels := int64(len(tile.Data))
	if d.Metrics != nil {
		d.Metrics.AddSource(time.Since(t0), pixels, pixels*SizeofFloat32)
	}

	t0 = time.Now()
	err = sink.Accept(sub, tile)
	if d.Metrics != nil {
		d.Metrics.AddSink(time.Since(t0), pixels, pixels*SizeofFloat32)
	}
	if err != nil {
		if errors.Is(err, ErrStopStreaming) {
			return true, nil
		}
		return false, &SplitError{Index: i, Region: sub, Err: err}
	}
	return false, nil
}

// Stream runs a one-off StreamDriver over full. It returns the terminal
// state together with any error.
func Stream(ctx context.Context, full region.Region, requested int, splitter RegionSplitter, source SourceFunc, sink SinkFunc, progress ProgressFunc) (State, error) {
	if source == nil || sink == nil {
		return Idle, fmt.Errorf("%w: nil source or sink", region.ErrInvalidArgument)
	}
	d := NewStreamDriver(splitter)
	d.Progress = progress
	err := d.Run(ctx, full, requested, &funcSource{full: full, compute: source}, sink)
	return d.State(), err
}

type funcSource struct {
	full    region.Region
	compute SourceFunc
}

func (s *funcSource) FullRegion() region.Region {
	return s.full
}

func (s *funcSource) ComputeRegion(ctx context.Context, r region.Region) (*Tile, error) {
	return s.compute(ctx, r)
}
