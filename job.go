package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nci/gstream/metrics"
	proc "github.com/nci/gstream/processor"
	"github.com/nci/gstream/region"
	"github.com/nci/gstream/utils"
	pb "github.com/nci/gstream/worker/regionservice"
)

// jobRunner streams configured jobs to their outputs.
type jobRunner struct {
	Service       utils.ServiceConfig
	MetricsLogger metrics.Logger
	Verbose       bool

	Info  *log.Logger
	Error *log.Logger
}

type closer func() error

func noClose() error { return nil }

func openSource(cfg *utils.SourceConfig, svc *utils.ServiceConfig) (proc.Source, closer, error) {
	switch strings.ToLower(cfg.Type) {
	case "raw":
		src, err := proc.OpenRawFileSource(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	}

	full, err := cfg.Region()
	if err != nil {
		return nil, nil, err
	}

	switch strings.ToLower(cfg.Type) {
	case "constant":
		return &proc.ConstantSource{Full: full, Value: cfg.Value, NoData: cfg.NoData}, noClose, nil
	case "expr":
		src, err := proc.NewExprSource(full, cfg.Expression, cfg.NoData, cfg.Concurrency)
		if err != nil {
			return nil, nil, err
		}
		return src, noClose, nil
	case "grpc":
		src, err := pb.DialGRPCSource(svc.WorkerNodes, full, cfg.Expression, cfg.NoData, cfg.MaxGrpcRecvMsgSize)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown source type %q", region.ErrInvalidArgument, cfg.Type)
	}
}

// streamingOptions overlays the streaming:* options of the output name on
// the job's own streaming config.
func streamingOptions(job *utils.Job, ef *utils.ExtendedFilename) utils.StreamingConfig {
	cfg := job.Streaming
	if len(ef.Streaming.Type) > 0 {
		cfg.Type = ef.Streaming.Type
	}
	if len(ef.Streaming.SizeMode) > 0 {
		cfg.SizeMode = ef.Streaming.SizeMode
	}
	if ef.Streaming.SizeValue != 0 {
		cfg.SizeValue = ef.Streaming.SizeValue
	}
	return cfg
}

func (jr *jobRunner) logf(format string, args ...interface{}) {
	if jr.Verbose && jr.Info != nil {
		jr.Info.Printf(format, args...)
	}
}

// progressLogger reports every tenth of the run.
func (jr *jobRunner) progressLogger(name string) proc.ProgressFunc {
	next := 0.1
	return func(fraction float64) bool {
		if fraction >= next {
			jr.logf("%s: %.0f%% done", name, fraction*100)
			for next <= fraction {
				next += 0.1
			}
		}
		return true
	}
}

// Run streams one job. The returned report is filled in even when the run
// fails part way.
func (jr *jobRunner) Run(ctx context.Context, job *utils.Job) (*utils.RunReport, error) {
	report := &utils.RunReport{Job: job.Name, Output: job.Output, State: proc.Idle.String()}

	ef, err := utils.ParseExtendedFilename(job.Output)
	if err != nil {
		return report, err
	}
	report.Output = ef.Path

	src, closeSrc, err := openSource(&job.Source, &jr.Service)
	if err != nil {
		return report, err
	}
	defer closeSrc()

	full := src.FullRegion()
	target := full
	if ef.Box != nil {
		if !region.Contains(full, *ef.Box) {
			return report, fmt.Errorf("%w: box %v is outside %v", region.ErrInvalidArgument, *ef.Box, full)
		}
		target = *ef.Box
	}
	report.Region = target.String()

	var tileHint region.Size
	if len(job.Source.TileHint) > 0 {
		tileHint = region.Size(job.Source.TileHint)
	}
	splitter, requested, err := proc.PrepareStreaming(streamingOptions(job, ef), target, proc.SizeofFloat32, tileHint)
	if err != nil {
		return report, err
	}
	report.Splitter = fmt.Sprintf("%T", splitter)
	report.RequestedSplits = requested

	actual, err := splitter.GetNumberOfSplits(target, requested)
	if err != nil {
		return report, err
	}
	largest, err := proc.LargestSplitBytes(splitter, target, actual, proc.SizeofFloat32)
	if err != nil {
		return report, err
	}
	if err := proc.CheckMemory(largest); err != nil {
		return report, err
	}

	metricsCollector := metrics.NewMetricsCollector(jr.MetricsLogger)
	metricsCollector.Info.Job = job.Name
	report.RunID = metricsCollector.Info.RunID
	defer metricsCollector.Log()

	stats := proc.NewStatisticsSink()
	sinks := proc.MultiSink{stats}
	var closers []closer
	defer func() {
		for _, c := range closers {
			if e := c(); e != nil && jr.Error != nil {
				jr.Error.Printf("%s: %v", job.Name, e)
			}
		}
	}()

	noData := job.Source.NoData
	var stitcher *proc.RasterStitcher
	switch strings.ToLower(filepath.Ext(ef.Path)) {
	case ".raw":
		rawSink, err := proc.NewShardedRawFileSink(ef.Path, target, noData, proc.Shard{Index: job.Shard, Count: job.NumShards})
		if err != nil {
			return report, err
		}
		closers = append(closers, rawSink.Close)
		sinks = append(sinks, rawSink)
	case ".png":
		if target.Dim() != 2 {
			return report, fmt.Errorf("%w: png output needs a 2-D region, got %v", region.ErrInvalidArgument, target)
		}
		stitcher = proc.NewRasterStitcher(target, noData)
		sinks = append(sinks, stitcher)
	case ".stats":
	default:
		return report, fmt.Errorf("%w: unsupported output %q", region.ErrInvalidArgument, ef.Path)
	}

	if len(jr.Service.MemcacheAddress) > 0 {
		sinks = append(sinks, proc.NewMemcacheSink(jr.Service.MemcacheAddress, report.RunID+":"))
	}
	if len(jr.Service.PostgresDSN) > 0 {
		db, err := sql.Open("postgres", jr.Service.PostgresDSN)
		if err != nil {
			return report, err
		}
		closers = append(closers, db.Close)
		pgSink, err := proc.NewPostgresSink(db, jr.Service.StatsTable, report.RunID)
		if err != nil {
			return report, err
		}
		sinks = append(sinks, pgSink)
	}

	driver := proc.NewStreamDriver(splitter)
	driver.Shard = proc.Shard{Index: job.Shard, Count: job.NumShards}
	driver.Metrics = metricsCollector
	driver.Progress = jr.progressLogger(job.Name)
	driver.Verbose = jr.Verbose

	t0 := time.Now()
	err = driver.Run(ctx, target, requested, src, sinks)
	report.Duration = time.Since(t0).Round(time.Millisecond).String()
	report.State = driver.State().String()
	report.ActualSplits = metricsCollector.Info.ActualSplits
	report.CompletedSplits = metricsCollector.Info.CompletedSplits
	report.Count = stats.Count
	if stats.Count > 0 {
		report.Mean = stats.Mean
		report.StdDev = stats.StdDev()
		report.Min = stats.Min
		report.Max = stats.Max
	}
	if err != nil {
		report.Error = err.Error()
		return report, err
	}

	if stitcher != nil {
		if err := writePNG(ef.Path, stitcher, stats, job.Palette); err != nil {
			report.Error = err.Error()
			return report, err
		}
	}
	return report, nil
}

func writePNG(path string, stitcher *proc.RasterStitcher, stats *proc.StatisticsSink, palette *utils.Palette) error {
	raster, err := stitcher.Raster()
	if err != nil {
		return err
	}
	scaled, err := utils.Scale([]utils.Raster{raster}, utils.AutoScaleParams(stats.Min, stats.Max))
	if err != nil {
		return err
	}
	out, err := utils.EncodePNG(scaled, palette)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}
