package main

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	proc "github.com/nci/gstream/processor"
	"github.com/nci/gstream/region"
	"github.com/nci/gstream/utils"
)

func exprJob(t *testing.T, output string) *utils.Job {
	t.Helper()
	config := &utils.Config{Jobs: []utils.Job{{
		Name:   "ramp",
		Output: output,
		Source: utils.SourceConfig{
			Type:       "expr",
			Size:       []int{64, 48},
			Expression: "x + y * 64",
			NoData:     -1,
			TileHint:   []int{16, 16},
		},
	}}}
	if err := config.Validate(); err != nil {
		t.Fatal(err)
	}
	return &config.Jobs[0]
}

func TestRunRawJob(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "ramp.raw")
	job := exprJob(t, out+"?&streaming:type=tiled&streaming:sizemode=nbsplits&streaming:sizevalue=6")

	jr := &jobRunner{}
	report, err := jr.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.State != proc.Done.String() || report.ActualSplits != 6 || report.CompletedSplits != 6 {
		t.Errorf("unexpected report %+v", report)
	}
	if report.Splitter != "processor.NonUniformSplitter" {
		t.Errorf("expected the non-uniform splitter, got %s", report.Splitter)
	}
	if report.Count != 64*48 || report.Min != 0 || report.Max != 64*48-1 {
		t.Errorf("unexpected statistics %+v", report)
	}

	src, err := proc.OpenRawFileSource(out)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	tile, err := src.ComputeRegion(context.Background(), region.New2D(10, 20, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	if tile.Data[0] != 10+20*64 {
		t.Errorf("expected pixel value %d, got %v", 10+20*64, tile.Data[0])
	}
}

func TestRunJobBox(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "box.raw")

	job := exprJob(t, out+"?&box=8:8:32:16")
	report, err := (&jobRunner{}).Run(context.Background(), job)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Count != 32*16 || report.Min != 8+8*64 {
		t.Errorf("unexpected statistics for the box %+v", report)
	}

	header, err := proc.ReadRawHeader(out)
	if err != nil {
		t.Fatal(err)
	}
	if r, _ := header.Region(); !r.Equal(region.New2D(8, 8, 32, 16)) {
		t.Errorf("expected the raw file to cover the box, got %v", r)
	}

	job = exprJob(t, out+"?&box=40:40:32:16")
	if _, err := (&jobRunner{}).Run(context.Background(), job); !errors.Is(err, region.ErrInvalidArgument) {
		t.Errorf("expected a box outside the source to be rejected, got %v", err)
	}
}

func TestRunPNGJob(t *testing.T) {
	out := filepath.Join(t.TempDir(), "ramp.png")
	job := exprJob(t, out)

	if _, err := (&jobRunner{}).Run(context.Background(), job); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("expected a 64x48 image, got %v", b)
	}
}

func TestRunJobErrors(t *testing.T) {
	job := exprJob(t, filepath.Join(t.TempDir(), "ramp.tif"))
	if _, err := (&jobRunner{}).Run(context.Background(), job); !errors.Is(err, region.ErrInvalidArgument) {
		t.Errorf("expected unsupported output to fail, got %v", err)
	}

	job = exprJob(t, "ramp.stats?&streaming:type=spiral")
	if _, err := (&jobRunner{}).Run(context.Background(), job); !errors.Is(err, region.ErrInvalidArgument) {
		t.Errorf("expected unknown streaming type to fail, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job = exprJob(t, "ramp.stats")
	report, err := (&jobRunner{}).Run(ctx, job)
	if !errors.Is(err, proc.ErrAborted) {
		t.Errorf("expected a cancelled run to abort, got %v", err)
	}
	if report.State != proc.Aborted.String() || len(report.Error) == 0 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestFlagConfig(t *testing.T) {
	*size = "100x50"
	*expression = "x * y"
	*output = "out.stats"
	*tileHint = "32x32"
	defer func() {
		*size, *expression, *output, *tileHint = "", "", "", ""
	}()

	config, err := flagConfig()
	if err != nil {
		t.Fatal(err)
	}
	job := config.Jobs[0]
	if job.Source.Type != "expr" || len(job.Source.Size) != 2 || job.Source.Size[1] != 50 || job.Source.TileHint[0] != 32 {
		t.Errorf("unexpected job %+v", job)
	}

	*size = "100xfifty"
	if _, err := flagConfig(); !errors.Is(err, region.ErrInvalidArgument) {
		t.Errorf("expected a bad size to be rejected, got %v", err)
	}
}

func TestRunShardedRawJob(t *testing.T) {
	out := filepath.Join(t.TempDir(), "sharded.raw")
	for shard := 0; shard < 2; shard++ {
		job := exprJob(t, out+"?&streaming:type=stripped&streaming:sizemode=nbsplits&streaming:sizevalue=6")
		job.Shard = shard
		job.NumShards = 2
		if _, err := (&jobRunner{}).Run(context.Background(), job); err != nil {
			t.Fatalf("shard %d failed: %v", shard, err)
		}
	}

	src, err := proc.OpenRawFileSource(out)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	tile, err := src.ComputeRegion(context.Background(), src.FullRegion())
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range tile.Data {
		if v != float32(i) {
			t.Fatalf("pixel %d: expected %d, got %v", i, i, v)
		}
	}
	if src.Header.Splits != 6 {
		t.Errorf("expected 6 splits over both shards, got %d", src.Header.Splits)
	}
}
