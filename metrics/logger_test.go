package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readLogLines(t *testing.T, dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read log dir: %v", err)
	}

	var lines []string
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			t.Fatalf("failed to read %s: %v", entry.Name(), err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if len(strings.TrimSpace(line)) > 0 {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	logger := NewFileLogger(dir, 0, 0, false)

	const numRuns = 5
	runIDs := make(map[string]bool)
	for i := 0; i < numRuns; i++ {
		collector := NewMetricsCollector(logger)
		collector.Info.ActualSplits = i + 1
		collector.AddSource(time.Millisecond, 100, 400)
		runIDs[collector.Info.RunID] = true
		collector.Log()
	}
	logger.Close()

	if len(runIDs) != numRuns {
		t.Errorf("expected %d distinct run ids, actual %d", numRuns, len(runIDs))
	}

	lines := readLogLines(t, dir)
	if len(lines) != numRuns {
		t.Fatalf("expected %d log lines, actual %d", numRuns, len(lines))
	}

	for _, line := range lines {
		var info MetricsInfo
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			t.Errorf("invalid JSON line %q: %v", line, err)
			continue
		}
		if !runIDs[info.RunID] {
			t.Errorf("unexpected run id %q", info.RunID)
		}
		if info.Source == nil || info.Source.NumPixels != 100 || info.Source.NumCalls != 1 {
			t.Errorf("unexpected source stage: %+v", info.Source)
		}
	}
}

func TestFileLoggerRotation(t *testing.T) {
	dir := t.TempDir()
	logger := NewFileLogger(dir, 1, 3, false)

	for i := 0; i < 10; i++ {
		NewMetricsCollector(logger).Log()
	}
	logger.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read log dir: %v", err)
	}

	// two writers, each with its live file plus at most MaxLogFiles rotated ones
	if len(entries) > 2*(1+3) {
		t.Errorf("rotation kept too many files: %d", len(entries))
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "runs") {
			t.Errorf("unexpected file %s", entry.Name())
		}
	}
}

func TestFileLoggerCloseIsIdempotent(t *testing.T) {
	logger := NewFileLogger(t.TempDir(), 0, 0, false)
	logger.Close()
	logger.Close()
}
