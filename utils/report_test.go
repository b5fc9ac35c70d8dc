package utils

import (
	"strings"
	"testing"
)

func TestRenderReport(t *testing.T) {
	report := &RunReport{
		RunID:           "0f8e",
		Job:             "ramp",
		Output:          "ramp.raw",
		Region:          "[0:512)x[0:256)",
		Splitter:        "processor.NonUniformSplitter",
		RequestedSplits: 4,
		ActualSplits:    4,
		CompletedSplits: 4,
		State:           "done",
		Duration:        "12ms",
		Count:           10,
		Min:             1,
		Max:             9,
	}
	out, err := RenderReport("..", report)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	for _, want := range []string{"run 0f8e (ramp)", "4 of 4 (4 requested)", "state:     done", "10 valid"} {
		if !strings.Contains(out, want) {
			t.Errorf("report is missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "error:") {
		t.Errorf("report without error should not print one:\n%s", out)
	}

	report.Error = "split 2 [0:50)x[50:100): disk full"
	report.Count = 0
	out, err = RenderReport("..", report)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, "disk full") || strings.Contains(out, "valid") {
		t.Errorf("unexpected report:\n%s", out)
	}
}
