package utils

import (
	"bytes"
	"io"
	"path/filepath"

	"github.com/edisonguo/jet"
)

var DataDir = "."

const reportTemplate = "templates/run_report.tpl"

// RunReport is the summary printed after a job in verbose mode.
type RunReport struct {
	RunID           string
	Job             string
	Output          string
	Region          string
	Splitter        string
	RequestedSplits int
	ActualSplits    int
	CompletedSplits int
	State           string
	Duration        string
	Error           string

	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// RenderReport executes templates/run_report.tpl found on the dataPath
// search path.
func RenderReport(dataPath string, report *RunReport) (string, error) {
	tplPath, err := NewDataPath(dataPath).Find(reportTemplate)
	if err != nil {
		return "", err
	}

	view := jet.NewSet(jet.SafeWriter(func(w io.Writer, b []byte) {
		w.Write(b)
	}), filepath.Dir(tplPath))

	template, err := view.GetTemplate("/" + filepath.Base(tplPath))
	if err != nil {
		return "", err
	}

	var resBuf bytes.Buffer
	vars := make(jet.VarMap)
	if err = template.Execute(&resBuf, vars, *report); err != nil {
		return "", err
	}
	return resBuf.String(), nil
}
