package metrics

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

type StageInfo struct {
	Duration  time.Duration `json:"duration"`
	NumCalls  int           `json:"num_calls"`
	NumPixels int64         `json:"num_pixels"`
	Bytes     int64         `json:"bytes"`
}

type MetricsInfo struct {
	RunID           string        `json:"run_id"`
	ReqTime         string        `json:"req_time"`
	ReqDuration     time.Duration `json:"req_duration"`
	Job             string        `json:"job"`
	Region          string        `json:"region"`
	Splitter        string        `json:"splitter"`
	RequestedSplits int           `json:"requested_splits"`
	ActualSplits    int           `json:"actual_splits"`
	CompletedSplits int           `json:"completed_splits"`
	State           string        `json:"state"`
	Error           string        `json:"error,omitempty"`
	Source          *StageInfo    `json:"source"`
	Sink            *StageInfo    `json:"sink"`
}

type MetricsCollector struct {
	Info   *MetricsInfo
	logger Logger
	mu     sync.Mutex
}

func NewMetricsCollector(logger Logger) *MetricsCollector {
	return &MetricsCollector{
		Info: &MetricsInfo{
			RunID:  uuid.New().String(),
			Source: &StageInfo{},
			Sink:   &StageInfo{},
		},
		logger: logger,
	}
}

// AddSource records one source computation. Safe for concurrent use.
func (m *MetricsCollector) AddSource(d time.Duration, pixels int64, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addStage(m.Info.Source, d, pixels, bytes)
}

// AddSink records one sink call. Safe for concurrent use.
func (m *MetricsCollector) AddSink(d time.Duration, pixels int64, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addStage(m.Info.Sink, d, pixels, bytes)
}

func addStage(s *StageInfo, d time.Duration, pixels int64, bytes int64) {
	s.Duration += d
	s.NumCalls++
	s.NumPixels += pixels
	s.Bytes += bytes
}

func (m *MetricsCollector) Log() {
	if m.logger != nil {
		m.logger.Log(m.Info)
	}
}

func (i *MetricsInfo) ToJSON() (string, error) {
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(i)
	if err == nil {
		return buf.String(), nil
	} else {
		return "", err
	}
}
