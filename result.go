package optz

import (
	"context"
	"fmt"
	"time"
)

// TotalStep labels the trailing timing entry covering the whole run.
const TotalStep = "Total"

// MemoryUsage is a static footprint estimate for one snapshot of the text.
type MemoryUsage struct {
	HeapBytes  int64 `json:"heapBytes" yaml:"heapBytes"`
	StackBytes int64 `json:"stackBytes" yaml:"stackBytes"`
}

// TimingEntry records how long one step took.
type TimingEntry struct {
	Step      string  `json:"step" yaml:"step"`
	ElapsedMs float64 `json:"elapsedMs" yaml:"elapsedMs"`
}

// DiagnosticLevel classifies a diagnostic entry.
type DiagnosticLevel string

// Diagnostic levels.
const (
	LevelInfo DiagnosticLevel = "info"
	LevelWarn DiagnosticLevel = "warn"
)

// Diagnostic is one note recorded during a single Optimize call.
type Diagnostic struct {
	Stage   string          `json:"stage" yaml:"stage"`
	Level   DiagnosticLevel `json:"level" yaml:"level"`
	Message string          `json:"message" yaml:"message"`
}

// Result is everything one Optimize call produces.
//
// Timings holds one entry per pass in execution order plus a trailing
// TotalStep entry. Insights holds one entry per pass that changed the text,
// also in execution order.
type Result struct {
	RunID       string        `json:"runId" yaml:"runId"`
	Language    Language      `json:"language" yaml:"language"`
	Code        string        `json:"optimizedCode" yaml:"optimizedCode"`
	Before      MemoryUsage   `json:"beforeMemory" yaml:"beforeMemory"`
	After       MemoryUsage   `json:"afterMemory" yaml:"afterMemory"`
	Timings     []TimingEntry `json:"timingEntries" yaml:"timingEntries"`
	Insights    []string      `json:"optimizationInsights" yaml:"optimizationInsights"`
	Diagnostics []Diagnostic  `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// recorder collects diagnostics for exactly one Optimize call.
// Passes within a call run sequentially, so no locking is needed.
type recorder struct {
	entries []Diagnostic
}

type recorderKey struct{}

func withRecorder(ctx context.Context, rec *recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, rec)
}

func recorderFrom(ctx context.Context) *recorder {
	rec, _ := ctx.Value(recorderKey{}).(*recorder)
	return rec
}

func notef(ctx context.Context, level DiagnosticLevel, stage, format string, args ...any) {
	rec := recorderFrom(ctx)
	if rec == nil {
		return
	}
	rec.entries = append(rec.entries, Diagnostic{
		Stage:   stage,
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
}

func infof(ctx context.Context, stage, format string, args ...any) {
	notef(ctx, LevelInfo, stage, format, args...)
}

func warnf(ctx context.Context, stage, format string, args ...any) {
	notef(ctx, LevelWarn, stage, format, args...)
}
