package optz

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// PipelineName is the name of the default pipeline built by New.
const PipelineName Name = "optimizer"

// Observability constants for the Pipeline.
const (
	// Metrics.
	PipelineRunsTotal      = metricz.Key("pipeline.runs.total")
	PipelineSuccessesTotal = metricz.Key("pipeline.successes.total")
	PipelineFailuresTotal  = metricz.Key("pipeline.failures.total")
	PipelineRejectedTotal  = metricz.Key("pipeline.rejected.total")
	PipelinePassesChanged  = metricz.Key("pipeline.passes.changed")
	PipelinePassesTotal    = metricz.Key("pipeline.passes.total")
	PipelineDurationMs     = metricz.Key("pipeline.duration.ms")

	// Spans.
	PipelineRunSpan  = tracez.Key("pipeline.run")
	PipelinePassSpan = tracez.Key("pipeline.pass")

	// Tags.
	PipelineTagRunID      = tracez.Tag("pipeline.run_id")
	PipelineTagLanguage   = tracez.Tag("pipeline.language")
	PipelineTagPassCount  = tracez.Tag("pipeline.pass_count")
	PipelineTagPassNumber = tracez.Tag("pipeline.pass_number")
	PipelineTagPassName   = tracez.Tag("pipeline.pass_name")
	PipelineTagChanged    = tracez.Tag("pipeline.changed")
	PipelineTagSuccess    = tracez.Tag("pipeline.success")
	PipelineTagError      = tracez.Tag("pipeline.error")

	// Hook event keys.
	PipelineEventPassComplete = hookz.Key("pipeline.pass_complete")
	PipelineEventRunComplete  = hookz.Key("pipeline.run_complete")
)

// PipelineEvent is emitted via hookz as each pass finishes and when a run
// finishes. RunID ties every event to one Optimize call, so events from
// concurrent runs can be told apart.
type PipelineEvent struct {
	RunID         string        // Identifier of the Optimize call
	Name          Name          // Pipeline name
	PassName      Name          // Pass that finished (pass_complete)
	PassNumber    int           // 1-based pass position (pass_complete)
	TotalPasses   int           // Number of passes in the pipeline
	Changed       bool          // Whether the pass changed the text (pass_complete)
	Duration      time.Duration // How long the pass took (pass_complete)
	Language      Language      // Classified language of the input
	InputBytes    int           // Size of the original input
	OutputBytes   int           // Size of the final text (run_complete)
	Insights      int           // Number of passes that changed the text (run_complete)
	Success       bool          // Whether the run produced a result (run_complete)
	Error         error         // Why the run stopped early (run_complete)
	TotalDuration time.Duration // Whole run (run_complete)
	Timestamp     time.Time     // When the event occurred
}

// Pipeline runs a fixed, ordered list of passes over a source snippet.
//
// The pass list is set at construction and never changes, so a Pipeline
// is safe for concurrent use; each Optimize call keeps its own state.
// Every pass runs on every call, in order, and contributes one timing
// entry whether or not it changed the text.
//
// # Budgets
//
// WithMaxInputBytes rejects oversized input before any pass runs.
// WithBudget bounds the wall-clock time of a run; the budget is checked
// before each pass, so a pass already running is never interrupted.
//
// # Observability
//
// Metrics:
//   - pipeline.runs.total: Counter of Optimize calls
//   - pipeline.successes.total: Counter of runs that produced a result
//   - pipeline.failures.total: Counter of runs stopped by a budget or the caller
//   - pipeline.rejected.total: Counter of inputs over the size budget
//   - pipeline.passes.changed: Counter of passes that changed the text
//   - pipeline.passes.total: Gauge of passes in the pipeline
//   - pipeline.duration.ms: Gauge of the last run's duration
//
// Traces:
//   - pipeline.run: Parent span for a whole run
//   - pipeline.pass: Child span for each pass
//
// Events (via hooks):
//   - pipeline.pass_complete: Fired as each pass finishes
//   - pipeline.run_complete: Fired when a run finishes, with or without a result
//
// Example:
//
//	p := optz.New().WithBudget(2 * time.Second)
//	defer p.Close()
//
//	p.OnRunComplete(func(ctx context.Context, e optz.PipelineEvent) error {
//	    log.Printf("run %s: %d insight(s) in %v", e.RunID, e.Insights, e.TotalDuration)
//	    return nil
//	})
//
//	res, err := p.Optimize(ctx, src)
type Pipeline struct {
	name          Name
	passes        []Pass
	mu            sync.RWMutex
	clock         clockz.Clock
	maxInputBytes int
	budget        time.Duration
	metrics       *metricz.Registry
	tracer        *tracez.Tracer
	hooks         *hookz.Hooks[PipelineEvent]
}

// New creates the default pipeline running DefaultPasses.
func New() *Pipeline {
	return NewPipeline(PipelineName, DefaultPasses()...)
}

// NewPipeline creates a pipeline running passes in the given order.
func NewPipeline(name Name, passes ...Pass) *Pipeline {
	metrics := metricz.New()
	metrics.Counter(PipelineRunsTotal)
	metrics.Counter(PipelineSuccessesTotal)
	metrics.Counter(PipelineFailuresTotal)
	metrics.Counter(PipelineRejectedTotal)
	metrics.Counter(PipelinePassesChanged)
	metrics.Gauge(PipelinePassesTotal).Set(float64(len(passes)))
	metrics.Gauge(PipelineDurationMs)

	return &Pipeline{
		name:    name,
		passes:  slices.Clone(passes),
		clock:   clockz.RealClock,
		metrics: metrics,
		tracer:  tracez.New(),
		hooks:   hookz.New[PipelineEvent](),
	}
}

// WithClock sets a custom clock for testing.
func (p *Pipeline) WithClock(clock clockz.Clock) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = clock
	return p
}

// WithMaxInputBytes sets the size budget. Zero or less disables it.
func (p *Pipeline) WithMaxInputBytes(n int) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxInputBytes = n
	return p
}

// MaxInputBytes returns the size budget. Zero or less means unlimited.
func (p *Pipeline) MaxInputBytes() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxInputBytes
}

// WithBudget sets the wall-clock budget of a run. Zero or less disables it.
func (p *Pipeline) WithBudget(d time.Duration) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.budget = d
	return p
}

// Optimize classifies code, estimates its footprint, runs every pass in
// order, and estimates the footprint of the final text.
//
// The returned error is always an *Error and is non-nil only when the
// input exceeds the size budget, the time budget runs out, or ctx is done.
// Passes themselves never fail.
func (p *Pipeline) Optimize(ctx context.Context, code string) (result *Result, err error) {
	p.mu.RLock()
	passes := p.passes
	clock := p.getClock()
	maxInputBytes := p.maxInputBytes
	budget := p.budget
	p.mu.RUnlock()

	if ctx == nil {
		ctx = context.Background()
	}

	p.metrics.Counter(PipelineRunsTotal).Inc()
	start := clock.Now()
	runID := uuid.NewString()

	ctx, span := p.tracer.StartSpan(ctx, PipelineRunSpan)
	span.SetTag(PipelineTagRunID, runID)
	span.SetTag(PipelineTagPassCount, fmt.Sprintf("%d", len(passes)))
	defer func() {
		elapsed := clock.Since(start)
		p.metrics.Gauge(PipelineDurationMs).Set(millis(elapsed))

		if err == nil {
			span.SetTag(PipelineTagSuccess, "true")
			p.metrics.Counter(PipelineSuccessesTotal).Inc()
		} else {
			span.SetTag(PipelineTagSuccess, "false")
			span.SetTag(PipelineTagError, err.Error())
			p.metrics.Counter(PipelineFailuresTotal).Inc()
		}
		span.Finish()
	}()

	if maxInputBytes > 0 && len(code) > maxInputBytes {
		p.metrics.Counter(PipelineRejectedTotal).Inc()
		err = &Error{
			Err:        fmt.Errorf("%w: %d bytes, limit %d", ErrInputTooLarge, len(code), maxInputBytes),
			Path:       []Name{p.name},
			InputBytes: len(code),
			Timestamp:  clock.Now(),
		}
		p.emitRunComplete(ctx, runID, len(passes), code, nil, err, clock, start)
		return nil, err
	}

	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = clock.WithTimeout(ctx, budget)
		defer cancel()
	}

	rec := &recorder{}
	ctx = withRecorder(ctx, rec)

	lang := Classify(code)
	span.SetTag(PipelineTagLanguage, lang.String())
	infof(ctx, p.name, "classified input as %s", lang)
	before := Estimate(code, lang)

	timings := make([]TimingEntry, 0, len(passes)+1)
	insights := make([]string, 0, len(passes))
	current := code

	for i, pass := range passes {
		if stop := interrupted(ctx, clock, start, budget); stop != nil {
			err = &Error{
				Err:        stop,
				Path:       []Name{p.name, pass.Name()},
				InputBytes: len(code),
				Duration:   clock.Since(start),
				Timeout:    errors.Is(stop, context.DeadlineExceeded),
				Canceled:   errors.Is(stop, context.Canceled),
				Timestamp:  clock.Now(),
			}
			p.emitRunComplete(ctx, runID, len(passes), code, nil, err, clock, start)
			return nil, err
		}

		passCtx, passSpan := p.tracer.StartSpan(ctx, PipelinePassSpan)
		passSpan.SetTag(PipelineTagPassNumber, fmt.Sprintf("%d", i+1))
		passSpan.SetTag(PipelineTagPassName, pass.Name())

		passStart := clock.Now()
		output := safeTransform(passCtx, pass, current, lang)
		passDuration := clock.Since(passStart)

		changed := output != current
		passSpan.SetTag(PipelineTagChanged, fmt.Sprintf("%t", changed))
		passSpan.Finish()

		if changed {
			insights = append(insights, pass.Insight())
			p.metrics.Counter(PipelinePassesChanged).Inc()
		}
		timings = append(timings, TimingEntry{Step: pass.Name(), ElapsedMs: millis(passDuration)})

		_ = p.hooks.Emit(ctx, PipelineEventPassComplete, PipelineEvent{ //nolint:errcheck
			RunID:       runID,
			Name:        p.name,
			PassName:    pass.Name(),
			PassNumber:  i + 1,
			TotalPasses: len(passes),
			Changed:     changed,
			Duration:    passDuration,
			Language:    lang,
			InputBytes:  len(code),
			Timestamp:   clock.Now(),
		})

		current = output
	}

	after := Estimate(current, lang)
	timings = append(timings, TimingEntry{Step: TotalStep, ElapsedMs: millis(clock.Since(start))})

	result = &Result{
		RunID:       runID,
		Language:    lang,
		Code:        current,
		Before:      before,
		After:       after,
		Timings:     timings,
		Insights:    insights,
		Diagnostics: rec.entries,
	}
	p.emitRunComplete(ctx, runID, len(passes), code, result, nil, clock, start)
	return result, nil
}

// safeTransform runs one pass. A pass that panics leaves the text as it was
// and the panic is recorded as a warning.
func safeTransform(ctx context.Context, pass Pass, code string, lang Language) (out string) {
	defer func() {
		if rec := recover(); rec != nil {
			out = code
			warnf(ctx, pass.Name(), "pass panicked, output discarded: %s", sanitizePanic(rec))
		}
	}()
	return pass.Transform(ctx, code, lang)
}

// interrupted reports why the run must stop before the next pass, or nil.
// The clock is consulted as well as ctx so a budget measured on a fake
// clock takes effect without waiting on timer delivery.
func interrupted(ctx context.Context, clock clockz.Clock, start time.Time, budget time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if budget > 0 && clock.Since(start) >= budget {
		return context.DeadlineExceeded
	}
	return nil
}

func (p *Pipeline) emitRunComplete(ctx context.Context, runID string, total int, code string, res *Result, runErr error, clock clockz.Clock, start time.Time) {
	event := PipelineEvent{
		RunID:         runID,
		Name:          p.name,
		TotalPasses:   total,
		InputBytes:    len(code),
		Success:       runErr == nil,
		Error:         runErr,
		TotalDuration: clock.Since(start),
		Timestamp:     clock.Now(),
	}
	if res != nil {
		event.Language = res.Language
		event.OutputBytes = len(res.Code)
		event.Insights = len(res.Insights)
	}
	_ = p.hooks.Emit(ctx, PipelineEventRunComplete, event) //nolint:errcheck
}

// Len returns the number of passes.
func (p *Pipeline) Len() int {
	return len(p.passes)
}

// Names returns the pass names in execution order.
func (p *Pipeline) Names() []Name {
	names := make([]Name, len(p.passes))
	for i, pass := range p.passes {
		names[i] = pass.Name()
	}
	return names
}

// Passes returns a copy of the pass list in execution order.
func (p *Pipeline) Passes() []Pass {
	return slices.Clone(p.passes)
}

// Name returns the name of this pipeline.
func (p *Pipeline) Name() Name {
	return p.name
}

// getClock returns the clock to use.
func (p *Pipeline) getClock() clockz.Clock {
	if p.clock == nil {
		return clockz.RealClock
	}
	return p.clock
}

// Metrics returns the metrics registry for this pipeline.
func (p *Pipeline) Metrics() *metricz.Registry {
	return p.metrics
}

// Tracer returns the tracer for this pipeline.
func (p *Pipeline) Tracer() *tracez.Tracer {
	return p.tracer
}

// Close gracefully shuts down observability components.
func (p *Pipeline) Close() error {
	if p.tracer != nil {
		p.tracer.Close()
	}
	p.hooks.Close()
	return nil
}

// OnPassComplete registers a handler for when a pass finishes.
// The handler is called asynchronously for every pass of every run.
func (p *Pipeline) OnPassComplete(handler func(context.Context, PipelineEvent) error) error {
	_, err := p.hooks.Hook(PipelineEventPassComplete, handler)
	return err
}

// OnRunComplete registers a handler for when a run finishes.
// The handler is called asynchronously, with Success false and Error set
// when the run was stopped by a budget or the caller.
func (p *Pipeline) OnRunComplete(handler func(context.Context, PipelineEvent) error) error {
	_, err := p.hooks.Hook(PipelineEventRunComplete, handler)
	return err
}
