// Package testing provides test utilities and helpers for optz passes and
// pipelines.
//
// It includes a configurable mock pass and assertion helpers for the
// properties every pass is expected to hold: a rewrite produces the
// expected text, unmatched input comes back byte-identical, and a second
// run over the output changes nothing.
//
// Example usage:
//
//	func TestMyPass(t *testing.T) {
//		optztest.AssertRewrite(t, myPass, "int x = 1 + 2;", "int x = 3;")
//		optztest.AssertIdentity(t, myPass, "int y = z;")
//		optztest.AssertIdempotent(t, myPass, "int x = 1 + 2;")
//	}
package testing

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/optz"
)

// MockPass provides a configurable implementation of optz.Pass.
// It tracks calls, allows configuring its output and delays, and provides
// assertion methods for testing pipeline behavior.
type MockPass struct { //nolint:govet // fieldalignment: Test helper struct optimized for functionality over memory efficiency
	t           *testing.T
	name        string
	insight     string
	callCount   int64
	lastInput   string
	rewrite     func(string) string
	onCall      func()
	delay       time.Duration
	panicMsg    string
	mu          sync.RWMutex
	callHistory []MockCall
	maxHistory  int
}

// MockCall represents a single call to the mock pass.
type MockCall struct {
	Input     string
	Language  optz.Language
	Timestamp time.Time
	Context   context.Context
}

// NewMockPass creates a mock pass that returns its input unchanged until
// configured otherwise.
func NewMockPass(t *testing.T, name string) *MockPass {
	return &MockPass{
		t:          t,
		name:       name,
		insight:    "mock pass " + name + " changed the text.",
		maxHistory: 100, // Keep last 100 calls by default
	}
}

// WithRewrite configures the transformation applied to every input.
func (m *MockPass) WithRewrite(fn func(string) string) *MockPass {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewrite = fn
	return m
}

// WithOutput configures the mock to return fixed text for every call.
func (m *MockPass) WithOutput(out string) *MockPass {
	return m.WithRewrite(func(string) string { return out })
}

// WithInsight overrides the insight text.
func (m *MockPass) WithInsight(insight string) *MockPass {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insight = insight
	return m
}

// WithDelay configures the mock to sleep before returning.
// The delay is cut short when the context is done.
func (m *MockPass) WithDelay(d time.Duration) *MockPass {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithPanic configures the mock to panic with the given message.
func (m *MockPass) WithPanic(msg string) *MockPass {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicMsg = msg
	return m
}

// OnCall registers a function run at the start of every call, before any
// delay. Useful for advancing a fake clock mid-pipeline.
func (m *MockPass) OnCall(fn func()) *MockPass {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCall = fn
	return m
}

// Name returns the name of the mock pass.
func (m *MockPass) Name() optz.Name {
	return m.name
}

// Insight returns the configured insight.
func (m *MockPass) Insight() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.insight
}

// Transform implements optz.Pass. It records the call and returns the
// configured output, potentially after a delay or panic.
func (m *MockPass) Transform(ctx context.Context, code string, lang optz.Language) string {
	atomic.AddInt64(&m.callCount, 1)

	m.mu.Lock()
	m.lastInput = code
	if m.maxHistory > 0 {
		m.callHistory = append(m.callHistory, MockCall{
			Input:     code,
			Language:  lang,
			Timestamp: time.Now(),
			Context:   ctx,
		})
		if len(m.callHistory) > m.maxHistory {
			m.callHistory = m.callHistory[1:] // Remove oldest
		}
	}
	rewrite := m.rewrite
	onCall := m.onCall
	delay := m.delay
	panicMsg := m.panicMsg
	m.mu.Unlock()

	if onCall != nil {
		onCall()
	}
	if panicMsg != "" {
		panic(panicMsg)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return code
		}
	}
	if rewrite == nil {
		return code
	}
	return rewrite(code)
}

// CallCount returns the number of times Transform has been called.
func (m *MockPass) CallCount() int {
	return int(atomic.LoadInt64(&m.callCount))
}

// LastInput returns the input from the most recent call.
func (m *MockPass) LastInput() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastInput
}

// CallHistory returns a copy of all recorded calls.
func (m *MockPass) CallHistory() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := make([]MockCall, len(m.callHistory))
	copy(history, m.callHistory)
	return history
}

// Reset clears all call tracking.
func (m *MockPass) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	atomic.StoreInt64(&m.callCount, 0)
	m.lastInput = ""
	m.callHistory = nil
}

// Assertion Helpers

// AssertCalled verifies that a mock pass was called exactly n times.
func AssertCalled(t *testing.T, mock *MockPass, expectedCalls int) {
	t.Helper()
	if actual := mock.CallCount(); actual != expectedCalls {
		t.Errorf("expected mock pass %s to be called %d times, but was called %d times",
			mock.name, expectedCalls, actual)
	}
}

// AssertRewrite verifies that pass turns input into want.
func AssertRewrite(t *testing.T, pass optz.Pass, input, want string) {
	t.Helper()
	got := pass.Transform(context.Background(), input, optz.Classify(input))
	if got != want {
		t.Errorf("%s rewrite mismatch\ninput:\n%s\nwant:\n%s\ngot:\n%s", pass.Name(), input, want, got)
	}
}

// AssertIdentity verifies that pass returns input byte-identical.
func AssertIdentity(t *testing.T, pass optz.Pass, input string) {
	t.Helper()
	AssertRewrite(t, pass, input, input)
}

// AssertIdempotent verifies that running pass over its own output changes
// nothing.
func AssertIdempotent(t *testing.T, pass optz.Pass, input string) {
	t.Helper()
	ctx := context.Background()
	lang := optz.Classify(input)
	once := pass.Transform(ctx, input, lang)
	twice := pass.Transform(ctx, once, lang)
	if once != twice {
		t.Errorf("%s is not idempotent\nfirst run:\n%s\nsecond run:\n%s", pass.Name(), once, twice)
	}
}

// WaitForCalls waits for a mock pass to be called at least n times,
// with a timeout. Returns true if the expected calls were reached.
func WaitForCalls(mock *MockPass, expectedCalls int, timeout time.Duration) bool {
	start := time.Now()
	for time.Since(start) < timeout {
		if mock.CallCount() >= expectedCalls {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// ParallelTest runs a test function in parallel with multiple goroutines.
func ParallelTest(t *testing.T, goroutines int, testFunc func(int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			testFunc(id)
		}(i)
	}

	wg.Wait()
}
