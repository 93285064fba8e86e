package integration

import (
	"context"
	"fmt"
	"testing"

	"github.com/zoobzio/optz"
	optztesting "github.com/zoobzio/optz/testing"
)

// TestConcurrentRuns checks that one pipeline shared across goroutines keeps
// every run's text, timings, and diagnostics separate.
func TestConcurrentRuns(t *testing.T) {
	p := optz.New()
	defer p.Close()

	const goroutines = 16
	codes := make([]string, goroutines)
	ids := make([]string, goroutines)
	diags := make([]int, goroutines)

	optztesting.ParallelTest(t, goroutines, func(id int) {
		in := fmt.Sprintf("int unused%d = 1;\nx = %d + 1;", id, id)
		res, err := p.Optimize(context.Background(), in)
		if err != nil {
			t.Errorf("goroutine %d: %v", id, err)
			return
		}
		codes[id] = res.Code
		ids[id] = res.RunID
		diags[id] = len(res.Diagnostics)
		if len(res.Timings) != p.Len()+1 {
			t.Errorf("goroutine %d: expected %d timings, got %d", id, p.Len()+1, len(res.Timings))
		}
	})

	seen := make(map[string]bool)
	for id := 0; id < goroutines; id++ {
		if want := fmt.Sprintf("x = %d;", id+1); codes[id] != want {
			t.Errorf("goroutine %d: expected %q, got %q", id, want, codes[id])
		}
		if seen[ids[id]] {
			t.Errorf("goroutine %d: run id %q reused", id, ids[id])
		}
		seen[ids[id]] = true
		// classification plus one removed variable
		if diags[id] != 2 {
			t.Errorf("goroutine %d: expected 2 diagnostics, got %d", id, diags[id])
		}
	}

	if v := p.Metrics().Counter(optz.PipelineRunsTotal).Value(); v != goroutines {
		t.Errorf("expected %d runs, got %f", goroutines, v)
	}
}

// TestBatchMatchesSerialRuns checks OptimizeBatch against one-at-a-time calls.
func TestBatchMatchesSerialRuns(t *testing.T) {
	p := optz.New()
	defer p.Close()

	inputs := []string{
		"int a = 2 + 3;\nfor (int i = 0; i < 3; i++) { b = i * 2; c = i * 2; }",
		"int *p = (int*)malloc(3 * sizeof(int));\np[0] = 1;\nfree(p);",
		"for (int i = 0; i < 10; i++) { sum += i; }",
		"int sq(int x) { return x * x; }\nint y = sq(7);\nuse(y);",
		"plain text",
	}

	batch := p.OptimizeBatch(context.Background(), 3, inputs)
	for i, in := range inputs {
		serial, err := p.Optimize(context.Background(), in)
		if err != nil {
			t.Fatalf("input %d: %v", i, err)
		}
		if batch[i].Err != nil {
			t.Fatalf("input %d: batch error %v", i, batch[i].Err)
		}
		if batch[i].Result.Code != serial.Code {
			t.Errorf("input %d: batch gave %q, serial gave %q", i, batch[i].Result.Code, serial.Code)
		}
		if len(batch[i].Result.Insights) != len(serial.Insights) {
			t.Errorf("input %d: insight counts differ", i)
		}
	}
}
