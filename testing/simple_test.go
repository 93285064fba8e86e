package testing

import (
	"context"
	"testing"

	"github.com/zoobzio/optz"
)

// Simple test to verify the testing infrastructure works.
func TestSimpleInfrastructure(t *testing.T) {
	ctx := context.Background()

	// Test basic pass
	fold := optz.ConstantFolder()
	if got := fold.Transform(ctx, "int x = 20 + 22;", optz.C); got != "int x = 42;" {
		t.Errorf("expected folded literal, got %q", got)
	}

	// Test simple pipeline of mocks
	first := NewMockPass(t, "first").WithRewrite(func(s string) string { return s + "a" })
	second := NewMockPass(t, "second").WithRewrite(func(s string) string { return s + "b" })

	p := optz.NewPipeline("simple", first, second)
	defer p.Close()

	res, err := p.Optimize(ctx, "x")
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	if res.Code != "xab" {
		t.Errorf("expected xab, got %q", res.Code)
	}

	AssertCalled(t, first, 1)
	AssertCalled(t, second, 1)
	if second.LastInput() != "xa" {
		t.Errorf("second pass saw %q", second.LastInput())
	}
}
