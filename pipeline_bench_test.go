package optz_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/zoobzio/optz"
)

const benchSnippet = `#include <stdio.h>
int sq(int x) { return x * x; }
int main() {
    int a = 2 + 3;
    int unused = 7;
    int *buf = (int*)malloc(8 * sizeof(int));
    int sum = 0;
    for (int i = 0; i < 100; i++) { sum += i; }
    for (int j = 0; j < 4; j++) { b = j * 2; c = j * 2; }
    for (int k = 0; k < 64; k++) {
        limit = 64;
        buf[k % 8] = k;
    }
    printf("%d %d\n", sq(a), sum);
    free(buf);
    return 0;
}`

// BenchmarkPipeline_Baseline measures the overhead of an empty pipeline.
func BenchmarkPipeline_Baseline(b *testing.B) {
	ctx := context.Background()
	pipeline := optz.NewPipeline("empty")
	defer pipeline.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = pipeline.Optimize(ctx, benchSnippet) //nolint:errcheck // benchmark ignores errors
	}
}

// BenchmarkPipeline_Default measures the full default catalogue.
func BenchmarkPipeline_Default(b *testing.B) {
	ctx := context.Background()
	pipeline := optz.New()
	defer pipeline.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = pipeline.Optimize(ctx, benchSnippet) //nolint:errcheck // benchmark ignores errors
	}
}

// BenchmarkPipeline_InputSize measures how run time grows with input size.
func BenchmarkPipeline_InputSize(b *testing.B) {
	ctx := context.Background()
	pipeline := optz.New()
	defer pipeline.Close()

	for _, copies := range []struct {
		name string
		n    int
	}{
		{"1x", 1},
		{"10x", 10},
		{"50x", 50},
	} {
		input := strings.Repeat(benchSnippet+"\n", copies.n)
		b.Run(copies.name, func(b *testing.B) {
			b.SetBytes(int64(len(input)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = pipeline.Optimize(ctx, input) //nolint:errcheck // benchmark ignores errors
			}
		})
	}
}

// BenchmarkPipeline_Batch measures OptimizeBatch at several worker counts.
func BenchmarkPipeline_Batch(b *testing.B) {
	ctx := context.Background()
	pipeline := optz.New()
	defer pipeline.Close()

	inputs := make([]string, 32)
	for i := range inputs {
		inputs[i] = benchSnippet
	}

	for _, workers := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = pipeline.OptimizeBatch(ctx, workers, inputs)
			}
		})
	}
}
