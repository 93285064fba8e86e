package optz

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dlclark/regexp2"
)

// sumLoopPattern is the fixed accumulation idiom:
//
//	int sum = 0;
//	for (int i = 0; i < N; i++) { sum += i; }
var sumLoopPattern = mustCompile(
	`\bint\s+sum\s*=\s*0\s*;\s*for\s*\(\s*int\s+i\s*=\s*0\s*;\s*i\s*<\s*(\d+)\s*;\s*i\s*\+\+\s*\)\s*\{\s*sum\s*\+=\s*i\s*;\s*\}`)

// maxTriangularBound keeps N*(N-1) inside int64.
const maxTriangularBound = 3037000499

// ArithmeticLoopOptimizer collapses the sum-of-counter idiom into its closed
// form N*(N-1)/2. Only the exact names `sum` and `i` are recognized.
func ArithmeticLoopOptimizer() Pass {
	return NewRule(ArithmeticLoopsName,
		"Optimized arithmetic loop to direct assignment.",
		func(ctx context.Context, code string, _ Language) string {
			return rewrite(ctx, ArithmeticLoopsName, sumLoopPattern, code, func(m *regexp2.Match, _ []rune) (string, bool) {
				n, err := strconv.ParseInt(group(m, 1), 10, 64)
				if err != nil || n > maxTriangularBound {
					return "", false
				}
				return fmt.Sprintf("int sum = %d;", triangular(n)), true
			})
		})
}

// triangular returns 0 + 1 + ... + (n-1).
func triangular(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return n * (n - 1) / 2
}
