package optz

import (
	"math"
	"strconv"

	"github.com/dlclark/regexp2"
)

// HeapElementBytes is the flat per-element cost of a heap array allocation.
const HeapElementBytes = 4

// stackBytes is the per-declaration cost by primitive type.
var stackBytes = map[string]int64{
	"int":    4,
	"float":  4,
	"double": 8,
	"char":   1,
}

var (
	heapMallocPattern = mustCompile(`\bmalloc\s*\(\s*(\d+)\s*\*\s*sizeof\s*\(\s*\w+\s*\)\s*\)`)
	heapNewPattern    = mustCompile(`\bnew\s+\w+\s*\[\s*(\d+)\s*\]`)
	stackDeclPattern  = mustCompile(`\b(` + primitiveTypes + `)\s+\w+(?:\s*=\s*[^;]+)?\s*;`)
)

// Estimate scores the static footprint of code. It is a pattern count, not
// an allocator model: every heap array allocation idiom adds N elements at
// HeapElementBytes each, and every primitive declaration anywhere in the text
// adds its type's size, regardless of scope or reachability. Unmatched input
// yields the zero value.
func Estimate(code string, _ Language) MemoryUsage {
	var usage MemoryUsage

	for _, re := range []*regexp2.Regexp{heapMallocPattern, heapNewPattern} {
		_ = eachMatch(re, code, func(m *regexp2.Match) { //nolint:errcheck // a timed-out count keeps what it has
			n, err := strconv.ParseInt(group(m, 1), 10, 64)
			if err != nil || n > math.MaxInt64/HeapElementBytes {
				return
			}
			usage.HeapBytes += n * HeapElementBytes
		})
	}

	_ = eachMatch(stackDeclPattern, code, func(m *regexp2.Match) { //nolint:errcheck // a timed-out count keeps what it has
		usage.StackBytes += stackBytes[group(m, 1)]
	})

	return usage
}
