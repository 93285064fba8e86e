package optz

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dlclark/regexp2"
)

// StackArrayThreshold is the largest literal element count moved to the stack.
const StackArrayThreshold = 10

type allocKind int

const (
	allocMalloc allocKind = iota
	allocNew
)

// Both patterns optionally swallow a pointer declarator in front of the
// target (`int *p = ...`). Groups: 1 target, 2 element count, 3 element type.
var (
	mallocPattern = mustCompile(
		`(?:\b\w+\s*\*\s*)?\b(\w+)\s*=\s*\(\s*\w+\s*\*\s*\)\s*malloc\s*\(\s*(\d+)\s*\*\s*sizeof\s*\(\s*(\w+)\s*\)\s*\)\s*;`)
	newArrayPattern = mustCompile(
		`(?:\b\w+\s*\*\s*)?\b(\w+)\s*=\s*new\s+(?<type>\w+)\s*\[\s*(\d+)\s*\]\s*;`)
)

// Deallocation statements, formatted around an escaped variable name.
const (
	freeFormat   = `\bfree\s*\(\s*%s\s*\)\s*;`
	deleteFormat = `\bdelete\s*\[\s*\]\s*%s\s*;`
)

// MemoryAllocationOptimizer turns small heap array allocations into stack
// arrays. A `(T*)malloc(N * sizeof(T))` or `new T[N]` assigned to a name,
// with literal 1 <= N <= StackArrayThreshold, becomes `T name[N];`, and the
// matching `free(name);` or `delete[] name;` disappears. Larger or
// non-literal counts are left alone together with their deallocation.
func MemoryAllocationOptimizer() Pass {
	return NewRule(MemoryAllocationName,
		"Converted heap allocations to stack where possible.",
		func(ctx context.Context, code string, _ Language) string {
			converted := make(map[string]allocKind)
			var order []string

			convert := func(kind allocKind) func(*regexp2.Match, []rune) (string, bool) {
				return func(m *regexp2.Match, _ []rune) (string, bool) {
					name, count, elem := allocParts(m, kind)
					n, err := strconv.Atoi(count)
					if err != nil || n < 1 || n > StackArrayThreshold {
						return "", false
					}
					if _, seen := converted[name]; !seen {
						order = append(order, name)
					}
					converted[name] = kind
					return fmt.Sprintf("%s %s[%d];", elem, name, n), true
				}
			}

			out := rewrite(ctx, MemoryAllocationName, mallocPattern, code, convert(allocMalloc))
			out = rewrite(ctx, MemoryAllocationName, newArrayPattern, out, convert(allocNew))
			if len(converted) == 0 {
				return code
			}

			lines := splitLines(out)
			touched := make(map[int]bool)
			for _, name := range order {
				format := freeFormat
				if converted[name] == allocNew {
					format = deleteFormat
				}
				re, err := compileFor(format, name)
				if err != nil {
					warnf(ctx, MemoryAllocationName, "cannot build release pattern for %q: %v", name, err)
					continue
				}
				for i, line := range lines {
					next, err := re.Replace(line, "", -1, -1)
					if err != nil {
						warnf(ctx, MemoryAllocationName, "pattern gave up on line %d: %v", i+1, err)
						continue
					}
					if next != line {
						lines[i] = next
						touched[i] = true
					}
				}
				infof(ctx, MemoryAllocationName, "moved %q to the stack", name)
			}
			return joinLines(dropBlankLeftovers(lines, touched))
		})
}

// allocParts extracts target, count, and element type from either pattern.
func allocParts(m *regexp2.Match, kind allocKind) (name, count, elem string) {
	if kind == allocNew {
		return group(m, 1), group(m, 2), m.GroupByName("type").String()
	}
	return group(m, 1), group(m, 2), group(m, 3)
}
