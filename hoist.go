package optz

import (
	"context"
	"slices"
	"strings"

	"github.com/dlclark/regexp2"
)

var (
	// plainAssignPattern matches one plain `=` assignment to a variable,
	// optionally a declaration. Groups: 1 type, 2 target, 3 right-hand side.
	plainAssignPattern = mustCompile(
		`^(?:(` + primitiveTypes + `)\s+)?([A-Za-z_]\w*)\s*=(?!=)([^;]*);$`)

	callPattern  = mustCompile(`\w\s*\(`)
	identPattern = mustCompile(`\b[A-Za-z_]\w*\b`)
)

// CodeHoister moves loop-invariant assignments in front of a counting loop.
//
// A body line is hoisted when it is a single plain assignment that does not
// mention the induction variable, calls nothing, does not read its own
// target, reads no variable written by the lines staying in the loop or by
// a later hoisted line, and whose target is neither written by
// those lines nor read by any of them before it. The loop must run at least
// once. Hoisted lines keep their order, as do the lines left in the loop. A
// loop with nothing to hoist is left exactly as written.
func CodeHoister() Pass {
	return NewRule(HoistCodeName,
		"Hoisted invariant code outside of loops.",
		func(ctx context.Context, code string, _ Language) string {
			return rewrite(ctx, HoistCodeName, countingLoop, code, func(m *regexp2.Match, src []rune) (string, bool) {
				start, end, ok := loopBounds(m)
				if !ok || end <= start {
					return "", false
				}

				v := group(m, 1)
				var lines []string
				for _, line := range splitLines(group(m, 4)) {
					if t := strings.TrimSpace(line); t != "" {
						lines = append(lines, t)
					}
				}

				hoist := invariantLines(lines, v)
				if len(hoist) == 0 {
					return "", false
				}

				body := m.GroupByNumber(4)
				header := string(src[m.Index:body.Index])
				indent := lineIndentAt(src, m.Index)

				var out []string
				var kept []string
				for i, line := range lines {
					if hoist[i] {
						out = append(out, line)
					} else {
						kept = append(kept, line)
					}
				}
				out = append(out, header)
				for _, line := range kept {
					out = append(out, "    "+line)
				}
				out = append(out, "}")

				infof(ctx, HoistCodeName, "hoisted %d line(s) out of loop over %q", len(hoist), v)
				return strings.Join(out, "\n"+indent), true
			})
		})
}

type hoistCandidate struct {
	target string
	reads  []string
}

// invariantLines returns the indexes of lines that can leave the loop.
func invariantLines(lines []string, loopVar string) map[int]bool {
	candidates := make(map[int]hoistCandidate)
	for i, line := range lines {
		if c, ok := asHoistCandidate(line, loopVar); ok {
			candidates[i] = c
		}
	}

	hoist := make(map[int]bool, len(candidates))
	for i := range candidates {
		hoist[i] = true
	}

	// Demoting one candidate can invalidate another, so settle to a fixed point.
	for changed := true; changed; {
		changed = false
		written := make(map[string]bool)
		for i, line := range lines {
			if hoist[i] {
				continue
			}
			for _, w := range writtenNames(line) {
				written[w] = true
			}
		}
		for i, c := range candidates {
			if !hoist[i] {
				continue
			}
			if blocksHoist(c, i, lines, hoist, candidates, written) {
				delete(hoist, i)
				changed = true
			}
		}
	}
	return hoist
}

func blocksHoist(c hoistCandidate, at int, lines []string, hoist map[int]bool, candidates map[int]hoistCandidate, written map[string]bool) bool {
	if written[c.target] {
		return true
	}
	for _, r := range c.reads {
		if written[r] {
			return true
		}
		// A later line feeds the next iteration's read.
		for j := at + 1; j < len(lines); j++ {
			if hoist[j] && candidates[j].target == r {
				return true
			}
		}
	}
	for j := 0; j < at; j++ {
		if !hoist[j] && containsIdent(lines[j], c.target) {
			return true
		}
	}
	return false
}

// asHoistCandidate checks the shape of a single line, independent of its
// neighbours.
func asHoistCandidate(line, loopVar string) (hoistCandidate, bool) {
	if containsIdent(line, loopVar) {
		return hoistCandidate{}, false
	}
	m, err := plainAssignPattern.FindStringMatch(line)
	if err != nil || m == nil {
		return hoistCandidate{}, false
	}
	target, rhs := group(m, 2), group(m, 3)
	if called, err := callPattern.MatchString(rhs); err != nil || called {
		return hoistCandidate{}, false
	}

	writes := writtenNames(line)
	if len(writes) != 1 || writes[0] != target {
		return hoistCandidate{}, false
	}

	var reads []string
	err = eachMatch(identPattern, rhs, func(id *regexp2.Match) {
		reads = append(reads, id.String())
	})
	if err != nil || slices.Contains(reads, target) {
		return hoistCandidate{}, false
	}
	return hoistCandidate{target: target, reads: reads}, true
}

// writtenNames lists identifiers assigned or incremented in text.
func writtenNames(text string) []string {
	var names []string
	_ = eachMatch(writePattern, text, func(m *regexp2.Match) { //nolint:errcheck // partial results are conservative enough here
		for n := 1; n <= 3; n++ {
			if name := group(m, n); name != "" {
				names = append(names, name)
			}
		}
	})
	return names
}
