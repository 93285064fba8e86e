package optz

import (
	"context"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// MaxUnrollIterations is the largest trip count that is unrolled.
const MaxUnrollIterations = 4

// LoopUnroller replaces a counting loop running 1 to MaxUnrollIterations
// times with one copy of its body per iteration, in ascending order, the
// loop variable replaced by its value in each copy. Copies are placed on
// their own lines at the loop's indentation.
func LoopUnroller() Pass {
	return NewRule(UnrollLoopsName,
		"Unrolled small loops to reduce loop overhead.",
		func(ctx context.Context, code string, _ Language) string {
			return rewrite(ctx, UnrollLoopsName, countingLoop, code, func(m *regexp2.Match, src []rune) (string, bool) {
				start, end, ok := loopBounds(m)
				if !ok {
					return "", false
				}
				iterations := end - start
				if iterations < 1 || iterations > MaxUnrollIterations {
					return "", false
				}

				v := group(m, 1)
				body := strings.TrimSpace(group(m, 4))
				copies := make([]string, 0, iterations)
				for i := start; i < end; i++ {
					copies = append(copies, replaceIdent(body, v, strconv.FormatInt(i, 10)))
				}
				infof(ctx, UnrollLoopsName, "unrolled %d iteration(s) of loop over %q", iterations, v)
				return strings.Join(copies, "\n"+lineIndentAt(src, m.Index)), true
			})
		})
}

// loopBounds parses the literal start and bound of a countingLoop match.
func loopBounds(m *regexp2.Match) (start, end int64, ok bool) {
	start, err := strconv.ParseInt(group(m, 2), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	end, err = strconv.ParseInt(group(m, 3), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}
