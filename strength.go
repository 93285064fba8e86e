package optz

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/dlclark/regexp2"
)

// scaledCounterFormat matches `r = v * K;` for a loop variable v. A typed
// declaration is not matched, since its scope ends with the body.
// Groups: 1 target, 2 factor.
const scaledCounterFormat = `(?<![\w.>]\s*)\b(\w+)\s*=\s*%s\s*\*\s*(\d+)\s*;`

// StrengthReducer replaces a multiplication by the loop counter with a
// running addition. In a counting loop from S, a body statement
// `r = v * K;` becomes `r = r + K;` and `r = (S-1)*K;` is placed in front of
// the loop, so r takes the same value on every iteration and after the loop.
// The rewrite is skipped when r is written elsewhere in the body, read
// before the statement, or the loop never runs.
//
// StrengthReducer is not part of DefaultPasses.
func StrengthReducer() Pass {
	return NewRule(StrengthReductionName,
		"Applied strength reduction to replace expensive operations.",
		func(ctx context.Context, code string, _ Language) string {
			return rewrite(ctx, StrengthReductionName, countingLoop, code, func(m *regexp2.Match, src []rune) (string, bool) {
				start, end, ok := loopBounds(m)
				if !ok || end <= start {
					return "", false
				}
				v := group(m, 1)

				re, err := compileFor(scaledCounterFormat, v)
				if err != nil {
					warnf(ctx, StrengthReductionName, "cannot build pattern for %q: %v", v, err)
					return "", false
				}
				body := m.GroupByNumber(4)
				bodyText := []rune(body.String())
				stmt, err := re.FindRunesMatch(bodyText)
				if err != nil || stmt == nil {
					return "", false
				}

				r := group(stmt, 1)
				k, err := strconv.ParseInt(group(stmt, 2), 10, 64)
				if err != nil || r == v {
					return "", false
				}
				before := string(bodyText[:stmt.Index])
				after := string(bodyText[stmt.Index+stmt.Length:])
				if containsIdent(before, r) || slices.Contains(writtenNames(after), r) {
					return "", false
				}
				initial, ok := mulInt64(start-1, k)
				if !ok {
					return "", false
				}

				indent := lineIndentAt(src, m.Index)
				loop := string(src[m.Index:body.Index]) +
					before + fmt.Sprintf("%s = %s + %d;", r, r, k) + after +
					string(src[body.Index+body.Length:m.Index+m.Length])

				infof(ctx, StrengthReductionName, "replaced %s * %d with a running sum in %q", v, k, r)
				return fmt.Sprintf("%s = %d;\n%s%s", r, initial, indent, loop), true
			})
		})
}

// mulInt64 multiplies a and b, refusing results that overflow.
func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if b > 0 && (a > math.MaxInt64/b || a < math.MinInt64/b) {
		return 0, false
	}
	return a * b, true
}
