package optz

import (
	"context"
	"math"
	"strconv"

	"github.com/dlclark/regexp2"
)

// foldPattern matches `<int> + <int>`. Operands glued to identifiers or
// decimal points are skipped, as are sums whose left operand follows a
// subtraction or a higher-precedence operator or whose right operand is
// followed by one, since folding those would change the value.
var foldPattern = mustCompile(`(?<![\w.]|[-*/%]\s*)(\d+)\s*\+\s*(\d+)(?![\w.]|\s*[*/%])`)

// ConstantFolder replaces every `a + b` of integer literals with the sum.
//
// The sweep runs once, left to right: `1 + 2 + 3` becomes `3 + 3`, and a
// second run would be needed to reach `6`. Matching is purely textual, so a
// sum inside a string literal is folded too.
func ConstantFolder() Pass {
	return NewRule(FoldConstantsName,
		"Applied constant folding to simplify arithmetic expressions.",
		func(ctx context.Context, code string, _ Language) string {
			return rewrite(ctx, FoldConstantsName, foldPattern, code, func(m *regexp2.Match, _ []rune) (string, bool) {
				sum, ok := addLiterals(group(m, 1), group(m, 2))
				if !ok {
					return "", false
				}
				return strconv.FormatInt(sum, 10), true
			})
		})
}

// addLiterals adds two decimal literals. Octal-looking literals and sums
// that overflow int64 are refused.
func addLiterals(a, b string) (int64, bool) {
	if isOctalLiteral(a) || isOctalLiteral(b) {
		return 0, false
	}
	x, err := strconv.ParseInt(a, 10, 64)
	if err != nil {
		return 0, false
	}
	y, err := strconv.ParseInt(b, 10, 64)
	if err != nil {
		return 0, false
	}
	if x > math.MaxInt64-y {
		return 0, false
	}
	return x + y, true
}

func isOctalLiteral(s string) bool {
	return len(s) > 1 && s[0] == '0'
}
