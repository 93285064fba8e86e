package optz

import (
	"context"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// MatchTimeout bounds a single pattern match. It guards against patterns
// that backtrack badly on adversarial input; a timed-out rule leaves its
// input unchanged.
const MatchTimeout = 250 * time.Millisecond

// primitiveTypes is the alternation of declaration types the rules know about.
const primitiveTypes = `int|float|double|char`

// countingLoop matches `for (int v = S; v < N; v++) { body }` where the body
// holds no nested braces. Groups: 1 variable, 2 start, 3 bound, 4 body.
var countingLoop = mustCompile(
	`\bfor\s*\(\s*int\s+(\w+)\s*=\s*(\d+)\s*;\s*\1\s*<\s*(\d+)\s*;\s*(?:\1\s*\+\+|\+\+\s*\1|\1\s*\+=\s*1)\s*\)\s*\{([^{}]*)\}`)

// mustCompile compiles a rule pattern. A malformed pattern is a
// construction-time fault and panics at package initialization.
func mustCompile(pattern string) *regexp2.Regexp {
	re := regexp2.MustCompile(pattern, regexp2.None)
	re.MatchTimeout = MatchTimeout
	return re
}

// compileFor builds a pattern around an escaped identifier at call time.
func compileFor(format, ident string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(strings.ReplaceAll(format, "%s", regexp2.Escape(ident)), regexp2.None)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = MatchTimeout
	return re, nil
}

// rewrite replaces every match of re in input with the text returned by fn.
// When fn reports false the match is left as written. If the engine gives up
// (match timeout) the whole input is returned unchanged and a warning is
// recorded against stage.
func rewrite(ctx context.Context, stage Name, re *regexp2.Regexp, input string, fn func(m *regexp2.Match, src []rune) (string, bool)) string {
	m, err := re.FindStringMatch(input)
	if err != nil {
		warnf(ctx, stage, "pattern gave up: %v", err)
		return input
	}
	if m == nil {
		return input
	}

	src := []rune(input)
	var b strings.Builder
	last := 0
	for m != nil {
		if repl, ok := fn(m, src); ok {
			b.WriteString(string(src[last:m.Index]))
			b.WriteString(repl)
			last = m.Index + m.Length
		}
		m, err = re.FindNextMatch(m)
		if err != nil {
			warnf(ctx, stage, "pattern gave up: %v", err)
			return input
		}
	}
	b.WriteString(string(src[last:]))
	return b.String()
}

// eachMatch calls fn for every match of re in input, stopping at the first
// engine error.
func eachMatch(re *regexp2.Regexp, input string, fn func(m *regexp2.Match)) error {
	m, err := re.FindStringMatch(input)
	for m != nil && err == nil {
		fn(m)
		m, err = re.FindNextMatch(m)
	}
	return err
}

// group returns the text of capture group n, or "" when it did not take part.
func group(m *regexp2.Match, n int) string {
	g := m.GroupByNumber(n)
	if g == nil || len(g.Captures) == 0 {
		return ""
	}
	return g.String()
}

// splitLines splits on '\n' keeping every segment, so joinLines restores the
// input exactly, trailing newline included.
func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// indentOf returns the leading whitespace of line.
func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// lineIndentAt returns the indentation of the line containing rune offset pos.
func lineIndentAt(src []rune, pos int) string {
	start := pos
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	end := start
	for end < pos && (src[end] == ' ' || src[end] == '\t') {
		end++
	}
	return string(src[start:end])
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// identIndex returns the byte offset of the first occurrence of ident in s
// that is not glued to other identifier characters, or -1.
func identIndex(s, ident string) int {
	if ident == "" {
		return -1
	}
	offset := 0
	for {
		i := strings.Index(s[offset:], ident)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(ident)
		if (start == 0 || !isIdentByte(s[start-1])) && (end == len(s) || !isIdentByte(s[end])) {
			return start
		}
		offset = start + 1
	}
}

// containsIdent reports whether ident occurs in s as a whole identifier.
func containsIdent(s, ident string) bool {
	return identIndex(s, ident) >= 0
}

// replaceIdent replaces every whole-identifier occurrence of ident with repl.
func replaceIdent(s, ident, repl string) string {
	var b strings.Builder
	for {
		i := identIndex(s, ident)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(repl)
		s = s[i+len(ident):]
	}
}

// dropBlankLeftovers removes lines that became blank after a rewrite while
// keeping lines that were already blank in the original.
func dropBlankLeftovers(lines []string, touched map[int]bool) []string {
	out := lines[:0:0]
	for i, line := range lines {
		if touched[i] && strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
