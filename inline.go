package optz

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// MaxInlineBodyLines is the largest body, in non-blank lines, that is inlined.
const MaxInlineBodyLines = 3

// definitionPattern matches a single-parameter routine with a primitive
// return type and a brace-free body.
// Groups: 1 return type, 2 name, 3 parameter type, 4 parameter, 5 body.
var definitionPattern = mustCompile(
	`\b(` + primitiveTypes + `)\s+(\w+)\s*\(\s*(\w+)\s+(\w+)\s*\)\s*\{([^{}]*)\}`)

var (
	returnPattern     = mustCompile(`^return\s+([^;]+);`)
	literalSumPattern = mustCompile(`^(\d+)\s*\+\s*(\d+)$`)
	singleTokenRe     = mustCompile(`^[\w.]+$`)
)

// callFormat matches a call with one identifier or literal argument. Member
// calls (`obj.f(x)`, `p->f(x)`) are not calls of the free routine.
// Groups: 1 argument, 2 trailing semicolon.
const callFormat = `(?<!\.|->)\b%s\s*\(\s*([\w.]+)\s*\)(\s*;)?`

type routine struct {
	name  string
	param string
	body  string
}

type span struct {
	start, end int
}

func (s span) contains(pos int) bool {
	return pos >= s.start && pos < s.end
}

// FunctionInliner replaces calls of small helper routines with the routine's
// body. A routine qualifies when it takes one parameter, returns a primitive,
// and has a body of at most MaxInlineBodyLines lines with no loop and no
// call to itself. The argument is substituted for the parameter on
// identifier boundaries; a leading `return` is stripped and a resulting
// literal addition is folded. A definition is deleted once every reference
// to it has been inlined.
func FunctionInliner() Pass {
	return NewRule(InlineFunctionsName,
		"Inlined small functions to reduce function call overhead.",
		func(ctx context.Context, code string, _ Language) string {
			defs, err := findDefinitions(code)
			if err != nil {
				warnf(ctx, InlineFunctionsName, "pattern gave up: %v", err)
				return code
			}

			var candidates []routine
			for _, d := range defs {
				if inlinable(d.routine) {
					candidates = append(candidates, d.routine)
				}
			}
			if len(candidates) == 0 {
				return code
			}

			out := code
			inlined := make(map[string]int)
			for _, r := range candidates {
				next, n := inlineCalls(ctx, out, r)
				if n == 0 {
					continue
				}
				out = next
				inlined[r.name] = n
				infof(ctx, InlineFunctionsName, "inlined %d call(s) to %q", n, r.name)
			}
			if len(inlined) == 0 {
				return code
			}
			return removeDefinitions(ctx, out, inlined)
		})
}

type definition struct {
	routine
	span
}

// findDefinitions returns every single-parameter routine definition in code,
// with rune spans.
func findDefinitions(code string) ([]definition, error) {
	var defs []definition
	err := eachMatch(definitionPattern, code, func(m *regexp2.Match) {
		defs = append(defs, definition{
			routine: routine{name: group(m, 2), param: group(m, 4), body: group(m, 5)},
			span:    span{start: m.Index, end: m.Index + m.Length},
		})
	})
	return defs, err
}

func inlinable(r routine) bool {
	if r.name == "main" || containsIdent(r.body, r.name) {
		return false
	}
	for _, kw := range []string{"for", "while", "do", "goto"} {
		if containsIdent(r.body, kw) {
			return false
		}
	}
	lines := 0
	for _, line := range splitLines(strings.TrimSpace(r.body)) {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	return lines > 0 && lines <= MaxInlineBodyLines
}

// inlineCalls rewrites every call of r outside routine definitions and
// reports how many were replaced.
func inlineCalls(ctx context.Context, code string, r routine) (string, int) {
	call, err := compileFor(callFormat, r.name)
	if err != nil {
		warnf(ctx, InlineFunctionsName, "cannot build call pattern for %q: %v", r.name, err)
		return code, 0
	}
	defs, err := findDefinitions(code)
	if err != nil {
		warnf(ctx, InlineFunctionsName, "pattern gave up: %v", err)
		return code, 0
	}

	count := 0
	out := rewrite(ctx, InlineFunctionsName, call, code, func(m *regexp2.Match, src []rune) (string, bool) {
		for _, d := range defs {
			if d.contains(m.Index) {
				return "", false
			}
		}
		value, ok := inlineValue(r, group(m, 1))
		if !ok {
			return "", false
		}
		terminator := group(m, 2)
		whole := terminator != "" && startsOperand(src, m.Index)
		if !whole && !isSingleToken(value) {
			value = "(" + value + ")"
		}
		count++
		return value + terminator, true
	})
	if out == code {
		return code, 0
	}
	return out, count
}

// startsOperand reports whether the call at pos begins a statement or a
// whole assignment or return value.
func startsOperand(src []rune, pos int) bool {
	before := strings.TrimRight(string(src[:pos]), " \t\r\n")
	if before == "" {
		return true
	}
	switch before[len(before)-1] {
	case ';', '{', '}':
		return true
	case '=':
		if len(before) > 1 && strings.ContainsRune("=!<>", rune(before[len(before)-2])) {
			// `<<=` and `>>=` are assignments.
			return strings.HasSuffix(before, "<<=") || strings.HasSuffix(before, ">>=")
		}
		return true
	}
	if !strings.HasSuffix(before, "return") {
		return false
	}
	rest := strings.TrimSuffix(before, "return")
	return rest == "" || !isIdentByte(rest[len(rest)-1])
}

// inlineValue renders the body of r with arg bound to its parameter.
func inlineValue(r routine, arg string) (string, bool) {
	body := replaceIdent(strings.TrimSpace(r.body), r.param, arg)

	if !strings.HasPrefix(body, "return") {
		body = strings.TrimSpace(strings.TrimSuffix(body, ";"))
		return body, body != ""
	}

	m, err := returnPattern.FindStringMatch(body)
	if err != nil || m == nil {
		return "", false
	}
	expr := strings.TrimSpace(group(m, 1))

	if sum, err := literalSumPattern.FindStringMatch(expr); err == nil && sum != nil {
		if v, ok := addLiterals(group(sum, 1), group(sum, 2)); ok {
			return strconv.FormatInt(v, 10), true
		}
	}
	return expr, expr != ""
}

func isSingleToken(s string) bool {
	ok, err := singleTokenRe.MatchString(s)
	return err == nil && ok
}

// removeDefinitions deletes the definitions of inlined routines that are no
// longer referenced anywhere else.
func removeDefinitions(ctx context.Context, code string, inlined map[string]int) string {
	defs, err := findDefinitions(code)
	if err != nil {
		warnf(ctx, InlineFunctionsName, "pattern gave up: %v", err)
		return code
	}

	src := []rune(code)
	var doomed []span
	for _, d := range defs {
		if inlined[d.name] == 0 {
			continue
		}
		rest := string(src[:d.start]) + string(src[d.end:])
		if containsIdent(rest, d.name) {
			infof(ctx, InlineFunctionsName, "kept definition of %q, still referenced", d.name)
			continue
		}
		doomed = append(doomed, widenToLine(src, d.span))
	}

	sort.Slice(doomed, func(i, j int) bool { return doomed[i].start > doomed[j].start })
	for _, s := range doomed {
		src = append(src[:s.start:s.start], src[s.end:]...)
	}
	return string(src)
}

// widenToLine grows s to cover its whole line, newline included, when
// nothing but whitespace shares the line with it.
func widenToLine(src []rune, s span) span {
	start := s.start
	for start > 0 && (src[start-1] == ' ' || src[start-1] == '\t') {
		start--
	}
	end := s.end
	for end < len(src) && (src[end] == ' ' || src[end] == '\t' || src[end] == '\r') {
		end++
	}
	atLineStart := start == 0 || src[start-1] == '\n'
	atLineEnd := end == len(src) || src[end] == '\n'
	if !atLineStart || !atLineEnd {
		return s
	}
	if end < len(src) {
		end++
	}
	return span{start: start, end: end}
}
