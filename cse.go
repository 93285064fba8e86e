package optz

import (
	"context"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// TempPrefix names the temporaries introduced for common subexpressions.
const TempPrefix = "temp_"

var (
	// productAssignPattern matches `[T] var = a * b;`.
	// Groups: 1 optional type, 2 target, 3 product expression.
	productAssignPattern = mustCompile(
		`(?<![\w.]|->)(?:\b(` + primitiveTypes + `)\s+)?(\w+)\s*=\s*(\w+\s*\*\s*\w+)\s*;`)

	// anyDeclPattern finds primitive declarations anywhere in a line. Group 2 is the name.
	anyDeclPattern = mustCompile(`\b(` + primitiveTypes + `)\s+(\w+)\s*(?:=[^;]*)?;`)

	// writePattern finds identifiers written by assignment, compound
	// assignment, or increment. One of groups 1, 2, 3 holds the name.
	writePattern = mustCompile(
		`\b(\w+)\s*(?:[-+*/%&|^]|<<|>>)?=(?!=)|\b(\w+)\s*(?:\+\+|--)|(?:\+\+|--)\s*(\w+)`)
)

// CommonSubexpressionEliminator gives every `a * b` product assigned to a
// variable a temporary and reuses that temporary when the same expression
// text is assigned again. Each product becomes
//
//	int temp_0 = a * b;
//	int x = temp_0;
//
// on first sight and a bare `y = temp_0;` on repetition. The target is
// declared when the statement was a declaration or the name has not been
// declared earlier in the text. A temporary is retired once any identifier
// in its expression is written, so stale values are never reused.
//
// Only statements that start a line or follow `;`, `{`, or `}` are touched;
// a product under an unbraced `if` stays as written.
func CommonSubexpressionEliminator() Pass {
	return NewRule(CommonSubexpressionName,
		"Eliminated common subexpressions to avoid redundant computations.",
		func(ctx context.Context, code string, _ Language) string {
			s := &cseState{
				code:     code,
				temps:    make(map[string]string),
				declared: make(map[string]bool),
			}

			lines := splitLines(code)
			out := make([]string, 0, len(lines))
			changed := false
			for i, line := range lines {
				next, ok, err := s.line(line)
				if err != nil {
					warnf(ctx, CommonSubexpressionName, "pattern gave up on line %d: %v", i+1, err)
					return code
				}
				if !ok {
					out = append(out, line)
					continue
				}
				changed = true
				out = append(out, next...)
			}
			if !changed {
				return code
			}
			infof(ctx, CommonSubexpressionName, "introduced %d temporary(ies), reused them %d time(s)", s.created, s.reused)
			return joinLines(out)
		})
}

// cseState is the registry for one call. It is never shared between calls.
type cseState struct {
	code     string
	temps    map[string]string
	declared map[string]bool
	next     int
	created  int
	reused   int
}

type productAssign struct {
	start, end int
	typ        string
	target     string
	expr       string
}

// line rewrites one line. It reports false when the line holds no
// rewritable product, in which case its declarations and writes are still
// recorded.
func (s *cseState) line(line string) ([]string, bool, error) {
	var found []productAssign
	err := eachMatch(productAssignPattern, line, func(m *regexp2.Match) {
		found = append(found, productAssign{
			start:  m.Index,
			end:    m.Index + m.Length,
			typ:    group(m, 1),
			target: group(m, 2),
			expr:   group(m, 3),
		})
	})
	if err != nil {
		return nil, false, err
	}

	src := []rune(line)
	indent := indentOf(line)
	var out []string
	last := 0
	for _, p := range found {
		between := string(src[last:p.start])
		if !atStatementStart(between) {
			continue
		}
		if piece := strings.TrimSpace(between); piece != "" {
			if err := s.observe(piece); err != nil {
				return nil, false, err
			}
			out = append(out, indent+piece)
		}
		for _, stmt := range s.emit(p) {
			out = append(out, indent+stmt)
		}
		last = p.end
	}

	if out == nil {
		return nil, false, s.observe(line)
	}
	if tail := strings.TrimSpace(string(src[last:])); tail != "" {
		if err := s.observe(tail); err != nil {
			return nil, false, err
		}
		out = append(out, indent+tail)
	}
	return out, true, nil
}

// emit returns the statements replacing one product assignment.
func (s *cseState) emit(p productAssign) []string {
	typ := p.typ
	if typ == "" {
		typ = "int"
	}

	var out []string
	temp, seen := s.temps[p.expr]
	if seen {
		s.reused++
	} else {
		temp = s.newTemp()
		s.temps[p.expr] = temp
		s.created++
		out = append(out, fmt.Sprintf("%s %s = %s;", typ, temp, p.expr))
	}

	if p.typ != "" || !s.declared[p.target] {
		out = append(out, fmt.Sprintf("%s %s = %s;", typ, p.target, temp))
		s.declared[p.target] = true
	} else {
		out = append(out, fmt.Sprintf("%s = %s;", p.target, temp))
	}
	s.retire(p.target)
	return out
}

// newTemp returns the next temporary name not already used in the input.
func (s *cseState) newTemp() string {
	for {
		name := fmt.Sprintf("%s%d", TempPrefix, s.next)
		s.next++
		if !containsIdent(s.code, name) {
			return name
		}
	}
}

// observe records declarations and retires temporaries whose operands are
// written by text that is kept as is.
func (s *cseState) observe(text string) error {
	if err := eachMatch(anyDeclPattern, text, func(m *regexp2.Match) {
		s.declared[group(m, 2)] = true
	}); err != nil {
		return err
	}
	return eachMatch(writePattern, text, func(m *regexp2.Match) {
		for n := 1; n <= 3; n++ {
			if name := group(m, n); name != "" {
				s.retire(name)
			}
		}
	})
}

// retire forgets every temporary whose expression reads name.
func (s *cseState) retire(name string) {
	for expr := range s.temps {
		if containsIdent(expr, name) {
			delete(s.temps, expr)
		}
	}
}

// atStatementStart reports whether text preceding a match leaves the match
// at the start of a statement.
func atStatementStart(before string) bool {
	t := strings.TrimSpace(before)
	if t == "" {
		return true
	}
	switch t[len(t)-1] {
	case ';', '{', '}':
		return true
	}
	return false
}
