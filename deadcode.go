package optz

import "context"

// declLinePattern matches a line holding exactly one primitive declaration,
// with or without initializer. Group 1 is the variable name.
var declLinePattern = mustCompile(`^\s*(?:` + primitiveTypes + `)\s+(\w+)\s*(?:=\s*[^;]+)?;\s*$`)

// DeadCodeEliminator drops declaration lines of primitive variables that are
// never referenced on any other line.
//
// Usage is detected on identifier boundaries, so `count` does not keep
// `counter` alive. Only lines that are a single declaration statement are
// candidates; a `for (int i = 0; ...)` header is never removed. The sweep
// runs once: removing `int b = a;` does not make `a` dead in the same call.
// Initializers are dropped along with their line, side effects included.
func DeadCodeEliminator() Pass {
	return NewRule(DeadCodeName,
		"Eliminated variables declared but not used elsewhere (dead code).",
		func(ctx context.Context, code string, _ Language) string {
			lines := splitLines(code)

			declared := make(map[string]map[int]bool)
			var order []string
			for i, line := range lines {
				m, err := declLinePattern.FindStringMatch(line)
				if err != nil {
					warnf(ctx, DeadCodeName, "pattern gave up on line %d: %v", i+1, err)
					return code
				}
				if m == nil {
					continue
				}
				name := group(m, 1)
				if declared[name] == nil {
					declared[name] = make(map[int]bool)
					order = append(order, name)
				}
				declared[name][i] = true
			}

			dead := make(map[int]bool)
			for _, name := range order {
				if usedOutside(lines, name, declared[name]) {
					continue
				}
				for i := range declared[name] {
					dead[i] = true
				}
				infof(ctx, DeadCodeName, "removed unused variable %q", name)
			}
			if len(dead) == 0 {
				return code
			}

			kept := make([]string, 0, len(lines)-len(dead))
			for i, line := range lines {
				if !dead[i] {
					kept = append(kept, line)
				}
			}
			return joinLines(kept)
		})
}

// usedOutside reports whether name appears on any line not in skip.
func usedOutside(lines []string, name string, skip map[int]bool) bool {
	for i, line := range lines {
		if skip[i] {
			continue
		}
		if containsIdent(line, name) {
			return true
		}
	}
	return false
}
