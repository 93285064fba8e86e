package optz

import (
	"context"
	"fmt"
)

// Rule is the concrete Pass type: a named rewrite with a fixed insight.
// It contains a descriptive name used as the timing label and a private
// function that performs the textual rewrite.
//
// The fn field is intentionally private so rules are only created through
// NewRule, which guarantees panic containment and the identity-on-no-match
// contract.
type Rule struct {
	fn      func(context.Context, string, Language) string
	name    Name
	insight string
}

// NewRule wraps a rewrite function as a Pass.
//
// Example:
//
//	upper := optz.NewRule("upper", "Uppercased everything.",
//	    func(_ context.Context, code string, _ optz.Language) string {
//	        return strings.ToUpper(code)
//	    })
func NewRule(name Name, insight string, fn func(context.Context, string, Language) string) Rule {
	return Rule{name: name, insight: insight, fn: fn}
}

// Transform implements Pass. A panicking rewrite yields the input unchanged.
func (r Rule) Transform(ctx context.Context, code string, lang Language) (result string) {
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if rec := recover(); rec != nil {
			result = code
			warnf(ctx, r.name, "rule panicked, output discarded: %s", sanitizePanic(rec))
		}
	}()
	return r.fn(ctx, code, lang)
}

// Name returns the stable name of the rule.
func (r Rule) Name() Name {
	return r.name
}

// Insight returns the description emitted when the rule changed the text.
func (r Rule) Insight() string {
	return r.insight
}

// sanitizePanic bounds the panic message so diagnostics stay readable.
func sanitizePanic(rec any) string {
	msg := fmt.Sprintf("%v", rec)
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}
