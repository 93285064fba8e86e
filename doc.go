// Package optz provides a heuristic source-to-source optimizer for C and C++ snippets.
//
// # Overview
//
// optz accepts a source snippet as plain text and runs it through an ordered
// list of rewrite passes. Each pass recognizes one narrow textual idiom with
// regular expressions and rewrites it into a supposedly cheaper equivalent.
// The result carries the rewritten text, a static memory estimate before and
// after, per-pass timings, and one insight per pass that changed the text.
//
// The passes do not parse C. They are heuristics over text: anything outside
// the idiom a pass looks for is returned byte-identical.
//
// # Core Concepts
//
//   - Pass: The core interface with Transform(context.Context, string, Language) string
//   - Rule: A Pass built from a name, an insight, and a rewrite function
//   - Pipeline: Runs passes in order, records timings, insights, and diagnostics
//
// # Passes
//
// The default catalogue, in execution order:
//
//   - ConstantFolder: `a + b` of integer literals becomes the sum
//   - ArithmeticLoopOptimizer: the `sum += i` loop becomes its closed form
//   - DeadCodeEliminator: unreferenced primitive declarations are dropped
//   - MemoryAllocationOptimizer: small fixed heap arrays move to the stack
//   - FunctionInliner: one-parameter routines with short bodies are inlined
//   - LoopUnroller: counting loops of at most four iterations are expanded
//   - CommonSubexpressionEliminator: repeated products share a temporary
//   - CodeHoister: loop-invariant assignments move above the loop
//
// StrengthReducer is available but not part of the default catalogue.
//
// # Usage Example
//
//	p := optz.New().
//	    WithMaxInputBytes(256 << 10).
//	    WithBudget(2 * time.Second)
//	defer p.Close()
//
//	res, err := p.Optimize(ctx, "int a = 2 + 3;\nprintf(\"%d\", a);")
//	if err != nil {
//	    var optErr *optz.Error
//	    if errors.As(err, &optErr) && optErr.IsTimeout() {
//	        // budget exhausted
//	    }
//	    return err
//	}
//	fmt.Println(res.Code)     // int a = 5; ...
//	fmt.Println(res.Insights) // [Applied constant folding ...]
//
// Custom pipelines mix built-in passes with your own:
//
//	upper := optz.NewRule("upper", "Uppercased keywords.", func(_ context.Context, code string, _ optz.Language) string {
//	    return strings.ReplaceAll(code, "return", "RETURN")
//	})
//	p := optz.NewPipeline("custom", optz.ConstantFolder(), upper)
//
// # Concurrency
//
// A Pipeline is safe for concurrent use. Each Optimize call keeps its own
// diagnostics and run identifier, and OptimizeBatch fans a slice of inputs
// out over a bounded number of workers while keeping results in input order.
//
// # Observability
//
// Every pipeline carries a metricz registry, a tracez tracer, and hookz
// events tagged with the run identifier. See Pipeline for the keys.
package optz
