package optz

import "context"

// Pass defines the contract every rewrite stage implements.
//
// A Pass is a pure function of its input text and language. It never fails:
// input that does not contain the idiom the pass recognizes is returned
// byte-identical. The orchestrator compares input and output to decide whether
// the pass contributes its Insight to the result.
//
// Key design principles:
//   - No shared state between passes or between calls
//   - Stable Name used as the timing label
//   - Insight is fixed text, emitted only when Transform changed the text
//   - Context carries cancellation and the per-call diagnostic recorder
type Pass interface {
	Transform(ctx context.Context, code string, lang Language) string
	Name() Name
	Insight() string
}

// Name is a type alias for pass and pipeline names.
// Using this type encourages storing names as constants rather than
// using inline strings throughout your code.
type Name = string

// Pass names, in default execution order.
const (
	FoldConstantsName       Name = "foldConstants"
	ArithmeticLoopsName     Name = "optimizeArithmeticLoops"
	DeadCodeName            Name = "eliminateDeadCode"
	MemoryAllocationName    Name = "optimizeMemoryAllocation"
	InlineFunctionsName     Name = "inlineFunctions"
	UnrollLoopsName         Name = "unrollLoops"
	CommonSubexpressionName Name = "eliminateCommonSubexpressions"
	HoistCodeName           Name = "hoistCode"
	StrengthReductionName   Name = "applyStrengthReduction"
)

// DefaultPasses returns the fixed catalogue in execution order.
//
// The order is part of the contract. Folding runs before loop recognition,
// dead-code removal runs before allocation and inlining, and unrolling runs
// before common subexpression elimination so repeated per-iteration
// expressions become visible to it. Reordering changes which idioms later
// passes can still recognize.
func DefaultPasses() []Pass {
	return []Pass{
		ConstantFolder(),
		ArithmeticLoopOptimizer(),
		DeadCodeEliminator(),
		MemoryAllocationOptimizer(),
		FunctionInliner(),
		LoopUnroller(),
		CommonSubexpressionEliminator(),
		CodeHoister(),
	}
}
