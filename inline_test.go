package optz

import (
	"context"
	"testing"
)

func TestFunctionInliner(t *testing.T) {
	ctx := context.Background()
	pass := FunctionInliner()

	t.Run("Inlines Return Expression And Removes Definition", func(t *testing.T) {
		in := "int square(int x) {\n    return x * x;\n}\n\nint main() {\n    int y = square(3);\n    return y;\n}"
		want := "\nint main() {\n    int y = 3 * 3;\n    return y;\n}"
		if got := pass.Transform(ctx, in, C); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("Folds Literal Addition", func(t *testing.T) {
		in := "int inc(int n) { return n + 1; }\nint z = inc(4);"
		if got := pass.Transform(ctx, in, C); got != "int z = 5;" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("Parenthesizes Inside Expressions", func(t *testing.T) {
		in := "int twice(int v) { return v + v; }\nint r = twice(a) * 2;"
		if got := pass.Transform(ctx, in, C); got != "int r = (a + a) * 2;" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("Parenthesizes Calls Ending An Expression", func(t *testing.T) {
		cases := []struct {
			in, want string
		}{
			{"int twice(int v) { return v + v; }\nint r = 2 * twice(a);", "int r = 2 * (a + a);"},
			{"int inc(int x) { return x + 1; }\nint y = 10 - inc(b);", "int y = 10 - (b + 1);"},
			{"int inc(int x) { return x + 1; }\nok = y == inc(b);", "ok = y == (b + 1);"},
			{"int inc(int x) { return x + 1; }\nint y = inc(b);", "int y = b + 1;"},
			{"int inc(int x) { return x + 1; }\ntotal *= inc(b);", "total *= b + 1;"},
			{"int inc(int x) { return x + 1; }\nint g() { return inc(b); }", "int g() { return b + 1; }"},
		}
		for _, tc := range cases {
			if got := pass.Transform(ctx, tc.in, C); got != tc.want {
				t.Errorf("%q: got %q, want %q", tc.in, got, tc.want)
			}
		}
	})

	t.Run("Body Without Return Used Verbatim", func(t *testing.T) {
		in := "int bump(int c) { c * 10; }\nbump(k);"
		if got := pass.Transform(ctx, in, C); got != "k * 10;" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("Substitutes On Identifier Boundaries", func(t *testing.T) {
		in := "int scale(int x) { return x * xs; }\nint q = scale(2);"
		if got := pass.Transform(ctx, in, C); got != "int q = 2 * xs;" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("Keeps Definition Still Referenced", func(t *testing.T) {
		in := "int sq(int x) { return x * x; }\nint a = sq(2);\nint (*fp)(int) = sq;"
		want := "int sq(int x) { return x * x; }\nint a = 2 * 2;\nint (*fp)(int) = sq;"
		if got := pass.Transform(ctx, in, C); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("Leaves Disqualified Routines", func(t *testing.T) {
		for _, in := range []string{
			"int f(int x) { while (x) x--; return x; }\nint a = f(3);",
			"int f(int x) { return f(x); }\nint a = f(1);",
			"int add(int a, int b) { return a + b; }\nint c = add(1, 2);",
			"int f(int x) {\n    x++;\n    x++;\n    x++;\n    return x;\n}\nint a = f(1);",
			"int sq(int x) { return x * x; }",
			"int sq(int x) { return x * x; }\nint a = obj.sq(2);",
		} {
			if got := pass.Transform(ctx, in, C); got != in {
				t.Errorf("expected unchanged:\n%s\ngot:\n%s", in, got)
			}
		}
	})

	t.Run("Name And Insight", func(t *testing.T) {
		if pass.Name() != InlineFunctionsName {
			t.Errorf("unexpected name %q", pass.Name())
		}
		if pass.Insight() != "Inlined small functions to reduce function call overhead." {
			t.Errorf("unexpected insight %q", pass.Insight())
		}
	})
}
