package compiler

import (
	"errors"
	"slices"
	"testing"
	"time"
)

// kinds compiles the sources and returns the kinds of the reported errors.
func kinds(t *testing.T, sources ...Source) []ErrorKind {
	t.Helper()
	r, err := NewDefaultRegistry()
	if err != nil {
		t.Fatalf("NewDefaultRegistry: %v", err)
	}
	err = r.AddSources(sources)
	if err == nil {
		return nil
	}
	var ce *CompilationErrors
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompilationErrors, got %T: %v", err, err)
	}
	return ce.Kinds()
}

func TestStructuralErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   ErrorKind
	}{
		{"return type", `sync fn f() -> int = "x"`, IncompatibleTypes},
		{"argument type", `sync fn g(x: int) -> int = x
sync fn f() -> int = g("x")`, IncompatibleTypes},
		{"unknown function", `sync fn f() -> int = nope(1)`, NoSuchFunction},
		{"unknown variable", `sync fn f() -> int = y + 1`, NoSuchVariable},
		{"unknown field", `sync fn f() -> int = (a: 1).b`, NoSuchField},
		{"unknown method", `sync fn f() -> int = "s".frobnicate()`, NoSuchMethod},
		{"unknown type", `sync fn f(x: Nope) -> int = 1`, NoSuchType},
		{"duplicate function", `sync fn f() -> int = 1
sync fn f() -> int = 2`, DuplicateFunctionName},
		{"duplicate variable", `sync fn f() -> int = {
    let a = 1
    let a = 2
    a
}`, DuplicateVariableName},
		{"assign const", `sync fn f() -> int = {
    const a = 1
    a = 2
    a
}`, InvalidAssignment},
		{"assign capture", `sync fn f() -> int = {
    let a = 1
    let g = fn(x: int) -> { a = x }
    a
}`, InvalidAssignment},
		{"break outside loop", `sync fn f() -> Unit = { break }`, InvalidScope},
		{"unwrap int", `sync fn f(x: int) -> Option<int> = Some(x?)`, InvalidOperator},
		{"unwrap in plain result", `sync fn f(o: Option<int>) -> int = o? + 1`, InvalidOperator},
		{"add bool", `sync fn f() -> int = 1 + true`, InvalidOperator},
		{"iterate int", `sync fn f() -> Unit = for(x in 5) { }`, InvalidOperator},
		{"missing export", `use { nope } from core::math
sync fn f() -> int = 1`, NoSuchExport},
		{"missing module", `use { x } from no::such
sync fn f() -> int = 1`, NoSuchModule},
		{"cyclic alias", `type A = B
type B = A`, CyclicDefinition},
		{"cyclic constant", `const A = B + 1
const B = A + 1`, CyclicDefinition},
		{"default order", `sync fn f(a: int = 1, b: int) -> int = a + b`, ArgumentMismatch},
		{"extra argument", `sync fn g(x: int) -> int = x
sync fn f() -> int = g(1, 2)`, ArgumentMismatch},
		{"unresolved generic", `sync fn f() -> Unit = {
    let x = None()
}`, UnresolvedGeneric},
		{"tuple pattern arity", `sync fn f() -> int = {
    let (a, b, c) = (1, 2)
    a
}`, InvalidPattern},
		{"async from sync", `fn slow() -> int = 1
sync fn f() -> int = slow()`, InvalidScope},
		{"parse error", `sync fn f( -> int = 1`, ParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kinds(t, src("bad", tt.source))
			if !slices.Contains(got, tt.want) {
				t.Errorf("errors %v do not include %v", got, tt.want)
			}
		})
	}
}

func TestErrorsAreCollectedAcrossModules(t *testing.T) {
	got := kinds(t,
		src("one", `sync fn f() -> int = "x"`),
		src("two", `sync fn g() -> int = missing`),
	)
	want := []ErrorKind{IncompatibleTypes, NoSuchVariable}
	for _, k := range want {
		if !slices.Contains(got, k) {
			t.Errorf("errors %v do not include %v", got, k)
		}
	}
}

func TestFailedBatchRegistersNothing(t *testing.T) {
	r := build(t)
	err := r.AddSources([]Source{
		src("good", `pub sync fn ok() -> int = 1`),
		src("bad", `pub sync fn broken() -> int = "x"`),
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if r.Module("good") != nil || r.Module("bad") != nil {
		t.Error("modules of a failed batch were registered")
	}

	// The names stay free for a later batch.
	if err := r.AddSources([]Source{src("good", `pub sync fn ok() -> int = 1`)}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	checkCalls(t, r, "good", []call{{"ok", nil, int64(1)}})
}

func TestDuplicateModuleNames(t *testing.T) {
	got := kinds(t, src("core::math", `pub sync fn f() -> int = 1`))
	if !slices.Contains(got, DuplicateModuleName) {
		t.Errorf("errors %v do not include DuplicateModuleName", got)
	}

	got = kinds(t, src("twice", `pub sync fn f() -> int = 1`), src("twice", `pub sync fn g() -> int = 1`))
	if !slices.Contains(got, DuplicateModuleName) {
		t.Errorf("errors %v do not include DuplicateModuleName", got)
	}
}

func TestConstantEvaluationTimeout(t *testing.T) {
	saved := ConstantTimeout
	ConstantTimeout = 20 * time.Millisecond
	t.Cleanup(func() { ConstantTimeout = saved })

	got := kinds(t, src("spin", `
sync fn forever() -> int = {
    while(true) { }
    1
}

pub const STUCK: int = forever()
`))
	if !slices.Contains(got, ConstantEvaluation) {
		t.Errorf("errors %v do not include ConstantEvaluation", got)
	}
}

func TestErrorPositions(t *testing.T) {
	r := build(t)
	err := r.AddSources([]Source{src("pos", "sync fn f() -> int = 1\nsync fn g() -> int = nope")})
	var ce *CompilationErrors
	if !errors.As(err, &ce) || len(ce.Errors) != 1 {
		t.Fatalf("expected one compilation error, got %v", err)
	}
	e := ce.Errors[0]
	if e.Module != "pos" || e.Kind != NoSuchVariable {
		t.Errorf("error = %+v", e)
	}
	if e.Start.Line != 2 {
		t.Errorf("error line = %d, want 2", e.Start.Line)
	}
}
