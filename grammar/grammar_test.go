package grammar

import (
	"testing"

	"github.com/chazu/to2/ast"
)

func TestExpressionPrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"12 * 45 + 67 / 89", "((12 * 45) + (67 / 89))"},
		{"a ** b * c", "((a ** b) * c)"},
		{"a * b ** c", "(a * (b ** c))"},
		{"a + b & c", "((a + b) & c)"},
		{"a & b + c", "(a & (b + c))"},
		{"a & b .. c", "((a & b)..c)"},
		{"0 ... n - 1", "(0...(n - 1))"},
		{"a .. b == c", "((a..b) == c)"},
		{"a == b && c < d", "((a == b) && (c < d))"},
		{"a || b && c", "((a || b) && c)"},
		{"a = b || c", "(a = (b || c))"},
		{"a = b = c", "(a = (b = c))"},
		{"a += 2 * 3", "(a += (2 * 3))"},
		{"a - b - c", "((a - b) - c)"},
		{"-a ** 2", "((-a) ** 2)"},
		{"!a && b", "((!a) && b)"},
		{"a %\n  b", "(a % b)"},
	}
	for _, tc := range tests {
		e, err := ParseExpression(tc.input)
		if err != nil {
			t.Errorf("ParseExpression(%q) error: %v", tc.input, err)
			continue
		}
		if got := ast.Format(e); got != tc.want {
			t.Errorf("ParseExpression(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestExpressionForms(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"42", "42"},
		{"1_000", "1000"},
		{"3.25", "3.25"},
		{"1.5e3", "1500"},
		{"1.to_float", "1.to_float"},
		{`"a\tb"`, `"a\tb"`},
		{`$"x = {x + 1}!"`, `$"x = {(x + 1)}!"`},
		{"true", "true"},
		{"()", "()"},
		{"(1, \"x\")", `(1, "x")`},
		{"(a: 1, b: 2.5)", "(a: 1, b: 2.5)"},
		{"(1)", "1"},
		{"[1, 2, 3,]", "[1, 2, 3]"},
		{"m::f(1, 2)", "m::f(1, 2)"},
		{"core::math::PI", "core::math::PI"},
		{"a.b(1)[2]?", "a.b(1)[2]?"},
		{"items\n  .map(fn(x) -> x * 2)\n  .length", "items.map(fn(x) -> (x * 2)).length"},
		{"t & (done: true)", "(t & (done: true))"},
		{"fn(a, b: int) -> a + b", "fn(a, b) -> (a + b)"},
		{"if(a < b) a else b", "if (a < b) a else b"},
		{"if (Some(v) = opt) v", "if Some(v) = opt v"},
		{"while(i < 10) { i += 1 }", "while (i < 10) { (i += 1) }"},
		{"for(x in 0..3) { sum += x }", "for x in (0..3) { (sum += x) }"},
		{"{ let x = 1\n x + 2 }", "{ let x = 1; (x + 2) }"},
		{"{ let (a, _) = t; const (x @ f, y) = r }", "{ let (a, _) = t; const (x @ f, y @ y) = r }"},
		{"{ return }", "{ return }"},
		{"{ if(done) break\n continue }", "{ if done break; continue }"},
	}
	for _, tc := range tests {
		e, err := ParseExpression(tc.input)
		if err != nil {
			t.Errorf("ParseExpression(%q) error: %v", tc.input, err)
			continue
		}
		if got := ast.Format(e); got != tc.want {
			t.Errorf("ParseExpression(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestRecordUpdateNode(t *testing.T) {
	e, err := ParseExpression("tuple1 & (done: true)")
	if err != nil {
		t.Fatal(err)
	}
	update, ok := e.(*ast.RecordUpdate)
	if !ok {
		t.Fatalf("got %T, want *ast.RecordUpdate", e)
	}
	if len(update.Fields) != 1 || update.Fields[0].Name != "done" {
		t.Errorf("fields = %+v", update.Fields)
	}
}

func TestExpressionErrors(t *testing.T) {
	tests := []string{
		"1 +",
		"(a: 1",
		"f(1, 2",
		`"unterminated`,
		"a\n+ b",
		"{ let = 1 }",
	}
	for _, input := range tests {
		if _, err := ParseExpression(input); err == nil {
			t.Errorf("ParseExpression(%q) should fail", input)
		}
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"int", "int"},
		{"int[][]", "int[][]"},
		{"Option<string>", "Option<string>"},
		{"Result<int, string>", "Result<int, string>"},
		{"(int, string)", "(int, string)"},
		{"(a: int, b: float)", "(a : int, b : float)"},
		{"()", "()"},
		{"sync fn(int, int) -> bool", "sync fn(int, int) -> bool"},
		{"fn() -> Unit", "fn() -> Unit"},
		{"core::background::Task<int>", "core::background::Task<int>"},
	}
	for _, tc := range tests {
		ref, err := ParseType(tc.input)
		if err != nil {
			t.Errorf("ParseType(%q) error: %v", tc.input, err)
			continue
		}
		if got := ref.String(); got != tc.want {
			t.Errorf("ParseType(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

const sampleModule = `use { Some, None } from core::prelude
use core::math as m

/// Adds a step.
/// Second line.
pub sync fn inc(x: int, by: int = 1) -> int = x + by

pub struct Point(x: float, y: float) {
    x: float = x
    y: float = y
    /// Display label
    label: string = "p"
}

impl Point {
    /// Squared length.
    sync fn len2(self) -> float = self.x * self.x + self.y * self.y

    fn wait(self, ms: int) -> Unit = { }
}

// plain comment
pub const LIMIT: int = 10
type Pair = (int, string)

fn main() -> Unit = {
    let p = Point(1.0, 2.0)
    const total = inc(LIMIT)
}
`

func TestParseModule(t *testing.T) {
	m, errs := ParseModule("sample", sampleModule)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(m.Items) != 8 {
		t.Fatalf("got %d items, want 8", len(m.Items))
	}

	names, ok := m.Items[0].(*ast.UseNames)
	if !ok || len(names.Names) != 2 || names.Module != "core::prelude" || names.All {
		t.Errorf("item 0 = %#v", m.Items[0])
	}
	alias, ok := m.Items[1].(*ast.UseModule)
	if !ok || alias.Module != "core::math" || alias.Alias != "m" {
		t.Errorf("item 1 = %#v", m.Items[1])
	}

	fn, ok := m.Items[2].(*ast.FunctionDecl)
	if !ok {
		t.Fatalf("item 2 = %T", m.Items[2])
	}
	if !fn.Exported || fn.Async || fn.Name != "inc" || fn.Description != "Adds a step.\nSecond line." {
		t.Errorf("inc = %+v", fn)
	}
	if len(fn.Params) != 2 || fn.Params[0].Default != nil || fn.Params[1].Default == nil {
		t.Errorf("inc params = %+v", fn.Params)
	}
	if fn.ReturnType.String() != "int" {
		t.Errorf("inc return type = %s", fn.ReturnType)
	}

	st, ok := m.Items[3].(*ast.StructDecl)
	if !ok {
		t.Fatalf("item 3 = %T", m.Items[3])
	}
	if !st.HasCtor || len(st.CtorParams) != 2 || len(st.Fields) != 3 {
		t.Errorf("struct = %+v", st)
	}
	if st.Fields[2].Description != "Display label" {
		t.Errorf("field description = %q", st.Fields[2].Description)
	}

	impl, ok := m.Items[4].(*ast.ImplDecl)
	if !ok || impl.Name != "Point" || len(impl.Methods) != 2 {
		t.Fatalf("item 4 = %#v", m.Items[4])
	}
	if impl.Methods[0].Async || !impl.Methods[1].Async || len(impl.Methods[1].Params) != 1 {
		t.Errorf("methods = %+v", impl.Methods)
	}
	if impl.Methods[0].Description != "Squared length." {
		t.Errorf("method description = %q", impl.Methods[0].Description)
	}

	if c, ok := m.Items[5].(*ast.ConstDecl); !ok || !c.Exported || c.Name != "LIMIT" {
		t.Errorf("item 5 = %#v", m.Items[5])
	}
	if a, ok := m.Items[6].(*ast.TypeAlias); !ok || a.Exported || a.Type.String() != "(int, string)" {
		t.Errorf("item 6 = %#v", m.Items[6])
	}
	main, ok := m.Items[7].(*ast.FunctionDecl)
	if !ok || !main.Async || main.Exported {
		t.Fatalf("item 7 = %#v", m.Items[7])
	}
	body, ok := main.Body.(*ast.Block)
	if !ok || len(body.Items) != 2 {
		t.Fatalf("main body = %#v", main.Body)
	}
}

func TestParseModuleRecovery(t *testing.T) {
	source := `pub sync fn a() -> int = 1
this is not valid
pub sync fn b() -> int = 2
pub const c: int = 3
`
	m, errs := ParseModule("broken", source)
	if len(m.Items) != 4 {
		t.Fatalf("got %d items, want 4", len(m.Items))
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	bad, ok := m.Items[1].(*ast.ErrorItem)
	if !ok {
		t.Fatalf("item 1 = %T, want *ast.ErrorItem", m.Items[1])
	}
	if bad.Text != "this is not valid" {
		t.Errorf("error text = %q", bad.Text)
	}
	if errs[0].Range.Start.Line != 2 || errs[0].Range.Start.Column != 1 {
		t.Errorf("error position = %v", errs[0].Range.Start)
	}
	if _, ok := m.Items[3].(*ast.ConstDecl); !ok {
		t.Errorf("item 3 = %T, want *ast.ConstDecl", m.Items[3])
	}
}

func TestParseModuleRecoveryKeepsNextLine(t *testing.T) {
	tests := []struct {
		name string
		bad  string
	}{
		{"dangling equals", "pub const x: int ="},
		{"unclosed parameters", "pub sync fn broken("},
		{"missing body", "pub sync fn nobody() -> int"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := "pub sync fn a() -> int = 1\n" + tt.bad + "\npub sync fn b() -> int = 2\npub const c: int = 3\n"
			m, errs := ParseModule("broken", source)
			if len(m.Items) != 4 {
				t.Fatalf("got %d items, want 4", len(m.Items))
			}
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1", len(errs))
			}
			bad, ok := m.Items[1].(*ast.ErrorItem)
			if !ok || bad.Text != tt.bad {
				t.Errorf("item 1 = %#v", m.Items[1])
			}
			if fn, ok := m.Items[2].(*ast.FunctionDecl); !ok || fn.Name != "b" {
				t.Errorf("item 2 = %#v", m.Items[2])
			}
		})
	}
}

func TestParseUseWithoutAlias(t *testing.T) {
	m, errs := ParseModule("app", "use core::task\nuse geo::shapes as g\npub sync fn f() -> int = 1\n")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(m.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(m.Items))
	}
	plain, ok := m.Items[0].(*ast.UseModule)
	if !ok || plain.Module != "core::task" || plain.Alias != "" {
		t.Errorf("item 0 = %#v", m.Items[0])
	}
	aliased, ok := m.Items[1].(*ast.UseModule)
	if !ok || aliased.Module != "geo::shapes" || aliased.Alias != "g" {
		t.Errorf("item 1 = %#v", m.Items[1])
	}
}

func TestParseModuleRecoveryInsideBlock(t *testing.T) {
	source := `pub sync fn f() -> int = {
    let x = 1
    let = oops
    x
}

pub sync fn g() -> int = 2
`
	m, errs := ParseModule("broken", source)
	if len(m.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(m.Items))
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if errs[0].Text != "let = oops" || errs[0].Range.Start.Line != 3 {
		t.Errorf("error = %+v", errs[0])
	}
	body := m.Items[0].(*ast.FunctionDecl).Body.(*ast.Block)
	if len(body.Items) != 3 {
		t.Errorf("body has %d items, want 3", len(body.Items))
	}
}

func TestParseModuleEmpty(t *testing.T) {
	m, errs := ParseModule("empty", "\n// nothing here\n\n")
	if len(m.Items) != 0 || len(errs) != 0 {
		t.Errorf("items = %d, errors = %d", len(m.Items), len(errs))
	}
}
