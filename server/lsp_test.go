package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/to2/compiler"
	"github.com/chazu/to2/manifest"
)

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		text string
		line uint32
		col  uint32
		want string
	}{
		{"let x = pri", 0, 11, "pri"},
		{"a\nmath::ad", 1, 9, "math::ad"},
		{"foo(bar", 0, 7, "bar"},
		{"x + ", 0, 4, ""},
		{"short", 5, 0, ""},
	}
	for _, tt := range tests {
		got := extractPrefix(tt.text, protocol.Position{Line: tt.line, Character: tt.col})
		if got != tt.want {
			t.Errorf("extractPrefix(%q, %d:%d) = %q, want %q", tt.text, tt.line, tt.col, got, tt.want)
		}
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		text string
		col  uint32
		want string
	}{
		{"geo::area(1, 2)", 2, "geo::area"},
		{"geo::area(1, 2)", 7, "geo::area"},
		{"let total = 1", 6, "total"},
		{"a + b", 2, ""},
	}
	for _, tt := range tests {
		got := extractWord(tt.text, protocol.Position{Character: tt.col})
		if got != tt.want {
			t.Errorf("extractWord(%q, %d) = %q, want %q", tt.text, tt.col, got, tt.want)
		}
	}
}

func TestModuleFor(t *testing.T) {
	s := &LspServer{roots: []manifest.SourceRoot{
		{Dir: "/deps/geo/src", Prefix: "geo"},
		{Dir: "/proj/src"},
	}}
	tests := []struct {
		uri  protocol.DocumentUri
		want string
	}{
		{"file:///proj/src/app.to2", "app"},
		{"file:///proj/src/util/strings.to2", "util::strings"},
		{"file:///deps/geo/src/shapes.to2", "geo::shapes"},
		{"file:///tmp/scratch.to2", "scratch"},
	}
	for _, tt := range tests {
		if got := s.moduleFor(tt.uri); got != tt.want {
			t.Errorf("moduleFor(%s) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func lspRegistry(t *testing.T) *compiler.Registry {
	t.Helper()
	r, errs, err := Build([]compiler.Source{
		{Module: "geo::shapes", Content: `
pub struct Rect(w: int, h: int) {
    w: int = w
    h: int = h
}

pub const UNIT: int = 1

/// Area of a w by h rectangle.
pub sync fn area(w: int, h: int) -> int = w * h
pub sync fn perimeter(w: int, h: int) -> int = 2 * (w + h)
`},
		{Module: "app", Content: "use geo::shapes\npub sync fn main() -> int = shapes::area(2, 3)\n"},
	})
	if err != nil || len(errs) != 0 {
		t.Fatalf("Build: %v %v", errs, err)
	}
	return r
}

func labels(items []protocol.CompletionItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Label
	}
	return out
}

func TestComplete(t *testing.T) {
	r := lspRegistry(t)

	got := labels(complete(r, "app", "geo::shapes::a"))
	if len(got) != 1 || got[0] != "area" {
		t.Errorf("qualified completion = %v", got)
	}

	got = labels(complete(r, "app", "geo::"))
	if len(got) != 1 || got[0] != "shapes" {
		t.Errorf("module completion = %v", got)
	}

	got = labels(complete(r, "app", "ma"))
	found := false
	for _, l := range got {
		if l == "main" {
			found = true
		}
	}
	if !found {
		t.Errorf("completion of own function missing: %v", got)
	}

	got = labels(complete(nil, "app", "whi"))
	if len(got) != 1 || got[0] != "while" {
		t.Errorf("keyword completion = %v", got)
	}
}

func TestHover(t *testing.T) {
	r := lspRegistry(t)

	h := hover(r, "app", "geo::shapes::area")
	if h == nil {
		t.Fatal("no hover for a qualified function")
	}
	text := h.Contents.(protocol.MarkupContent).Value
	if !strings.Contains(text, "area") || !strings.Contains(text, "int") {
		t.Errorf("hover = %q", text)
	}

	h = hover(r, "geo::shapes", "Rect")
	if h == nil || !strings.Contains(h.Contents.(protocol.MarkupContent).Value, "w: int") {
		t.Errorf("type hover = %v", h)
	}

	h = hover(r, "geo::shapes", "UNIT")
	if h == nil || !strings.Contains(h.Contents.(protocol.MarkupContent).Value, "const UNIT: int") {
		t.Errorf("constant hover = %v", h)
	}

	if hover(r, "app", "nothing") != nil {
		t.Error("hover for an unknown name")
	}
}

func TestDiagnosticPositions(t *testing.T) {
	e := &compiler.StructuralError{Kind: compiler.NoSuchVariable, Message: "no variable x"}
	e.Start.Line, e.Start.Column = 3, 5
	e.End.Line, e.End.Column = 3, 6
	d := diagnostic(e)
	if d.Range.Start.Line != 2 || d.Range.Start.Character != 4 || d.Range.End.Character != 5 {
		t.Errorf("range = %+v", d.Range)
	}
	if d.Message != "no variable x" {
		t.Errorf("message = %q", d.Message)
	}
}
