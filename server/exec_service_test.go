package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/to2/compiler"
)

const mathSource = `
pub struct Point(x: int, y: int) {
    x: int = x
    y: int = y
}

pub sync fn add(a: int, b: int = 10) -> int = a + b
pub sync fn norm(p: Point) -> int = p.x * p.x + p.y * p.y
pub sync fn first(xs: int[]) -> Option<int> = if(xs.is_empty()) None() else Some(xs[0])
pub fn later(n: int) -> int = n + 1
`

type execClient struct {
	t      *testing.T
	server *httptest.Server
}

func newExecClient(t *testing.T, sources ...compiler.Source) *execClient {
	t.Helper()
	ws := NewWorkspace(sources)
	if err := ws.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	srv := New(ws, WithTimeout(5*time.Second))
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hs.Close()
		srv.Stop()
	})
	return &execClient{t: t, server: hs}
}

func (c *execClient) call(procedure string, msg map[string]any) (*structpb.Struct, error) {
	c.t.Helper()
	req, err := structpb.NewStruct(msg)
	if err != nil {
		c.t.Fatalf("NewStruct: %v", err)
	}
	client := connect.NewClient[structpb.Struct, structpb.Struct](http.DefaultClient, c.server.URL+procedure)
	res, err := client.CallUnary(context.Background(), connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *execClient) mustCall(procedure string, msg map[string]any) map[string]any {
	c.t.Helper()
	res, err := c.call(procedure, msg)
	if err != nil {
		c.t.Fatalf("%s: %v", procedure, err)
	}
	return res.AsMap()
}

func TestInvokeWorkspace(t *testing.T) {
	c := newExecClient(t, compiler.Source{Module: "math", Content: mathSource})

	tests := []struct {
		function string
		args     []any
		result   any
		display  string
	}{
		{"add", []any{1.0, 2.0}, 3.0, "3"},
		{"add", []any{1.0}, 11.0, "11"},
		{"norm", []any{map[string]any{"x": 3.0, "y": 4.0}}, 25.0, "25"},
		{"first", []any{[]any{}}, nil, "None"},
		{"later", []any{41.0}, 42.0, "42"},
	}
	for _, tt := range tests {
		res := c.mustCall(InvokeProcedure, map[string]any{
			"module":   "math",
			"function": tt.function,
			"args":     tt.args,
		})
		if res["result"] != tt.result {
			t.Errorf("%s%v result = %v, want %v", tt.function, tt.args, res["result"], tt.result)
		}
		if tt.function != "first" && res["display"] != tt.display {
			t.Errorf("%s%v display = %v, want %v", tt.function, tt.args, res["display"], tt.display)
		}
	}
}

func TestInvokeErrors(t *testing.T) {
	c := newExecClient(t, compiler.Source{Module: "math", Content: mathSource})

	tests := []struct {
		name string
		msg  map[string]any
		code connect.Code
	}{
		{"unknown module", map[string]any{"module": "nope", "function": "add"}, connect.CodeNotFound},
		{"unknown function", map[string]any{"module": "math", "function": "nope"}, connect.CodeNotFound},
		{"bad argument", map[string]any{"module": "math", "function": "add", "args": []any{"x"}}, connect.CodeInvalidArgument},
		{"too many arguments", map[string]any{"module": "math", "function": "add", "args": []any{1.0, 2.0, 3.0}}, connect.CodeInvalidArgument},
		{"missing argument", map[string]any{"module": "math", "function": "add"}, connect.CodeAborted},
		{"unknown session", map[string]any{"session": "missing", "module": "math", "function": "add"}, connect.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.call(InvokeProcedure, tt.msg)
			if connect.CodeOf(err) != tt.code {
				t.Errorf("code = %v (%v), want %v", connect.CodeOf(err), err, tt.code)
			}
		})
	}
}

func TestCompileSession(t *testing.T) {
	c := newExecClient(t, compiler.Source{Module: "math", Content: mathSource})

	res := c.mustCall(CompileProcedure, map[string]any{
		"name":      "scratch",
		"workspace": true,
		"sources": []any{map[string]any{
			"module":  "scratch",
			"content": "use math\npub sync fn twice(n: int) -> int = math::add(n, n)\n",
		}},
	})
	session, _ := res["session"].(string)
	if session == "" {
		t.Fatalf("no session in %v", res)
	}
	if diags := res["diagnostics"].([]any); len(diags) != 0 {
		t.Errorf("diagnostics = %v", diags)
	}

	out := c.mustCall(InvokeProcedure, map[string]any{
		"session":  session,
		"module":   "scratch",
		"function": "twice",
		"args":     []any{21.0},
	})
	if out["result"] != 42.0 {
		t.Errorf("twice(21) = %v", out["result"])
	}

	closed := c.mustCall(CloseProcedure, map[string]any{"session": session})
	if closed["closed"] != true {
		t.Errorf("Close = %v", closed)
	}
	_, err := c.call(InvokeProcedure, map[string]any{"session": session, "module": "scratch", "function": "twice"})
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("invoke on closed session: %v", err)
	}
}

func TestCompileReportsDiagnostics(t *testing.T) {
	c := newExecClient(t)

	res := c.mustCall(CompileProcedure, map[string]any{
		"sources": []any{map[string]any{
			"module":  "broken",
			"content": "pub sync fn f() -> int = \"x\"\n",
		}},
	})
	if _, ok := res["session"]; ok {
		t.Error("a session was created for sources with errors")
	}
	diags := res["diagnostics"].([]any)
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v", diags)
	}
	d := diags[0].(map[string]any)
	if d["module"] != "broken" || d["kind"] != compiler.IncompatibleTypes.String() || d["line"] != 1.0 {
		t.Errorf("diagnostic = %v", d)
	}

	_, err := c.call(CompileProcedure, map[string]any{})
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("empty compile: %v", err)
	}
}

func TestDescribe(t *testing.T) {
	c := newExecClient(t, compiler.Source{Module: "math", Content: mathSource})

	res := c.mustCall(DescribeProcedure, map[string]any{"module": "math"})
	modules := res["modules"].([]any)
	if len(modules) != 1 {
		t.Fatalf("modules = %v", modules)
	}
	m := modules[0].(map[string]any)
	if m["name"] != "math" {
		t.Errorf("name = %v", m["name"])
	}
	if fns := m["functions"].([]any); len(fns) != 4 {
		t.Errorf("functions = %v", fns)
	}

	_, err := c.call(DescribeProcedure, map[string]any{"module": "nope"})
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("describe unknown module: %v", err)
	}
}

func TestWorkspaceThatDoesNotCompile(t *testing.T) {
	c := newExecClient(t, compiler.Source{Module: "bad", Content: "pub sync fn f() -> int = \"x\"\n"})
	_, err := c.call(InvokeProcedure, map[string]any{"module": "bad", "function": "f"})
	if connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Errorf("code = %v, want FailedPrecondition", connect.CodeOf(err))
	}
}
