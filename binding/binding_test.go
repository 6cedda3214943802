package binding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/chazu/to2/runtime"
	"github.com/chazu/to2/types"
	"github.com/chazu/to2/vm"
)

type counter struct {
	n int
}

var testModule = &Module{
	Name:        "test::bind",
	Description: "Binding fixtures",
	Types: []Type{
		{
			Name: "Counter",
			Zero: (*counter)(nil),
			Fields: []Field{
				{Name: "value", Get: func(c *counter) int { return c.n }},
			},
			Methods: []Method{
				{
					Name:   "add",
					Fn:     func(c *counter, delta int) *counter { return &counter{n: c.n + delta} },
					Params: []Param{{Name: "delta", Default: 1}},
				},
			},
		},
	},
	Funcs: []Func{
		{
			Name:   "scale",
			Fn:     func(x, factor float64) float64 { return x * factor },
			Params: []Param{{Name: "x"}, {Name: "factor", Default: 2.0}},
		},
		{
			Name: "later",
			Fn: func(x int) runtime.Future[int] {
				return runtime.Map(runtime.Yield(), func(runtime.Unit) int { return x * 2 })
			},
			Params: []Param{{Name: "x", Default: 21}},
		},
		{
			Name: "new_counter",
			Fn:   func() *counter { return &counter{} },
		},
		{
			Name:       "first",
			TypeParams: []string{"T"},
			Fn: func(items []T) Option[T] {
				if len(items) == 0 {
					return None[T]()
				}
				return Some(items[0])
			},
		},
		{
			Name: "apply",
			Fn:   func(_ *runtime.Context, f func(int) int, x int) int { return f(x) },
		},
		{
			Name: "try_apply",
			Fn: func(ctx *runtime.Context, f func(*runtime.Context, int) (int, error), x int) (int, error) {
				v, err := f(ctx.Background(), x)
				if err != nil {
					return 0, fmt.Errorf("callback: %w", err)
				}
				return v, nil
			},
		},
		{
			Name: "check",
			Fn: func(x int) (Result[int, string], error) {
				if x < 0 {
					return Result[int, string]{}, errors.New("negative input")
				}
				if x == 0 {
					return Fail[int]("zero"), nil
				}
				return Ok[int, string](x), nil
			},
		},
	},
	Constants: []Constant{
		{Name: "ANSWER", Description: "The answer", Value: 42},
	},
}

func bindTestModule(t *testing.T) *types.CompiledModule {
	t.Helper()
	m, err := Bind(testModule)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return m
}

func function(t *testing.T, m types.Module, name string) *types.Function {
	t.Helper()
	sel := m.FindFunction(name)
	if sel == nil {
		t.Fatalf("function %s not bound", name)
	}
	return sel.Any()
}

func TestBindIsMemoized(t *testing.T) {
	a := bindTestModule(t)
	b := bindTestModule(t)
	if a != b {
		t.Error("binding the same table twice should return the same module")
	}
	if a.Name() != "test::bind" || a.Description() != "Binding fixtures" {
		t.Errorf("module = %s %q", a.Name(), a.Description())
	}
}

func TestBindSyncAndAsyncRoundTrip(t *testing.T) {
	m := bindTestModule(t)
	ctx := runtime.NewContext(context.Background())

	scale := function(t, m, "scale")
	if scale.Async {
		t.Error("scale should be sync")
	}
	if d := scale.Params[1].Default; d == nil || !d.HasConstant || d.Constant != 2.0 {
		t.Errorf("scale default = %+v", d)
	}
	got, err := scale.Invoke(ctx, 3.0)
	if err != nil || got != 6.0 {
		t.Errorf("scale(3.0) = %v, %v", got, err)
	}

	later := function(t, m, "later")
	if !later.Async {
		t.Fatal("later should be async")
	}
	if later.Result != types.Int {
		t.Errorf("later result = %s, want int", later.Result.Name())
	}
	if d := later.Params[0].Default; d == nil || d.Constant != int64(21) {
		t.Errorf("later default = %+v", d)
	}
	future, err := later.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	v, err := runtime.RunFuture(context.Background(), future)
	if err != nil || v != int64(42) {
		t.Errorf("later() = %v, %v", v, err)
	}
	if _, err := later.Invoke(ctx, int64(1)); err == nil {
		t.Error("invoking an async function synchronously should fail")
	}
}

func TestBoundTypeMembers(t *testing.T) {
	m := bindTestModule(t)
	ctx := runtime.NewContext(nil)

	bt, ok := m.FindType("Counter").(*types.BoundType)
	if !ok {
		t.Fatalf("Counter = %T", m.FindType("Counter"))
	}
	if BoundTypeOf(&counter{}) != bt {
		t.Error("BoundTypeOf should find the registered type")
	}
	newCounter := function(t, m, "new_counter")
	if newCounter.Result != bt {
		t.Errorf("new_counter result = %s", newCounter.Result.Name())
	}

	c, err := newCounter.Invoke(ctx)
	if err != nil {
		t.Fatal(err)
	}
	add := bt.Members["add"]
	if add == nil || add.Field || len(add.Params) != 1 || add.Params[0].Default.Constant != int64(1) {
		t.Fatalf("add member = %+v", add)
	}
	c, err = add.Impl.Invoke(ctx, c, int64(5))
	if err != nil {
		t.Fatal(err)
	}
	value := bt.Members["value"]
	if value == nil || !value.Field || value.Result != types.Int {
		t.Fatalf("value member = %+v", value)
	}
	if got, err := value.Impl.Invoke(ctx, c); err != nil || got != int64(5) {
		t.Errorf("value = %v, %v", got, err)
	}
}

func TestGenericAndCompositeShapes(t *testing.T) {
	m := bindTestModule(t)
	ctx := runtime.NewContext(nil)

	first := function(t, m, "first")
	if got := first.Type().Name(); got != "sync fn(T[]) -> Option<T>" {
		t.Errorf("first type = %s", got)
	}
	got, err := first.Invoke(ctx, []vm.Value{"a", "b"})
	if err != nil || !vm.Equal(got, vm.Some("a")) {
		t.Errorf("first([a, b]) = %s, %v", vm.FormatValue(got), err)
	}
	got, err = first.Invoke(ctx, []vm.Value{})
	if err != nil || !vm.Equal(got, vm.None()) {
		t.Errorf("first([]) = %s, %v", vm.FormatValue(got), err)
	}

	check := function(t, m, "check")
	if got := check.Result.Name(); got != "Result<int, string>" {
		t.Errorf("check result = %s", got)
	}
	if got, _ := check.Invoke(ctx, int64(0)); !vm.Equal(got, vm.Err("zero")) {
		t.Errorf("check(0) = %s", vm.FormatValue(got))
	}
	if got, _ := check.Invoke(ctx, int64(3)); !vm.Equal(got, vm.Ok(int64(3))) {
		t.Errorf("check(3) = %s", vm.FormatValue(got))
	}
	if _, err := check.Invoke(ctx, int64(-1)); err == nil || err.Error() != "negative input" {
		t.Errorf("check(-1) error = %v", err)
	}

	answer := m.FindConstant("ANSWER")
	if answer == nil || answer.Type != types.Int || answer.Value != int64(42) {
		t.Errorf("ANSWER = %+v", answer)
	}
}

func TestClosureCallback(t *testing.T) {
	m := bindTestModule(t)
	ctx := runtime.NewContext(nil)

	double := &vm.Closure{Fn: vm.NewNative("double", 1, false, func(_ *runtime.Context, args []vm.Value) (vm.Value, error) {
		return args[0].(int64) * 2, nil
	})}
	apply := function(t, m, "apply")
	if got := apply.Type().Name(); got != "sync fn(sync fn(int) -> int, int) -> int" {
		t.Errorf("apply type = %s", got)
	}
	if got, err := apply.Invoke(ctx, double, int64(4)); err != nil || got != int64(8) {
		t.Errorf("apply(double, 4) = %v, %v", got, err)
	}

	boom := errors.New("boom")
	failing := &vm.Closure{Fn: vm.NewNative("fail", 1, false, func(*runtime.Context, []vm.Value) (vm.Value, error) {
		return nil, boom
	})}
	if _, err := apply.Invoke(ctx, failing, int64(4)); !errors.Is(err, boom) {
		t.Errorf("failing callback: err = %v", err)
	}
}

func TestContextCallback(t *testing.T) {
	m := bindTestModule(t)
	ctx := runtime.NewContext(nil)

	tryApply := function(t, m, "try_apply")
	if got := tryApply.Type().Name(); got != "sync fn(sync fn(int) -> int, int) -> int" {
		t.Errorf("try_apply type = %s", got)
	}

	var seen *runtime.Context
	inc := &vm.Closure{Fn: vm.NewNative("inc", 1, false, func(c *runtime.Context, args []vm.Value) (vm.Value, error) {
		seen = c
		return args[0].(int64) + 1, nil
	})}
	if got, err := tryApply.Invoke(ctx, inc, int64(1)); err != nil || got != int64(2) {
		t.Errorf("try_apply(inc, 1) = %v, %v", got, err)
	}
	if seen == nil || seen.Parent() != ctx {
		t.Error("callback should run with the context chosen by the host")
	}

	boom := errors.New("boom")
	failing := &vm.Closure{Fn: vm.NewNative("fail", 1, false, func(*runtime.Context, []vm.Value) (vm.Value, error) {
		return nil, boom
	})}
	_, err := tryApply.Invoke(ctx, failing, int64(1))
	if !errors.Is(err, boom) || err.Error() != "callback: boom" {
		t.Errorf("failing callback: err = %v", err)
	}
}

func TestBindingErrors(t *testing.T) {
	tests := []struct {
		name   string
		module *Module
	}{
		{"unmapped type", &Module{Name: "bad::a", Funcs: []Func{{Name: "f", Fn: func(map[string]int) {}}}}},
		{"not a function", &Module{Name: "bad::b", Funcs: []Func{{Name: "f", Fn: 42}}}},
		{"unsupported default", &Module{Name: "bad::c", Funcs: []Func{{
			Name:   "f",
			Fn:     func([]int) {},
			Params: []Param{{Name: "xs", Default: []int{1}}},
		}}}},
		{"required after default", &Module{Name: "bad::d", Funcs: []Func{{
			Name:   "f",
			Fn:     func(int, int) {},
			Params: []Param{{Name: "a", Default: 1}, {Name: "b"}},
		}}}},
		{"parameter count", &Module{Name: "bad::e", Funcs: []Func{{
			Name:   "f",
			Fn:     func(int) {},
			Params: []Param{{Name: "a"}, {Name: "b"}},
		}}}},
		{"duplicate mode", &Module{Name: "bad::f", Funcs: []Func{
			{Name: "f", Fn: func() {}},
			{Name: "f", Fn: func() int { return 1 }},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bind(tt.module)
			var bindErr *Error
			if !errors.As(err, &bindErr) {
				t.Fatalf("err = %v, want *binding.Error", err)
			}
			if bindErr.Module != tt.module.Name {
				t.Errorf("Module = %q", bindErr.Module)
			}
		})
	}
}

type gauge struct{ level float64 }

func TestFailedTableReleasesTypes(t *testing.T) {
	broken := &Module{
		Name: "test::gauge_broken",
		Types: []Type{{
			Name:   "Gauge",
			Zero:   (*gauge)(nil),
			Fields: []Field{{Name: "level", Get: func(g *gauge) float64 { return g.level }}},
		}},
		Funcs: []Func{{Name: "f", Fn: func(map[string]int) {}}},
	}
	if _, err := Bind(broken); err == nil {
		t.Fatal("expected a binding error")
	}
	if BoundTypeOf((*gauge)(nil)) != nil {
		t.Error("Go type stayed registered after the table failed")
	}

	fixed := &Module{
		Name: "test::gauge",
		Types: []Type{{
			Name:   "Gauge",
			Zero:   (*gauge)(nil),
			Fields: []Field{{Name: "level", Get: func(g *gauge) float64 { return g.level }}},
		}},
	}
	if _, err := Bind(fixed); err != nil {
		t.Fatalf("binding the type in another table: %v", err)
	}
	if bt := BoundTypeOf((*gauge)(nil)); bt == nil || bt.Module != "test::gauge" {
		t.Errorf("BoundTypeOf = %v", bt)
	}
}

func TestMustBindPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustBind should panic on a binding error")
		}
	}()
	MustBind(&Module{Name: "bad::panic", Funcs: []Func{{Name: "f", Fn: "not a function"}}})
}
