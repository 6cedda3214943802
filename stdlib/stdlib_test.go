package stdlib

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/chazu/to2/runtime"
	"github.com/chazu/to2/types"
	"github.com/chazu/to2/vm"
)

func bound(t *testing.T, name string) types.Module {
	t.Helper()
	modules, err := Bind()
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	for _, m := range modules {
		if m.Name() == name {
			return m
		}
	}
	t.Fatalf("module %s not bound", name)
	return nil
}

func fn(t *testing.T, m types.Module, name string) *types.Function {
	t.Helper()
	sel := m.FindFunction(name)
	if sel == nil {
		t.Fatalf("%s::%s not found", m.Name(), name)
	}
	return sel.Any()
}

func call(t *testing.T, f *types.Function, args ...vm.Value) vm.Value {
	t.Helper()
	v, err := f.Invoke(runtime.NewContext(nil), args...)
	if err != nil {
		t.Fatalf("%s: %v", f.QualifiedName(), err)
	}
	return v
}

func TestPrelude(t *testing.T) {
	m := bound(t, PreludeName)
	tests := []struct {
		name string
		sig  string
		args []vm.Value
		want vm.Value
	}{
		{"Some", "sync fn Some<T>(value: T) -> Option<T>", []vm.Value{int64(1)}, vm.Some(int64(1))},
		{"None", "sync fn None<T>() -> Option<T>", nil, vm.None()},
		{"Ok", "sync fn Ok<T, E>(value: T) -> Result<T, E>", []vm.Value{"x"}, vm.Ok("x")},
		{"Err", "sync fn Err<T, E>(error: E) -> Result<T, E>", []vm.Value{"bad"}, vm.Err("bad")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fn(t, m, tt.name)
			if got := f.Signature(); got != tt.sig {
				t.Errorf("Signature() = %q, want %q", got, tt.sig)
			}
			if got := call(t, f, tt.args...); !vm.Equal(got, tt.want) {
				t.Errorf("result = %s, want %s", vm.FormatValue(got), vm.FormatValue(tt.want))
			}
		})
	}
}

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Debugf(format string, args ...any) {
	l.lines = append(l.lines, "debug: "+fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Infof(format string, args ...any) {
	l.lines = append(l.lines, "info: "+fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Warningf(format string, args ...any) {
	l.lines = append(l.lines, "warning: "+fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Errorf(format string, args ...any) {
	l.lines = append(l.lines, "error: "+fmt.Sprintf(format, args...))
}

func TestLoggingUsesContextLogger(t *testing.T) {
	m := bound(t, "core::logging")
	logger := &recordingLogger{}
	ctx := runtime.NewContext(nil, runtime.WithLogger(logger))

	for _, name := range []string{"print", "debug", "warning", "error"} {
		if _, err := fn(t, m, name).Invoke(ctx, "hello %d"); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	want := []string{"info: hello %d", "debug: hello %d", "warning: hello %d", "error: hello %d"}
	if len(logger.lines) != len(want) {
		t.Fatalf("lines = %q", logger.lines)
	}
	for i := range want {
		if logger.lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, logger.lines[i], want[i])
		}
	}
}

func TestMath(t *testing.T) {
	m := bound(t, "core::math")
	if c := m.FindConstant("PI"); c == nil || c.Type != types.Float || c.Value != math.Pi {
		t.Errorf("PI = %+v", c)
	}
	if c := m.FindConstant("E"); c == nil || c.Value != math.E {
		t.Errorf("E = %+v", c)
	}

	tests := []struct {
		name string
		args []vm.Value
		want float64
	}{
		{"sqrt", []vm.Value{16.0}, 4},
		{"abs", []vm.Value{-2.5}, 2.5},
		{"cos", []vm.Value{0.0}, 1},
		{"sin", []vm.Value{0.0}, 0},
		{"clamp", []vm.Value{1.5}, 1},
		{"clamp", []vm.Value{-1.0}, 0},
		{"clamp", []vm.Value{0.25}, 0.25},
		{"clamp", []vm.Value{15.0, 10.0, 12.0}, 12},
		{"min", []vm.Value{2.0, 3.0}, 2},
		{"max", []vm.Value{2.0, 3.0}, 3},
	}
	for _, tt := range tests {
		if got := call(t, fn(t, m, tt.name), tt.args...); got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.name, tt.args, got, tt.want)
		}
	}

	clampFn := fn(t, m, "clamp")
	if got := clampFn.Signature(); got != "sync fn clamp(x: float, min: float = 0, max: float = 1) -> float" {
		t.Errorf("clamp signature = %q", got)
	}
}

func TestStr(t *testing.T) {
	m := bound(t, "core::str")
	join := fn(t, m, "join")
	items := []vm.Value{"a", "b", "c"}
	if got := call(t, join, items); got != "a, b, c" {
		t.Errorf("join(items) = %q", got)
	}
	if got := call(t, join, items, "-"); got != "a-b-c" {
		t.Errorf("join(items, -) = %q", got)
	}

	repeat := fn(t, m, "repeat")
	if got := call(t, repeat, "ab", int64(3)); got != "ababab" {
		t.Errorf("repeat = %q", got)
	}
	if _, err := repeat.Invoke(runtime.NewContext(nil), "ab", int64(-1)); err == nil {
		t.Error("negative repeat count should fail")
	}
}

func TestTaskModule(t *testing.T) {
	m := bound(t, "core::task")
	for _, name := range []string{"yield", "sleep"} {
		if !fn(t, m, name).Async {
			t.Errorf("%s should be async", name)
		}
	}
	if fn(t, m, "elapsed_ms").Async {
		t.Error("elapsed_ms should be sync")
	}

	ctx := runtime.NewContext(nil)
	future, err := fn(t, m, "sleep").Start(ctx, int64(5))
	if err != nil {
		t.Fatal(err)
	}
	v, err := runtime.RunFuture(context.Background(), future)
	if err != nil || v != vm.UnitValue {
		t.Errorf("sleep(5) = %v, %v", v, err)
	}

	clock := time.Unix(0, 0)
	ctx = runtime.NewContext(nil, runtime.WithClock(func() time.Time { return clock }))
	clock = clock.Add(250 * time.Millisecond)
	if got, err := fn(t, m, "elapsed_ms").Invoke(ctx); err != nil || got != int64(250) {
		t.Errorf("elapsed_ms = %v, %v", got, err)
	}
}

func TestBackgroundTask(t *testing.T) {
	m := bound(t, "core::background")
	run := fn(t, m, "run")
	if got := run.Type().Name(); got != "sync fn(sync fn() -> T) -> core::background::Task<T>" {
		t.Errorf("run type = %s", got)
	}

	release := make(chan struct{})
	answer := &vm.Closure{Fn: vm.NewNative("answer", 0, false, func(*runtime.Context, []vm.Value) (vm.Value, error) {
		<-release
		return int64(42), nil
	})}
	ctx := runtime.NewContext(nil)
	taskValue, err := run.Invoke(ctx, answer)
	if err != nil {
		t.Fatal(err)
	}

	taskType := run.Result.(*types.BoundType)
	member := func(name string) *types.Member {
		m := taskType.Member(name)
		if m == nil {
			t.Fatalf("Task.%s missing", name)
		}
		return m
	}
	if got := member("result").Result.Name(); got != "Option<T>" {
		t.Errorf("result type = %s", got)
	}
	if !member("wait").Async {
		t.Error("wait should be async")
	}

	if done, _ := member("is_completed").Impl.Invoke(ctx, taskValue); done != false {
		t.Error("task finished before it was released")
	}
	close(release)

	wait, err := member("wait").Impl.Start(ctx, taskValue)
	if err != nil {
		t.Fatal(err)
	}
	v, err := runtime.RunFuture(context.Background(), wait)
	if err != nil || v != int64(42) {
		t.Errorf("wait() = %v, %v", v, err)
	}
	if ok, _ := member("is_success").Impl.Invoke(ctx, taskValue); ok != true {
		t.Error("is_success should be true")
	}
	if r, _ := member("result").Impl.Invoke(ctx, taskValue); !vm.Equal(r, vm.Some(int64(42))) {
		t.Errorf("result = %s", vm.FormatValue(r))
	}
}

func TestBackgroundFailureStaysLocal(t *testing.T) {
	m := bound(t, "core::background")
	boom := errors.New("boom")
	failing := &vm.Closure{Fn: vm.NewNative("fail", 0, false, func(*runtime.Context, []vm.Value) (vm.Value, error) {
		return nil, boom
	})}
	ctx := runtime.NewContext(nil)
	taskValue, err := fn(t, m, "run").Invoke(ctx, failing)
	if err != nil {
		t.Fatal(err)
	}
	<-taskValue.(*task).Done()

	taskType := fn(t, m, "run").Result.(*types.BoundType)
	if ok, _ := taskType.Member("is_success").Impl.Invoke(ctx, taskValue); ok != false {
		t.Error("failed task reported success")
	}
	if r, _ := taskType.Member("result").Impl.Invoke(ctx, taskValue); !vm.Equal(r, vm.None()) {
		t.Errorf("result = %s", vm.FormatValue(r))
	}
	if ctx.IsCancelled() {
		t.Error("a failed background task must not cancel its parent")
	}
	wait, _ := taskType.Member("wait").Impl.Start(ctx, taskValue)
	if _, err := runtime.RunFuture(context.Background(), wait); !errors.Is(err, boom) {
		t.Errorf("wait() error = %v", err)
	}
}

func TestStatsBucket(t *testing.T) {
	m := bound(t, "core::stats")
	ctx := runtime.NewContext(nil)
	bt := m.FindType("Bucket").(*types.BoundType)

	empty := call(t, fn(t, m, "bucket"))
	b := empty
	for _, v := range []float64{2, 8, 5} {
		var err error
		if b, err = bt.Member("add").Impl.Invoke(ctx, b, v); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		field string
		want  vm.Value
	}{
		{"count", int64(3)},
		{"min", 2.0},
		{"max", 8.0},
		{"mean", 5.0},
	}
	for _, tt := range tests {
		got, err := bt.Member(tt.field).Impl.Invoke(ctx, b)
		if err != nil || got != tt.want {
			t.Errorf("%s = %v, %v; want %v", tt.field, got, err, tt.want)
		}
	}
	if got, _ := bt.Member("count").Impl.Invoke(ctx, empty); got != int64(0) {
		t.Errorf("adding must not change the original bucket; count = %v", got)
	}
}
