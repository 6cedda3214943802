package vm

import (
	"errors"
	"testing"
	"time"

	"github.com/chazu/to2/runtime"
)

func newContext() *runtime.Context {
	return runtime.NewContext(nil)
}

func load(b *UnitBuilder, slot int) { b.EmitUint16(OpLoadLocal, uint16(slot)) }
func store(b *UnitBuilder, slot int) { b.EmitUint16(OpStoreLocal, uint16(slot)) }

// sumBelow builds: sync fn sum(n: int) -> int { let s = 0; let i = 0; while(i < n) { s += i; i += 1 }; s }
func sumBelow() *Function {
	b := NewUnitBuilder("test::sum", 0, 1)
	b.Emit(OpCheckTimeout)
	s, i := b.DeclareLocal(), b.DeclareLocal()
	b.EmitInt(0)
	store(b, s)
	b.EmitInt(0)
	store(b, i)

	loop, end := b.NewLabel(), b.NewLabel()
	b.Mark(loop)
	b.Emit(OpCheckTimeout)
	load(b, i)
	load(b, 0)
	b.Emit(OpLT)
	b.EmitJump(OpJumpFalse, end)
	load(b, s)
	load(b, i)
	b.Emit(OpAddInt)
	store(b, s)
	load(b, i)
	b.EmitInt(1)
	b.Emit(OpAddInt)
	store(b, i)
	b.EmitJump(OpJump, loop)
	b.Mark(end)
	load(b, s)
	b.Emit(OpReturn)

	return &Function{Name: "test::sum", Params: 1, Unit: b.Build()}
}

func TestInvokeLoop(t *testing.T) {
	fn := sumBelow()
	tests := []struct {
		n, want int64
	}{
		{0, 0},
		{1, 0},
		{5, 10},
		{100, 4950},
	}
	for _, tt := range tests {
		got, err := fn.Invoke(newContext(), tt.n)
		if err != nil {
			t.Fatalf("sum(%d): %v", tt.n, err)
		}
		if got != tt.want {
			t.Errorf("sum(%d) = %v, want %d", tt.n, got, tt.want)
		}
	}
}

func TestNestedSyncCalls(t *testing.T) {
	sum := sumBelow()
	b := NewUnitBuilder("test::twice", 0, 1)
	load(b, 0)
	b.EmitCall(sum, 1)
	b.EmitInt(2)
	b.Emit(OpMulInt)
	b.Emit(OpIntToFloat)
	b.Emit(OpReturn)
	twice := &Function{Name: "test::twice", Params: 1, Unit: b.Build()}

	got, err := twice.Invoke(newContext(), int64(4))
	if err != nil || got != 12.0 {
		t.Errorf("twice(4) = %v, %v", got, err)
	}
}

func TestRecordUpdateOrder(t *testing.T) {
	b := NewUnitBuilder("test::records", 0, 0)
	b.EmitUint16(OpNewRecord, 2)
	b.EmitInt(1)
	b.EmitUint16(OpSetField, 0)
	b.EmitConstant(OpPushConst, "x")
	b.EmitUint16(OpSetField, 1)
	b.Emit(OpDUP)
	b.Emit(OpCopyRecord)
	b.EmitInt(9)
	b.EmitUint16(OpSetField, 0)
	b.EmitNewArray(2)
	b.Emit(OpReturn)
	fn := &Function{Name: "test::records", Unit: b.Build()}

	got, err := fn.Invoke(newContext())
	if err != nil {
		t.Fatal(err)
	}
	pair := got.([]Value)
	original, updated := pair[0].(*Record), pair[1].(*Record)
	if !Equal(original, &Record{Fields: []Value{int64(1), "x"}}) {
		t.Errorf("original changed: %s", FormatValue(original))
	}
	if !Equal(updated, &Record{Fields: []Value{int64(9), "x"}}) {
		t.Errorf("updated = %s", FormatValue(updated))
	}
}

func TestClosuresCaptureByValue(t *testing.T) {
	lb := NewUnitBuilder("test::lambda", 1, 1)
	load(lb, 0)
	load(lb, 1)
	lb.Emit(OpAddInt)
	lb.Emit(OpReturn)
	lambda := &Function{Name: "test::lambda", Params: 1, Unit: lb.Build()}

	b := NewUnitBuilder("test::main", 0, 0)
	x := b.DeclareLocal()
	b.EmitInt(10)
	store(b, x)
	load(b, x)
	b.EmitMakeClosure(lambda, 1)
	b.EmitInt(99)
	store(b, x)
	b.EmitInt(5)
	b.EmitCallClosure(1)
	b.Emit(OpReturn)
	main := &Function{Name: "test::main", Unit: b.Build()}

	got, err := main.Invoke(newContext())
	if err != nil || got != int64(15) {
		t.Errorf("main() = %v, %v", got, err)
	}

	c := &Closure{Fn: lambda, Captured: []Value{int64(1)}}
	if got, err := CallClosure(newContext(), c, int64(2)); err != nil || got != int64(3) {
		t.Errorf("CallClosure = %v, %v", got, err)
	}
}

func TestNativeCalls(t *testing.T) {
	concat := NewNative("test::concat", 2, false, func(_ *runtime.Context, args []Value) (Value, error) {
		return args[0].(string) + args[1].(string), nil
	})
	fail := NewNative("test::fail", 0, false, func(*runtime.Context, []Value) (Value, error) {
		return nil, errors.New("native failure")
	})

	b := NewUnitBuilder("test::main", 0, 0)
	b.EmitConstant(OpPushConst, "a")
	b.EmitConstant(OpPushConst, "b")
	b.EmitCall(concat, 2)
	b.Emit(OpReturn)
	fn := &Function{Name: "test::main", Unit: b.Build()}
	if got, err := fn.Invoke(newContext()); err != nil || got != "ab" {
		t.Errorf("concat = %v, %v", got, err)
	}

	b = NewUnitBuilder("test::failing", 0, 0)
	b.EmitCall(fail, 0)
	b.Emit(OpReturn)
	fn = &Function{Name: "test::failing", Unit: b.Build()}
	_, err := fn.Invoke(newContext())
	var re *RuntimeError
	if !errors.As(err, &re) || re.Function != "test::failing" {
		t.Errorf("err = %v", err)
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *UnitBuilder)
	}{
		{"division by zero", func(b *UnitBuilder) {
			b.EmitInt(1)
			b.EmitInt(0)
			b.Emit(OpDivInt)
		}},
		{"index out of bounds", func(b *UnitBuilder) {
			b.EmitNewArray(0)
			b.EmitInt(0)
			b.Emit(OpIndex)
		}},
		{"negative exponent", func(b *UnitBuilder) {
			b.EmitInt(2)
			b.EmitInt(-1)
			b.Emit(OpPowInt)
		}},
	}
	for _, tt := range tests {
		b := NewUnitBuilder("test::"+tt.name, 0, 0)
		tt.build(b)
		b.Emit(OpReturn)
		fn := &Function{Name: tt.name, Unit: b.Build()}
		_, err := fn.Invoke(newContext())
		var re *RuntimeError
		if !errors.As(err, &re) {
			t.Errorf("%s: err = %v, want *RuntimeError", tt.name, err)
		}
	}
}

func TestCheckTimeoutStopsLoop(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}
	ctx := runtime.NewContext(nil, runtime.WithTimeout(20*time.Millisecond), runtime.WithClock(clock))

	b := NewUnitBuilder("test::spin", 0, 0)
	loop := b.NewLabel()
	b.Mark(loop)
	b.Emit(OpCheckTimeout)
	b.EmitJump(OpJump, loop)
	fn := &Function{Name: "test::spin", Unit: b.Build()}

	_, err := fn.Invoke(ctx)
	if !errors.Is(err, runtime.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestAsyncAwait(t *testing.T) {
	yield := NewNative("core::task::yield", 0, true, func(*runtime.Context, []Value) (Value, error) {
		return runtime.Yield(), nil
	})

	ib := NewUnitBuilder("test::inner", 0, 1)
	ib.EmitCall(yield, 0)
	ib.Emit(OpAwait)
	ib.Emit(OpPOP)
	load(ib, 0)
	ib.EmitInt(1)
	ib.Emit(OpAddInt)
	ib.Emit(OpReturn)
	inner := &Function{Name: "test::inner", Async: true, Params: 1, Unit: ib.Build()}

	ob := NewUnitBuilder("test::outer", 0, 0)
	ob.EmitInt(1)
	ob.EmitCall(inner, 1)
	ob.Emit(OpAwait)
	ob.EmitCall(inner, 1)
	ob.Emit(OpAwait)
	ob.Emit(OpReturn)
	outer := &Function{Name: "test::outer", Async: true, Unit: ob.Build()}

	ctx := newContext()
	future, err := outer.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	exec := runtime.NewExecution(ctx, future)
	var p runtime.Poll[any]
	for i := 0; i < 10 && !p.Done(); i++ {
		p = exec.Poll()
	}
	if p.State != runtime.Ready || p.Value != int64(3) {
		t.Fatalf("result = %+v", p)
	}
	if exec.Polls() != 3 {
		t.Errorf("polls = %d, want 3", exec.Polls())
	}

	if _, err := outer.Invoke(ctx); err == nil {
		t.Error("sync invoke of async function should fail")
	}
}

func TestSyncStartIsReady(t *testing.T) {
	f, err := sumBelow().Start(newContext(), int64(3))
	if err != nil {
		t.Fatal(err)
	}
	if p := f.PollAny(newContext()); p.State != runtime.Ready || p.Value != int64(3) {
		t.Errorf("poll = %+v", p)
	}
}
