package types

import (
	"errors"
	"reflect"
	"testing"

	"github.com/chazu/to2/runtime"
	"github.com/chazu/to2/vm"
)

func record(fields ...any) *RecordType {
	r := &RecordType{}
	for i := 0; i < len(fields); i += 2 {
		r.Fields = append(r.Fields, RecordField{Name: fields[i].(string), Type: fields[i+1].(RealizedType)})
	}
	return r
}

func TestTypeNames(t *testing.T) {
	tests := []struct {
		typ  RealizedType
		want string
	}{
		{Int, "int"},
		{&ArrayType{Element: String}, "string[]"},
		{&OptionType{Element: Float}, "Option<float>"},
		{&ResultType{Value: Int, Error: String}, "Result<int, string>"},
		{&TupleType{Items: []RealizedType{Int, Bool}}, "(int, bool)"},
		{record("a", Int, "b", Float), "(a : int, b : float)"},
		{&FunctionType{Async: true, Params: []RealizedType{Int}, Result: Unit}, "fn(int) -> Unit"},
		{&FunctionType{Params: []RealizedType{}, Result: Int}, "sync fn() -> int"},
	}
	for _, tt := range tests {
		if got := tt.typ.Name(); got != tt.want {
			t.Errorf("Name() = %q, want %q", got, tt.want)
		}
	}
}

func TestRecordWidthSubtyping(t *testing.T) {
	target := record("a", Int, "b", Float)
	wide := record("a", Int, "b", Float, "done", Bool)
	narrow := record("a", Int)

	if !IsAssignableFrom(target, wide) {
		t.Error("(a, b, done) should be assignable to (a, b)")
	}
	if IsAssignableFrom(target, narrow) {
		t.Error("(a) should not be assignable to (a, b)")
	}
	// Field types may widen int into float.
	if !IsAssignableFrom(target, record("b", Int, "a", Int)) {
		t.Error("(b: int, a: int) should be assignable to (a: int, b: float)")
	}
	if IsAssignableFrom(target, record("a", String, "b", Float)) {
		t.Error("(a: string) should not be assignable to (a: int)")
	}
}

func TestWidening(t *testing.T) {
	if !IsAssignableFrom(Float, Int) {
		t.Error("int should widen into float")
	}
	if IsAssignableFrom(Int, Float) {
		t.Error("float should not narrow into int")
	}
	if !IsAssignableFrom(&ArrayType{Element: Float}, &ArrayType{Element: Int}) {
		t.Error("int[] should be assignable to float[]")
	}
	if IsSameType(Float, Int) {
		t.Error("int and float are different types")
	}
}

func TestFunctionAssignability(t *testing.T) {
	fn := func(async bool, result RealizedType, params ...RealizedType) *FunctionType {
		return &FunctionType{Async: async, Params: params, Result: result}
	}
	tests := []struct {
		name   string
		target *FunctionType
		source *FunctionType
		want   bool
	}{
		{"identical", fn(false, Int, Int), fn(false, Int, Int), true},
		{"async mismatch", fn(true, Int, Int), fn(false, Int, Int), false},
		{"arity mismatch", fn(false, Int, Int), fn(false, Int), false},
		{"widened result is not the same representation", fn(false, Float, Int), fn(false, Int, Int), false},
		{"record parameters", fn(false, Unit, record("a", Int, "b", Int)), fn(false, Unit, record("a", Int, "b", Int)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAssignableFrom(tt.target, tt.source); got != tt.want {
				t.Errorf("IsAssignableFrom(%s, %s) = %v, want %v", tt.target.Name(), tt.source.Name(), got, tt.want)
			}
		})
	}
}

func TestUnknownSuppressesCascades(t *testing.T) {
	if !IsAssignableFrom(Int, Unknown) || !IsAssignableFrom(Unknown, String) {
		t.Error("Unknown must be assignable both ways")
	}
}

func TestConvertValue(t *testing.T) {
	target := record("a", Int, "b", Float)
	source := record("done", Bool, "b", Int, "a", Int)
	v := &vm.Record{Fields: []vm.Value{true, int64(2), int64(1)}}

	if !NeedsConversion(target, source) {
		t.Fatal("projection should need a conversion")
	}
	got, err := Converter(target, source).Invoke(runtime.NewContext(nil), v)
	if err != nil {
		t.Fatal(err)
	}
	want := &vm.Record{Fields: []vm.Value{int64(1), 2.0}}
	if !vm.Equal(got, want) {
		t.Errorf("converted = %s, want %s", vm.FormatValue(got), vm.FormatValue(want))
	}

	arr, err := ConvertValue(&ArrayType{Element: Float}, &ArrayType{Element: Int}, []vm.Value{int64(1), int64(2)})
	if err != nil {
		t.Fatal(err)
	}
	if !vm.Equal(arr, []vm.Value{1.0, 2.0}) {
		t.Errorf("converted array = %s", vm.FormatValue(arr))
	}
	if NeedsConversion(target, record("a", Int, "b", Float)) {
		t.Error("identical layout should not need a conversion")
	}
}

func TestGenerics(t *testing.T) {
	T := &GenericParameter{Param: "T"}
	param := &FunctionType{Params: []RealizedType{&ArrayType{Element: T}}, Result: &OptionType{Element: T}}
	arg := &FunctionType{Params: []RealizedType{&ArrayType{Element: String}}, Result: &OptionType{Element: String}}

	bindings := map[string]RealizedType{}
	InferGenerics(param, arg, bindings)
	if bindings["T"] != String {
		t.Fatalf("T inferred as %v", bindings["T"])
	}
	filled := param.FillGenerics(bindings)
	if HasGenerics(filled) {
		t.Errorf("%s still has generics", filled.Name())
	}
	if got := FreeGenerics(&ResultType{Value: T, Error: &GenericParameter{Param: "E"}}); !reflect.DeepEqual(got, []string{"E", "T"}) {
		t.Errorf("FreeGenerics = %v", got)
	}
}

func TestSelectorPairing(t *testing.T) {
	sync := &Function{FuncName: "f"}
	async := &Function{FuncName: "f", Async: true}

	sel := &FunctionSelector{Name: "f"}
	if err := sel.Add(sync); err != nil {
		t.Fatal(err)
	}
	if err := sel.Add(async); err != nil {
		t.Fatal(err)
	}
	if err := sel.Add(&Function{FuncName: "f"}); !errors.Is(err, ErrDuplicateMode) {
		t.Errorf("second sync variant: err = %v", err)
	}
	if sel.Select(true) != async {
		t.Error("async context should select the async variant")
	}
	if sel.Select(false) != sync {
		t.Error("sync context should select the sync variant")
	}

	asyncOnly := &FunctionSelector{Name: "g", Async: async}
	if asyncOnly.Select(false) != nil {
		t.Error("sync context must not select an async function")
	}
	if asyncOnly.Any() != async {
		t.Error("Any should fall back to the async variant")
	}
}

func TestInterfaces(t *testing.T) {
	counter := NewDeclaredType("m", "Counter", "")
	counter.Methods["next"] = &FunctionSelector{Name: "next", Sync: &Function{
		FuncName: "next",
		Params:   []Parameter{{Name: "self", Type: counter}},
		Result:   Int,
	}}
	iface := &InterfaceType{Module: "m", TypeName: "Source", Methods: map[string]*FunctionType{
		"next": {Params: []RealizedType{}, Result: Int},
	}}
	if !IsAssignableFrom(iface, counter) {
		t.Error("Counter implements Source")
	}
	iface.Methods["reset"] = &FunctionType{Params: []RealizedType{}, Result: Unit}
	if IsAssignableFrom(iface, counter) {
		t.Error("Counter lacks reset")
	}
}

func TestFunctionDefaults(t *testing.T) {
	ctx := runtime.NewContext(nil)
	add := vm.NewNative("add", 2, false, func(_ *runtime.Context, args []vm.Value) (vm.Value, error) {
		return args[0].(int64) + args[1].(int64), nil
	})
	fn := &Function{
		Module:   "m",
		FuncName: "add",
		Params: []Parameter{
			{Name: "a", Type: Int},
			{Name: "b", Type: Int, Default: ConstantDefault(int64(10))},
		},
		Result: Int,
		State:  Compiled,
		Impl:   add,
	}
	if got, err := fn.Invoke(ctx, int64(1)); err != nil || got != int64(11) {
		t.Errorf("add(1) = %v, %v", got, err)
	}
	if got, err := fn.Invoke(ctx, int64(1), int64(2)); err != nil || got != int64(3) {
		t.Errorf("add(1, 2) = %v, %v", got, err)
	}
	if _, err := fn.Invoke(ctx); err == nil {
		t.Error("missing required argument should fail")
	}
	if got := fn.Signature(); got != "sync fn add(a: int, b: int = 10) -> int" {
		t.Errorf("Signature() = %q", got)
	}
	if fn.RequiredParams() != 1 {
		t.Errorf("RequiredParams() = %d", fn.RequiredParams())
	}
}

func TestBuiltinMembers(t *testing.T) {
	ctx := runtime.NewContext(nil)
	tests := []struct {
		typ  RealizedType
		name string
		args []vm.Value
		want vm.Value
	}{
		{Int, "abs", []vm.Value{int64(-3)}, int64(3)},
		{Float, "round", []vm.Value{2.5}, int64(3)},
		{String, "length", []vm.Value{"héllo"}, int64(5)},
		{String, "contains", []vm.Value{"hello", "ell"}, true},
		{&ArrayType{Element: Int}, "reverse", []vm.Value{[]vm.Value{int64(1), int64(2)}}, []vm.Value{int64(2), int64(1)}},
		{Range, "length", []vm.Value{vm.MakeRange(0, 5, false)}, int64(5)},
		{&OptionType{Element: Int}, "defined", []vm.Value{vm.None()}, false},
		{&OptionType{Element: Int}, "ok_or", []vm.Value{vm.None(), "empty"}, vm.Err("empty")},
	}
	for _, tt := range tests {
		m := FindMember(tt.typ, tt.name)
		if m == nil {
			t.Errorf("%s.%s not found", tt.typ.Name(), tt.name)
			continue
		}
		got, err := m.Impl.Invoke(ctx, tt.args...)
		if err != nil {
			t.Errorf("%s.%s: %v", tt.typ.Name(), tt.name, err)
			continue
		}
		if !vm.Equal(got, tt.want) {
			t.Errorf("%s.%s = %s, want %s", tt.typ.Name(), tt.name, vm.FormatValue(got), vm.FormatValue(tt.want))
		}
	}

	if _, err := FindMember(&OptionType{Element: Int}, "value").Impl.Invoke(ctx, vm.None()); !errors.Is(err, ErrNoValue) {
		t.Errorf("None.value: err = %v", err)
	}
	if FindMember(Bool, "length") != nil {
		t.Error("bool has no members")
	}
}

func TestBoundTypeInstantiate(t *testing.T) {
	task := &BoundType{
		Module:     "core::background",
		TypeName:   "Task",
		TypeParams: []string{"T"},
		Members: map[string]*Member{
			"result": {Name: "result", Field: true, Result: &OptionType{Element: &GenericParameter{Param: "T"}}},
		},
	}
	inst := task.FillGenerics(map[string]RealizedType{"T": Int}).(*BoundType)
	if inst.Name() != "core::background::Task<int>" {
		t.Errorf("Name() = %q", inst.Name())
	}
	if got := inst.Member("result").Result.Name(); got != "Option<int>" {
		t.Errorf("result type = %s", got)
	}
	if inst.Origin() != task {
		t.Error("instance should point at its origin")
	}
	if !IsAssignableFrom(task.Instantiate([]RealizedType{Int}), inst) {
		t.Error("two instantiations with the same arguments are the same type")
	}
}

func TestCompiledModuleLookups(t *testing.T) {
	m := NewCompiledModule("demo", "")
	m.AddType("Id", Int)
	m.AddConstant(&Constant{Module: "demo", ConstName: "ZERO", Type: Int, Value: int64(0)})
	if err := m.AddFunction(&Function{FuncName: "f"}); err != nil {
		t.Fatal(err)
	}
	if err := m.AddFunction(&Function{FuncName: "f"}); !errors.Is(err, ErrDuplicateMode) {
		t.Errorf("duplicate: err = %v", err)
	}
	if m.FindType("Missing") != nil || m.FindConstant("Missing") != nil || m.FindFunction("missing") != nil {
		t.Error("lookups must return nil on a miss")
	}
	if !reflect.DeepEqual(m.FunctionNames(), []string{"f"}) || !reflect.DeepEqual(m.TypeNames(), []string{"Id"}) {
		t.Errorf("names: %v %v", m.FunctionNames(), m.TypeNames())
	}
}
