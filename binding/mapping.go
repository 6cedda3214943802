package binding

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/chazu/to2/runtime"
	"github.com/chazu/to2/types"
	"github.com/chazu/to2/vm"
)

// ---------------------------------------------------------------------------
// Markers
// ---------------------------------------------------------------------------

// T, U and E stand for generic parameters of the same name in bound
// signatures. Any script value can be stored in them.
type (
	T interface{}
	U interface{}
	E interface{}
)

// Option is the host side of Option<X>.
type Option[X any] struct {
	Defined bool
	Value   X
}

// Some returns a defined option.
func Some[X any](v X) Option[X] { return Option[X]{Defined: true, Value: v} }

// None returns an empty option.
func None[X any]() Option[X] { return Option[X]{} }

// Result is the host side of Result<X, Err>.
type Result[X, Err any] struct {
	Success bool
	Value   X
	Error   Err
}

// Ok returns a successful result.
func Ok[X, Err any](v X) Result[X, Err] { return Result[X, Err]{Success: true, Value: v} }

// Fail returns a failed result.
func Fail[X, Err any](e Err) Result[X, Err] { return Result[X, Err]{Error: e} }

type shapeKind int

const (
	shapeOption shapeKind = iota + 1
	shapeResult
)

// shaped is implemented by Option and Result so that their element types
// can be recovered without parsing reflect type names.
type shaped interface {
	shape() (shapeKind, []reflect.Type)
}

func (Option[X]) shape() (shapeKind, []reflect.Type) {
	return shapeOption, []reflect.Type{reflect.TypeFor[X]()}
}

func (Result[X, Err]) shape() (shapeKind, []reflect.Type) {
	return shapeResult, []reflect.Type{reflect.TypeFor[X](), reflect.TypeFor[Err]()}
}

var (
	contextType = reflect.TypeFor[*runtime.Context]()
	errorType   = reflect.TypeFor[error]()
	unitType    = reflect.TypeFor[runtime.Unit]()
	shapedType  = reflect.TypeFor[shaped]()

	markers = map[reflect.Type]string{
		reflect.TypeFor[T](): "T",
		reflect.TypeFor[U](): "U",
		reflect.TypeFor[E](): "E",
	}
)

// ---------------------------------------------------------------------------
// Type mapping
// ---------------------------------------------------------------------------

// mapping converts between one Go type and its TO2 type.
type mapping struct {
	typ  types.RealizedType
	toVM func(v reflect.Value) vm.Value
	toGo func(ctx *runtime.Context, v vm.Value) (reflect.Value, error)
}

// callbackError carries the failure of a script callback through Go code
// that has no error result.
type callbackError struct {
	err error
}

func convertTo(t reflect.Type) func(*runtime.Context, vm.Value) (reflect.Value, error) {
	return func(_ *runtime.Context, v vm.Value) (reflect.Value, error) {
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || !rv.Type().ConvertibleTo(t) {
			return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
		}
		return rv.Convert(t), nil
	}
}

func mapType(t reflect.Type) (*mapping, error) {
	if name, ok := markers[t]; ok {
		return &mapping{
			typ: &types.GenericParameter{Param: name},
			toVM: func(v reflect.Value) vm.Value {
				if !v.IsValid() || (v.Kind() == reflect.Interface && v.IsNil()) {
					return nil
				}
				return v.Interface()
			},
			toGo: func(_ *runtime.Context, v vm.Value) (reflect.Value, error) {
				out := reflect.New(t).Elem()
				if v != nil {
					out.Set(reflect.ValueOf(v))
				}
				return out, nil
			},
		}, nil
	}
	if t == unitType {
		return &mapping{
			typ:  types.Unit,
			toVM: func(reflect.Value) vm.Value { return vm.UnitValue },
			toGo: func(*runtime.Context, vm.Value) (reflect.Value, error) { return reflect.ValueOf(runtime.Unit{}), nil },
		}, nil
	}
	if t == contextType {
		return nil, errors.New("*runtime.Context is only allowed as the first parameter")
	}
	if bt := registry.lookup(t); bt != nil {
		return boundMapping(t, bt), nil
	}
	if t.Implements(shapedType) {
		kind, elems := reflect.Zero(t).Interface().(shaped).shape()
		if kind == shapeOption {
			return optionMapping(t, elems[0])
		}
		return resultMapping(t, elems[0], elems[1])
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int64:
		return &mapping{
			typ:  types.Int,
			toVM: func(v reflect.Value) vm.Value { return v.Int() },
			toGo: convertTo(t),
		}, nil
	case reflect.Float64:
		return &mapping{
			typ:  types.Float,
			toVM: func(v reflect.Value) vm.Value { return v.Float() },
			toGo: convertTo(t),
		}, nil
	case reflect.Bool:
		return &mapping{
			typ:  types.Bool,
			toVM: func(v reflect.Value) vm.Value { return v.Bool() },
			toGo: convertTo(t),
		}, nil
	case reflect.String:
		return &mapping{
			typ:  types.String,
			toVM: func(v reflect.Value) vm.Value { return v.String() },
			toGo: convertTo(t),
		}, nil
	case reflect.Slice:
		return sliceMapping(t)
	case reflect.Func:
		return funcMapping(t)
	}
	return nil, fmt.Errorf("Go type %s has no TO2 mapping", t)
}

func boundMapping(t reflect.Type, bt *types.BoundType) *mapping {
	var typ types.RealizedType = bt
	if len(bt.TypeParams) > 0 {
		args := make([]types.RealizedType, len(bt.TypeParams))
		for i, p := range bt.TypeParams {
			args[i] = &types.GenericParameter{Param: p}
		}
		typ = bt.Instantiate(args)
	}
	return &mapping{
		typ:  typ,
		toVM: func(v reflect.Value) vm.Value { return v.Interface() },
		toGo: func(_ *runtime.Context, v vm.Value) (reflect.Value, error) {
			rv := reflect.ValueOf(v)
			if !rv.IsValid() || !rv.Type().AssignableTo(t) {
				return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, bt.Name())
			}
			return rv, nil
		},
	}
}

func sliceMapping(t reflect.Type) (*mapping, error) {
	elem, err := mapType(t.Elem())
	if err != nil {
		return nil, err
	}
	return &mapping{
		typ: &types.ArrayType{Element: elem.typ},
		toVM: func(v reflect.Value) vm.Value {
			out := make([]vm.Value, v.Len())
			for i := range out {
				out[i] = elem.toVM(v.Index(i))
			}
			return out
		},
		toGo: func(ctx *runtime.Context, v vm.Value) (reflect.Value, error) {
			items, ok := v.([]vm.Value)
			if !ok {
				return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
			}
			out := reflect.MakeSlice(t, len(items), len(items))
			for i, item := range items {
				g, err := elem.toGo(ctx, item)
				if err != nil {
					return reflect.Value{}, err
				}
				out.Index(i).Set(g)
			}
			return out, nil
		},
	}, nil
}

func optionMapping(t, elemType reflect.Type) (*mapping, error) {
	elem, err := mapType(elemType)
	if err != nil {
		return nil, err
	}
	return &mapping{
		typ: &types.OptionType{Element: elem.typ},
		toVM: func(v reflect.Value) vm.Value {
			if !v.Field(0).Bool() {
				return vm.None()
			}
			return vm.Some(elem.toVM(v.Field(1)))
		},
		toGo: func(ctx *runtime.Context, v vm.Value) (reflect.Value, error) {
			o, ok := v.(vm.Option)
			if !ok {
				return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
			}
			out := reflect.New(t).Elem()
			if o.Defined {
				g, err := elem.toGo(ctx, o.Value)
				if err != nil {
					return reflect.Value{}, err
				}
				out.Field(0).SetBool(true)
				out.Field(1).Set(g)
			}
			return out, nil
		},
	}, nil
}

func resultMapping(t, valueType, errType reflect.Type) (*mapping, error) {
	value, err := mapType(valueType)
	if err != nil {
		return nil, err
	}
	failure, err := mapType(errType)
	if err != nil {
		return nil, err
	}
	return &mapping{
		typ: &types.ResultType{Value: value.typ, Error: failure.typ},
		toVM: func(v reflect.Value) vm.Value {
			if v.Field(0).Bool() {
				return vm.Ok(value.toVM(v.Field(1)))
			}
			return vm.Err(failure.toVM(v.Field(2)))
		},
		toGo: func(ctx *runtime.Context, v vm.Value) (reflect.Value, error) {
			r, ok := v.(vm.Result)
			if !ok {
				return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
			}
			out := reflect.New(t).Elem()
			if r.Success {
				g, err := value.toGo(ctx, r.Value)
				if err != nil {
					return reflect.Value{}, err
				}
				out.Field(0).SetBool(true)
				out.Field(1).Set(g)
				return out, nil
			}
			g, err := failure.toGo(ctx, r.Error)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Field(2).Set(g)
			return out, nil
		},
	}, nil
}

// funcMapping maps a Go func type used as a value: a script closure passed
// to the host, or a host function returned to the script. Such functions
// are always sync. A leading *runtime.Context parameter lets the host pick
// the context the closure runs with, and a trailing error result reports
// a failed closure instead of panicking.
func funcMapping(t reflect.Type) (*mapping, error) {
	if t.IsVariadic() {
		return nil, fmt.Errorf("function type %s has no TO2 mapping", t)
	}
	withContext := t.NumIn() > 0 && t.In(0) == contextType
	outs := t.NumOut()
	withError := outs > 0 && t.Out(outs-1) == errorType
	if withError {
		outs--
	}
	if outs > 1 {
		return nil, fmt.Errorf("function type %s has no TO2 mapping", t)
	}

	first := 0
	if withContext {
		first = 1
	}
	params := make([]*mapping, t.NumIn()-first)
	paramTypes := make([]types.RealizedType, len(params))
	for i := range params {
		m, err := mapType(t.In(first + i))
		if err != nil {
			return nil, err
		}
		params[i], paramTypes[i] = m, m.typ
	}
	result := &mapping{typ: types.Unit, toVM: func(reflect.Value) vm.Value { return vm.UnitValue }}
	if outs == 1 {
		m, err := mapType(t.Out(0))
		if err != nil {
			return nil, err
		}
		result = m
	}

	return &mapping{
		typ: &types.FunctionType{Params: paramTypes, Result: result.typ},
		toVM: func(v reflect.Value) vm.Value {
			native := vm.NewNative("<host function>", len(params), false, func(ctx *runtime.Context, args []vm.Value) (vm.Value, error) {
				in := make([]reflect.Value, 0, first+len(args))
				if withContext {
					in = append(in, reflect.ValueOf(ctx))
				}
				for i, a := range args {
					g, err := params[i].toGo(ctx, a)
					if err != nil {
						return nil, err
					}
					in = append(in, g)
				}
				out := v.Call(in)
				if withError {
					if e := out[len(out)-1]; !e.IsNil() {
						return nil, e.Interface().(error)
					}
					out = out[:len(out)-1]
				}
				if len(out) == 0 {
					return vm.UnitValue, nil
				}
				return result.toVM(out[0]), nil
			})
			return &vm.Closure{Fn: native}
		},
		toGo: func(ctx *runtime.Context, v vm.Value) (reflect.Value, error) {
			c, ok := v.(*vm.Closure)
			if !ok {
				return reflect.Value{}, fmt.Errorf("cannot use %T as a function", v)
			}
			return reflect.MakeFunc(t, func(in []reflect.Value) []reflect.Value {
				callCtx := ctx
				if withContext {
					callCtx = in[0].Interface().(*runtime.Context)
					in = in[1:]
				}
				args := make([]vm.Value, len(in))
				for i, a := range in {
					args[i] = params[i].toVM(a)
				}
				r, err := vm.CallClosure(callCtx, c, args...)
				if err == nil && outs == 1 {
					var g reflect.Value
					if g, err = result.toGo(callCtx, r); err == nil {
						return closureResults(t, withError, g, nil)
					}
				}
				if err != nil && !withError {
					panic(callbackError{err})
				}
				return closureResults(t, withError, reflect.Value{}, err)
			}), nil
		},
	}, nil
}

// closureResults builds the Go results of a script closure called from the
// host.
func closureResults(t reflect.Type, withError bool, value reflect.Value, err error) []reflect.Value {
	out := make([]reflect.Value, t.NumOut())
	for i := range out {
		out[i] = reflect.Zero(t.Out(i))
	}
	if value.IsValid() {
		out[0] = value
	}
	if withError && err != nil {
		out[len(out)-1] = reflect.ValueOf(&err).Elem()
	}
	return out
}

// functionType maps a Go func type describing an interface method.
func functionType(t reflect.Type) (*types.FunctionType, error) {
	sig, err := analyze(t)
	if err != nil {
		return nil, err
	}
	params := make([]types.RealizedType, len(sig.params))
	for i, p := range sig.params {
		params[i] = p.typ
	}
	return &types.FunctionType{Async: sig.async, Params: params, Result: sig.result.typ}, nil
}

// ---------------------------------------------------------------------------
// Signatures
// ---------------------------------------------------------------------------

type signature struct {
	withContext bool
	withError   bool
	async       bool
	params      []*mapping
	result      *mapping
}

func analyze(t reflect.Type) (*signature, error) {
	if t.IsVariadic() {
		return nil, errors.New("variadic functions cannot be bound")
	}
	sig := &signature{}
	start := 0
	if t.NumIn() > 0 && t.In(0) == contextType {
		sig.withContext = true
		start = 1
	}
	for i := start; i < t.NumIn(); i++ {
		m, err := mapType(t.In(i))
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i-start+1, err)
		}
		sig.params = append(sig.params, m)
	}

	outs := t.NumOut()
	if outs > 0 && t.Out(outs-1) == errorType {
		sig.withError = true
		outs--
	}
	switch outs {
	case 0:
		sig.result = &mapping{typ: types.Unit, toVM: func(reflect.Value) vm.Value { return vm.UnitValue }}
	case 1:
		out := t.Out(0)
		if elem, ok := futureElem(out); ok {
			sig.async = true
			out = elem
		}
		m, err := mapType(out)
		if err != nil {
			return nil, fmt.Errorf("result: %w", err)
		}
		sig.result = m
	default:
		return nil, fmt.Errorf("too many results in %s", t)
	}
	return sig, nil
}

// futureElem recognizes runtime.Future[X] and returns X.
func futureElem(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Interface || t.PkgPath() != unitType.PkgPath() || !strings.HasPrefix(t.Name(), "Future[") {
		return nil, false
	}
	poll, ok := t.MethodByName("Poll")
	if !ok || poll.Type.NumOut() != 1 {
		return nil, false
	}
	value, ok := poll.Type.Out(0).FieldByName("Value")
	if !ok {
		return nil, false
	}
	return value.Type, true
}

// signature maps a Go function to a bound function. For methods the first
// Go parameter is the receiver and params describe the rest.
func (b *binder) signature(member string, fn any, params []Param, method bool) (*types.Function, error) {
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, b.failf(member, "expected a function, got %T", fn)
	}
	sig, err := analyze(fv.Type())
	if err != nil {
		return nil, b.fail(member, err)
	}

	named := sig.params
	if method && len(named) > 0 {
		named = named[1:]
	}
	if len(params) != 0 && len(params) != len(named) {
		return nil, b.failf(member, "%d parameters described, function takes %d", len(params), len(named))
	}

	out := &types.Function{
		FuncName: member,
		Result:   sig.result.typ,
		Async:    sig.async,
		State:    types.Compiled,
	}
	if method {
		out.Params = append(out.Params, types.Parameter{Name: "self", Type: sig.params[0].typ})
	}
	seenDefault := false
	for i, m := range named {
		p := types.Parameter{Name: fmt.Sprintf("arg%d", i), Type: m.typ}
		if len(params) > 0 {
			p.Name = params[i].Name
			if params[i].Default != nil {
				goType := fv.Type().In(fv.Type().NumIn() - len(named) + i)
				d, err := defaultValue(params[i].Default, goType, m)
				if err != nil {
					return nil, b.failf(member, "default for %s: %w", p.Name, err)
				}
				p.Default = d
				seenDefault = true
			} else if seenDefault {
				return nil, b.failf(member, "required parameter %s follows a parameter with a default", p.Name)
			}
		}
		out.Params = append(out.Params, p)
	}
	out.Impl = vm.NewNative(member, len(sig.params), sig.async, native(member, fv, sig))
	return out, nil
}

func defaultValue(def any, goType reflect.Type, m *mapping) (*types.DefaultValue, error) {
	dv := reflect.ValueOf(def)
	switch dv.Kind() {
	case reflect.Int, reflect.Int64, reflect.Float64, reflect.Bool, reflect.String:
	default:
		return nil, fmt.Errorf("unsupported default value type %T", def)
	}
	if !dv.Type().ConvertibleTo(goType) || (dv.Kind() == reflect.String) != (goType.Kind() == reflect.String) {
		return nil, fmt.Errorf("%T is not convertible to %s", def, goType)
	}
	return types.ConstantDefault(m.toVM(dv.Convert(goType))), nil
}

func native(name string, fv reflect.Value, sig *signature) vm.NativeFunc {
	return func(ctx *runtime.Context, args []vm.Value) (result vm.Value, err error) {
		defer func() {
			if r := recover(); r != nil {
				cb, ok := r.(callbackError)
				if !ok {
					panic(r)
				}
				result, err = nil, cb.err
			}
		}()

		in := make([]reflect.Value, 0, len(args)+1)
		if sig.withContext {
			in = append(in, reflect.ValueOf(ctx))
		}
		if len(args) != len(sig.params) {
			return nil, fmt.Errorf("%s: expected %d arguments, got %d", name, len(sig.params), len(args))
		}
		for i, a := range args {
			g, err := sig.params[i].toGo(ctx, a)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i+1, err)
			}
			in = append(in, g)
		}

		out := fv.Call(in)
		if sig.withError {
			if e := out[len(out)-1]; !e.IsNil() {
				return nil, e.Interface().(error)
			}
			out = out[:len(out)-1]
		}
		if len(out) == 0 {
			return vm.UnitValue, nil
		}
		if sig.async {
			return convertFuture(out[0], sig.result), nil
		}
		return sig.result.toVM(out[0]), nil
	}
}

// convertFuture adapts a host future to the value representation of
// scripts.
func convertFuture(v reflect.Value, result *mapping) runtime.AnyFuture {
	if v.IsNil() {
		return runtime.FailedFuture[vm.Value](errors.New("host function returned a nil future"))
	}
	inner := v.Interface().(runtime.AnyFuture)
	return runtime.FromFunc(func(ctx *runtime.Context) runtime.Poll[vm.Value] {
		p := inner.PollAny(ctx)
		if p.State != runtime.Ready {
			return p
		}
		return runtime.PollReady(result.toVM(reflect.ValueOf(p.Value)))
	})
}
