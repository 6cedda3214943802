package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/to2/runtime"
	"github.com/chazu/to2/vm"
)

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// FunctionState tells whether a function can be invoked yet.
type FunctionState int

const (
	// Declared functions have a signature; the body is still being
	// compiled.
	Declared FunctionState = iota
	// Compiled functions are linked to a unit or native implementation.
	Compiled
)

// DefaultValue produces the value of an omitted argument: either a constant
// or a generated sync unit taking no arguments.
type DefaultValue struct {
	Constant    vm.Value
	HasConstant bool
	Generator   *vm.Function
}

// ConstantDefault returns a default that is a literal value.
func ConstantDefault(v vm.Value) *DefaultValue {
	return &DefaultValue{Constant: v, HasConstant: true}
}

// Value computes the default.
func (d *DefaultValue) Value(ctx *runtime.Context) (vm.Value, error) {
	if d.HasConstant {
		return d.Constant, nil
	}
	if d.Generator == nil {
		return nil, errors.New("default value is not compiled")
	}
	return d.Generator.Invoke(ctx)
}

// Parameter is one declared function parameter.
type Parameter struct {
	Name    string
	Type    RealizedType
	Default *DefaultValue
}

// Function is a module-level function or a struct method (whose first
// parameter is self).
type Function struct {
	Module      string
	FuncName    string
	Description string
	TypeParams  []string
	Params      []Parameter
	Result      RealizedType
	Async       bool
	State       FunctionState
	Impl        *vm.Function
}

// QualifiedName returns module::name.
func (f *Function) QualifiedName() string {
	return qualify(f.Module, f.FuncName)
}

// Type returns the function's type.
func (f *Function) Type() *FunctionType {
	params := make([]RealizedType, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Type
	}
	return &FunctionType{Async: f.Async, Params: params, Result: f.Result}
}

// RequiredParams counts the leading parameters without defaults.
func (f *Function) RequiredParams() int {
	n := 0
	for _, p := range f.Params {
		if p.Default != nil {
			break
		}
		n++
	}
	return n
}

// Signature renders the declaration, used for interface snapshots and
// editor tooling.
func (f *Function) Signature() string {
	var sb strings.Builder
	if !f.Async {
		sb.WriteString("sync ")
	}
	sb.WriteString("fn " + f.FuncName)
	if len(f.TypeParams) > 0 {
		sb.WriteString("<" + strings.Join(f.TypeParams, ", ") + ">")
	}
	sb.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Name + ": " + p.Type.Name())
		if p.Default != nil {
			if p.Default.HasConstant {
				sb.WriteString(" = " + vm.FormatValue(p.Default.Constant))
			} else {
				sb.WriteString(" = <expr>")
			}
		}
	}
	sb.WriteString(") -> " + f.Result.Name())
	return sb.String()
}

// CompleteArgs fills omitted trailing arguments from their defaults.
func (f *Function) CompleteArgs(ctx *runtime.Context, args []vm.Value) ([]vm.Value, error) {
	if len(args) > len(f.Params) {
		return nil, fmt.Errorf("%s: expected at most %d arguments, got %d", f.QualifiedName(), len(f.Params), len(args))
	}
	out := append([]vm.Value(nil), args...)
	for i := len(args); i < len(f.Params); i++ {
		d := f.Params[i].Default
		if d == nil {
			return nil, fmt.Errorf("%s: missing argument %s", f.QualifiedName(), f.Params[i].Name)
		}
		v, err := d.Value(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: default for %s: %w", f.QualifiedName(), f.Params[i].Name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *Function) ready() error {
	if f.State != Compiled || f.Impl == nil {
		return fmt.Errorf("%s is not compiled", f.QualifiedName())
	}
	return nil
}

// Invoke calls a compiled sync function with positional arguments;
// omitted trailing arguments take their defaults.
func (f *Function) Invoke(ctx *runtime.Context, args ...vm.Value) (vm.Value, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	if f.Async {
		return nil, fmt.Errorf("%s is async; use Start", f.QualifiedName())
	}
	full, err := f.CompleteArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	return f.Impl.Invoke(ctx, full...)
}

// Start calls a compiled function and returns its future. Sync functions
// run immediately and return a resolved future.
func (f *Function) Start(ctx *runtime.Context, args ...vm.Value) (runtime.AnyFuture, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	full, err := f.CompleteArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	return f.Impl.Start(ctx, full...)
}

// ---------------------------------------------------------------------------
// Selectors: sync/async pairs sharing one name
// ---------------------------------------------------------------------------

// ErrDuplicateMode is returned when a selector already holds a function of
// the same mode.
var ErrDuplicateMode = errors.New("function with the same name and mode already exists")

// FunctionSelector groups the sync and async variants of one name.
type FunctionSelector struct {
	Name  string
	Sync  *Function
	Async *Function
}

// Add stores fn in the slot for its mode.
func (s *FunctionSelector) Add(fn *Function) error {
	slot := &s.Sync
	if fn.Async {
		slot = &s.Async
	}
	if *slot != nil {
		return ErrDuplicateMode
	}
	*slot = fn
	return nil
}

// Select picks the variant for a calling context: async contexts prefer
// the async variant, sync contexts can only use the sync one.
func (s *FunctionSelector) Select(async bool) *Function {
	if async && s.Async != nil {
		return s.Async
	}
	return s.Sync
}

// Any returns the sync variant if present, else the async one.
func (s *FunctionSelector) Any() *Function {
	if s.Sync != nil {
		return s.Sync
	}
	return s.Async
}

// All returns the present variants, sync first.
func (s *FunctionSelector) All() []*Function {
	var out []*Function
	if s.Sync != nil {
		out = append(out, s.Sync)
	}
	if s.Async != nil {
		out = append(out, s.Async)
	}
	return out
}

// ---------------------------------------------------------------------------
// Members of built-in and bound types
// ---------------------------------------------------------------------------

// Member is a field or method of a built-in or bound type. Impl takes the
// receiver as its first argument.
type Member struct {
	Name        string
	Description string
	Field       bool
	TypeParams  []string
	Params      []Parameter
	Result      RealizedType
	Async       bool
	Impl        *vm.Function
}

// Type returns the member's method type without the receiver.
func (m *Member) Type() *FunctionType {
	params := make([]RealizedType, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.Type
	}
	return &FunctionType{Async: m.Async, Params: params, Result: m.Result}
}

func (m *Member) fill(args map[string]RealizedType) *Member {
	params := make([]Parameter, len(m.Params))
	for i, p := range m.Params {
		params[i] = Parameter{Name: p.Name, Type: p.Type.FillGenerics(args), Default: p.Default}
	}
	out := *m
	out.Params = params
	out.Result = m.Result.FillGenerics(args)
	return &out
}

// AsFunction views a member as a function whose first parameter is the
// receiver.
func (m *Member) AsFunction(receiver RealizedType) *Function {
	params := append([]Parameter{{Name: "self", Type: receiver}}, m.Params...)
	return &Function{
		FuncName:    m.Name,
		Description: m.Description,
		TypeParams:  m.TypeParams,
		Params:      params,
		Result:      m.Result,
		Async:       m.Async,
		State:       Compiled,
		Impl:        m.Impl,
	}
}
