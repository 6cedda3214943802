// Package binding exposes host Go functions and types to TO2 scripts.
//
// A binding is a declarative table: a Module lists its types, functions and
// constants, each with a name, an optional description and the Go value
// implementing it. Bind turns the table into a compiled module by mapping
// Go signatures to TO2 types:
//
//	int, int64          int
//	float64             float
//	bool, string        bool, string
//	runtime.Unit / none Unit
//	[]X                 X[]
//	Option[X]           Option<X>
//	Result[X, E]        Result<X, E>
//	func(A...) R        sync fn(A...) -> R
//	T, U, E             generic parameters
//	registered types    bound types
//
// A leading *runtime.Context parameter receives the calling context and a
// trailing error result fails the call. A function returning
// runtime.Future[X] is bound as an async function returning X.
package binding

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/chazu/to2/types"
)

// ---------------------------------------------------------------------------
// Registration table
// ---------------------------------------------------------------------------

// Module describes one bound module.
type Module struct {
	Name        string
	Description string
	Types       []Type
	Interfaces  []Interface
	Funcs       []Func
	Constants   []Constant
}

// Type binds a Go type. Zero is a value of the type, typically a nil
// pointer such as (*Task)(nil). Methods take the receiver first, so method
// expressions like (*Task).Cancel can be used directly.
type Type struct {
	Name        string
	Description string
	Zero        any
	TypeParams  []string
	Fields      []Field
	Methods     []Method
}

// Field binds a read-only field through a getter taking the receiver.
type Field struct {
	Name        string
	Description string
	Get         any
}

// Method binds a method. Fn takes the receiver as its first argument.
type Method struct {
	Name        string
	Description string
	Fn          any
	Params      []Param
}

// Interface binds a capability set. Each method is described by a nil
// function value of the wanted signature, without the receiver.
type Interface struct {
	Name        string
	Description string
	Methods     []InterfaceMethod
}

// InterfaceMethod is one method of an Interface.
type InterfaceMethod struct {
	Name      string
	Signature any
}

// Func binds a module function.
type Func struct {
	Name        string
	Description string
	TypeParams  []string
	Fn          any
	Params      []Param
}

// Constant binds a module constant.
type Constant struct {
	Name        string
	Description string
	Value       any
}

// Param names a parameter and optionally gives it a default value. Default
// is nil when the parameter is required.
type Param struct {
	Name        string
	Description string
	Default     any
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// Error is a mistake in a binding table. It is never a script error.
type Error struct {
	Module string
	Member string
	Err    error
}

func (e *Error) Error() string {
	if e.Member == "" {
		return fmt.Sprintf("binding %s: %v", e.Module, e.Err)
	}
	return fmt.Sprintf("binding %s::%s: %v", e.Module, e.Member, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ---------------------------------------------------------------------------
// Bind
// ---------------------------------------------------------------------------

type bindResult struct {
	module *types.CompiledModule
	err    error
}

var (
	bindMu sync.Mutex
	bound  = map[*Module]bindResult{}
)

// Bind builds the compiled module for m. The result is memoized: binding
// the same table again returns the identical module (or error).
func Bind(m *Module) (*types.CompiledModule, error) {
	bindMu.Lock()
	defer bindMu.Unlock()

	if r, ok := bound[m]; ok {
		return r.module, r.err
	}
	module, err := bindModule(m)
	bound[m] = bindResult{module, err}
	return module, err
}

// MustBind is Bind for package initialization; it panics on a binding
// error.
func MustBind(m *Module) *types.CompiledModule {
	module, err := Bind(m)
	if err != nil {
		panic(err)
	}
	return module
}

// bindModule binds a table. Go types are registered before members so that
// signatures can refer to them; they are unregistered again if the table
// fails.
func bindModule(m *Module) (*types.CompiledModule, error) {
	b := &binder{module: m, compiled: types.NewCompiledModule(m.Name, m.Description)}
	compiled, err := b.bind()
	if err != nil {
		for _, goType := range b.registered {
			registry.unregister(goType)
		}
		return nil, err
	}
	return compiled, nil
}

func (b *binder) bind() (*types.CompiledModule, error) {
	m := b.module

	// Types first so that signatures can refer to them, including methods
	// mentioning their own type.
	var boundTypes []*types.BoundType
	for _, t := range m.Types {
		bt, err := b.declareType(t)
		if err != nil {
			return nil, err
		}
		boundTypes = append(boundTypes, bt)
	}
	for i, t := range m.Types {
		if err := b.bindMembers(boundTypes[i], t); err != nil {
			return nil, err
		}
	}
	for _, iface := range m.Interfaces {
		if err := b.bindInterface(iface); err != nil {
			return nil, err
		}
	}
	for _, fn := range m.Funcs {
		f, err := b.bindFunc(fn)
		if err != nil {
			return nil, err
		}
		if err := b.compiled.AddFunction(f); err != nil {
			return nil, b.fail(fn.Name, err)
		}
	}
	for _, c := range m.Constants {
		if err := b.bindConstant(c); err != nil {
			return nil, err
		}
	}
	return b.compiled, nil
}

type binder struct {
	module     *Module
	compiled   *types.CompiledModule
	registered []reflect.Type
}

func (b *binder) fail(member string, err error) *Error {
	return &Error{Module: b.module.Name, Member: member, Err: err}
}

func (b *binder) failf(member, format string, args ...any) *Error {
	return b.fail(member, fmt.Errorf(format, args...))
}

func (b *binder) declareType(t Type) (*types.BoundType, error) {
	if t.Name == "" {
		return nil, b.failf("", "type without a name")
	}
	if t.Zero == nil {
		return nil, b.failf(t.Name, "type needs a Zero value")
	}
	goType := reflect.TypeOf(t.Zero)
	bt := &types.BoundType{
		Module:      b.module.Name,
		TypeName:    t.Name,
		Description: t.Description,
		GoType:      goType,
		TypeParams:  t.TypeParams,
		Members:     map[string]*types.Member{},
	}
	if err := registry.register(goType, bt); err != nil {
		return nil, b.fail(t.Name, err)
	}
	b.registered = append(b.registered, goType)
	b.compiled.AddType(t.Name, bt)
	return bt, nil
}

func (b *binder) bindMembers(bt *types.BoundType, t Type) error {
	for _, f := range t.Fields {
		member := t.Name + "." + f.Name
		fn, err := b.signature(member, f.Get, nil, true)
		if err != nil {
			return err
		}
		if len(fn.Params) != 1 || fn.Async {
			return b.failf(member, "field getter must be a sync function of the receiver")
		}
		bt.Members[f.Name] = &types.Member{
			Name:        f.Name,
			Description: f.Description,
			Field:       true,
			Result:      fn.Result,
			Impl:        fn.Impl,
		}
	}
	for _, m := range t.Methods {
		member := t.Name + "." + m.Name
		if _, dup := bt.Members[m.Name]; dup {
			return b.failf(member, "duplicate member")
		}
		fn, err := b.signature(member, m.Fn, m.Params, true)
		if err != nil {
			return err
		}
		if len(fn.Params) == 0 {
			return b.failf(member, "method must take the receiver first")
		}
		bt.Members[m.Name] = &types.Member{
			Name:        m.Name,
			Description: m.Description,
			Params:      fn.Params[1:],
			Result:      fn.Result,
			Async:       fn.Async,
			Impl:        fn.Impl,
		}
	}
	return nil
}

func (b *binder) bindInterface(iface Interface) error {
	it := &types.InterfaceType{Module: b.module.Name, TypeName: iface.Name, Methods: map[string]*types.FunctionType{}}
	for _, m := range iface.Methods {
		member := iface.Name + "." + m.Name
		ft := reflect.TypeOf(m.Signature)
		if ft == nil || ft.Kind() != reflect.Func {
			return b.failf(member, "signature must be a function value")
		}
		fnType, err := functionType(ft)
		if err != nil {
			return b.fail(member, err)
		}
		it.Methods[m.Name] = fnType
	}
	b.compiled.AddType(iface.Name, it)
	return nil
}

func (b *binder) bindFunc(f Func) (*types.Function, error) {
	fn, err := b.signature(f.Name, f.Fn, f.Params, false)
	if err != nil {
		return nil, err
	}
	fn.Module = b.module.Name
	fn.Description = f.Description
	fn.TypeParams = f.TypeParams
	return fn, nil
}

func (b *binder) bindConstant(c Constant) error {
	if c.Value == nil {
		return b.failf(c.Name, "constant without a value")
	}
	m, err := mapType(reflect.TypeOf(c.Value))
	if err != nil {
		return b.fail(c.Name, err)
	}
	b.compiled.AddConstant(&types.Constant{
		Module:      b.module.Name,
		ConstName:   c.Name,
		Description: c.Description,
		Type:        m.typ,
		Value:       m.toVM(reflect.ValueOf(c.Value)),
	})
	return nil
}

// ---------------------------------------------------------------------------
// Registry of bound Go types
// ---------------------------------------------------------------------------

// typeRegistry maps Go types to the bound types exposing them. A Go type
// can be bound by only one module.
type typeRegistry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*types.BoundType
}

var registry = &typeRegistry{byType: map[reflect.Type]*types.BoundType{}}

func (r *typeRegistry) register(goType reflect.Type, bt *types.BoundType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byType[goType]; ok {
		return fmt.Errorf("Go type %s is already bound as %s", goType, existing.Name())
	}
	r.byType[goType] = bt
	return nil
}

func (r *typeRegistry) unregister(goType reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byType, goType)
}

func (r *typeRegistry) lookup(goType reflect.Type) *types.BoundType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[goType]
}

// BoundTypeOf returns the bound type registered for a Go value's type, or
// nil.
func BoundTypeOf(v any) *types.BoundType {
	return registry.lookup(reflect.TypeOf(v))
}
