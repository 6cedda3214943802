// Package types is the TO2 type system: built-in, composite, declared and
// host-bound types, assignability, generic filling and inference, and the
// module/function model shared by the compiler and the binding generator.
package types

import (
	"reflect"
	"strings"

	"github.com/chazu/to2/runtime"
	"github.com/chazu/to2/vm"
)

// RealizedType is a fully resolved type.
type RealizedType interface {
	// Name is the human-readable name, as written in source.
	Name() string
	// Representation is the Go type of values of this type inside the VM.
	Representation() reflect.Type
	// FillGenerics substitutes generic parameters by name. Types without
	// generic parameters return themselves.
	FillGenerics(args map[string]RealizedType) RealizedType
}

var (
	anyType     = reflect.TypeOf((*any)(nil)).Elem()
	recordType  = reflect.TypeOf((*vm.Record)(nil))
	arrayType   = reflect.TypeOf([]vm.Value(nil))
	closureType = reflect.TypeOf((*vm.Closure)(nil))
	futureType  = reflect.TypeOf((*runtime.AnyFuture)(nil)).Elem()
)

// ---------------------------------------------------------------------------
// Built-in types
// ---------------------------------------------------------------------------

// BuiltinType is one of the primitive types.
type BuiltinType struct {
	name string
	repr reflect.Type
}

func (t *BuiltinType) Name() string                                      { return t.name }
func (t *BuiltinType) Representation() reflect.Type                      { return t.repr }
func (t *BuiltinType) FillGenerics(map[string]RealizedType) RealizedType { return t }

var (
	Unit   = &BuiltinType{"Unit", reflect.TypeOf(runtime.Unit{})}
	Bool   = &BuiltinType{"bool", reflect.TypeOf(false)}
	Int    = &BuiltinType{"int", reflect.TypeOf(int64(0))}
	Float  = &BuiltinType{"float", reflect.TypeOf(float64(0))}
	String = &BuiltinType{"string", reflect.TypeOf("")}
	Range  = &BuiltinType{"Range", reflect.TypeOf(vm.Range{})}

	// Unknown is the type of expressions that already failed to check. It
	// is assignable in both directions so one error does not cascade.
	Unknown = &BuiltinType{"<unknown>", anyType}
)

// Builtins maps the names of built-in types.
var Builtins = map[string]RealizedType{
	"Unit":   Unit,
	"unit":   Unit,
	"bool":   Bool,
	"int":    Int,
	"float":  Float,
	"string": String,
	"Range":  Range,
}

// ---------------------------------------------------------------------------
// Composite types
// ---------------------------------------------------------------------------

// OptionType is Option<T>.
type OptionType struct {
	Element RealizedType
}

func (t *OptionType) Name() string                 { return "Option<" + t.Element.Name() + ">" }
func (t *OptionType) Representation() reflect.Type { return reflect.TypeOf(vm.Option{}) }
func (t *OptionType) FillGenerics(args map[string]RealizedType) RealizedType {
	return &OptionType{Element: t.Element.FillGenerics(args)}
}

// ResultType is Result<T, E>.
type ResultType struct {
	Value RealizedType
	Error RealizedType
}

func (t *ResultType) Name() string {
	return "Result<" + t.Value.Name() + ", " + t.Error.Name() + ">"
}
func (t *ResultType) Representation() reflect.Type { return reflect.TypeOf(vm.Result{}) }
func (t *ResultType) FillGenerics(args map[string]RealizedType) RealizedType {
	return &ResultType{Value: t.Value.FillGenerics(args), Error: t.Error.FillGenerics(args)}
}

// ArrayType is T[].
type ArrayType struct {
	Element RealizedType
}

func (t *ArrayType) Name() string                 { return t.Element.Name() + "[]" }
func (t *ArrayType) Representation() reflect.Type { return arrayType }
func (t *ArrayType) FillGenerics(args map[string]RealizedType) RealizedType {
	return &ArrayType{Element: t.Element.FillGenerics(args)}
}

// TupleType is (T1, T2, ...). Fields are addressed as _1, _2, ...
type TupleType struct {
	Items []RealizedType
}

func (t *TupleType) Name() string                 { return "(" + joinNames(t.Items) + ")" }
func (t *TupleType) Representation() reflect.Type { return recordType }
func (t *TupleType) FillGenerics(args map[string]RealizedType) RealizedType {
	return &TupleType{Items: fillAll(t.Items, args)}
}

// RecordField is a named member of a record or struct.
type RecordField struct {
	Name        string
	Description string
	Type        RealizedType
}

// RecordType is a structural record (a: T, b: U). Two records with the
// same fields in the same order are the same type, wherever declared.
type RecordType struct {
	Fields []RecordField
}

func (t *RecordType) Name() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.Name + " : " + f.Type.Name()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
func (t *RecordType) Representation() reflect.Type { return recordType }
func (t *RecordType) FillGenerics(args map[string]RealizedType) RealizedType {
	fields := make([]RecordField, len(t.Fields))
	for i, f := range t.Fields {
		fields[i] = RecordField{Name: f.Name, Description: f.Description, Type: f.Type.FillGenerics(args)}
	}
	return &RecordType{Fields: fields}
}

// FieldIndex returns the position of a field, or -1.
func (t *RecordType) FieldIndex(name string) int {
	return fieldIndex(t.Fields, name)
}

// FunctionType is sync fn(P...) -> R or fn(P...) -> R.
type FunctionType struct {
	Async  bool
	Params []RealizedType
	Result RealizedType
}

func (t *FunctionType) Name() string {
	prefix := "sync fn"
	if t.Async {
		prefix = "fn"
	}
	return prefix + "(" + joinNames(t.Params) + ") -> " + t.Result.Name()
}
func (t *FunctionType) Representation() reflect.Type { return closureType }
func (t *FunctionType) FillGenerics(args map[string]RealizedType) RealizedType {
	return &FunctionType{Async: t.Async, Params: fillAll(t.Params, args), Result: t.Result.FillGenerics(args)}
}

// GenericParameter is a named type variable.
type GenericParameter struct {
	Param string
}

func (t *GenericParameter) Name() string                 { return t.Param }
func (t *GenericParameter) Representation() reflect.Type { return anyType }
func (t *GenericParameter) FillGenerics(args map[string]RealizedType) RealizedType {
	if r, ok := args[t.Param]; ok && r != nil {
		return r
	}
	return t
}

// FutureType is the value produced by calling an async function without
// awaiting it. It only appears inside the compiler and bindings.
type FutureType struct {
	Result RealizedType
}

func (t *FutureType) Name() string                 { return "Future<" + t.Result.Name() + ">" }
func (t *FutureType) Representation() reflect.Type { return futureType }
func (t *FutureType) FillGenerics(args map[string]RealizedType) RealizedType {
	return &FutureType{Result: t.Result.FillGenerics(args)}
}

// ---------------------------------------------------------------------------
// Declared (struct) types
// ---------------------------------------------------------------------------

// DeclaredType is a struct authored in TO2. Fields are resolved together
// with function signatures; until then only the name is known.
type DeclaredType struct {
	Module      string
	TypeName    string
	Description string
	Fields      []RecordField
	Methods     map[string]*FunctionSelector
	Constructor *Function
}

// NewDeclaredType creates a struct type with no fields yet.
func NewDeclaredType(module, name, description string) *DeclaredType {
	return &DeclaredType{Module: module, TypeName: name, Description: description, Methods: map[string]*FunctionSelector{}}
}

func (t *DeclaredType) Name() string                                      { return qualify(t.Module, t.TypeName) }
func (t *DeclaredType) Representation() reflect.Type                      { return recordType }
func (t *DeclaredType) FillGenerics(map[string]RealizedType) RealizedType { return t }

// FieldIndex returns the layout position of a field, or -1.
func (t *DeclaredType) FieldIndex(name string) int {
	return fieldIndex(t.Fields, name)
}

// FindMethod returns a method selector, or nil.
func (t *DeclaredType) FindMethod(name string) *FunctionSelector {
	return t.Methods[name]
}

// ---------------------------------------------------------------------------
// Bound (host) types
// ---------------------------------------------------------------------------

// BoundType is a host Go type exposed to scripts. Generic bound types list
// their parameter names; FillGenerics instantiates members.
type BoundType struct {
	Module      string
	TypeName    string
	Description string
	GoType      reflect.Type
	TypeParams  []string
	TypeArgs    []RealizedType
	Members     map[string]*Member
	origin      *BoundType
}

func (t *BoundType) Name() string {
	name := qualify(t.Module, t.TypeName)
	switch {
	case len(t.TypeArgs) > 0:
		name += "<" + joinNames(t.TypeArgs) + ">"
	case len(t.TypeParams) > 0:
		name += "<" + strings.Join(t.TypeParams, ", ") + ">"
	}
	return name
}
func (t *BoundType) Representation() reflect.Type { return t.GoType }

// FillGenerics instantiates a generic bound type.
func (t *BoundType) FillGenerics(args map[string]RealizedType) RealizedType {
	if len(t.TypeParams) == 0 {
		return t
	}
	current := t.TypeArgs
	if len(current) == 0 {
		current = make([]RealizedType, len(t.TypeParams))
		for i, p := range t.TypeParams {
			current[i] = &GenericParameter{Param: p}
		}
	}
	filled := fillAll(current, args)
	return t.Origin().Instantiate(filled)
}

// Origin returns the uninstantiated generic type.
func (t *BoundType) Origin() *BoundType {
	if t.origin != nil {
		return t.origin
	}
	return t
}

// Instantiate binds the type parameters positionally. Members stay with the
// origin; use Member to look them up.
func (t *BoundType) Instantiate(args []RealizedType) *BoundType {
	origin := t.Origin()
	return &BoundType{
		Module:      origin.Module,
		TypeName:    origin.TypeName,
		Description: origin.Description,
		GoType:      origin.GoType,
		TypeParams:  origin.TypeParams,
		TypeArgs:    args,
		origin:      origin,
	}
}

// Member returns the named field or method. Members of an instance are
// filled from its origin on lookup, so an instance created while the origin
// is still being bound sees every member added later.
func (t *BoundType) Member(name string) *Member {
	if t.origin == nil {
		return t.Members[name]
	}
	m := t.origin.Members[name]
	if m == nil {
		return nil
	}
	bindings := make(map[string]RealizedType, len(t.TypeArgs))
	for i, p := range t.origin.TypeParams {
		if i < len(t.TypeArgs) {
			bindings[p] = t.TypeArgs[i]
		}
	}
	return m.fill(bindings)
}

// ---------------------------------------------------------------------------
// Interface (capability set) types
// ---------------------------------------------------------------------------

// InterfaceType is a host-declared capability set: any declared or bound
// type whose methods cover Methods is assignable to it.
type InterfaceType struct {
	Module   string
	TypeName string
	Methods  map[string]*FunctionType
}

func (t *InterfaceType) Name() string                                      { return qualify(t.Module, t.TypeName) }
func (t *InterfaceType) Representation() reflect.Type                      { return anyType }
func (t *InterfaceType) FillGenerics(map[string]RealizedType) RealizedType { return t }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func qualify(module, name string) string {
	if module == "" {
		return name
	}
	return module + "::" + name
}

func joinNames(ts []RealizedType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.Name()
	}
	return strings.Join(parts, ", ")
}

func fillAll(ts []RealizedType, args map[string]RealizedType) []RealizedType {
	out := make([]RealizedType, len(ts))
	for i, t := range ts {
		out[i] = t.FillGenerics(args)
	}
	return out
}

func fieldIndex(fields []RecordField, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// TupleFieldIndex maps _1, _2, ... to positions, or returns -1.
func TupleFieldIndex(t *TupleType, name string) int {
	if len(name) < 2 || name[0] != '_' {
		return -1
	}
	n := 0
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	if n < 1 || n > len(t.Items) {
		return -1
	}
	return n - 1
}
