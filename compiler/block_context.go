package compiler

import (
	"slices"

	"github.com/chazu/to2/ast"
	"github.com/chazu/to2/parsec"
	"github.com/chazu/to2/runtime"
	"github.com/chazu/to2/types"
	"github.com/chazu/to2/vm"
)

// ---------------------------------------------------------------------------
// BlockContext: one unit being generated
// ---------------------------------------------------------------------------

type variable struct {
	slot     int
	typ      types.RealizedType
	constant bool
}

type loop struct {
	next  *vm.Label
	end   *vm.Label
	depth int
}

// BlockContext type-checks expressions of one function, lambda, default or
// constant initializer and emits their code in the same walk. Computed
// types live here and in the returned values; the tree is never changed.
type BlockContext struct {
	module  *ModuleContext
	builder *vm.UnitBuilder
	emitter vm.Emitter
	name    string
	async   bool

	// result is the declared result type, nil for lambdas without one.
	// inferred then collects the type of the first return.
	result   types.RealizedType
	inferred types.RealizedType

	scopes []map[string]*variable
	loops  []loop
}

func newBlockContext(m *ModuleContext, name string, captures, params int, async bool, result types.RealizedType) *BlockContext {
	builder := vm.NewUnitBuilder(name, captures, params)
	return &BlockContext{
		module:  m,
		builder: builder,
		emitter: builder,
		name:    name,
		async:   async,
		result:  result,
		scopes:  []map[string]*variable{{}},
	}
}

func (b *BlockContext) errorf(span parsec.Range, kind ErrorKind, format string, args ...any) {
	b.module.errorf(span, kind, format, args...)
}

// bindParam names one of the leading capture or parameter slots.
func (b *BlockContext) bindParam(name string, slot int, t types.RealizedType, constant bool) {
	b.scopes[0][name] = &variable{slot: slot, typ: t, constant: constant}
}

func (b *BlockContext) beginScope() {
	b.scopes = append(b.scopes, map[string]*variable{})
	b.emitter.BeginScope()
}

func (b *BlockContext) endScope() {
	b.scopes = b.scopes[:len(b.scopes)-1]
	b.emitter.EndScope()
}

func (b *BlockContext) lookup(name string) *variable {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if v, ok := b.scopes[i][name]; ok {
			return v
		}
	}
	return nil
}

// declareVariable reserves a slot for a local. The name _ gets a slot but
// no binding.
func (b *BlockContext) declareVariable(span parsec.Range, name string, t types.RealizedType, constant bool) *variable {
	v := &variable{slot: b.emitter.DeclareLocal(), typ: t, constant: constant}
	if name == "_" {
		return v
	}
	scope := b.scopes[len(b.scopes)-1]
	if _, dup := scope[name]; dup {
		b.errorf(span, DuplicateVariableName, "variable %s is already declared in this block", name)
	}
	scope[name] = v
	return v
}

func (b *BlockContext) load(slot int) {
	b.emitter.EmitUint16(vm.OpLoadLocal, uint16(slot))
}

func (b *BlockContext) store(slot int) {
	b.emitter.EmitUint16(vm.OpStoreLocal, uint16(slot))
}

// fail keeps the one-value-per-expression invariant after an error.
func (b *BlockContext) fail() types.RealizedType {
	b.emitter.Emit(vm.OpPushUnit)
	return types.Unknown
}

func (b *BlockContext) emitValue(v vm.Value) {
	switch x := v.(type) {
	case runtime.Unit:
		b.emitter.Emit(vm.OpPushUnit)
	case bool:
		if x {
			b.emitter.Emit(vm.OpPushTrue)
		} else {
			b.emitter.Emit(vm.OpPushFalse)
		}
	case int64:
		b.emitter.EmitInt(x)
	case float64:
		b.emitter.EmitFloat64(vm.OpPushFloat, x)
	default:
		b.emitter.EmitConstant(vm.OpPushConst, v)
	}
}

// ---------------------------------------------------------------------------
// Type expectations
// ---------------------------------------------------------------------------

// compileExpected compiles e and converts its value to target.
func (b *BlockContext) compileExpected(e ast.Expression, target types.RealizedType) types.RealizedType {
	t := b.compile(e, target)
	b.coerce(e.Span(), target, t)
	return target
}

// coerce converts the value on top of the stack from source to target, or
// reports that it cannot be.
func (b *BlockContext) coerce(span parsec.Range, target, source types.RealizedType) {
	if !types.IsAssignableFrom(target, source) {
		b.errorf(span, IncompatibleTypes, "expected %s, found %s", target.Name(), source.Name())
		return
	}
	b.convert(target, source)
}

func (b *BlockContext) convert(target, source types.RealizedType) {
	if !types.NeedsConversion(target, source) {
		return
	}
	if target == types.Float && source == types.Int {
		b.emitter.Emit(vm.OpIntToFloat)
		return
	}
	b.emitter.EmitCall(types.Converter(target, source), 1)
}

// adapt converts toward a hint when that is possible, and otherwise leaves
// the value alone.
func (b *BlockContext) adapt(hint, t types.RealizedType) types.RealizedType {
	if hint == nil || hint == types.Unit || t == types.Unknown || types.HasGenerics(hint) {
		return t
	}
	if !types.IsAssignableFrom(hint, t) || !types.NeedsConversion(hint, t) {
		return t
	}
	b.convert(hint, t)
	return hint
}

// compileBody compiles a function or lambda body followed by its return.
func (b *BlockContext) compileBody(body ast.Expression, result types.RealizedType) {
	if result == types.Unit {
		if t := b.compile(body, types.Unit); t != types.Unit {
			b.emitter.Emit(vm.OpPOP)
			b.emitter.Emit(vm.OpPushUnit)
		}
	} else {
		b.compileExpected(body, result)
	}
	b.emitter.Emit(vm.OpReturn)
}

// fieldOf finds a field of a struct, record or tuple.
func fieldOf(t types.RealizedType, name string) (int, types.RealizedType) {
	switch x := t.(type) {
	case *types.DeclaredType:
		if i := x.FieldIndex(name); i >= 0 {
			return i, x.Fields[i].Type
		}
	case *types.RecordType:
		if i := x.FieldIndex(name); i >= 0 {
			return i, x.Fields[i].Type
		}
	case *types.TupleType:
		if i := types.TupleFieldIndex(x, name); i >= 0 {
			return i, x.Items[i]
		}
	}
	return -1, nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
