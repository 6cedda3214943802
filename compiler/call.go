package compiler

import (
	"github.com/chazu/to2/ast"
	"github.com/chazu/to2/parsec"
	"github.com/chazu/to2/types"
	"github.com/chazu/to2/vm"
)

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// compileCall resolves a call by name: a closure held in a local comes
// first, then module and imported functions, then struct constructors.
func (b *BlockContext) compileCall(x *ast.Call, hint types.RealizedType) types.RealizedType {
	if x.Module == "" {
		if v := b.lookup(x.Name); v != nil {
			b.load(v.slot)
			return b.callClosure(x.Span(), x.Name, v.typ, x.Args)
		}
	}
	if sel := b.module.findFunction(x.Module, x.Name); sel != nil {
		fn := sel.Select(b.async)
		if fn == nil {
			b.errorf(x.Span(), InvalidScope, "async function %s cannot be called from sync code", x.Name)
			return b.abandon(0, x.Args)
		}
		return b.emitCallArgs(x.Span(), fn, x.Args, hint, nil, x.TypeArgs)
	}
	if ctor := b.module.findConstructor(x.Module, x.Name); ctor != nil {
		return b.emitCallArgs(x.Span(), ctor, x.Args, hint, nil, nil)
	}
	if x.Module != "" && b.module.resolveSource(x.Module) == nil {
		b.errorf(x.Span(), NoSuchModule, "no module %s", x.Module)
		return b.abandon(0, x.Args)
	}
	b.errorf(x.Span(), NoSuchFunction, "no function %s", qualifiedRef(x.Module, x.Name))
	return b.abandon(0, x.Args)
}

// abandon drops n values already pushed for a failed call, still checks
// the arguments, and pushes the error placeholder.
func (b *BlockContext) abandon(n int, args []ast.Expression) types.RealizedType {
	for range n {
		b.emitter.Emit(vm.OpPOP)
	}
	for _, a := range args {
		b.discard(a)
	}
	return b.fail()
}

// await suspends on the future an async call left on the stack.
func (b *BlockContext) await(span parsec.Range, name string) {
	if !b.async {
		b.errorf(span, InvalidScope, "async %s cannot be called from sync code", name)
	}
	b.emitter.Emit(vm.OpAwait)
}

// callClosure calls the closure on top of the stack.
func (b *BlockContext) callClosure(span parsec.Range, name string, t types.RealizedType, args []ast.Expression) types.RealizedType {
	ft, ok := t.(*types.FunctionType)
	if !ok {
		if t != types.Unknown {
			b.errorf(span, IncompatibleTypes, "%s is a %s, not a function", name, t.Name())
		}
		return b.abandon(1, args)
	}
	if len(args) != len(ft.Params) {
		b.errorf(span, ArgumentMismatch, "%s expects %d arguments, got %d", name, len(ft.Params), len(args))
		return b.abandon(1, args)
	}
	for i, a := range args {
		b.compileExpected(a, ft.Params[i])
	}
	b.emitter.EmitCallClosure(len(args))
	if ft.Async {
		b.await(span, name)
	}
	return ft.Result
}

// typeArguments binds explicitly written generic arguments.
func (b *BlockContext) typeArguments(span parsec.Range, fn *types.Function, refs []ast.TypeRef) map[string]types.RealizedType {
	bindings := map[string]types.RealizedType{}
	if len(refs) == 0 {
		return bindings
	}
	if len(refs) != len(fn.TypeParams) {
		b.errorf(span, ArgumentMismatch, "%s takes %d type arguments, got %d", fn.FuncName, len(fn.TypeParams), len(refs))
		return bindings
	}
	for i, ref := range refs {
		bindings[fn.TypeParams[i]] = b.module.resolveType(ref)
	}
	return bindings
}

// emitCallArgs pushes the arguments of a direct call and emits it. The
// values of receivers, if any, are already on the stack. Generic
// parameters are inferred from the receivers and arguments first and from
// the expected result last.
func (b *BlockContext) emitCallArgs(span parsec.Range, fn *types.Function, args []ast.Expression, hint types.RealizedType, receivers []types.RealizedType, typeArgs []ast.TypeRef) types.RealizedType {
	params := fn.Params[len(receivers):]
	required := fn.RequiredParams() - len(receivers)
	if len(args) > len(params) || len(args) < required {
		if required == len(params) {
			b.errorf(span, ArgumentMismatch, "%s expects %d arguments, got %d", fn.FuncName, len(params), len(args))
		} else {
			b.errorf(span, ArgumentMismatch, "%s expects %d to %d arguments, got %d", fn.FuncName, required, len(params), len(args))
		}
		return b.abandon(len(receivers), args)
	}

	bindings := b.typeArguments(span, fn, typeArgs)
	for i, rt := range receivers {
		types.InferGenerics(fn.Params[i].Type, rt, bindings)
	}
	sawUnknown := false
	for i, a := range args {
		pt := params[i].Type.FillGenerics(bindings)
		if !types.HasGenerics(pt) {
			b.compileExpected(a, pt)
			continue
		}
		at := b.compile(a, pt)
		if at == types.Unknown {
			sawUnknown = true
			continue
		}
		types.InferGenerics(pt, at, bindings)
		if filled := pt.FillGenerics(bindings); !types.HasGenerics(filled) {
			b.coerce(a.Span(), filled, at)
		}
	}
	for i := len(args); i < len(params); i++ {
		d := params[i].Default
		if d.HasConstant {
			b.emitValue(d.Constant)
		} else {
			b.emitter.EmitCall(d.Generator, 0)
		}
	}

	if hint != nil && hint != types.Unit {
		types.InferGenerics(fn.Result, hint, bindings)
	}
	result := fn.Result.FillGenerics(bindings)
	if types.HasGenerics(result) {
		if !sawUnknown {
			b.errorf(span, UnresolvedGeneric, "cannot infer %v for the result of %s", types.FreeGenerics(result), fn.FuncName)
		}
		result = types.Unknown
	}

	b.emitter.EmitCall(fn.Impl, len(fn.Params))
	if fn.Async {
		b.await(span, fn.FuncName)
	}
	return result
}

// compileMethodCall resolves target.name(args): struct methods first, then
// fields holding closures, then members of built-in and bound types.
func (b *BlockContext) compileMethodCall(x *ast.MethodCall, hint types.RealizedType) types.RealizedType {
	tt := b.compile(x.Target, nil)
	if tt == types.Unknown {
		return b.abandon(1, x.Args)
	}
	receiver := []types.RealizedType{tt}
	if d, ok := tt.(*types.DeclaredType); ok {
		if sel := d.FindMethod(x.Method); sel != nil {
			fn := sel.Select(b.async)
			if fn == nil {
				b.errorf(x.Span(), InvalidScope, "async method %s cannot be called from sync code", x.Method)
				return b.abandon(1, x.Args)
			}
			return b.emitCallArgs(x.Span(), fn, x.Args, hint, receiver, nil)
		}
	}
	if idx, ft := fieldOf(tt, x.Method); idx >= 0 {
		if _, ok := ft.(*types.FunctionType); ok {
			b.emitter.EmitUint16(vm.OpGetField, uint16(idx))
			return b.callClosure(x.Span(), x.Method, ft, x.Args)
		}
	}
	if m := types.FindMember(tt, x.Method); m != nil && !m.Field {
		return b.emitCallArgs(x.Span(), m.AsFunction(tt), x.Args, hint, receiver, nil)
	}
	b.errorf(x.Span(), NoSuchMethod, "%s has no method %s", tt.Name(), x.Method)
	return b.abandon(1, x.Args)
}
