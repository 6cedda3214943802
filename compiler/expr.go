package compiler

import (
	"fmt"

	"github.com/chazu/to2/ast"
	"github.com/chazu/to2/parsec"
	"github.com/chazu/to2/types"
	"github.com/chazu/to2/vm"
)

// ---------------------------------------------------------------------------
// Expression dispatch
// ---------------------------------------------------------------------------

// compile emits code leaving exactly one value on the stack and returns its
// type. hint is the type the context expects, if any; it guides literals,
// lambdas and generic inference but is not enforced. A Unit hint marks
// statement position.
func (b *BlockContext) compile(e ast.Expression, hint types.RealizedType) types.RealizedType {
	switch x := e.(type) {
	case *ast.IntLiteral:
		b.emitter.EmitInt(x.Value)
		return types.Int
	case *ast.FloatLiteral:
		b.emitter.EmitFloat64(vm.OpPushFloat, x.Value)
		return types.Float
	case *ast.BoolLiteral:
		b.emitValue(x.Value)
		return types.Bool
	case *ast.StringLiteral:
		b.emitter.EmitConstant(vm.OpPushConst, x.Value)
		return types.String
	case *ast.UnitLiteral:
		b.emitter.Emit(vm.OpPushUnit)
		return types.Unit
	case *ast.StringInterpolation:
		return b.compileInterpolation(x)
	case *ast.VariableGet:
		return b.compileVariable(x)
	case *ast.Call:
		return b.compileCall(x, hint)
	case *ast.FieldGet:
		return b.emitFieldGet(x.Span(), b.compile(x.Target, nil), x.Field)
	case *ast.MethodCall:
		return b.compileMethodCall(x, hint)
	case *ast.IndexGet:
		return b.compileIndex(x)
	case *ast.Unwrap:
		return b.compileUnwrap(x)
	case *ast.Unary:
		return b.compileUnary(x)
	case *ast.Binary:
		return b.compileBinary(x)
	case *ast.Assign:
		return b.compileAssign(x)
	case *ast.RangeCreate:
		b.compileExpected(x.From, types.Int)
		b.compileExpected(x.To, types.Int)
		var inclusive byte
		if x.Inclusive {
			inclusive = 1
		}
		b.emitter.EmitByte(vm.OpMakeRange, inclusive)
		return types.Range
	case *ast.ArrayCreate:
		return b.compileArray(x, hint)
	case *ast.TupleCreate:
		return b.compileTuple(x, hint)
	case *ast.RecordCreate:
		return b.compileRecord(x, hint)
	case *ast.RecordUpdate:
		return b.compileRecordUpdate(x, hint)
	case *ast.Lambda:
		return b.compileLambda(x, hint)
	case *ast.Block:
		return b.compileBlock(x, hint)
	case *ast.If:
		return b.compileIf(x, hint)
	case *ast.While:
		return b.compileWhile(x)
	case *ast.For:
		return b.compileFor(x)
	case *ast.Return:
		return b.compileReturn(x)
	case *ast.Break:
		return b.compileJump(x.Span(), "break", func(l loop) *vm.Label { return l.end })
	case *ast.Continue:
		return b.compileJump(x.Span(), "continue", func(l loop) *vm.Label { return l.next })
	case *ast.Unapply:
		b.errorf(x.Span(), InvalidPattern, "%s(%s) = ... is only allowed as an if or while condition", x.Pattern, x.Binding)
		return b.fail()
	case *ast.ErrorExpr:
		// Reported as a parse error.
		return b.fail()
	}
	b.errorf(e.Span(), InvalidOperator, "unsupported expression %T", e)
	return b.fail()
}

// ---------------------------------------------------------------------------
// Names
// ---------------------------------------------------------------------------

func (b *BlockContext) compileVariable(x *ast.VariableGet) types.RealizedType {
	if x.Module == "" {
		if v := b.lookup(x.Name); v != nil {
			b.load(v.slot)
			return v.typ
		}
	}
	if c := b.module.findConstant(x.Module, x.Name); c != nil {
		return b.emitConstant(c)
	}
	if sel := b.module.findFunction(x.Module, x.Name); sel != nil {
		fn := sel.Select(b.async)
		if fn == nil {
			fn = sel.Any()
		}
		if len(fn.TypeParams) > 0 {
			b.errorf(x.Span(), UnresolvedGeneric, "generic function %s cannot be used as a value", x.Name)
			return b.fail()
		}
		b.emitter.EmitMakeClosure(fn.Impl, 0)
		return fn.Type()
	}
	if x.Module != "" && b.module.resolveSource(x.Module) == nil {
		b.errorf(x.Span(), NoSuchModule, "no module %s", x.Module)
		return b.fail()
	}
	b.errorf(x.Span(), NoSuchVariable, "no variable, constant or function %s", qualifiedRef(x.Module, x.Name))
	return b.fail()
}

func (b *BlockContext) emitConstant(c *constantRef) types.RealizedType {
	if c.bound != nil {
		b.emitValue(c.bound.Value)
		return c.bound.Type
	}
	t := c.info.module.ensureConstant(c.info)
	b.emitter.EmitCall(c.info.getter, 0)
	return t
}

func qualifiedRef(module, name string) string {
	if module == "" {
		return name
	}
	return module + "::" + name
}

func (b *BlockContext) compileInterpolation(x *ast.StringInterpolation) types.RealizedType {
	if len(x.Parts) == 0 {
		b.emitter.EmitConstant(vm.OpPushConst, "")
		return types.String
	}
	for i, part := range x.Parts {
		if t := b.compile(part, nil); t != types.String {
			b.emitter.Emit(vm.OpToString)
		}
		if i > 0 {
			b.emitter.Emit(vm.OpConcat)
		}
	}
	return types.String
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

var intOps = map[ast.Operator]vm.Opcode{
	ast.OpAdd:    vm.OpAddInt,
	ast.OpSub:    vm.OpSubInt,
	ast.OpMul:    vm.OpMulInt,
	ast.OpDiv:    vm.OpDivInt,
	ast.OpMod:    vm.OpModInt,
	ast.OpPow:    vm.OpPowInt,
	ast.OpBitAnd: vm.OpBitAnd,
	ast.OpBitOr:  vm.OpBitOr,
	ast.OpBitXor: vm.OpBitXor,
}

var floatOps = map[ast.Operator]vm.Opcode{
	ast.OpAdd: vm.OpAddFloat,
	ast.OpSub: vm.OpSubFloat,
	ast.OpMul: vm.OpMulFloat,
	ast.OpDiv: vm.OpDivFloat,
	ast.OpMod: vm.OpModFloat,
	ast.OpPow: vm.OpPowFloat,
}

var compareOps = map[ast.Operator]vm.Opcode{
	ast.OpEq: vm.OpEQ,
	ast.OpNe: vm.OpNE,
	ast.OpLt: vm.OpLT,
	ast.OpLe: vm.OpLE,
	ast.OpGt: vm.OpGT,
	ast.OpGe: vm.OpGE,
}

func numeric(t types.RealizedType) bool {
	return t == types.Int || t == types.Float
}

func (b *BlockContext) compileUnary(x *ast.Unary) types.RealizedType {
	t := b.compile(x.Operand, nil)
	switch {
	case t == types.Unknown:
		return t
	case x.Op == ast.OpNeg && t == types.Int:
		b.emitter.Emit(vm.OpNegInt)
		return t
	case x.Op == ast.OpNeg && t == types.Float:
		b.emitter.Emit(vm.OpNegFloat)
		return t
	case x.Op == ast.OpNot && t == types.Bool:
		b.emitter.Emit(vm.OpNot)
		return t
	case x.Op == ast.OpBitNot && t == types.Int:
		b.emitter.Emit(vm.OpBitNot)
		return t
	}
	b.errorf(x.Span(), InvalidOperator, "operator %s cannot be applied to %s", x.Op, t.Name())
	return types.Unknown
}

func (b *BlockContext) compileBinary(x *ast.Binary) types.RealizedType {
	if x.Op.IsBoolean() {
		return b.compileLogical(x)
	}
	lt := b.compile(x.Left, nil)
	var rhint types.RealizedType
	if lt != types.Unknown {
		rhint = lt
	}
	rt := b.compile(x.Right, rhint)
	return b.emitBinary(x.Span(), x.Op, lt, rt)
}

// emitBinary combines the two values on top of the stack.
func (b *BlockContext) emitBinary(span parsec.Range, op ast.Operator, lt, rt types.RealizedType) types.RealizedType {
	if lt == types.Unknown || rt == types.Unknown {
		b.emitter.Emit(vm.OpPOP)
		return types.Unknown
	}
	if cmp, ok := compareOps[op]; ok {
		switch {
		case numeric(lt) && numeric(rt):
			b.widen(lt, rt)
		case op == ast.OpEq || op == ast.OpNe:
			if !types.IsAssignableFrom(lt, rt) && !types.IsAssignableFrom(rt, lt) {
				return b.invalidOperands(span, op, lt, rt)
			}
		case lt == types.String && rt == types.String:
		default:
			return b.invalidOperands(span, op, lt, rt)
		}
		b.emitter.Emit(cmp)
		return types.Bool
	}
	if op == ast.OpAdd && lt == types.String {
		if rt != types.String {
			b.emitter.Emit(vm.OpToString)
		}
		b.emitter.Emit(vm.OpConcat)
		return types.String
	}
	if lt == types.Int && rt == types.Int {
		if code, ok := intOps[op]; ok {
			b.emitter.Emit(code)
			return types.Int
		}
	}
	if numeric(lt) && numeric(rt) {
		if code, ok := floatOps[op]; ok {
			b.widen(lt, rt)
			b.emitter.Emit(code)
			return types.Float
		}
	}
	return b.invalidOperands(span, op, lt, rt)
}

func (b *BlockContext) invalidOperands(span parsec.Range, op ast.Operator, lt, rt types.RealizedType) types.RealizedType {
	b.errorf(span, InvalidOperator, "operator %s cannot be applied to %s and %s", op, lt.Name(), rt.Name())
	b.emitter.Emit(vm.OpPOP)
	return types.Unknown
}

// widen converts an int operand to float when the other one is a float.
func (b *BlockContext) widen(lt, rt types.RealizedType) {
	if lt == types.Int && rt == types.Float {
		b.emitter.Emit(vm.OpSWAP)
		b.emitter.Emit(vm.OpIntToFloat)
		b.emitter.Emit(vm.OpSWAP)
	}
	if lt == types.Float && rt == types.Int {
		b.emitter.Emit(vm.OpIntToFloat)
	}
}

// compileLogical short-circuits && and ||.
func (b *BlockContext) compileLogical(x *ast.Binary) types.RealizedType {
	b.compileExpected(x.Left, types.Bool)
	end := b.emitter.NewLabel()
	b.emitter.Emit(vm.OpDUP)
	if x.Op == ast.OpAnd {
		b.emitter.EmitJump(vm.OpJumpFalse, end)
	} else {
		b.emitter.EmitJump(vm.OpJumpTrue, end)
	}
	b.emitter.Emit(vm.OpPOP)
	b.compileExpected(x.Right, types.Bool)
	b.emitter.Mark(end)
	return types.Bool
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

func (b *BlockContext) compileAssign(x *ast.Assign) types.RealizedType {
	switch target := x.Target.(type) {
	case *ast.VariableGet:
		b.assignVariable(x, target)
	case *ast.FieldGet:
		b.assignField(x, target)
	case *ast.IndexGet:
		b.errorf(x.Span(), InvalidAssignment, "array elements cannot be assigned")
		b.discard(x.Value)
	default:
		b.errorf(x.Span(), InvalidAssignment, "cannot assign to %s", ast.Format(x.Target))
		b.discard(x.Value)
	}
	b.emitter.Emit(vm.OpPushUnit)
	return types.Unit
}

// discard compiles e for its errors and drops the value.
func (b *BlockContext) discard(e ast.Expression) {
	b.compile(e, nil)
	b.emitter.Emit(vm.OpPOP)
}

func (b *BlockContext) assignVariable(x *ast.Assign, target *ast.VariableGet) {
	var v *variable
	if target.Module == "" {
		v = b.lookup(target.Name)
	}
	switch {
	case v == nil && b.module.findConstant(target.Module, target.Name) != nil:
		b.errorf(x.Span(), InvalidAssignment, "cannot assign to constant %s", target.Name)
	case v == nil:
		b.errorf(x.Span(), NoSuchVariable, "no variable %s", qualifiedRef(target.Module, target.Name))
	case v.constant:
		b.errorf(x.Span(), InvalidAssignment, "cannot assign to constant %s", target.Name)
	}
	if v == nil || v.constant {
		b.discard(x.Value)
		return
	}
	if op := x.Op.Arithmetic(); op != ast.OpInvalid {
		b.load(v.slot)
		rt := b.compile(x.Value, v.typ)
		b.coerce(x.Span(), v.typ, b.emitBinary(x.Span(), op, v.typ, rt))
	} else {
		b.compileExpected(x.Value, v.typ)
	}
	b.store(v.slot)
}

// assignField stores into a field. Structs are updated in place; records
// and tuples are values, so the variable holding one gets a changed copy.
func (b *BlockContext) assignField(x *ast.Assign, target *ast.FieldGet) {
	var holder *variable
	tt := b.compile(target.Target, nil)
	if tt == types.Unknown {
		b.emitter.Emit(vm.OpPOP)
		b.discard(x.Value)
		return
	}
	idx, ft := fieldOf(tt, target.Field)
	if idx < 0 {
		b.errorf(target.Span(), NoSuchField, "%s has no field %s", tt.Name(), target.Field)
		b.emitter.Emit(vm.OpPOP)
		b.discard(x.Value)
		return
	}
	if _, isStruct := tt.(*types.DeclaredType); !isStruct {
		if vg, ok := target.Target.(*ast.VariableGet); ok && vg.Module == "" {
			holder = b.lookup(vg.Name)
		}
		if holder == nil || holder.constant {
			b.errorf(x.Span(), InvalidAssignment, "fields of %s can only be assigned through a variable", tt.Name())
			b.emitter.Emit(vm.OpPOP)
			b.discard(x.Value)
			return
		}
		b.emitter.Emit(vm.OpCopyRecord)
	}
	if op := x.Op.Arithmetic(); op != ast.OpInvalid {
		b.emitter.Emit(vm.OpDUP)
		b.emitter.EmitUint16(vm.OpGetField, uint16(idx))
		rt := b.compile(x.Value, ft)
		b.coerce(x.Span(), ft, b.emitBinary(x.Span(), op, ft, rt))
	} else {
		b.compileExpected(x.Value, ft)
	}
	b.emitter.EmitUint16(vm.OpSetField, uint16(idx))
	if holder != nil {
		b.store(holder.slot)
	} else {
		b.emitter.Emit(vm.OpPOP)
	}
}

// ---------------------------------------------------------------------------
// Fields and indexing
// ---------------------------------------------------------------------------

// emitFieldGet replaces the value on top of the stack by one of its fields.
func (b *BlockContext) emitFieldGet(span parsec.Range, t types.RealizedType, name string) types.RealizedType {
	if t == types.Unknown {
		return t
	}
	if idx, ft := fieldOf(t, name); idx >= 0 {
		b.emitter.EmitUint16(vm.OpGetField, uint16(idx))
		return ft
	}
	if m := types.FindMember(t, name); m != nil && m.Field {
		b.emitter.EmitCall(m.Impl, 1)
		return m.Result
	}
	b.errorf(span, NoSuchField, "%s has no field %s", t.Name(), name)
	return types.Unknown
}

func (b *BlockContext) compileIndex(x *ast.IndexGet) types.RealizedType {
	t := b.compile(x.Target, nil)
	b.compileExpected(x.Index, types.Int)
	var elem types.RealizedType
	switch tt := t.(type) {
	case *types.ArrayType:
		elem = tt.Element
	case *types.BuiltinType:
		switch tt {
		case types.String:
			elem = types.String
		case types.Range:
			elem = types.Int
		case types.Unknown:
			b.emitter.Emit(vm.OpPOP)
			return types.Unknown
		}
	}
	if elem == nil {
		b.errorf(x.Span(), InvalidOperator, "%s cannot be indexed", t.Name())
		b.emitter.Emit(vm.OpPOP)
		return types.Unknown
	}
	b.emitter.Emit(vm.OpIndex)
	return elem
}

// ---------------------------------------------------------------------------
// Composites
// ---------------------------------------------------------------------------

func (b *BlockContext) compileArray(x *ast.ArrayCreate, hint types.RealizedType) types.RealizedType {
	var elem types.RealizedType
	if at, ok := hint.(*types.ArrayType); ok && !types.HasGenerics(at.Element) {
		elem = at.Element
	}
	for _, e := range x.Elements {
		if elem == nil {
			elem = b.compile(e, nil)
		} else {
			b.compileExpected(e, elem)
		}
	}
	if elem == nil {
		elem = types.Unknown
	}
	b.emitter.EmitNewArray(len(x.Elements))
	return &types.ArrayType{Element: elem}
}

func (b *BlockContext) compileTuple(x *ast.TupleCreate, hint types.RealizedType) types.RealizedType {
	th, _ := hint.(*types.TupleType)
	if th != nil && len(th.Items) != len(x.Items) {
		th = nil
	}
	b.emitter.EmitUint16(vm.OpNewRecord, uint16(len(x.Items)))
	items := make([]types.RealizedType, len(x.Items))
	for i, item := range x.Items {
		var h types.RealizedType
		if th != nil {
			h = th.Items[i]
		}
		items[i] = b.adapt(h, b.compile(item, h))
		b.emitter.EmitUint16(vm.OpSetField, uint16(i))
	}
	return &types.TupleType{Items: items}
}

func (b *BlockContext) compileRecord(x *ast.RecordCreate, hint types.RealizedType) types.RealizedType {
	rh, _ := hint.(*types.RecordType)
	b.emitter.EmitUint16(vm.OpNewRecord, uint16(len(x.Fields)))
	fields := make([]types.RecordField, len(x.Fields))
	seen := map[string]bool{}
	for i, f := range x.Fields {
		if seen[f.Name] {
			b.errorf(f.SpanVal, InvalidType, "field %s appears twice", f.Name)
		}
		seen[f.Name] = true
		var h types.RealizedType
		if rh != nil {
			if idx := rh.FieldIndex(f.Name); idx >= 0 {
				h = rh.Fields[idx].Type
			}
		}
		fields[i] = types.RecordField{Name: f.Name, Type: b.adapt(h, b.compile(f.Value, h))}
		b.emitter.EmitUint16(vm.OpSetField, uint16(i))
	}
	return &types.RecordType{Fields: fields}
}

// compileRecordUpdate copies the base and overwrites the named fields in
// the order they are written.
func (b *BlockContext) compileRecordUpdate(x *ast.RecordUpdate, hint types.RealizedType) types.RealizedType {
	t := b.compile(x.Base, hint)
	if t == types.Unknown {
		for _, f := range x.Fields {
			b.discard(f.Value)
		}
		return t
	}
	switch t.(type) {
	case *types.DeclaredType, *types.RecordType, *types.TupleType:
	default:
		b.errorf(x.Span(), InvalidOperator, "%s cannot be updated with &", t.Name())
		b.emitter.Emit(vm.OpPOP)
		for _, f := range x.Fields {
			b.discard(f.Value)
		}
		return b.fail()
	}
	b.emitter.Emit(vm.OpCopyRecord)
	for _, f := range x.Fields {
		idx, ft := fieldOf(t, f.Name)
		if idx < 0 {
			b.errorf(f.SpanVal, NoSuchField, "%s has no field %s", t.Name(), f.Name)
			b.discard(f.Value)
			continue
		}
		b.compileExpected(f.Value, ft)
		b.emitter.EmitUint16(vm.OpSetField, uint16(idx))
	}
	return t
}

// ---------------------------------------------------------------------------
// Lambdas
// ---------------------------------------------------------------------------

type capture struct {
	name string
	v    *variable
}

// freeVariables lists the enclosing locals a lambda body refers to, in
// order of first use.
func (b *BlockContext) freeVariables(x *ast.Lambda) []capture {
	params := map[string]bool{}
	for _, p := range x.Params {
		params[p.Name] = true
	}
	seen := map[string]bool{}
	var out []capture
	ast.Walk(x.Body, func(n ast.Node) bool {
		var name string
		switch r := n.(type) {
		case *ast.VariableGet:
			if r.Module == "" {
				name = r.Name
			}
		case *ast.Call:
			if r.Module == "" {
				name = r.Name
			}
		}
		if name == "" || params[name] || seen[name] {
			return true
		}
		if v := b.lookup(name); v != nil {
			seen[name] = true
			out = append(out, capture{name: name, v: v})
		}
		return true
	})
	return out
}

// compileLambda generates a sync unit for the lambda and emits a closure
// over the captured values. Captures are copied when the closure is made
// and cannot be assigned inside the lambda.
func (b *BlockContext) compileLambda(x *ast.Lambda, hint types.RealizedType) types.RealizedType {
	ft, _ := hint.(*types.FunctionType)
	if ft != nil && len(ft.Params) != len(x.Params) {
		ft = nil
	}
	params := make([]types.RealizedType, len(x.Params))
	for i, p := range x.Params {
		switch {
		case p.Type != nil:
			params[i] = b.module.resolveType(p.Type)
		case ft != nil && !types.HasGenerics(ft.Params[i]):
			params[i] = ft.Params[i]
		default:
			b.errorf(p.SpanVal, InvalidType, "cannot infer the type of parameter %s", p.Name)
			params[i] = types.Unknown
		}
	}
	var result types.RealizedType
	if ft != nil && !types.HasGenerics(ft.Result) {
		result = ft.Result
	}

	captures := b.freeVariables(x)
	b.module.lambdas++
	name := fmt.Sprintf("%s.lambda%d", b.name, b.module.lambdas)
	inner := newBlockContext(b.module, name, len(captures), len(params), false, result)
	for i, c := range captures {
		inner.bindParam(c.name, i, c.v.typ, true)
	}
	for i, p := range x.Params {
		inner.bindParam(p.Name, len(captures)+i, params[i], false)
	}
	inner.emitter.Emit(vm.OpCheckTimeout)
	if result != nil {
		inner.compileBody(x.Body, result)
	} else {
		result = inner.compile(x.Body, nil)
		if inner.inferred != nil {
			if result == types.Unknown {
				result = inner.inferred
			} else {
				inner.coerce(x.Body.Span(), inner.inferred, result)
				result = inner.inferred
			}
		}
		inner.emitter.Emit(vm.OpReturn)
	}
	fn := &vm.Function{Name: name, Params: len(params), Unit: inner.builder.Build()}

	for _, c := range captures {
		b.load(c.v.slot)
	}
	b.emitter.EmitMakeClosure(fn, len(captures))
	return &types.FunctionType{Params: params, Result: result}
}
