package compiler

import (
	"github.com/chazu/to2/ast"
	"github.com/chazu/to2/parsec"
	"github.com/chazu/to2/types"
	"github.com/chazu/to2/vm"
)

// ---------------------------------------------------------------------------
// Blocks and declarations
// ---------------------------------------------------------------------------

// compileBlock compiles items in a new scope. Every item but the last is
// evaluated for its effect; the block's value is the last item's, or unit
// when that is a declaration.
func (b *BlockContext) compileBlock(x *ast.Block, hint types.RealizedType) types.RealizedType {
	if len(x.Items) == 0 {
		b.emitter.Emit(vm.OpPushUnit)
		return types.Unit
	}
	b.beginScope()
	defer b.endScope()
	var t types.RealizedType = types.Unit
	for i, item := range x.Items {
		last := i == len(x.Items)-1
		switch it := item.(type) {
		case *ast.VariableDecl:
			b.compileDecl(it)
			if last {
				b.emitter.Emit(vm.OpPushUnit)
			}
		case ast.Expression:
			if last {
				t = b.compile(it, hint)
			} else {
				b.compile(it, types.Unit)
				b.emitter.Emit(vm.OpPOP)
			}
		default:
			if last {
				b.emitter.Emit(vm.OpPushUnit)
			}
		}
	}
	return t
}

func (b *BlockContext) compileDecl(d *ast.VariableDecl) {
	if d.Kind == ast.DeclSingle {
		target := d.Targets[0]
		var t types.RealizedType
		if target.Type != nil {
			t = b.compileExpected(d.Value, b.module.resolveType(target.Type))
		} else {
			t = b.compile(d.Value, nil)
		}
		v := b.declareVariable(d.Span(), target.Name, t, d.Const)
		b.store(v.slot)
		return
	}

	t := b.compile(d.Value, nil)
	hidden := b.emitter.TempLocal()
	b.store(hidden)
	tuple, isTuple := t.(*types.TupleType)
	if d.Kind == ast.DeclTuple && t != types.Unknown {
		if !isTuple {
			b.errorf(d.Value.Span(), InvalidPattern, "cannot destructure %s as a tuple", t.Name())
			t = types.Unknown
		} else if len(tuple.Items) != len(d.Targets) {
			b.errorf(d.Span(), InvalidPattern, "tuple has %d items, pattern binds %d", len(tuple.Items), len(d.Targets))
			t = types.Unknown
		}
	}

	// Values are read before any target is declared, so the temp is
	// released while it is still the newest slot.
	type bound struct {
		target ast.DeclTarget
		typ    types.RealizedType
	}
	var targets []bound
	for i, target := range d.Targets {
		var ft types.RealizedType = types.Unknown
		idx := -1
		switch {
		case t == types.Unknown:
		case d.Kind == ast.DeclTuple:
			idx, ft = i, tuple.Items[i]
		default:
			idx, ft = fieldOf(t, target.Field)
			if idx < 0 {
				b.errorf(d.Span(), NoSuchField, "%s has no field %s", t.Name(), target.Field)
				ft = types.Unknown
			}
		}
		if target.Name == "_" {
			continue
		}
		if idx < 0 {
			b.emitter.Emit(vm.OpPushUnit)
		} else {
			b.load(hidden)
			b.emitter.EmitUint16(vm.OpGetField, uint16(idx))
		}
		if target.Type != nil {
			declared := b.module.resolveType(target.Type)
			b.coerce(d.Span(), declared, ft)
			ft = declared
		}
		targets = append(targets, bound{target: target, typ: ft})
	}
	b.emitter.ReleaseTemp(hidden)
	for i := len(targets) - 1; i >= 0; i-- {
		v := b.declareVariable(d.Span(), targets[i].target.Name, targets[i].typ, d.Const)
		b.store(v.slot)
	}
}

// ---------------------------------------------------------------------------
// Conditionals
// ---------------------------------------------------------------------------

// compileCondition jumps to fail unless cond holds. An unapply condition
// declares its binding in the current scope.
func (b *BlockContext) compileCondition(cond ast.Expression, fail *vm.Label) {
	if u, ok := cond.(*ast.Unapply); ok {
		b.compileUnapply(u, fail)
		return
	}
	b.compileExpected(cond, types.Bool)
	b.emitter.EmitJump(vm.OpJumpFalse, fail)
}

func (b *BlockContext) compileUnapply(u *ast.Unapply, fail *vm.Label) {
	t := b.compile(u.Value, nil)
	var bound types.RealizedType = types.Unknown
	wantError := u.Pattern == "Err"
	switch tt := t.(type) {
	case *types.OptionType:
		if u.Pattern == "Some" {
			bound = tt.Element
		} else {
			b.errorf(u.Span(), InvalidPattern, "%s cannot match %s", u.Pattern, t.Name())
		}
	case *types.ResultType:
		switch u.Pattern {
		case "Ok":
			bound = tt.Value
		case "Err":
			bound = tt.Error
		default:
			b.errorf(u.Span(), InvalidPattern, "%s cannot match %s", u.Pattern, t.Name())
		}
	default:
		if t != types.Unknown {
			b.errorf(u.Span(), InvalidPattern, "%s cannot match %s", u.Pattern, t.Name())
		}
	}
	// The binding's slot holds the wrapped value until the match succeeds.
	v := b.declareVariable(u.Span(), u.Binding, bound, false)
	b.store(v.slot)
	b.load(v.slot)
	b.emitter.Emit(vm.OpIsDefined)
	if wantError {
		b.emitter.Emit(vm.OpNot)
	}
	b.emitter.EmitJump(vm.OpJumpFalse, fail)
	b.load(v.slot)
	if wantError {
		b.emitter.Emit(vm.OpUnwrapError)
	} else {
		b.emitter.Emit(vm.OpUnwrapValue)
	}
	b.store(v.slot)
}

func (b *BlockContext) compileIf(x *ast.If, hint types.RealizedType) types.RealizedType {
	elseLabel := b.emitter.NewLabel()
	b.beginScope()
	b.compileCondition(x.Cond, elseLabel)

	if x.Else == nil {
		b.compile(x.Then, types.Unit)
		b.emitter.Emit(vm.OpPOP)
		b.endScope()
		b.emitter.Mark(elseLabel)
		b.emitter.Emit(vm.OpPushUnit)
		return types.Unit
	}

	statement := hint == types.Unit
	tt := b.compile(x.Then, hint)
	if statement {
		b.toUnit(tt)
		tt = types.Unit
	} else {
		tt = b.adapt(hint, tt)
	}
	b.endScope()
	end := b.emitter.NewLabel()
	b.emitter.EmitJump(vm.OpJump, end)
	b.emitter.Mark(elseLabel)

	switch {
	case statement:
		b.toUnit(b.compile(x.Else, types.Unit))
	case tt == types.Unknown:
		tt = b.adapt(hint, b.compile(x.Else, hint))
	default:
		b.coerce(x.Else.Span(), tt, b.compile(x.Else, tt))
	}
	b.emitter.Mark(end)
	return tt
}

// toUnit replaces a statement's value by unit.
func (b *BlockContext) toUnit(t types.RealizedType) {
	if t != types.Unit {
		b.emitter.Emit(vm.OpPOP)
		b.emitter.Emit(vm.OpPushUnit)
	}
}

// ---------------------------------------------------------------------------
// Loops
// ---------------------------------------------------------------------------

func (b *BlockContext) compileWhile(x *ast.While) types.RealizedType {
	start := b.emitter.NewLabel()
	end := b.emitter.NewLabel()
	b.emitter.Mark(start)
	b.emitter.Emit(vm.OpCheckTimeout)
	b.beginScope()
	b.compileCondition(x.Cond, end)
	b.loops = append(b.loops, loop{next: start, end: end, depth: b.emitter.StackDepth()})
	b.compile(x.Body, types.Unit)
	b.emitter.Emit(vm.OpPOP)
	b.loops = b.loops[:len(b.loops)-1]
	b.emitter.EmitJump(vm.OpJump, start)
	b.endScope()
	b.emitter.Mark(end)
	b.emitter.Emit(vm.OpPushUnit)
	return types.Unit
}

// compileFor walks arrays, ranges and the characters of a string by index.
func (b *BlockContext) compileFor(x *ast.For) types.RealizedType {
	b.beginScope()
	st := b.compile(x.Source, nil)
	var elem types.RealizedType = types.Unknown
	switch s := st.(type) {
	case *types.ArrayType:
		elem = s.Element
	case *types.BuiltinType:
		switch s {
		case types.Range:
			elem = types.Int
		case types.String:
			elem = types.String
		case types.Unknown:
		default:
			b.errorf(x.Source.Span(), InvalidOperator, "cannot iterate over %s", st.Name())
		}
	default:
		b.errorf(x.Source.Span(), InvalidOperator, "cannot iterate over %s", st.Name())
	}

	src := b.emitter.DeclareLocal()
	b.store(src)
	idx := b.emitter.DeclareLocal()
	b.emitter.EmitInt(0)
	b.store(idx)
	n := b.emitter.DeclareLocal()
	b.load(src)
	b.emitter.Emit(vm.OpLength)
	b.store(n)

	start := b.emitter.NewLabel()
	next := b.emitter.NewLabel()
	end := b.emitter.NewLabel()
	b.emitter.Mark(start)
	b.emitter.Emit(vm.OpCheckTimeout)
	b.load(idx)
	b.load(n)
	b.emitter.Emit(vm.OpLT)
	b.emitter.EmitJump(vm.OpJumpFalse, end)

	b.beginScope()
	v := b.declareVariable(x.Span(), x.Variable, elem, true)
	b.load(src)
	b.load(idx)
	b.emitter.Emit(vm.OpIndex)
	b.store(v.slot)
	b.loops = append(b.loops, loop{next: next, end: end, depth: b.emitter.StackDepth()})
	b.compile(x.Body, types.Unit)
	b.emitter.Emit(vm.OpPOP)
	b.loops = b.loops[:len(b.loops)-1]
	b.endScope()

	b.emitter.Mark(next)
	b.load(idx)
	b.emitter.EmitInt(1)
	b.emitter.Emit(vm.OpAddInt)
	b.store(idx)
	b.emitter.EmitJump(vm.OpJump, start)
	b.endScope()
	b.emitter.Mark(end)
	b.emitter.Emit(vm.OpPushUnit)
	return types.Unit
}

// ---------------------------------------------------------------------------
// Jumps out of expressions
// ---------------------------------------------------------------------------

// Diverging expressions leave the code unreachable; the depth they would
// have produced is assumed so the surrounding expression stays balanced.

func (b *BlockContext) compileReturn(x *ast.Return) types.RealizedType {
	before := b.emitter.StackDepth()
	switch {
	case b.result == nil:
		var t types.RealizedType = types.Unit
		if x.Value == nil {
			b.emitter.Emit(vm.OpPushUnit)
		} else {
			t = b.compile(x.Value, b.inferred)
		}
		switch {
		case t == types.Unknown:
		case b.inferred == nil:
			b.inferred = t
		default:
			b.coerce(x.Span(), b.inferred, t)
		}
	case x.Value == nil:
		if b.result != types.Unit && b.result != types.Unknown {
			b.errorf(x.Span(), IncompatibleTypes, "missing return value of type %s", b.result.Name())
		}
		b.emitter.Emit(vm.OpPushUnit)
	case b.result == types.Unit:
		b.toUnit(b.compile(x.Value, types.Unit))
	default:
		b.compileExpected(x.Value, b.result)
	}
	b.emitter.Emit(vm.OpReturn)
	b.emitter.AssumeDepth(before + 1)
	return types.Unknown
}

func (b *BlockContext) compileJump(span parsec.Range, what string, target func(loop) *vm.Label) types.RealizedType {
	if len(b.loops) == 0 {
		b.errorf(span, InvalidScope, "%s outside of a loop", what)
		return b.fail()
	}
	l := b.loops[len(b.loops)-1]
	before := b.emitter.StackDepth()
	for b.emitter.StackDepth() > l.depth {
		b.emitter.Emit(vm.OpPOP)
	}
	b.emitter.EmitJump(vm.OpJump, target(l))
	b.emitter.AssumeDepth(before + 1)
	return types.Unknown
}

// compileUnwrap implements the ? suffix: a None or Err value returns from
// the enclosing function, anything else is unwrapped.
func (b *BlockContext) compileUnwrap(x *ast.Unwrap) types.RealizedType {
	t := b.compile(x.Target, nil)
	var inner types.RealizedType
	switch tt := t.(type) {
	case *types.OptionType:
		inner = tt.Element
	case *types.ResultType:
		inner = tt.Value
	default:
		if t != types.Unknown {
			b.errorf(x.Span(), InvalidOperator, "? needs an Option or Result, found %s", t.Name())
		}
		b.emitter.Emit(vm.OpPOP)
		return b.fail()
	}
	result := b.result
	if result == nil {
		result = b.inferred
	}

	ok := b.emitter.NewLabel()
	b.emitter.Emit(vm.OpDUP)
	b.emitter.Emit(vm.OpIsDefined)
	b.emitter.EmitJump(vm.OpJumpTrue, ok)
	switch tt := t.(type) {
	case *types.OptionType:
		if _, isOption := result.(*types.OptionType); !isOption && result != types.Unknown {
			b.errorf(x.Span(), InvalidOperator, "? on %s needs an enclosing function returning an Option", t.Name())
		}
		b.emitter.Emit(vm.OpPOP)
		b.emitter.Emit(vm.OpMakeNone)
	case *types.ResultType:
		b.emitter.Emit(vm.OpUnwrapError)
		if rt, isResult := result.(*types.ResultType); isResult {
			b.coerce(x.Span(), rt.Error, tt.Error)
		} else if result != types.Unknown {
			b.errorf(x.Span(), InvalidOperator, "? on %s needs an enclosing function returning a Result", t.Name())
		}
		b.emitter.Emit(vm.OpMakeErr)
	}
	b.emitter.Emit(vm.OpReturn)
	b.emitter.Mark(ok)
	b.emitter.Emit(vm.OpUnwrapValue)
	return inner
}
