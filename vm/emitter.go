package vm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Emitter: the code generation surface
// ---------------------------------------------------------------------------

// Emitter is what expression code generation writes to. Every emission
// updates the running stack depth; a depth below zero is a code generator
// bug and panics.
type Emitter interface {
	Emit(op Opcode)
	EmitByte(op Opcode, operand byte)
	EmitUint16(op Opcode, operand uint16)
	EmitInt64(op Opcode, operand int64)
	EmitFloat64(op Opcode, operand float64)
	EmitInt(v int64)
	EmitConstant(op Opcode, value Value)
	EmitJump(op Opcode, label *Label)
	EmitCall(fn *Function, argc int)
	EmitCallClosure(argc int)
	EmitMakeClosure(fn *Function, captures int)
	EmitNewArray(n int)

	NewLabel() *Label
	Mark(label *Label)

	DeclareLocal() int
	TempLocal() int
	ReleaseTemp(slot int)
	BeginScope()
	EndScope()

	StackDepth() int
	Reachable() bool
	AssumeDepth(depth int)
}

// Label represents a jump target. Forward references are patched when the
// label is marked.
type Label struct {
	resolved bool
	position int
	refs     []int
	depth    int
	hasDepth bool
}

type scope struct {
	nextSlot int
	temps    int
}

// UnitBuilder implements Emitter and produces a Unit.
type UnitBuilder struct {
	name      string
	params    int
	captures  int
	bytes     []byte
	constants []Value
	constIdx  map[any]int

	depth       int
	maxDepth    int
	unreachable bool

	nextSlot int
	maxSlots int
	temps    []int
	scopes   []scope
	labels   []*Label
}

// NewUnitBuilder creates a builder for a unit whose first captures+params
// local slots hold captured values and arguments.
func NewUnitBuilder(name string, captures, params int) *UnitBuilder {
	n := captures + params
	return &UnitBuilder{
		name:     name,
		params:   params,
		captures: captures,
		bytes:    make([]byte, 0, 64),
		constIdx: make(map[any]int),
		nextSlot: n,
		maxSlots: n,
	}
}

func (b *UnitBuilder) adjust(delta int) {
	b.depth += delta
	if b.depth < 0 {
		panic(fmt.Sprintf("%s: negative stack depth %d at offset %d", b.name, b.depth, len(b.bytes)))
	}
	if b.depth > b.maxDepth {
		b.maxDepth = b.depth
	}
}

func (b *UnitBuilder) emitOp(op Opcode, delta int) {
	b.bytes = append(b.bytes, byte(op))
	b.adjust(delta)
	if op == OpReturn || op == OpJump {
		b.unreachable = true
	}
}

// Emit appends an opcode with no operands.
func (b *UnitBuilder) Emit(op Opcode) {
	b.emitOp(op, op.Info().StackEffect)
}

// EmitByte appends an opcode with a single byte operand.
func (b *UnitBuilder) EmitByte(op Opcode, operand byte) {
	b.emitOp(op, op.Info().StackEffect)
	b.bytes = append(b.bytes, operand)
}

// EmitUint16 appends an opcode with a 16-bit operand (little-endian).
func (b *UnitBuilder) EmitUint16(op Opcode, operand uint16) {
	b.emitOp(op, op.Info().StackEffect)
	b.bytes = append(b.bytes, byte(operand), byte(operand>>8))
}

// EmitInt64 appends an opcode with a 64-bit operand.
func (b *UnitBuilder) EmitInt64(op Opcode, operand int64) {
	b.emitOp(op, op.Info().StackEffect)
	b.bytes = binary.LittleEndian.AppendUint64(b.bytes, uint64(operand))
}

// EmitFloat64 appends an opcode with a 64-bit float operand.
func (b *UnitBuilder) EmitFloat64(op Opcode, operand float64) {
	b.EmitInt64(op, int64(math.Float64bits(operand)))
}

// EmitInt pushes an integer using the shortest encoding.
func (b *UnitBuilder) EmitInt(v int64) {
	if v >= math.MinInt8 && v <= math.MaxInt8 {
		b.EmitByte(OpPushInt8, byte(int8(v)))
		return
	}
	b.EmitInt64(OpPushInt, v)
}

// EmitConstant appends an opcode whose operand indexes the constant pool.
// Equal comparable constants share one slot.
func (b *UnitBuilder) EmitConstant(op Opcode, value Value) {
	b.EmitUint16(op, b.constant(value))
}

func (b *UnitBuilder) constant(value Value) uint16 {
	key, comparable := value, isComparable(value)
	if comparable {
		if idx, ok := b.constIdx[key]; ok {
			return uint16(idx)
		}
	}
	idx := len(b.constants)
	if idx > math.MaxUint16 {
		panic(fmt.Sprintf("%s: constant pool overflow", b.name))
	}
	b.constants = append(b.constants, value)
	if comparable {
		b.constIdx[key] = idx
	}
	return uint16(idx)
}

func isComparable(v Value) bool {
	switch v.(type) {
	case string, int64, float64, bool, *Function:
		return true
	}
	return false
}

// EmitCall calls a function descriptor with argc arguments already pushed.
func (b *UnitBuilder) EmitCall(fn *Function, argc int) {
	idx := b.constant(fn)
	b.emitOp(OpCall, 1-argc)
	b.bytes = append(b.bytes, byte(idx), byte(idx>>8), byte(argc))
}

// EmitCallClosure calls the closure below argc pushed arguments.
func (b *UnitBuilder) EmitCallClosure(argc int) {
	b.emitOp(OpCallClosure, -argc)
	b.bytes = append(b.bytes, byte(argc))
}

// EmitMakeClosure creates a closure over fn from captures pushed values.
func (b *UnitBuilder) EmitMakeClosure(fn *Function, captures int) {
	idx := b.constant(fn)
	b.emitOp(OpMakeClosure, 1-captures)
	b.bytes = append(b.bytes, byte(idx), byte(idx>>8), byte(captures))
}

// EmitNewArray builds an array from n pushed values.
func (b *UnitBuilder) EmitNewArray(n int) {
	b.emitOp(OpNewArray, 1-n)
	b.bytes = append(b.bytes, byte(n), byte(n>>8))
}

// StackDepth returns the running operand stack depth.
func (b *UnitBuilder) StackDepth() int {
	return b.depth
}

// AssumeDepth sets the running depth after an instruction that never falls
// through, so the dead code that follows is checked as if the diverging
// expression had produced its value.
func (b *UnitBuilder) AssumeDepth(depth int) {
	if !b.unreachable {
		panic(fmt.Sprintf("%s: AssumeDepth on reachable code", b.name))
	}
	b.depth = depth
	if b.depth > b.maxDepth {
		b.maxDepth = b.depth
	}
}

// Reachable reports whether the next instruction can be reached by falling
// through.
func (b *UnitBuilder) Reachable() bool {
	return !b.unreachable
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// NewLabel creates an unresolved label.
func (b *UnitBuilder) NewLabel() *Label {
	l := &Label{refs: make([]int, 0, 2)}
	b.labels = append(b.labels, l)
	return l
}

// Mark resolves a label to the current position. The stack depth at a label
// is the depth every jump to it carried.
func (b *UnitBuilder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.bytes)

	if label.hasDepth {
		if !b.unreachable && b.depth != label.depth {
			panic(fmt.Sprintf("%s: stack depth %d at label, jumps carry %d", b.name, b.depth, label.depth))
		}
		b.depth = label.depth
	} else {
		label.depth = b.depth
		label.hasDepth = true
	}
	b.unreachable = false

	for _, ref := range label.refs {
		offset := label.position - (ref + 4)
		binary.LittleEndian.PutUint32(b.bytes[ref:], uint32(int32(offset)))
	}
	label.refs = nil
}

// EmitJump emits a jump instruction with a label.
func (b *UnitBuilder) EmitJump(op Opcode, label *Label) {
	if !op.IsJump() {
		panic(fmt.Sprintf("%s is not a jump", op))
	}
	b.emitOp(op, op.Info().StackEffect)
	if label.hasDepth {
		if label.depth != b.depth {
			panic(fmt.Sprintf("%s: jump with stack depth %d to label at depth %d", b.name, b.depth, label.depth))
		}
	} else {
		label.depth = b.depth
		label.hasDepth = true
	}

	if label.resolved {
		offset := label.position - (len(b.bytes) + 4)
		b.bytes = binary.LittleEndian.AppendUint32(b.bytes, uint32(int32(offset)))
		return
	}
	label.refs = append(label.refs, len(b.bytes))
	b.bytes = append(b.bytes, 0, 0, 0, 0)
}

// ---------------------------------------------------------------------------
// Locals and scopes
// ---------------------------------------------------------------------------

// BeginScope opens a scope; locals declared inside are freed by EndScope.
func (b *UnitBuilder) BeginScope() {
	b.scopes = append(b.scopes, scope{nextSlot: b.nextSlot, temps: len(b.temps)})
}

// EndScope closes the innermost scope. Temps taken inside it must have been
// released.
func (b *UnitBuilder) EndScope() {
	if len(b.scopes) == 0 {
		panic("EndScope without BeginScope")
	}
	s := b.scopes[len(b.scopes)-1]
	b.scopes = b.scopes[:len(b.scopes)-1]
	if len(b.temps) != s.temps {
		panic(fmt.Sprintf("%s: %d temporaries not released before scope end", b.name, len(b.temps)-s.temps))
	}
	b.nextSlot = s.nextSlot
}

// DeclareLocal reserves a slot for a named local in the current scope.
func (b *UnitBuilder) DeclareLocal() int {
	slot := b.nextSlot
	b.nextSlot++
	if b.nextSlot > b.maxSlots {
		b.maxSlots = b.nextSlot
	}
	if slot > math.MaxUint16 {
		panic(fmt.Sprintf("%s: too many locals", b.name))
	}
	return slot
}

// TempLocal reserves a scratch slot. Temps are released in reverse order.
func (b *UnitBuilder) TempLocal() int {
	slot := b.DeclareLocal()
	b.temps = append(b.temps, slot)
	return slot
}

// ReleaseTemp frees the most recent temp.
func (b *UnitBuilder) ReleaseTemp(slot int) {
	if len(b.temps) == 0 || b.temps[len(b.temps)-1] != slot {
		panic(fmt.Sprintf("%s: temp %d released out of order", b.name, slot))
	}
	b.temps = b.temps[:len(b.temps)-1]
	if slot == b.nextSlot-1 {
		b.nextSlot--
	}
}

// ---------------------------------------------------------------------------
// Build
// ---------------------------------------------------------------------------

// Build finishes the unit. Open scopes, unreleased temps and unresolved
// labels are code generator bugs and panic.
func (b *UnitBuilder) Build() *Unit {
	if len(b.scopes) > 0 {
		panic(fmt.Sprintf("%s: %d scopes still open", b.name, len(b.scopes)))
	}
	if len(b.temps) > 0 {
		panic(fmt.Sprintf("%s: %d temporaries not released", b.name, len(b.temps)))
	}
	for _, l := range b.labels {
		if !l.resolved && len(l.refs) > 0 {
			panic(fmt.Sprintf("%s: unresolved label", b.name))
		}
	}
	return &Unit{
		Name:      b.name,
		Params:    b.params,
		Captures:  b.captures,
		Locals:    b.maxSlots,
		MaxStack:  b.maxDepth,
		Code:      b.bytes,
		Constants: b.constants,
	}
}
