package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/to2/runtime"
)

// ---------------------------------------------------------------------------
// Units and functions
// ---------------------------------------------------------------------------

// Unit is one compiled body: a function, a lambda, a default value or a
// struct constructor.
type Unit struct {
	Name      string
	Params    int // parameter slots, after captures
	Captures  int // leading slots filled from the closure
	Locals    int // total local slots
	MaxStack  int // deepest operand stack
	Code      []byte
	Constants []Value
}

// NativeFunc implements a function in Go. Async natives return a
// runtime.AnyFuture as their value.
type NativeFunc func(ctx *runtime.Context, args []Value) (Value, error)

// Function is a callable descriptor. Exactly one of Unit and Native is set
// once the function is linked; descriptors are created before their bodies
// are compiled so calls can refer to them.
type Function struct {
	Name   string
	Async  bool
	Params int
	Unit   *Unit
	Native NativeFunc
}

// NewNative creates a native function descriptor.
func NewNative(name string, params int, async bool, fn NativeFunc) *Function {
	return &Function{Name: name, Params: params, Async: async, Native: fn}
}

// Linked reports whether the function has a body.
func (f *Function) Linked() bool {
	return f.Unit != nil || f.Native != nil
}

func (f *Function) String() string {
	kind := "sync fn"
	if f.Async {
		kind = "fn"
	}
	return fmt.Sprintf("%s %s/%d", kind, f.Name, f.Params)
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// Disassemble renders a unit as human-readable text.
func Disassemble(u *Unit) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s (params=%d captures=%d locals=%d stack=%d) ==\n",
		u.Name, u.Params, u.Captures, u.Locals, u.MaxStack)
	r := NewBytecodeReader(u.Code)
	for r.HasMore() {
		sb.WriteString(DisassembleInstruction(r, u.Constants))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// DisassembleInstruction disassembles a single instruction at the reader's
// position and advances the reader.
func DisassembleInstruction(r *BytecodeReader, constants []Value) string {
	pos := r.Position()
	op := r.ReadOpcode()
	name := op.Name()

	switch op {
	case OpPushInt8:
		return fmt.Sprintf("%04d  %s %d", pos, name, int8(r.ReadByte()))

	case OpMakeRange:
		return fmt.Sprintf("%04d  %s inclusive=%t", pos, name, r.ReadByte() != 0)

	case OpCallClosure:
		return fmt.Sprintf("%04d  %s argc=%d", pos, name, r.ReadByte())

	case OpLoadLocal, OpStoreLocal, OpNewRecord, OpSetField, OpGetField, OpNewArray:
		return fmt.Sprintf("%04d  %s %d", pos, name, r.ReadUint16())

	case OpPushConst:
		idx := r.ReadUint16()
		return fmt.Sprintf("%04d  %s %d (%s)", pos, name, idx, describeConstant(constants, idx))

	case OpJump, OpJumpTrue, OpJumpFalse:
		offset := r.ReadInt32()
		target := r.Position() + int(offset)
		return fmt.Sprintf("%04d  %s %d (-> %04d)", pos, name, offset, target)

	case OpPushInt:
		return fmt.Sprintf("%04d  %s %d", pos, name, r.ReadInt64())

	case OpPushFloat:
		return fmt.Sprintf("%04d  %s %g", pos, name, r.ReadFloat64())

	case OpCall, OpMakeClosure:
		idx := r.ReadUint16()
		n := r.ReadByte()
		return fmt.Sprintf("%04d  %s %s %d", pos, name, describeConstant(constants, idx), n)
	}

	// Unknown opcodes still skip their operands so the listing stays aligned.
	for i := 0; i < op.OperandBytes(); i++ {
		r.ReadByte()
	}
	return fmt.Sprintf("%04d  %s", pos, name)
}

func describeConstant(constants []Value, idx uint16) string {
	if int(idx) >= len(constants) {
		return "?"
	}
	switch c := constants[idx].(type) {
	case string:
		return fmt.Sprintf("%q", c)
	case *Function:
		return c.Name
	}
	return FormatValue(constants[idx])
}
