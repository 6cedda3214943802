package vm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Stack Operations
const (
	OpNOP  Opcode = 0x00 // no operation
	OpPOP  Opcode = 0x01 // discard top of stack
	OpDUP  Opcode = 0x02 // duplicate top of stack
	OpSWAP Opcode = 0x03 // swap the two topmost values
)

// Push Constants
const (
	OpPushUnit  Opcode = 0x10 // push the unit value
	OpPushTrue  Opcode = 0x11 // push true
	OpPushFalse Opcode = 0x12 // push false
	OpPushInt8  Opcode = 0x13 // push 8-bit signed integer
	OpPushInt   Opcode = 0x14 // push 64-bit signed integer (8 bytes)
	OpPushFloat Opcode = 0x15 // push inline float64 (8 bytes)
	OpPushConst Opcode = 0x16 // push constant from the unit's pool (16-bit index)
)

// Local Variables
const (
	OpLoadLocal  Opcode = 0x20 // push local (16-bit slot)
	OpStoreLocal Opcode = 0x21 // pop into local (16-bit slot)
)

// Arithmetic. Operand types are fixed at compile time.
const (
	OpAddInt   Opcode = 0x30
	OpSubInt   Opcode = 0x31
	OpMulInt   Opcode = 0x32
	OpDivInt   Opcode = 0x33
	OpModInt   Opcode = 0x34
	OpPowInt   Opcode = 0x35
	OpNegInt   Opcode = 0x36
	OpAddFloat Opcode = 0x37
	OpSubFloat Opcode = 0x38
	OpMulFloat Opcode = 0x39
	OpDivFloat Opcode = 0x3A
	OpModFloat Opcode = 0x3B
	OpPowFloat Opcode = 0x3C
	OpNegFloat Opcode = 0x3D
	OpBitAnd   Opcode = 0x3E
	OpBitOr    Opcode = 0x3F
	OpBitXor   Opcode = 0x40
	OpBitNot   Opcode = 0x41
	OpConcat   Opcode = 0x42 // string + string
	OpNot      Opcode = 0x43 // boolean negation
)

// Comparison
const (
	OpEQ Opcode = 0x48 // structural equality
	OpNE Opcode = 0x49
	OpLT Opcode = 0x4A // int, float or string ordering
	OpLE Opcode = 0x4B
	OpGT Opcode = 0x4C
	OpGE Opcode = 0x4D
)

// Conversion
const (
	OpIntToFloat Opcode = 0x50 // widen int to float
	OpToString   Opcode = 0x51 // render any value as string
)

// Control Flow
const (
	OpJump         Opcode = 0x60 // unconditional jump (32-bit offset)
	OpJumpTrue     Opcode = 0x61 // pop, jump if true (32-bit offset)
	OpJumpFalse    Opcode = 0x62 // pop, jump if false (32-bit offset)
	OpReturn       Opcode = 0x63 // return top of stack
	OpCheckTimeout Opcode = 0x64 // fail if the time slice is exhausted
)

// Composite Values
const (
	OpNewRecord  Opcode = 0x70 // push record with n empty fields (16-bit n)
	OpSetField   Opcode = 0x71 // pop value, store into field i of record below (16-bit i)
	OpGetField   Opcode = 0x72 // pop record, push field i (16-bit i)
	OpCopyRecord Opcode = 0x73 // pop record, push shallow copy
	OpNewArray   Opcode = 0x74 // pop n values, push array (16-bit n)
	OpIndex      Opcode = 0x75 // pop index and array/range/string, push element
	OpLength     Opcode = 0x76 // pop array/range/string, push length
	OpMakeRange  Opcode = 0x77 // pop to and from, push range (8-bit inclusive flag)
)

// Option and Result
const (
	OpMakeSome    Opcode = 0x80 // wrap top in Some
	OpMakeNone    Opcode = 0x81 // push None
	OpMakeOk      Opcode = 0x82 // wrap top in Ok
	OpMakeErr     Opcode = 0x83 // wrap top in Err
	OpIsDefined   Opcode = 0x84 // pop Option/Result, push defined/success flag
	OpUnwrapValue Opcode = 0x85 // pop Option/Result, push contained value
	OpUnwrapError Opcode = 0x86 // pop Result, push its error
)

// Calls
const (
	OpCall        Opcode = 0x90 // call function descriptor (16-bit constant index, 8-bit argc)
	OpCallClosure Opcode = 0x91 // pop argc arguments and the closure below them (8-bit argc)
	OpMakeClosure Opcode = 0x92 // pop captures, push closure (16-bit constant index, 8-bit count)
	OpAwait       Opcode = 0x93 // poll the future on top; suspend while pending
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // number of operand bytes
	StackEffect  int    // net effect on stack (variable effects are computed by the emitter)
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpNOP:  {"NOP", 0, 0},
	OpPOP:  {"POP", 0, -1},
	OpDUP:  {"DUP", 0, 1},
	OpSWAP: {"SWAP", 0, 0},

	OpPushUnit:  {"PUSH_UNIT", 0, 1},
	OpPushTrue:  {"PUSH_TRUE", 0, 1},
	OpPushFalse: {"PUSH_FALSE", 0, 1},
	OpPushInt8:  {"PUSH_INT8", 1, 1},
	OpPushInt:   {"PUSH_INT", 8, 1},
	OpPushFloat: {"PUSH_FLOAT", 8, 1},
	OpPushConst: {"PUSH_CONST", 2, 1},

	OpLoadLocal:  {"LOAD_LOCAL", 2, 1},
	OpStoreLocal: {"STORE_LOCAL", 2, -1},

	OpAddInt:   {"ADD_INT", 0, -1},
	OpSubInt:   {"SUB_INT", 0, -1},
	OpMulInt:   {"MUL_INT", 0, -1},
	OpDivInt:   {"DIV_INT", 0, -1},
	OpModInt:   {"MOD_INT", 0, -1},
	OpPowInt:   {"POW_INT", 0, -1},
	OpNegInt:   {"NEG_INT", 0, 0},
	OpAddFloat: {"ADD_FLOAT", 0, -1},
	OpSubFloat: {"SUB_FLOAT", 0, -1},
	OpMulFloat: {"MUL_FLOAT", 0, -1},
	OpDivFloat: {"DIV_FLOAT", 0, -1},
	OpModFloat: {"MOD_FLOAT", 0, -1},
	OpPowFloat: {"POW_FLOAT", 0, -1},
	OpNegFloat: {"NEG_FLOAT", 0, 0},
	OpBitAnd:   {"BIT_AND", 0, -1},
	OpBitOr:    {"BIT_OR", 0, -1},
	OpBitXor:   {"BIT_XOR", 0, -1},
	OpBitNot:   {"BIT_NOT", 0, 0},
	OpConcat:   {"CONCAT", 0, -1},
	OpNot:      {"NOT", 0, 0},

	OpEQ: {"EQ", 0, -1},
	OpNE: {"NE", 0, -1},
	OpLT: {"LT", 0, -1},
	OpLE: {"LE", 0, -1},
	OpGT: {"GT", 0, -1},
	OpGE: {"GE", 0, -1},

	OpIntToFloat: {"INT_TO_FLOAT", 0, 0},
	OpToString:   {"TO_STRING", 0, 0},

	OpJump:         {"JUMP", 4, 0},
	OpJumpTrue:     {"JUMP_TRUE", 4, -1},
	OpJumpFalse:    {"JUMP_FALSE", 4, -1},
	OpReturn:       {"RETURN", 0, -1},
	OpCheckTimeout: {"CHECK_TIMEOUT", 0, 0},

	OpNewRecord:  {"NEW_RECORD", 2, 1},
	OpSetField:   {"SET_FIELD", 2, -1},
	OpGetField:   {"GET_FIELD", 2, 0},
	OpCopyRecord: {"COPY_RECORD", 0, 0},
	OpNewArray:   {"NEW_ARRAY", 2, 1}, // pops n
	OpIndex:      {"INDEX", 0, -1},
	OpLength:     {"LENGTH", 0, 0},
	OpMakeRange:  {"MAKE_RANGE", 1, -1},

	OpMakeSome:    {"MAKE_SOME", 0, 0},
	OpMakeNone:    {"MAKE_NONE", 0, 1},
	OpMakeOk:      {"MAKE_OK", 0, 0},
	OpMakeErr:     {"MAKE_ERR", 0, 0},
	OpIsDefined:   {"IS_DEFINED", 0, 0},
	OpUnwrapValue: {"UNWRAP_VALUE", 0, 0},
	OpUnwrapError: {"UNWRAP_ERROR", 0, 0},

	OpCall:        {"CALL", 3, 1},         // pops argc
	OpCallClosure: {"CALL_CLOSURE", 1, 0}, // pops argc + closure, pushes result
	OpMakeClosure: {"MAKE_CLOSURE", 3, 1}, // pops captures
	OpAwait:       {"AWAIT", 0, 0},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// OperandBytes returns the number of operand bytes for an opcode.
func (op Opcode) OperandBytes() int {
	return op.Info().OperandBytes
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// IsJump reports whether the opcode takes a label operand.
func (op Opcode) IsJump() bool {
	return op == OpJump || op == OpJumpTrue || op == OpJumpFalse
}

// ---------------------------------------------------------------------------
// Bytecode reader
// ---------------------------------------------------------------------------

// BytecodeReader reads bytecode for interpretation or disassembly.
type BytecodeReader struct {
	bytes []byte
	pos   int
}

// NewBytecodeReader creates a reader for bytecode.
func NewBytecodeReader(bc []byte) *BytecodeReader {
	return &BytecodeReader{bytes: bc}
}

// Position returns the current read position.
func (r *BytecodeReader) Position() int {
	return r.pos
}

// HasMore returns true if there are more bytes to read.
func (r *BytecodeReader) HasMore() bool {
	return r.pos < len(r.bytes)
}

// ReadOpcode reads and returns the next opcode.
func (r *BytecodeReader) ReadOpcode() Opcode {
	return Opcode(r.ReadByte())
}

// ReadByte reads a single byte operand.
func (r *BytecodeReader) ReadByte() byte {
	if r.pos >= len(r.bytes) {
		panic("bytecode underflow")
	}
	b := r.bytes[r.pos]
	r.pos++
	return b
}

// ReadUint16 reads a 16-bit operand (little-endian).
func (r *BytecodeReader) ReadUint16() uint16 {
	if r.pos+2 > len(r.bytes) {
		panic("bytecode underflow")
	}
	v := binary.LittleEndian.Uint16(r.bytes[r.pos:])
	r.pos += 2
	return v
}

// ReadInt32 reads a 32-bit operand (little-endian).
func (r *BytecodeReader) ReadInt32() int32 {
	if r.pos+4 > len(r.bytes) {
		panic("bytecode underflow")
	}
	v := binary.LittleEndian.Uint32(r.bytes[r.pos:])
	r.pos += 4
	return int32(v)
}

// ReadInt64 reads a 64-bit integer operand.
func (r *BytecodeReader) ReadInt64() int64 {
	if r.pos+8 > len(r.bytes) {
		panic("bytecode underflow")
	}
	v := binary.LittleEndian.Uint64(r.bytes[r.pos:])
	r.pos += 8
	return int64(v)
}

// ReadFloat64 reads a 64-bit float operand.
func (r *BytecodeReader) ReadFloat64() float64 {
	return math.Float64frombits(uint64(r.ReadInt64()))
}

// Seek sets the read position.
func (r *BytecodeReader) Seek(pos int) {
	r.pos = pos
}
