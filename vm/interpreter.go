package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/chazu/to2/runtime"
)

// MaxCallDepth bounds nested sync calls inside one machine.
const MaxCallDepth = 4096

// ---------------------------------------------------------------------------
// Runtime errors
// ---------------------------------------------------------------------------

// RuntimeError is a failure raised while executing bytecode.
type RuntimeError struct {
	Function string
	Offset   int
	Message  string
	Err      error
}

func (e *RuntimeError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Function == "" {
		return msg
	}
	return fmt.Sprintf("%s@%04d: %s", e.Function, e.Offset, msg)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// ---------------------------------------------------------------------------
// CallFrame: execution state for one invocation
// ---------------------------------------------------------------------------

// CallFrame is the execution state of one bytecode invocation.
type CallFrame struct {
	Fn *Function
	IP int // instruction pointer
	BP int // base of this frame's locals on the stack
}

// machine runs bytecode. A sync invocation uses a machine until it
// returns; an async invocation keeps its machine across polls.
type machine struct {
	stack  []Value
	frames []*CallFrame
	async  bool
}

func (m *machine) push(v Value) {
	m.stack = append(m.stack, v)
}

func (m *machine) pop() Value {
	n := len(m.stack) - 1
	if n < 0 {
		panic("stack underflow")
	}
	v := m.stack[n]
	m.stack[n] = nil
	m.stack = m.stack[:n]
	return v
}

func (m *machine) top() Value {
	return m.stack[len(m.stack)-1]
}

func (m *machine) popN(n int) []Value {
	if len(m.stack) < n {
		panic("stack underflow")
	}
	args := make([]Value, n)
	copy(args, m.stack[len(m.stack)-n:])
	m.stack = m.stack[:len(m.stack)-n]
	return args
}

// pushFrame enters fn with its captures and arguments.
func (m *machine) pushFrame(fn *Function, captured, args []Value) error {
	if len(m.frames) >= MaxCallDepth {
		return &RuntimeError{Function: fn.Name, Message: "stack overflow"}
	}
	u := fn.Unit
	if len(args) != u.Params || len(captured) != u.Captures {
		return &RuntimeError{Function: fn.Name, Message: fmt.Sprintf(
			"expected %d arguments and %d captures, got %d and %d", u.Params, u.Captures, len(args), len(captured))}
	}
	bp := len(m.stack)
	m.stack = append(m.stack, captured...)
	m.stack = append(m.stack, args...)
	for i := len(captured) + len(args); i < u.Locals; i++ {
		m.stack = append(m.stack, nil)
	}
	m.frames = append(m.frames, &CallFrame{Fn: fn, BP: bp})
	return nil
}

func (m *machine) popFrame() *CallFrame {
	f := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	clear(m.stack[f.BP:])
	m.stack = m.stack[:f.BP]
	return f
}

// errSuspended signals that an async machine is waiting on a pending
// future.
var errSuspended = errors.New("suspended")

// run executes until the bottom frame returns. An async machine returns
// errSuspended when it awaits a pending future; calling run again resumes
// at the same AWAIT.
func (m *machine) run(ctx *runtime.Context) (result Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = m.fault(fmt.Sprint(r), nil)
		}
	}()

	for {
		frame := m.frames[len(m.frames)-1]
		u := frame.Fn.Unit
		bc := u.Code
		if frame.IP >= len(bc) {
			return nil, m.fault("fell off the end of the unit", nil)
		}

		start := frame.IP
		op := Opcode(bc[frame.IP])
		frame.IP++

		switch op {
		case OpNOP:

		case OpPOP:
			m.pop()

		case OpDUP:
			m.push(m.top())

		case OpSWAP:
			n := len(m.stack)
			m.stack[n-1], m.stack[n-2] = m.stack[n-2], m.stack[n-1]

		case OpPushUnit:
			m.push(UnitValue)

		case OpPushTrue:
			m.push(true)

		case OpPushFalse:
			m.push(false)

		case OpPushInt8:
			m.push(int64(int8(bc[frame.IP])))
			frame.IP++

		case OpPushInt:
			m.push(int64(binary.LittleEndian.Uint64(bc[frame.IP:])))
			frame.IP += 8

		case OpPushFloat:
			m.push(math.Float64frombits(binary.LittleEndian.Uint64(bc[frame.IP:])))
			frame.IP += 8

		case OpPushConst:
			idx := binary.LittleEndian.Uint16(bc[frame.IP:])
			frame.IP += 2
			m.push(u.Constants[idx])

		case OpLoadLocal:
			slot := binary.LittleEndian.Uint16(bc[frame.IP:])
			frame.IP += 2
			m.push(m.stack[frame.BP+int(slot)])

		case OpStoreLocal:
			slot := binary.LittleEndian.Uint16(bc[frame.IP:])
			frame.IP += 2
			m.stack[frame.BP+int(slot)] = m.pop()

		case OpAddInt, OpSubInt, OpMulInt, OpDivInt, OpModInt, OpPowInt, OpBitAnd, OpBitOr, OpBitXor:
			b := m.pop().(int64)
			a := m.pop().(int64)
			v, err := intOp(op, a, b)
			if err != nil {
				return nil, m.fault("", err)
			}
			m.push(v)

		case OpAddFloat, OpSubFloat, OpMulFloat, OpDivFloat, OpModFloat, OpPowFloat:
			b := m.pop().(float64)
			a := m.pop().(float64)
			m.push(floatOp(op, a, b))

		case OpNegInt:
			m.push(-m.pop().(int64))

		case OpNegFloat:
			m.push(-m.pop().(float64))

		case OpBitNot:
			m.push(^m.pop().(int64))

		case OpNot:
			m.push(!m.pop().(bool))

		case OpConcat:
			b := m.pop().(string)
			a := m.pop().(string)
			m.push(a + b)

		case OpEQ:
			b, a := m.pop(), m.pop()
			m.push(Equal(a, b))

		case OpNE:
			b, a := m.pop(), m.pop()
			m.push(!Equal(a, b))

		case OpLT, OpLE, OpGT, OpGE:
			b, a := m.pop(), m.pop()
			c, err := compare(a, b)
			if err != nil {
				return nil, m.fault("", err)
			}
			m.push(compareResult(op, c))

		case OpIntToFloat:
			m.push(float64(m.pop().(int64)))

		case OpToString:
			m.push(FormatValue(m.pop()))

		case OpJump:
			offset := int32(binary.LittleEndian.Uint32(bc[frame.IP:]))
			frame.IP += 4 + int(offset)

		case OpJumpTrue, OpJumpFalse:
			offset := int32(binary.LittleEndian.Uint32(bc[frame.IP:]))
			frame.IP += 4
			if m.pop().(bool) == (op == OpJumpTrue) {
				frame.IP += int(offset)
			}

		case OpReturn:
			v := m.pop()
			m.popFrame()
			if len(m.frames) == 0 {
				return v, nil
			}
			m.push(v)

		case OpCheckTimeout:
			if err := ctx.CheckTimeout(); err != nil {
				return nil, m.fault("", err)
			}

		case OpNewRecord:
			n := binary.LittleEndian.Uint16(bc[frame.IP:])
			frame.IP += 2
			m.push(NewRecord(int(n)))

		case OpSetField:
			i := binary.LittleEndian.Uint16(bc[frame.IP:])
			frame.IP += 2
			v := m.pop()
			m.top().(*Record).Fields[i] = v

		case OpGetField:
			i := binary.LittleEndian.Uint16(bc[frame.IP:])
			frame.IP += 2
			m.push(m.pop().(*Record).Fields[i])

		case OpCopyRecord:
			m.push(m.pop().(*Record).Copy())

		case OpNewArray:
			n := binary.LittleEndian.Uint16(bc[frame.IP:])
			frame.IP += 2
			m.push(m.popN(int(n)))

		case OpIndex:
			idx := m.pop().(int64)
			v, err := index(m.pop(), idx)
			if err != nil {
				return nil, m.fault("", err)
			}
			m.push(v)

		case OpLength:
			n, err := length(m.pop())
			if err != nil {
				return nil, m.fault("", err)
			}
			m.push(n)

		case OpMakeRange:
			inclusive := bc[frame.IP] != 0
			frame.IP++
			to := m.pop().(int64)
			from := m.pop().(int64)
			m.push(MakeRange(from, to, inclusive))

		case OpMakeSome:
			m.push(Some(m.pop()))

		case OpMakeNone:
			m.push(None())

		case OpMakeOk:
			m.push(Ok(m.pop()))

		case OpMakeErr:
			m.push(Err(m.pop()))

		case OpIsDefined:
			switch v := m.pop().(type) {
			case Option:
				m.push(v.Defined)
			case Result:
				m.push(v.Success)
			default:
				return nil, m.fault(fmt.Sprintf("IS_DEFINED on %T", v), nil)
			}

		case OpUnwrapValue:
			switch v := m.pop().(type) {
			case Option:
				m.push(v.Value)
			case Result:
				m.push(v.Value)
			default:
				return nil, m.fault(fmt.Sprintf("UNWRAP_VALUE on %T", v), nil)
			}

		case OpUnwrapError:
			m.push(m.pop().(Result).Error)

		case OpCall:
			idx := binary.LittleEndian.Uint16(bc[frame.IP:])
			argc := int(bc[frame.IP+2])
			frame.IP += 3
			fn := u.Constants[idx].(*Function)
			if err := m.call(ctx, fn, nil, m.popN(argc)); err != nil {
				return nil, err
			}

		case OpCallClosure:
			argc := int(bc[frame.IP])
			frame.IP++
			args := m.popN(argc)
			c, ok := m.pop().(*Closure)
			if !ok {
				return nil, m.fault("CALL_CLOSURE on a non-function value", nil)
			}
			if err := m.call(ctx, c.Fn, c.Captured, args); err != nil {
				return nil, err
			}

		case OpMakeClosure:
			idx := binary.LittleEndian.Uint16(bc[frame.IP:])
			n := int(bc[frame.IP+2])
			frame.IP += 3
			m.push(&Closure{Fn: u.Constants[idx].(*Function), Captured: m.popN(n)})

		case OpAwait:
			if !m.async {
				return nil, m.fault("AWAIT outside of an async function", nil)
			}
			f, ok := m.top().(runtime.AnyFuture)
			if !ok {
				return nil, m.fault(fmt.Sprintf("AWAIT on %T", m.top()), nil)
			}
			p := f.PollAny(ctx)
			switch p.State {
			case runtime.Pending:
				frame.IP = start
				return nil, errSuspended
			case runtime.Failed:
				return nil, m.fault("", p.Err)
			}
			m.pop()
			m.push(p.Value)

		default:
			return nil, m.fault(fmt.Sprintf("unknown opcode 0x%02X", byte(op)), nil)
		}
	}
}

// call performs a call on behalf of the current frame. Bytecode sync
// functions get a new frame; everything else runs to a value immediately.
// Async bytecode functions produce a future that the caller awaits.
func (m *machine) call(ctx *runtime.Context, fn *Function, captured, args []Value) error {
	switch {
	case fn.Native != nil:
		v, err := fn.Native(ctx, args)
		if err != nil {
			return m.fault("", fmt.Errorf("%s: %w", fn.Name, err))
		}
		m.push(v)
		return nil
	case fn.Unit == nil:
		return m.fault(fmt.Sprintf("%s is not linked", fn.Name), nil)
	case fn.Async:
		t, err := newTask(fn, captured, args)
		if err != nil {
			return err
		}
		m.push(t)
		return nil
	}
	return m.pushFrame(fn, captured, args)
}

func (m *machine) fault(message string, err error) error {
	var re *RuntimeError
	if errors.As(err, &re) {
		return err
	}
	if len(m.frames) == 0 {
		return &RuntimeError{Message: message, Err: err}
	}
	f := m.frames[len(m.frames)-1]
	return &RuntimeError{Function: f.Fn.Name, Offset: f.IP, Message: message, Err: err}
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func intOp(op Opcode, a, b int64) (int64, error) {
	switch op {
	case OpAddInt:
		return a + b, nil
	case OpSubInt:
		return a - b, nil
	case OpMulInt:
		return a * b, nil
	case OpDivInt:
		if b == 0 {
			return 0, errors.New("integer division by zero")
		}
		return a / b, nil
	case OpModInt:
		if b == 0 {
			return 0, errors.New("integer modulo by zero")
		}
		return a % b, nil
	case OpPowInt:
		return intPow(a, b)
	case OpBitAnd:
		return a & b, nil
	case OpBitOr:
		return a | b, nil
	case OpBitXor:
		return a ^ b, nil
	}
	return 0, fmt.Errorf("%s is not an int operator", op)
}

func intPow(base, exp int64) (int64, error) {
	if exp < 0 {
		return 0, fmt.Errorf("negative exponent %d", exp)
	}
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result, nil
}

func floatOp(op Opcode, a, b float64) float64 {
	switch op {
	case OpAddFloat:
		return a + b
	case OpSubFloat:
		return a - b
	case OpMulFloat:
		return a * b
	case OpDivFloat:
		return a / b
	case OpModFloat:
		return math.Mod(a, b)
	case OpPowFloat:
		return math.Pow(a, b)
	}
	return math.NaN()
}

func compare(a, b Value) (int, error) {
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmp3(x < y, x > y), nil
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp3(x < y, x > y), nil
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	}
	return 0, fmt.Errorf("cannot order %T and %T", a, b)
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func compareResult(op Opcode, c int) bool {
	switch op {
	case OpLT:
		return c < 0
	case OpLE:
		return c <= 0
	case OpGT:
		return c > 0
	}
	return c >= 0
}

func index(target Value, i int64) (Value, error) {
	switch t := target.(type) {
	case []Value:
		if i < 0 || i >= int64(len(t)) {
			return nil, fmt.Errorf("index %d out of bounds for array of length %d", i, len(t))
		}
		return t[i], nil
	case Range:
		if i < 0 || i >= t.Length() {
			return nil, fmt.Errorf("index %d out of bounds for range of length %d", i, t.Length())
		}
		return t.From + i, nil
	case string:
		runes := []rune(t)
		if i < 0 || i >= int64(len(runes)) {
			return nil, fmt.Errorf("index %d out of bounds for string of length %d", i, len(runes))
		}
		return string(runes[i]), nil
	}
	return nil, fmt.Errorf("cannot index %T", target)
}

func length(target Value) (int64, error) {
	switch t := target.(type) {
	case []Value:
		return int64(len(t)), nil
	case Range:
		return t.Length(), nil
	case string:
		return int64(utf8.RuneCountInString(t)), nil
	}
	return 0, fmt.Errorf("%T has no length", target)
}

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// Invoke runs a sync function to completion.
func (f *Function) Invoke(ctx *runtime.Context, args ...Value) (Value, error) {
	return invoke(ctx, f, nil, args)
}

// CallClosure runs a sync closure to completion. Natives use it to call
// function values passed in from scripts.
func CallClosure(ctx *runtime.Context, c *Closure, args ...Value) (Value, error) {
	return invoke(ctx, c.Fn, c.Captured, args)
}

func invoke(ctx *runtime.Context, fn *Function, captured, args []Value) (Value, error) {
	if fn.Async {
		return nil, &RuntimeError{Function: fn.Name, Message: "async function invoked synchronously"}
	}
	if fn.Native != nil {
		return fn.Native(ctx, args)
	}
	if fn.Unit == nil {
		return nil, &RuntimeError{Function: fn.Name, Message: "function is not linked"}
	}
	m := &machine{}
	if err := m.pushFrame(fn, captured, args); err != nil {
		return nil, err
	}
	return m.run(ctx)
}

// Start begins an async function and returns its future. Sync functions
// are run immediately and wrapped in a resolved future.
func (f *Function) Start(ctx *runtime.Context, args ...Value) (runtime.AnyFuture, error) {
	if !f.Async {
		v, err := f.Invoke(ctx, args...)
		if err != nil {
			return nil, err
		}
		return runtime.ReadyFuture(v), nil
	}
	if f.Native != nil {
		v, err := f.Native(ctx, args)
		if err != nil {
			return nil, err
		}
		future, ok := v.(runtime.AnyFuture)
		if !ok {
			return nil, &RuntimeError{Function: f.Name, Message: fmt.Sprintf("async native returned %T", v)}
		}
		return future, nil
	}
	return newTask(f, nil, args)
}

// ---------------------------------------------------------------------------
// Task: one async invocation
// ---------------------------------------------------------------------------

// Task is the future of an async bytecode invocation. Each poll resumes the
// machine until it returns or awaits a pending future.
type Task struct {
	fn     *Function
	m      *machine
	result runtime.Poll[any]
}

func newTask(fn *Function, captured, args []Value) (*Task, error) {
	m := &machine{async: true}
	if err := m.pushFrame(fn, captured, args); err != nil {
		return nil, err
	}
	return &Task{fn: fn, m: m}, nil
}

// Function returns the function the task runs.
func (t *Task) Function() *Function {
	return t.fn
}

// PollAny resumes the task.
func (t *Task) PollAny(ctx *runtime.Context) runtime.Poll[any] {
	if t.result.Done() {
		return t.result
	}
	v, err := t.m.run(ctx)
	switch {
	case errors.Is(err, errSuspended):
		return runtime.PollPending[any]()
	case err != nil:
		t.result = runtime.PollFailed[any](err)
	default:
		t.result = runtime.PollReady[any](v)
	}
	t.m = nil
	return t.result
}
