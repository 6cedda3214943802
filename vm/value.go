package vm

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/chazu/to2/runtime"
)

// ---------------------------------------------------------------------------
// Value representation
// ---------------------------------------------------------------------------

// Value is any runtime value. The representation of each TO2 type:
//
//	Unit        runtime.Unit
//	bool        bool
//	int         int64
//	float       float64
//	string      string
//	T[]         []Value
//	tuple       *Record (positional fields)
//	record      *Record (fields in declaration order)
//	struct      *Record (fields in layout order)
//	Option<T>   Option
//	Result<T,E> Result
//	Range       Range
//	functions   *Closure
//	futures     runtime.AnyFuture
//	bound types the host Go value itself
type Value = any

// UnitValue is the single value of type Unit.
var UnitValue Value = runtime.Unit{}

// Record backs tuples, records and struct instances. Fields are positional;
// names live in the static type only.
type Record struct {
	Fields []Value
}

// NewRecord creates a record with n empty fields.
func NewRecord(n int) *Record {
	return &Record{Fields: make([]Value, n)}
}

// Copy returns a shallow copy of the record.
func (r *Record) Copy() *Record {
	fields := make([]Value, len(r.Fields))
	copy(fields, r.Fields)
	return &Record{Fields: fields}
}

// Option is the value of Option<T>.
type Option struct {
	Defined bool
	Value   Value
}

// Some wraps v in a defined option.
func Some(v Value) Option { return Option{Defined: true, Value: v} }

// None returns an empty option.
func None() Option { return Option{} }

// Result is the value of Result<T, E>.
type Result struct {
	Success bool
	Value   Value
	Error   Value
}

// Ok wraps v in a successful result.
func Ok(v Value) Result { return Result{Success: true, Value: v} }

// Err wraps e in a failed result.
func Err(e Value) Result { return Result{Error: e} }

// Range is the half-open integer range [From, To).
type Range struct {
	From int64
	To   int64
}

// MakeRange creates a range; inclusive ranges include to.
func MakeRange(from, to int64, inclusive bool) Range {
	if inclusive {
		to++
	}
	return Range{From: from, To: to}
}

// Length returns the number of elements in the range.
func (r Range) Length() int64 {
	if r.To <= r.From {
		return 0
	}
	return r.To - r.From
}

// Closure is a function value: a function descriptor plus the values
// captured when it was created. Captures are copied, never shared.
type Closure struct {
	Fn       *Function
	Captured []Value
}

// ---------------------------------------------------------------------------
// Equality and formatting
// ---------------------------------------------------------------------------

// Equal reports structural equality of two values.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case *Record:
		y, ok := b.(*Record)
		if !ok || len(x.Fields) != len(y.Fields) {
			return false
		}
		for i := range x.Fields {
			if !Equal(x.Fields[i], y.Fields[i]) {
				return false
			}
		}
		return true
	case []Value:
		y, ok := b.([]Value)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Option:
		y, ok := b.(Option)
		return ok && x.Defined == y.Defined && (!x.Defined || Equal(x.Value, y.Value))
	case Result:
		y, ok := b.(Result)
		if !ok || x.Success != y.Success {
			return false
		}
		if x.Success {
			return Equal(x.Value, y.Value)
		}
		return Equal(x.Error, y.Error)
	case *Closure:
		y, ok := b.(*Closure)
		return ok && x == y
	}
	if a == nil || b == nil {
		return a == b
	}
	if reflect.TypeOf(a).Comparable() && reflect.TypeOf(a) == reflect.TypeOf(b) {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// FormatValue renders a value the way to_string and string interpolation
// do.
func FormatValue(v Value) string {
	var sb strings.Builder
	formatValue(&sb, v)
	return sb.String()
}

func formatValue(sb *strings.Builder, v Value) {
	switch x := v.(type) {
	case nil:
		sb.WriteString("<nil>")
	case runtime.Unit:
		sb.WriteString("()")
	case bool:
		sb.WriteString(strconv.FormatBool(x))
	case int64:
		sb.WriteString(strconv.FormatInt(x, 10))
	case float64:
		sb.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	case string:
		sb.WriteString(x)
	case []Value:
		sb.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatValue(sb, item)
		}
		sb.WriteByte(']')
	case *Record:
		sb.WriteByte('(')
		for i, item := range x.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatValue(sb, item)
		}
		sb.WriteByte(')')
	case Option:
		if !x.Defined {
			sb.WriteString("None")
			return
		}
		sb.WriteString("Some(")
		formatValue(sb, x.Value)
		sb.WriteByte(')')
	case Result:
		if x.Success {
			sb.WriteString("Ok(")
			formatValue(sb, x.Value)
		} else {
			sb.WriteString("Err(")
			formatValue(sb, x.Error)
		}
		sb.WriteByte(')')
	case Range:
		fmt.Fprintf(sb, "%d..%d", x.From, x.To)
	case *Closure:
		sb.WriteString("<fn " + x.Fn.Name + ">")
	case fmt.Stringer:
		sb.WriteString(x.String())
	default:
		fmt.Fprintf(sb, "%v", x)
	}
}
