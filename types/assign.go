package types

import (
	"fmt"

	"github.com/chazu/to2/runtime"
	"github.com/chazu/to2/vm"
)

// ---------------------------------------------------------------------------
// Assignability
// ---------------------------------------------------------------------------

// IsAssignableFrom reports whether a value of type source may be used where
// target is expected.
//
//   - identical built-ins; int widens into float
//   - arrays, options, results and tuples pairwise on their components
//   - functions with equal async flag, contravariant parameters and
//     covariant result; components must share a representation
//   - records by width subtyping: every target field must exist in source
//     with an assignable type; extra source fields are dropped
//   - declared and bound types into interfaces they implement
func IsAssignableFrom(target, source RealizedType) bool {
	return assignable(target, source, false)
}

// IsSameType reports structural type identity.
func IsSameType(a, b RealizedType) bool {
	return assignable(a, b, true) && assignable(b, a, true)
}

func assignable(target, source RealizedType, strict bool) bool {
	if target == Unknown || source == Unknown {
		return true
	}
	if target == source {
		return true
	}

	switch t := target.(type) {
	case *BuiltinType:
		s, ok := source.(*BuiltinType)
		if !ok {
			return false
		}
		return s == t || (!strict && t == Float && s == Int)

	case *OptionType:
		s, ok := source.(*OptionType)
		return ok && assignable(t.Element, s.Element, strict)

	case *ResultType:
		s, ok := source.(*ResultType)
		return ok && assignable(t.Value, s.Value, strict) && assignable(t.Error, s.Error, strict)

	case *ArrayType:
		s, ok := source.(*ArrayType)
		return ok && assignable(t.Element, s.Element, strict)

	case *TupleType:
		s, ok := source.(*TupleType)
		if !ok || len(s.Items) != len(t.Items) {
			return false
		}
		for i := range t.Items {
			if !assignable(t.Items[i], s.Items[i], strict) {
				return false
			}
		}
		return true

	case *RecordType:
		s, ok := source.(*RecordType)
		if !ok {
			return false
		}
		if strict && len(s.Fields) != len(t.Fields) {
			return false
		}
		for i, tf := range t.Fields {
			idx := s.FieldIndex(tf.Name)
			if idx < 0 || (strict && idx != i) {
				return false
			}
			if !assignable(tf.Type, s.Fields[idx].Type, strict) {
				return false
			}
		}
		return true

	case *FunctionType:
		s, ok := source.(*FunctionType)
		if !ok || s.Async != t.Async || len(s.Params) != len(t.Params) {
			return false
		}
		for i := range t.Params {
			if !assignable(s.Params[i], t.Params[i], true) {
				return false
			}
		}
		return assignable(t.Result, s.Result, true)

	case *FutureType:
		s, ok := source.(*FutureType)
		return ok && assignable(t.Result, s.Result, true)

	case *GenericParameter:
		s, ok := source.(*GenericParameter)
		return ok && s.Param == t.Param

	case *DeclaredType:
		return false

	case *BoundType:
		s, ok := source.(*BoundType)
		if !ok || s.Origin() != t.Origin() || len(s.TypeArgs) != len(t.TypeArgs) {
			return false
		}
		for i := range t.TypeArgs {
			if !assignable(t.TypeArgs[i], s.TypeArgs[i], true) || !assignable(s.TypeArgs[i], t.TypeArgs[i], true) {
				return false
			}
		}
		return true

	case *InterfaceType:
		return implements(source, t)
	}
	return false
}

// implements checks a capability set against the methods of a declared or
// bound type. Method types compare without the receiver.
func implements(source RealizedType, iface *InterfaceType) bool {
	if s, ok := source.(*InterfaceType); ok {
		for name, want := range iface.Methods {
			have, ok := s.Methods[name]
			if !ok || !assignable(want, have, true) {
				return false
			}
		}
		return true
	}
	for name, want := range iface.Methods {
		have := methodType(source, name, want.Async)
		if have == nil || !assignable(want, have, true) {
			return false
		}
	}
	return true
}

func methodType(t RealizedType, name string, async bool) *FunctionType {
	switch s := t.(type) {
	case *DeclaredType:
		sel := s.FindMethod(name)
		if sel == nil {
			return nil
		}
		fn := sel.Select(async)
		if fn == nil || fn.Async != async {
			return nil
		}
		ft := fn.Type()
		return &FunctionType{Async: ft.Async, Params: ft.Params[1:], Result: ft.Result}
	case *BoundType:
		m := s.Member(name)
		if m == nil || m.Field {
			return nil
		}
		return m.Type()
	}
	return nil
}

// ---------------------------------------------------------------------------
// Value conversion
// ---------------------------------------------------------------------------

// NeedsConversion reports whether a value of source type must be converted
// to be stored as target: int widening or record projection somewhere in
// the type tree.
func NeedsConversion(target, source RealizedType) bool {
	if target == source || target == Unknown || source == Unknown {
		return false
	}
	switch t := target.(type) {
	case *BuiltinType:
		return t == Float && source == Int
	case *OptionType:
		s, ok := source.(*OptionType)
		return ok && NeedsConversion(t.Element, s.Element)
	case *ResultType:
		s, ok := source.(*ResultType)
		return ok && (NeedsConversion(t.Value, s.Value) || NeedsConversion(t.Error, s.Error))
	case *ArrayType:
		s, ok := source.(*ArrayType)
		return ok && NeedsConversion(t.Element, s.Element)
	case *TupleType:
		s, ok := source.(*TupleType)
		if !ok {
			return false
		}
		for i := range t.Items {
			if NeedsConversion(t.Items[i], s.Items[i]) {
				return true
			}
		}
	case *RecordType:
		s, ok := source.(*RecordType)
		if !ok {
			return false
		}
		if len(s.Fields) != len(t.Fields) {
			return true
		}
		for i, f := range t.Fields {
			if s.Fields[i].Name != f.Name || NeedsConversion(f.Type, s.Fields[i].Type) {
				return true
			}
		}
	}
	return false
}

// ConvertValue converts v from source to target. The types must be
// assignable.
func ConvertValue(target, source RealizedType, v vm.Value) (vm.Value, error) {
	if !NeedsConversion(target, source) {
		return v, nil
	}
	switch t := target.(type) {
	case *BuiltinType:
		if i, ok := v.(int64); ok {
			return float64(i), nil
		}
	case *OptionType:
		o := v.(vm.Option)
		if !o.Defined {
			return o, nil
		}
		inner, err := ConvertValue(t.Element, source.(*OptionType).Element, o.Value)
		return vm.Some(inner), err
	case *ResultType:
		s := source.(*ResultType)
		r := v.(vm.Result)
		if r.Success {
			inner, err := ConvertValue(t.Value, s.Value, r.Value)
			return vm.Ok(inner), err
		}
		inner, err := ConvertValue(t.Error, s.Error, r.Error)
		return vm.Err(inner), err
	case *ArrayType:
		s := source.(*ArrayType)
		items := v.([]vm.Value)
		out := make([]vm.Value, len(items))
		for i, item := range items {
			c, err := ConvertValue(t.Element, s.Element, item)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case *TupleType:
		s := source.(*TupleType)
		rec := v.(*vm.Record)
		out := vm.NewRecord(len(t.Items))
		for i := range t.Items {
			c, err := ConvertValue(t.Items[i], s.Items[i], rec.Fields[i])
			if err != nil {
				return nil, err
			}
			out.Fields[i] = c
		}
		return out, nil
	case *RecordType:
		s := source.(*RecordType)
		rec := v.(*vm.Record)
		out := vm.NewRecord(len(t.Fields))
		for i, f := range t.Fields {
			idx := s.FieldIndex(f.Name)
			if idx < 0 {
				return nil, fmt.Errorf("record %s has no field %s", s.Name(), f.Name)
			}
			c, err := ConvertValue(f.Type, s.Fields[idx].Type, rec.Fields[idx])
			if err != nil {
				return nil, err
			}
			out.Fields[i] = c
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot convert %s to %s", source.Name(), target.Name())
}

// Converter returns a native function converting one value from source to
// target, for code generation of non-trivial coercions.
func Converter(target, source RealizedType) *vm.Function {
	name := fmt.Sprintf("convert(%s -> %s)", source.Name(), target.Name())
	return vm.NewNative(name, 1, false, func(_ *runtime.Context, args []vm.Value) (vm.Value, error) {
		return ConvertValue(target, source, args[0])
	})
}
