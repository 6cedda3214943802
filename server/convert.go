package server

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/to2/runtime"
	"github.com/chazu/to2/types"
	"github.com/chazu/to2/vm"
)

// ---------------------------------------------------------------------------
// JSON-like values to script values
// ---------------------------------------------------------------------------

// toValue converts a protobuf value to a script value of type t.
//
// Records and structs are objects keyed by field name, tuples are lists,
// None is null, and results are {"ok": v} or {"error": e}.
func toValue(v *structpb.Value, t types.RealizedType) (vm.Value, error) {
	switch tt := t.(type) {
	case *types.BuiltinType:
		return toBuiltin(v, tt)
	case *types.ArrayType:
		list := v.GetListValue()
		if list == nil {
			return nil, fmt.Errorf("expected a list for %s", t.Name())
		}
		out := make([]vm.Value, len(list.Values))
		for i, item := range list.Values {
			x, err := toValue(item, tt.Element)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = x
		}
		return out, nil
	case *types.OptionType:
		if _, null := v.GetKind().(*structpb.Value_NullValue); null {
			return vm.None(), nil
		}
		x, err := toValue(v, tt.Element)
		if err != nil {
			return nil, err
		}
		return vm.Some(x), nil
	case *types.ResultType:
		obj := v.GetStructValue()
		if obj == nil || len(obj.Fields) != 1 {
			return nil, fmt.Errorf(`expected {"ok": ...} or {"error": ...} for %s`, t.Name())
		}
		if x, ok := obj.Fields["ok"]; ok {
			val, err := toValue(x, tt.Value)
			if err != nil {
				return nil, err
			}
			return vm.Ok(val), nil
		}
		if x, ok := obj.Fields["error"]; ok {
			e, err := toValue(x, tt.Error)
			if err != nil {
				return nil, err
			}
			return vm.Err(e), nil
		}
		return nil, fmt.Errorf(`expected {"ok": ...} or {"error": ...} for %s`, t.Name())
	case *types.TupleType:
		list := v.GetListValue()
		if list == nil || len(list.Values) != len(tt.Items) {
			return nil, fmt.Errorf("expected a list of %d items for %s", len(tt.Items), t.Name())
		}
		rec := vm.NewRecord(len(tt.Items))
		for i, item := range list.Values {
			x, err := toValue(item, tt.Items[i])
			if err != nil {
				return nil, fmt.Errorf("_%d: %w", i+1, err)
			}
			rec.Fields[i] = x
		}
		return rec, nil
	case *types.RecordType:
		return toRecord(v, t.Name(), tt.Fields)
	case *types.DeclaredType:
		return toRecord(v, t.Name(), tt.Fields)
	case *types.GenericParameter:
		return toBuiltin(v, types.Unknown)
	}
	return nil, fmt.Errorf("%s values cannot be passed in", t.Name())
}

func toRecord(v *structpb.Value, name string, fields []types.RecordField) (vm.Value, error) {
	obj := v.GetStructValue()
	if obj == nil {
		return nil, fmt.Errorf("expected an object for %s", name)
	}
	rec := vm.NewRecord(len(fields))
	for i, f := range fields {
		x, ok := obj.Fields[f.Name]
		if !ok {
			if _, optional := f.Type.(*types.OptionType); !optional {
				return nil, fmt.Errorf("missing field %s of %s", f.Name, name)
			}
			x = structpb.NewNullValue()
		}
		val, err := toValue(x, f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		rec.Fields[i] = val
	}
	return rec, nil
}

func toBuiltin(v *structpb.Value, t *types.BuiltinType) (vm.Value, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		switch t {
		case types.Int:
			if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
				return nil, fmt.Errorf("%v is not an int", n)
			}
			return int64(n), nil
		case types.Float:
			return n, nil
		case types.Unknown:
			if n == math.Trunc(n) && math.Abs(n) <= 1<<53 {
				return int64(n), nil
			}
			return n, nil
		}
	case *structpb.Value_StringValue:
		if t == types.String || t == types.Unknown {
			return k.StringValue, nil
		}
	case *structpb.Value_BoolValue:
		if t == types.Bool || t == types.Unknown {
			return k.BoolValue, nil
		}
	case *structpb.Value_NullValue:
		if t == types.Unit || t == types.Unknown {
			return vm.UnitValue, nil
		}
	case *structpb.Value_ListValue:
		if t == types.Unknown {
			out := make([]vm.Value, len(k.ListValue.Values))
			for i, item := range k.ListValue.Values {
				x, err := toBuiltin(item, types.Unknown)
				if err != nil {
					return nil, err
				}
				out[i] = x
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("cannot use %s as %s", kindName(v), t.Name())
}

func kindName(v *structpb.Value) string {
	switch v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return "number"
	case *structpb.Value_StringValue:
		return "string"
	case *structpb.Value_BoolValue:
		return "bool"
	case *structpb.Value_ListValue:
		return "list"
	case *structpb.Value_StructValue:
		return "object"
	}
	return "null"
}

// ---------------------------------------------------------------------------
// Script values to JSON-like values
// ---------------------------------------------------------------------------

// fromValue converts a script value for a response. Records lose their
// field names at run time and become lists.
func fromValue(v vm.Value) *structpb.Value {
	switch x := v.(type) {
	case nil, runtime.Unit:
		return structpb.NewNullValue()
	case int64:
		return structpb.NewNumberValue(float64(x))
	case float64:
		return structpb.NewNumberValue(x)
	case bool:
		return structpb.NewBoolValue(x)
	case string:
		return structpb.NewStringValue(x)
	case []vm.Value:
		return listValue(x)
	case *vm.Record:
		return listValue(x.Fields)
	case vm.Option:
		if !x.Defined {
			return structpb.NewNullValue()
		}
		return fromValue(x.Value)
	case vm.Result:
		key, inner := "ok", x.Value
		if !x.Success {
			key, inner = "error", x.Error
		}
		return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{key: fromValue(inner)}})
	case vm.Range:
		return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"from": structpb.NewNumberValue(float64(x.From)),
			"to":   structpb.NewNumberValue(float64(x.To)),
		}})
	}
	return structpb.NewStringValue(vm.FormatValue(v))
}

func listValue(items []vm.Value) *structpb.Value {
	values := make([]*structpb.Value, len(items))
	for i, item := range items {
		values[i] = fromValue(item)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}
