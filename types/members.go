package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/to2/runtime"
	"github.com/chazu/to2/vm"
)

// ---------------------------------------------------------------------------
// Fields and methods of built-in types
// ---------------------------------------------------------------------------

// FindMember returns a field or method of t, or nil. Built-in and composite
// types get their members here; bound types carry their own.
func FindMember(t RealizedType, name string) *Member {
	switch x := t.(type) {
	case *BoundType:
		return x.Member(name)
	case *BuiltinType:
		switch x {
		case Int:
			return intMembers[name]
		case Float:
			return floatMembers[name]
		case String:
			return stringMembers[name]
		case Range:
			return rangeMember(name)
		}
	case *ArrayType:
		return arrayMember(x, name)
	case *OptionType:
		return optionMember(x, name)
	case *ResultType:
		return resultMember(x, name)
	}
	return nil
}

// MemberNames lists the members FindMember knows for t, for completion.
func MemberNames(t RealizedType) []string {
	var names []string
	switch x := t.(type) {
	case *BoundType:
		for n := range x.Origin().Members {
			names = append(names, n)
		}
	case *BuiltinType:
		var table map[string]*Member
		switch x {
		case Int:
			table = intMembers
		case Float:
			table = floatMembers
		case String:
			table = stringMembers
		case Range:
			names = []string{"length", "map", "to_array"}
		}
		for n := range table {
			names = append(names, n)
		}
	case *ArrayType:
		names = []string{"exists", "filter", "is_empty", "length", "map", "reverse", "to_string"}
	case *OptionType:
		names = []string{"defined", "ok_or", "value"}
	case *ResultType:
		names = []string{"error", "success", "value"}
	}
	return names
}

func field(name, description string, result RealizedType, fn func(self vm.Value) (vm.Value, error)) *Member {
	return &Member{
		Name:        name,
		Description: description,
		Field:       true,
		Result:      result,
		Impl: vm.NewNative(name, 1, false, func(_ *runtime.Context, args []vm.Value) (vm.Value, error) {
			return fn(args[0])
		}),
	}
}

func method(name, description string, params []Parameter, result RealizedType, fn vm.NativeFunc) *Member {
	return &Member{
		Name:        name,
		Description: description,
		Params:      params,
		Result:      result,
		Impl:        vm.NewNative(name, len(params)+1, false, fn),
	}
}

func param(name string, t RealizedType) Parameter {
	return Parameter{Name: name, Type: t}
}

// ---------------------------------------------------------------------------
// int, float, string
// ---------------------------------------------------------------------------

var intMembers = map[string]*Member{
	"to_float": field("to_float", "Value as float", Float, func(self vm.Value) (vm.Value, error) {
		return float64(self.(int64)), nil
	}),
	"abs": field("abs", "Absolute value", Int, func(self vm.Value) (vm.Value, error) {
		i := self.(int64)
		if i < 0 {
			return -i, nil
		}
		return i, nil
	}),
	"to_string": field("to_string", "Decimal representation", String, func(self vm.Value) (vm.Value, error) {
		return strconv.FormatInt(self.(int64), 10), nil
	}),
}

var floatMembers = map[string]*Member{
	"to_int": field("to_int", "Value truncated towards zero", Int, func(self vm.Value) (vm.Value, error) {
		return int64(self.(float64)), nil
	}),
	"abs": field("abs", "Absolute value", Float, func(self vm.Value) (vm.Value, error) {
		return math.Abs(self.(float64)), nil
	}),
	"round": field("round", "Nearest integer, halves away from zero", Int, func(self vm.Value) (vm.Value, error) {
		return int64(math.Round(self.(float64))), nil
	}),
	"to_string": field("to_string", "Shortest decimal representation", String, func(self vm.Value) (vm.Value, error) {
		return vm.FormatValue(self), nil
	}),
}

var stringMembers = map[string]*Member{
	"length": field("length", "Number of characters", Int, func(self vm.Value) (vm.Value, error) {
		return int64(len([]rune(self.(string)))), nil
	}),
	"to_upper": field("to_upper", "Upper case copy", String, func(self vm.Value) (vm.Value, error) {
		return strings.ToUpper(self.(string)), nil
	}),
	"to_lower": field("to_lower", "Lower case copy", String, func(self vm.Value) (vm.Value, error) {
		return strings.ToLower(self.(string)), nil
	}),
	"contains": method("contains", "Check if other is a substring", []Parameter{param("other", String)}, Bool,
		func(_ *runtime.Context, args []vm.Value) (vm.Value, error) {
			return strings.Contains(args[0].(string), args[1].(string)), nil
		}),
	"starts_with": method("starts_with", "Check if the string begins with prefix", []Parameter{param("prefix", String)}, Bool,
		func(_ *runtime.Context, args []vm.Value) (vm.Value, error) {
			return strings.HasPrefix(args[0].(string), args[1].(string)), nil
		}),
	"split": method("split", "Split around every separator", []Parameter{param("separator", String)}, &ArrayType{Element: String},
		func(_ *runtime.Context, args []vm.Value) (vm.Value, error) {
			parts := strings.Split(args[0].(string), args[1].(string))
			out := make([]vm.Value, len(parts))
			for i, p := range parts {
				out[i] = p
			}
			return out, nil
		}),
}

// ---------------------------------------------------------------------------
// Arrays and ranges
// ---------------------------------------------------------------------------

var genericU = &GenericParameter{Param: "U"}

func callback(ctx *runtime.Context, v vm.Value, args ...vm.Value) (vm.Value, error) {
	c, ok := v.(*vm.Closure)
	if !ok {
		return nil, fmt.Errorf("expected a function, got %T", v)
	}
	return vm.CallClosure(ctx, c, args...)
}

func mapValues(ctx *runtime.Context, items []vm.Value, fn vm.Value) (vm.Value, error) {
	out := make([]vm.Value, len(items))
	for i, item := range items {
		r, err := callback(ctx, fn, item)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func arrayMember(t *ArrayType, name string) *Member {
	elem := t.Element
	predicate := &FunctionType{Params: []RealizedType{elem}, Result: Bool}
	switch name {
	case "length":
		return field(name, "Number of elements", Int, func(self vm.Value) (vm.Value, error) {
			return int64(len(self.([]vm.Value))), nil
		})
	case "is_empty":
		return field(name, "Check if the array has no elements", Bool, func(self vm.Value) (vm.Value, error) {
			return len(self.([]vm.Value)) == 0, nil
		})
	case "to_string":
		return field(name, "Render the array", String, func(self vm.Value) (vm.Value, error) {
			return vm.FormatValue(self), nil
		})
	case "reverse":
		return field(name, "Reversed copy", t, func(self vm.Value) (vm.Value, error) {
			items := self.([]vm.Value)
			out := make([]vm.Value, len(items))
			for i, item := range items {
				out[len(items)-1-i] = item
			}
			return out, nil
		})
	case "map":
		m := method(name, "Apply mapper to each element",
			[]Parameter{param("mapper", &FunctionType{Params: []RealizedType{elem}, Result: genericU})},
			&ArrayType{Element: genericU},
			func(ctx *runtime.Context, args []vm.Value) (vm.Value, error) {
				return mapValues(ctx, args[0].([]vm.Value), args[1])
			})
		m.TypeParams = []string{"U"}
		return m
	case "filter":
		return method(name, "Elements matching predicate", []Parameter{param("predicate", predicate)}, t,
			func(ctx *runtime.Context, args []vm.Value) (vm.Value, error) {
				var out []vm.Value
				for _, item := range args[0].([]vm.Value) {
					keep, err := callback(ctx, args[1], item)
					if err != nil {
						return nil, err
					}
					if keep.(bool) {
						out = append(out, item)
					}
				}
				if out == nil {
					out = []vm.Value{}
				}
				return out, nil
			})
	case "exists":
		return method(name, "Check if any element matches predicate", []Parameter{param("predicate", predicate)}, Bool,
			func(ctx *runtime.Context, args []vm.Value) (vm.Value, error) {
				for _, item := range args[0].([]vm.Value) {
					ok, err := callback(ctx, args[1], item)
					if err != nil {
						return nil, err
					}
					if ok.(bool) {
						return true, nil
					}
				}
				return false, nil
			})
	}
	return nil
}

func rangeValues(r vm.Range) []vm.Value {
	n := r.Length()
	out := make([]vm.Value, 0, n)
	for i := int64(0); i < n; i++ {
		out = append(out, r.From+i)
	}
	return out
}

func rangeMember(name string) *Member {
	switch name {
	case "length":
		return field(name, "Number of integers in the range", Int, func(self vm.Value) (vm.Value, error) {
			return self.(vm.Range).Length(), nil
		})
	case "to_array":
		return field(name, "The integers of the range", &ArrayType{Element: Int}, func(self vm.Value) (vm.Value, error) {
			return rangeValues(self.(vm.Range)), nil
		})
	case "map":
		m := method(name, "Apply mapper to each integer",
			[]Parameter{param("mapper", &FunctionType{Params: []RealizedType{Int}, Result: genericU})},
			&ArrayType{Element: genericU},
			func(ctx *runtime.Context, args []vm.Value) (vm.Value, error) {
				return mapValues(ctx, rangeValues(args[0].(vm.Range)), args[1])
			})
		m.TypeParams = []string{"U"}
		return m
	}
	return nil
}

// ---------------------------------------------------------------------------
// Option and Result
// ---------------------------------------------------------------------------

// ErrNoValue is returned when reading the value of None.
var ErrNoValue = errors.New("option has no value")

func optionMember(t *OptionType, name string) *Member {
	switch name {
	case "defined":
		return field(name, "Check if a value is present", Bool, func(self vm.Value) (vm.Value, error) {
			return self.(vm.Option).Defined, nil
		})
	case "value":
		return field(name, "The contained value", t.Element, func(self vm.Value) (vm.Value, error) {
			o := self.(vm.Option)
			if !o.Defined {
				return nil, ErrNoValue
			}
			return o.Value, nil
		})
	case "ok_or":
		m := method(name, "Convert to a Result, using error when empty",
			[]Parameter{param("error", &GenericParameter{Param: "E"})},
			&ResultType{Value: t.Element, Error: &GenericParameter{Param: "E"}},
			func(_ *runtime.Context, args []vm.Value) (vm.Value, error) {
				o := args[0].(vm.Option)
				if o.Defined {
					return vm.Ok(o.Value), nil
				}
				return vm.Err(args[1]), nil
			})
		m.TypeParams = []string{"E"}
		return m
	}
	return nil
}

func resultMember(t *ResultType, name string) *Member {
	switch name {
	case "success":
		return field(name, "Check if the result is Ok", Bool, func(self vm.Value) (vm.Value, error) {
			return self.(vm.Result).Success, nil
		})
	case "value":
		return field(name, "The success value", t.Value, func(self vm.Value) (vm.Value, error) {
			r := self.(vm.Result)
			if !r.Success {
				return nil, fmt.Errorf("result is an error: %s", vm.FormatValue(r.Error))
			}
			return r.Value, nil
		})
	case "error":
		return field(name, "The error value", t.Error, func(self vm.Value) (vm.Value, error) {
			r := self.(vm.Result)
			if r.Success {
				return nil, errors.New("result is not an error")
			}
			return r.Error, nil
		})
	}
	return nil
}
