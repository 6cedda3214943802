package types

import "sort"

// InferGenerics matches an argument type against a parameter type that may
// mention generic parameters and records the bindings it finds. Bindings
// already present are kept.
func InferGenerics(param, arg RealizedType, bindings map[string]RealizedType) {
	if arg == nil || arg == Unknown {
		return
	}
	switch p := param.(type) {
	case *GenericParameter:
		if _, ok := bindings[p.Param]; !ok {
			if g, ok := arg.(*GenericParameter); ok && g.Param == p.Param {
				return
			}
			bindings[p.Param] = arg
		}
	case *OptionType:
		if a, ok := arg.(*OptionType); ok {
			InferGenerics(p.Element, a.Element, bindings)
		}
	case *ResultType:
		if a, ok := arg.(*ResultType); ok {
			InferGenerics(p.Value, a.Value, bindings)
			InferGenerics(p.Error, a.Error, bindings)
		}
	case *ArrayType:
		if a, ok := arg.(*ArrayType); ok {
			InferGenerics(p.Element, a.Element, bindings)
		}
	case *TupleType:
		if a, ok := arg.(*TupleType); ok && len(a.Items) == len(p.Items) {
			for i := range p.Items {
				InferGenerics(p.Items[i], a.Items[i], bindings)
			}
		}
	case *RecordType:
		if a, ok := arg.(*RecordType); ok {
			for _, f := range p.Fields {
				if idx := a.FieldIndex(f.Name); idx >= 0 {
					InferGenerics(f.Type, a.Fields[idx].Type, bindings)
				}
			}
		}
	case *FunctionType:
		if a, ok := arg.(*FunctionType); ok && len(a.Params) == len(p.Params) {
			for i := range p.Params {
				InferGenerics(p.Params[i], a.Params[i], bindings)
			}
			InferGenerics(p.Result, a.Result, bindings)
		}
	case *FutureType:
		if a, ok := arg.(*FutureType); ok {
			InferGenerics(p.Result, a.Result, bindings)
		}
	case *BoundType:
		if a, ok := arg.(*BoundType); ok && a.Origin() == p.Origin() && len(a.TypeArgs) == len(p.TypeArgs) {
			for i := range p.TypeArgs {
				InferGenerics(p.TypeArgs[i], a.TypeArgs[i], bindings)
			}
		}
	}
}

// FreeGenerics returns the names of generic parameters still present in t,
// sorted.
func FreeGenerics(t RealizedType) []string {
	seen := map[string]bool{}
	collectGenerics(t, seen)
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasGenerics reports whether t mentions any generic parameter.
func HasGenerics(t RealizedType) bool {
	return len(FreeGenerics(t)) > 0
}

func collectGenerics(t RealizedType, seen map[string]bool) {
	switch x := t.(type) {
	case *GenericParameter:
		seen[x.Param] = true
	case *OptionType:
		collectGenerics(x.Element, seen)
	case *ResultType:
		collectGenerics(x.Value, seen)
		collectGenerics(x.Error, seen)
	case *ArrayType:
		collectGenerics(x.Element, seen)
	case *TupleType:
		for _, item := range x.Items {
			collectGenerics(item, seen)
		}
	case *RecordType:
		for _, f := range x.Fields {
			collectGenerics(f.Type, seen)
		}
	case *FunctionType:
		for _, p := range x.Params {
			collectGenerics(p, seen)
		}
		collectGenerics(x.Result, seen)
	case *FutureType:
		collectGenerics(x.Result, seen)
	case *BoundType:
		if len(x.TypeArgs) == 0 {
			for _, p := range x.TypeParams {
				seen[p] = true
			}
		}
		for _, a := range x.TypeArgs {
			collectGenerics(a, seen)
		}
	}
}
