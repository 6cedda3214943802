package compiler

import (
	"github.com/chazu/to2/types"
	"github.com/chazu/to2/vm"
)

// ---------------------------------------------------------------------------
// Structs
// ---------------------------------------------------------------------------

// declareStruct resolves the field types of a struct and declares its
// constructor. Without an explicit parameter list the constructor takes
// the fields in order, with field initializers as defaults.
func (m *ModuleContext) declareStruct(s *structInfo) {
	seen := map[string]bool{}
	for _, f := range s.decl.Fields {
		if seen[f.Name] {
			m.errorf(f.SpanVal, DuplicateVariableName, "field %s appears twice in %s", f.Name, s.decl.Name)
			continue
		}
		seen[f.Name] = true
		s.fields = append(s.fields, f)
		s.typ.Fields = append(s.typ.Fields, types.RecordField{
			Name:        f.Name,
			Description: f.Description,
			Type:        m.resolveType(f.Type),
		})
	}

	qualified := m.qualify(s.decl.Name)
	var params []types.Parameter
	if s.decl.HasCtor {
		params = m.declareParams(qualified, s.decl.CtorParams)
	} else {
		sawDefault := false
		for i, f := range s.fields {
			p := types.Parameter{Name: f.Name, Type: s.typ.Fields[i].Type}
			switch {
			case f.Init != nil:
				sawDefault = true
				p.Default = m.declareDefault(qualified+"."+f.Name, f.Init, p.Type)
			case sawDefault:
				m.errorf(f.SpanVal, ArgumentMismatch, "field %s without initializer follows a field with one", f.Name)
			}
			params = append(params, p)
		}
	}
	s.ctor = &types.Function{
		Module:      m.name,
		FuncName:    s.decl.Name,
		Description: s.decl.Description,
		Params:      params,
		Result:      s.typ,
		State:       types.Declared,
		Impl:        &vm.Function{Name: qualified, Params: len(params)},
	}
	s.typ.Constructor = s.ctor
}

// layoutStructs generates the constructor units. A field takes its
// initializer when the constructor has explicit parameters, and otherwise
// the parameter of the same name.
func (m *ModuleContext) layoutStructs() {
	for _, s := range m.structOrder {
		if s.ctor == nil {
			continue
		}
		b := newBlockContext(m, s.ctor.Impl.Name, 0, len(s.ctor.Params), false, s.typ)
		for i, p := range s.ctor.Params {
			b.bindParam(p.Name, i, p.Type, true)
		}
		b.emitter.EmitUint16(vm.OpNewRecord, uint16(len(s.fields)))
		for i, f := range s.fields {
			ft := s.typ.Fields[i].Type
			switch v := b.lookup(f.Name); {
			case s.decl.HasCtor && f.Init != nil:
				b.compileExpected(f.Init, ft)
			case v != nil:
				b.load(v.slot)
				b.coerce(f.SpanVal, ft, v.typ)
			default:
				m.errorf(f.SpanVal, InvalidType, "field %s of %s has neither an initializer nor a constructor parameter", f.Name, s.decl.Name)
				b.emitter.Emit(vm.OpPushUnit)
			}
			b.emitter.EmitUint16(vm.OpSetField, uint16(i))
		}
		b.emitter.Emit(vm.OpReturn)
		s.ctor.Impl.Unit = b.builder.Build()
	}
}
