package compiler

import (
	"fmt"

	"github.com/chazu/to2/runtime"
	"github.com/chazu/to2/types"
	"github.com/chazu/to2/vm"
)

// ---------------------------------------------------------------------------
// Module constants
// ---------------------------------------------------------------------------

// ensureConstant compiles the initializer of a constant on first use and
// returns the constant's type. Constants without a declared type take the
// type of their initializer, so a reference can force compilation before
// the declaring module reaches its verify pass.
func (m *ModuleContext) ensureConstant(c *constantInfo) types.RealizedType {
	switch c.state {
	case resolved:
		return c.typ
	case resolving:
		m.errorf(c.decl.Span(), CyclicDefinition, "constant %s depends on itself", c.decl.Name)
		if c.typ != nil {
			return c.typ
		}
		return types.Unknown
	}
	c.state = resolving
	name := c.getter.Name + ".init"
	b := newBlockContext(m, name, 0, 0, false, c.typ)
	if c.typ != nil {
		b.compileExpected(c.decl.Value, c.typ)
	} else {
		c.typ = b.compile(c.decl.Value, nil)
	}
	b.emitter.Emit(vm.OpReturn)
	c.init = &vm.Function{Name: name, Unit: b.builder.Build()}
	c.state = resolved
	return c.typ
}

// get evaluates the constant once; later calls return the cached value.
func (c *constantInfo) get(ctx *runtime.Context) (vm.Value, error) {
	switch c.eval {
	case resolved:
		return c.value, nil
	case resolving:
		return nil, fmt.Errorf("constant %s depends on its own value", c.module.qualify(c.decl.Name))
	}
	if c.init == nil {
		return nil, fmt.Errorf("constant %s is not compiled", c.module.qualify(c.decl.Name))
	}
	c.eval = resolving
	v, err := c.init.Invoke(ctx)
	if err != nil {
		c.eval = unresolved
		return nil, err
	}
	c.value, c.eval = v, resolved
	return v, nil
}

// evaluateConstants runs every initializer of the module and builds the
// constants it exports.
func (m *ModuleContext) evaluateConstants(ctx *runtime.Context) {
	for _, c := range m.constOrder {
		v, err := c.get(ctx)
		if err != nil {
			m.errorf(c.decl.Span(), ConstantEvaluation, "evaluating %s: %v", c.decl.Name, err)
			continue
		}
		c.constant = &types.Constant{
			Module:      m.name,
			ConstName:   c.decl.Name,
			Description: c.decl.Description,
			Type:        c.typ,
			Value:       v,
		}
	}
}
