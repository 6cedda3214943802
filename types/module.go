package types

import (
	"slices"

	"github.com/chazu/to2/vm"
)

// Constant is a named module-level value.
type Constant struct {
	Module      string
	ConstName   string
	Description string
	Type        RealizedType
	Value       vm.Value
}

// QualifiedName returns module::name.
func (c *Constant) QualifiedName() string {
	return qualify(c.Module, c.ConstName)
}

// Module is the compile-time and run-time view of a module. Lookups return
// nil on a miss.
type Module interface {
	Name() string
	Description() string

	TypeNames() []string
	FindType(name string) RealizedType

	ConstantNames() []string
	FindConstant(name string) *Constant

	FunctionNames() []string
	FindFunction(name string) *FunctionSelector
}

// CompiledModule is a finished module. It is not modified after it has been
// registered, so concurrent readers need no locking.
type CompiledModule struct {
	name        string
	description string
	types       map[string]RealizedType
	constants   map[string]*Constant
	functions   map[string]*FunctionSelector
}

// NewCompiledModule creates an empty module to be filled by the compiler
// or the binding generator before it is registered.
func NewCompiledModule(name, description string) *CompiledModule {
	return &CompiledModule{
		name:        name,
		description: description,
		types:       map[string]RealizedType{},
		constants:   map[string]*Constant{},
		functions:   map[string]*FunctionSelector{},
	}
}

func (m *CompiledModule) Name() string        { return m.name }
func (m *CompiledModule) Description() string { return m.description }

// AddType exports a type under name.
func (m *CompiledModule) AddType(name string, t RealizedType) {
	m.types[name] = t
}

// AddConstant exports a constant.
func (m *CompiledModule) AddConstant(c *Constant) {
	m.constants[c.ConstName] = c
}

// AddFunction exports a function, pairing it with a function of the other
// mode under the same name.
func (m *CompiledModule) AddFunction(fn *Function) error {
	sel := m.functions[fn.FuncName]
	if sel == nil {
		sel = &FunctionSelector{Name: fn.FuncName}
		m.functions[fn.FuncName] = sel
	}
	return sel.Add(fn)
}

func (m *CompiledModule) TypeNames() []string     { return sortedKeys(m.types) }
func (m *CompiledModule) ConstantNames() []string { return sortedKeys(m.constants) }
func (m *CompiledModule) FunctionNames() []string { return sortedKeys(m.functions) }

func (m *CompiledModule) FindType(name string) RealizedType {
	if t, ok := m.types[name]; ok {
		return t
	}
	return nil
}

func (m *CompiledModule) FindConstant(name string) *Constant {
	return m.constants[name]
}

func (m *CompiledModule) FindFunction(name string) *FunctionSelector {
	return m.functions[name]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
