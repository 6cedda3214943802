package compiler

import (
	"fmt"

	"github.com/chazu/to2/ast"
	"github.com/chazu/to2/parsec"
	"github.com/chazu/to2/runtime"
	"github.com/chazu/to2/stdlib"
	"github.com/chazu/to2/types"
	"github.com/chazu/to2/vm"
)

// ---------------------------------------------------------------------------
// Import sources
// ---------------------------------------------------------------------------

// source is a module names can be imported from: a module of the current
// batch or a registered one.
type source interface {
	sourceName() string
	exportedType(name string) types.RealizedType
	exportedConstant(name string) *constantRef
	exportedFunction(name string) *types.FunctionSelector
}

type registered struct {
	types.Module
}

func (r registered) sourceName() string                         { return r.Name() }
func (r registered) exportedType(name string) types.RealizedType { return r.FindType(name) }
func (r registered) exportedFunction(name string) *types.FunctionSelector {
	return r.FindFunction(name)
}

func (r registered) exportedConstant(name string) *constantRef {
	if c := r.FindConstant(name); c != nil {
		return &constantRef{bound: c}
	}
	return nil
}

// constantRef is a constant of the batch, still to be evaluated, or of a
// registered module.
type constantRef struct {
	info  *constantInfo
	bound *types.Constant
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

type resolveState int

const (
	unresolved resolveState = iota
	resolving
	resolved
)

type aliasInfo struct {
	decl  *ast.TypeAlias
	typ   types.RealizedType
	state resolveState
}

type structInfo struct {
	decl   *ast.StructDecl
	typ    *types.DeclaredType
	fields []ast.StructField
	ctor   *types.Function
}

type constantInfo struct {
	decl     *ast.ConstDecl
	module   *ModuleContext
	typ      types.RealizedType
	state    resolveState
	init     *vm.Function
	getter   *vm.Function
	value    vm.Value
	eval     resolveState
	constant *types.Constant
}

// functionInfo is a function, method or constructor whose unit is
// generated in the verify pass.
type functionInfo struct {
	fn       *types.Function
	span     parsec.Range
	names    []string
	body     ast.Expression
	receiver *types.DeclaredType
}

// pendingDefault is a non-constant default value compiled into its own
// unit during verify.
type pendingDefault struct {
	expr ast.Expression
	typ  types.RealizedType
	gen  *vm.Function
}

type useRecord struct {
	item *ast.UseNames
	src  source
}

// ModuleContext holds everything the compiler knows about one module of a
// batch while it is being compiled.
type ModuleContext struct {
	batch *batch
	name  string
	tree  *ast.Module

	aliases     map[string]*aliasInfo
	structs     map[string]*structInfo
	constants   map[string]*constantInfo
	functions   map[string]*types.FunctionSelector
	exported    map[string]*types.FunctionSelector
	aliasOrder  []*aliasInfo
	structOrder []*structInfo
	constOrder  []*constantInfo
	funcs       []*functionInfo
	defaults    []*pendingDefault

	uses              []useRecord
	imported          map[string]source
	importedFunctions map[string]*types.FunctionSelector
	importedConstants map[string]*constantRef
	useAll            []source
	moduleAliases     map[string]source

	lambdas int
}

func newModuleContext(b *batch, name string, tree *ast.Module) *ModuleContext {
	return &ModuleContext{
		batch:             b,
		name:              name,
		tree:              tree,
		aliases:           map[string]*aliasInfo{},
		structs:           map[string]*structInfo{},
		constants:         map[string]*constantInfo{},
		functions:         map[string]*types.FunctionSelector{},
		exported:          map[string]*types.FunctionSelector{},
		imported:          map[string]source{},
		importedFunctions: map[string]*types.FunctionSelector{},
		importedConstants: map[string]*constantRef{},
		moduleAliases:     map[string]source{},
	}
}

func (m *ModuleContext) errorf(span parsec.Range, kind ErrorKind, format string, args ...any) {
	m.batch.report(&StructuralError{
		Kind:    kind,
		Module:  m.name,
		Message: fmt.Sprintf(format, args...),
		Start:   span.Start,
		End:     span.End,
	})
}

func (m *ModuleContext) qualify(name string) string {
	return m.name + "::" + name
}

// ---------------------------------------------------------------------------
// source implementation for modules of the batch
// ---------------------------------------------------------------------------

func (m *ModuleContext) sourceName() string { return m.name }

func (m *ModuleContext) exportedType(name string) types.RealizedType {
	if s, ok := m.structs[name]; ok && s.decl.Exported {
		return s.typ
	}
	if a, ok := m.aliases[name]; ok && a.decl.Exported {
		return m.resolveAlias(a)
	}
	return nil
}

func (m *ModuleContext) exportedConstant(name string) *constantRef {
	if c, ok := m.constants[name]; ok && c.decl.Exported {
		return &constantRef{info: c}
	}
	return nil
}

func (m *ModuleContext) exportedFunction(name string) *types.FunctionSelector {
	return m.exported[name]
}

// ---------------------------------------------------------------------------
// Pass 1: declare names
// ---------------------------------------------------------------------------

func (m *ModuleContext) declare() {
	for _, item := range m.tree.Items {
		switch it := item.(type) {
		case *ast.TypeAlias:
			if m.typeDeclared(it.Name) {
				m.errorf(it.Span(), DuplicateTypeName, "type %s is declared twice", it.Name)
				continue
			}
			a := &aliasInfo{decl: it}
			m.aliases[it.Name] = a
			m.aliasOrder = append(m.aliasOrder, a)
		case *ast.StructDecl:
			if m.typeDeclared(it.Name) {
				m.errorf(it.Span(), DuplicateTypeName, "type %s is declared twice", it.Name)
				continue
			}
			s := &structInfo{decl: it, typ: types.NewDeclaredType(m.name, it.Name, it.Description)}
			m.structs[it.Name] = s
			m.structOrder = append(m.structOrder, s)
		case *ast.ConstDecl:
			if _, dup := m.constants[it.Name]; dup {
				m.errorf(it.Span(), DuplicateConstantName, "constant %s is declared twice", it.Name)
				continue
			}
			c := &constantInfo{decl: it, module: m}
			c.getter = vm.NewNative(m.qualify(it.Name), 0, false, func(ctx *runtime.Context, _ []vm.Value) (vm.Value, error) {
				return c.get(ctx)
			})
			m.constants[it.Name] = c
			m.constOrder = append(m.constOrder, c)
		}
	}
}

func (m *ModuleContext) typeDeclared(name string) bool {
	_, isAlias := m.aliases[name]
	_, isStruct := m.structs[name]
	_, isBuiltin := types.Builtins[name]
	return isAlias || isStruct || isBuiltin
}

// ---------------------------------------------------------------------------
// Pass 2: imports and type aliases
// ---------------------------------------------------------------------------

func (m *ModuleContext) recordImports() {
	for _, item := range m.tree.Items {
		switch it := item.(type) {
		case *ast.UseNames:
			src := m.batch.lookupModule(it.Module)
			if src == nil {
				m.errorf(it.Span(), NoSuchModule, "no module %s", it.Module)
				continue
			}
			if it.All {
				m.useAll = append(m.useAll, src)
				continue
			}
			m.uses = append(m.uses, useRecord{item: it, src: src})
			for _, name := range it.Names {
				m.imported[name] = src
			}
		case *ast.UseModule:
			src := m.batch.lookupModule(it.Module)
			if src == nil {
				m.errorf(it.Span(), NoSuchModule, "no module %s", it.Module)
				continue
			}
			alias := it.Alias
			if alias == "" {
				alias = lastSegment(it.Module)
			}
			m.moduleAliases[alias] = src
		}
	}
	if m.name != stdlib.PreludeName {
		if prelude := m.batch.lookupModule(stdlib.PreludeName); prelude != nil {
			m.useAll = append(m.useAll, prelude)
		}
	}
}

func lastSegment(module string) string {
	for i := len(module) - 1; i > 0; i-- {
		if module[i] == ':' && module[i-1] == ':' {
			return module[i+1:]
		}
	}
	return module
}

func (m *ModuleContext) resolveAliases() {
	for _, a := range m.aliasOrder {
		m.resolveAlias(a)
	}
}

// resolveAlias resolves an alias on first use, so aliases may refer to
// each other and across modules in any order.
func (m *ModuleContext) resolveAlias(a *aliasInfo) types.RealizedType {
	switch a.state {
	case resolved:
		return a.typ
	case resolving:
		m.errorf(a.decl.Span(), CyclicDefinition, "type %s is defined in terms of itself", a.decl.Name)
		a.typ, a.state = types.Unknown, resolved
		return a.typ
	}
	a.state = resolving
	t := m.resolveType(a.decl.Type)
	if a.state == resolving {
		a.typ, a.state = t, resolved
	}
	return a.typ
}

// resolveSource finds the module a qualified name refers to: an alias from
// use m as x, or a full module name.
func (m *ModuleContext) resolveSource(module string) source {
	if src, ok := m.moduleAliases[module]; ok {
		return src
	}
	return m.batch.lookupModule(module)
}

// findType looks up an unqualified type name.
func (m *ModuleContext) findType(name string) types.RealizedType {
	if t, ok := types.Builtins[name]; ok {
		return t
	}
	if s, ok := m.structs[name]; ok {
		return s.typ
	}
	if a, ok := m.aliases[name]; ok {
		return m.resolveAlias(a)
	}
	if src, ok := m.imported[name]; ok {
		if t := src.exportedType(name); t != nil {
			return t
		}
	}
	for _, src := range m.useAll {
		if t := src.exportedType(name); t != nil {
			return t
		}
	}
	return nil
}

// resolveType turns a type reference into a type. Failures are reported and
// yield Unknown.
func (m *ModuleContext) resolveType(ref ast.TypeRef) types.RealizedType {
	switch r := ref.(type) {
	case nil:
		return types.Unit

	case *ast.NamedTypeRef:
		args := make([]types.RealizedType, len(r.Args))
		for i, a := range r.Args {
			args[i] = m.resolveType(a)
		}
		if r.Module == "" {
			switch r.Name {
			case "Option":
				if len(args) != 1 {
					m.errorf(r.Span(), InvalidType, "Option takes one type argument")
					return types.Unknown
				}
				return &types.OptionType{Element: args[0]}
			case "Result":
				if len(args) != 2 {
					m.errorf(r.Span(), InvalidType, "Result takes two type arguments")
					return types.Unknown
				}
				return &types.ResultType{Value: args[0], Error: args[1]}
			}
		}
		var t types.RealizedType
		if r.Module != "" {
			src := m.resolveSource(r.Module)
			if src == nil {
				m.errorf(r.Span(), NoSuchModule, "no module %s", r.Module)
				return types.Unknown
			}
			t = src.exportedType(r.Name)
		} else {
			t = m.findType(r.Name)
		}
		if t == nil {
			m.errorf(r.Span(), NoSuchType, "no type %s", r.String())
			return types.Unknown
		}
		if len(args) == 0 {
			return t
		}
		bt, ok := t.(*types.BoundType)
		if !ok || len(bt.TypeParams) != len(args) {
			m.errorf(r.Span(), InvalidType, "%s does not take %d type arguments", t.Name(), len(args))
			return types.Unknown
		}
		return bt.Instantiate(args)

	case *ast.ArrayTypeRef:
		return &types.ArrayType{Element: m.resolveType(r.Element)}

	case *ast.TupleTypeRef:
		if len(r.Items) == 0 {
			return types.Unit
		}
		items := make([]types.RealizedType, len(r.Items))
		for i, item := range r.Items {
			items[i] = m.resolveType(item)
		}
		return &types.TupleType{Items: items}

	case *ast.RecordTypeRef:
		fields := make([]types.RecordField, 0, len(r.Fields))
		seen := map[string]bool{}
		for _, f := range r.Fields {
			if seen[f.Name] {
				m.errorf(r.Span(), InvalidType, "field %s appears twice", f.Name)
				continue
			}
			seen[f.Name] = true
			fields = append(fields, types.RecordField{Name: f.Name, Type: m.resolveType(f.Type)})
		}
		return &types.RecordType{Fields: fields}

	case *ast.FunctionTypeRef:
		params := make([]types.RealizedType, len(r.Params))
		for i, p := range r.Params {
			params[i] = m.resolveType(p)
		}
		return &types.FunctionType{Async: r.Async, Params: params, Result: m.resolveType(r.Result)}
	}
	return types.Unknown
}

// ---------------------------------------------------------------------------
// Pass 3: signatures
// ---------------------------------------------------------------------------

func (m *ModuleContext) declareFunctions() {
	for _, s := range m.structOrder {
		m.declareStruct(s)
	}
	for _, c := range m.constOrder {
		if c.decl.Type != nil {
			c.typ = m.resolveType(c.decl.Type)
		}
	}
	for _, item := range m.tree.Items {
		switch it := item.(type) {
		case *ast.FunctionDecl:
			info := m.declareFunction(it.Name, it.Description, it.Async, nil, it.Params, it.ReturnType, it.Body, it.Span())
			if err := addFunction(m.functions, info.fn); err != nil {
				m.errorf(it.Span(), DuplicateFunctionName, "function %s: %v", it.Name, err)
				continue
			}
			if it.Exported {
				_ = addFunction(m.exported, info.fn)
			}
			m.funcs = append(m.funcs, info)
		case *ast.ImplDecl:
			s, ok := m.structs[it.Name]
			if !ok {
				m.errorf(it.Span(), NoSuchType, "impl for unknown struct %s", it.Name)
				continue
			}
			for i := range it.Methods {
				md := &it.Methods[i]
				info := m.declareFunction(md.Name, md.Description, md.Async, s.typ, md.Params, md.ReturnType, md.Body, md.SpanVal)
				if err := addFunction(s.typ.Methods, info.fn); err != nil {
					m.errorf(md.SpanVal, DuplicateFunctionName, "method %s.%s: %v", it.Name, md.Name, err)
					continue
				}
				m.funcs = append(m.funcs, info)
			}
		}
	}
}

func addFunction(table map[string]*types.FunctionSelector, fn *types.Function) error {
	sel := table[fn.FuncName]
	if sel == nil {
		sel = &types.FunctionSelector{Name: fn.FuncName}
		table[fn.FuncName] = sel
	}
	return sel.Add(fn)
}

func (m *ModuleContext) declareFunction(name, description string, async bool, receiver *types.DeclaredType, params []ast.Parameter, ret ast.TypeRef, body ast.Expression, span parsec.Range) *functionInfo {
	qualified := m.qualify(name)
	var declared []types.Parameter
	var names []string
	if receiver != nil {
		qualified = m.qualify(receiver.TypeName + "." + name)
		declared = append(declared, types.Parameter{Name: "self", Type: receiver})
		names = append(names, "self")
	}
	declared = append(declared, m.declareParams(qualified, params)...)
	for _, p := range params {
		names = append(names, p.Name)
	}
	fn := &types.Function{
		Module:      m.name,
		FuncName:    name,
		Description: description,
		Params:      declared,
		Result:      m.resolveType(ret),
		Async:       async,
		State:       types.Declared,
		Impl:        &vm.Function{Name: qualified, Async: async, Params: len(declared)},
	}
	return &functionInfo{fn: fn, span: span, names: names, body: body, receiver: receiver}
}

// declareParams resolves parameter types and defaults. Once a parameter
// has a default, every following one needs one too.
func (m *ModuleContext) declareParams(owner string, params []ast.Parameter) []types.Parameter {
	out := make([]types.Parameter, len(params))
	seen := map[string]bool{}
	sawDefault := false
	for i, p := range params {
		if seen[p.Name] {
			m.errorf(p.SpanVal, DuplicateVariableName, "parameter %s appears twice", p.Name)
		}
		seen[p.Name] = true
		var t types.RealizedType = types.Unknown
		if p.Type == nil {
			m.errorf(p.SpanVal, InvalidType, "parameter %s needs a type", p.Name)
		} else {
			t = m.resolveType(p.Type)
		}
		out[i] = types.Parameter{Name: p.Name, Type: t}
		if p.Default != nil {
			sawDefault = true
			out[i].Default = m.declareDefault(owner+"."+p.Name, p.Default, t)
		} else if sawDefault {
			m.errorf(p.SpanVal, ArgumentMismatch, "parameter %s without default follows a parameter with default", p.Name)
		}
	}
	return out
}

// declareDefault keeps literal defaults as constants and queues every
// other expression for its own unit.
func (m *ModuleContext) declareDefault(name string, expr ast.Expression, t types.RealizedType) *types.DefaultValue {
	if v, vt, ok := literalValue(expr); ok && types.IsAssignableFrom(t, vt) {
		converted, err := types.ConvertValue(t, vt, v)
		if err == nil {
			return types.ConstantDefault(converted)
		}
	}
	gen := &vm.Function{Name: name + ".default"}
	m.defaults = append(m.defaults, &pendingDefault{expr: expr, typ: t, gen: gen})
	return &types.DefaultValue{Generator: gen}
}

// literalValue evaluates literal expressions at compile time.
func literalValue(e ast.Expression) (vm.Value, types.RealizedType, bool) {
	switch x := e.(type) {
	case *ast.IntLiteral:
		return x.Value, types.Int, true
	case *ast.FloatLiteral:
		return x.Value, types.Float, true
	case *ast.BoolLiteral:
		return x.Value, types.Bool, true
	case *ast.StringLiteral:
		return x.Value, types.String, true
	case *ast.UnitLiteral:
		return vm.UnitValue, types.Unit, true
	case *ast.Unary:
		if x.Op != ast.OpNeg {
			return nil, nil, false
		}
		switch v := x.Operand.(type) {
		case *ast.IntLiteral:
			return -v.Value, types.Int, true
		case *ast.FloatLiteral:
			return -v.Value, types.Float, true
		}
	}
	return nil, nil, false
}

// ---------------------------------------------------------------------------
// Pass 4: import functions and constants
// ---------------------------------------------------------------------------

func (m *ModuleContext) importFunctions() {
	for _, use := range m.uses {
		for _, name := range use.item.Names {
			found := false
			if sel := use.src.exportedFunction(name); sel != nil {
				m.importedFunctions[name] = sel
				found = true
			}
			if c := use.src.exportedConstant(name); c != nil {
				m.importedConstants[name] = c
				found = true
			}
			if use.src.exportedType(name) != nil {
				found = true
			}
			if !found {
				m.errorf(use.item.Span(), NoSuchExport, "module %s does not export %s", use.src.sourceName(), name)
			}
		}
	}
}

// findFunction looks up a function by name, qualified by a module alias
// or full module name when module is set.
func (m *ModuleContext) findFunction(module, name string) *types.FunctionSelector {
	if module != "" {
		if src := m.resolveSource(module); src != nil {
			return src.exportedFunction(name)
		}
		return nil
	}
	if sel, ok := m.functions[name]; ok {
		return sel
	}
	if sel, ok := m.importedFunctions[name]; ok {
		return sel
	}
	for _, src := range m.useAll {
		if sel := src.exportedFunction(name); sel != nil {
			return sel
		}
	}
	return nil
}

// findConstant looks up a constant the same way.
func (m *ModuleContext) findConstant(module, name string) *constantRef {
	if module != "" {
		if src := m.resolveSource(module); src != nil {
			return src.exportedConstant(name)
		}
		return nil
	}
	if c, ok := m.constants[name]; ok {
		return &constantRef{info: c}
	}
	if c, ok := m.importedConstants[name]; ok {
		return c
	}
	for _, src := range m.useAll {
		if c := src.exportedConstant(name); c != nil {
			return c
		}
	}
	return nil
}

// findConstructor returns the constructor of a struct type visible under
// name.
func (m *ModuleContext) findConstructor(module, name string) *types.Function {
	var t types.RealizedType
	if module != "" {
		if src := m.resolveSource(module); src != nil {
			t = src.exportedType(name)
		}
	} else {
		t = m.findType(name)
	}
	if d, ok := t.(*types.DeclaredType); ok {
		return d.Constructor
	}
	return nil
}

// ---------------------------------------------------------------------------
// Pass 5: verify and generate
// ---------------------------------------------------------------------------

func (m *ModuleContext) verify() {
	for _, d := range m.defaults {
		m.compileDefault(d)
	}
	for _, c := range m.constOrder {
		m.ensureConstant(c)
	}
	for _, f := range m.funcs {
		m.compileFunction(f)
	}
}

func (m *ModuleContext) compileDefault(d *pendingDefault) {
	b := newBlockContext(m, d.gen.Name, 0, 0, false, d.typ)
	b.compileExpected(d.expr, d.typ)
	b.emitter.Emit(vm.OpReturn)
	d.gen.Unit = b.builder.Build()
}

func (m *ModuleContext) compileFunction(f *functionInfo) {
	b := newBlockContext(m, f.fn.Impl.Name, 0, len(f.fn.Params), f.fn.Async, f.fn.Result)
	for i, p := range f.fn.Params {
		b.bindParam(f.names[i], i, p.Type, f.names[i] == "self")
	}
	b.emitter.Emit(vm.OpCheckTimeout)
	b.compileBody(f.body, f.fn.Result)
	f.fn.Impl.Unit = b.builder.Build()
}

// link marks every function of the module as compiled.
func (m *ModuleContext) link() {
	for _, f := range m.funcs {
		f.fn.State = types.Compiled
	}
	for _, s := range m.structOrder {
		if s.ctor != nil {
			s.ctor.State = types.Compiled
		}
	}
}

// exports builds the module's public view.
func (m *ModuleContext) exports() (*types.CompiledModule, error) {
	out := types.NewCompiledModule(m.name, m.tree.Description)
	for _, s := range m.structOrder {
		if s.decl.Exported {
			out.AddType(s.decl.Name, s.typ)
		}
	}
	for _, a := range m.aliasOrder {
		if a.decl.Exported {
			out.AddType(a.decl.Name, a.typ)
		}
	}
	for _, c := range m.constOrder {
		if c.decl.Exported {
			out.AddConstant(c.constant)
		}
	}
	for _, name := range sortedNames(m.exported) {
		for _, fn := range m.exported[name].All() {
			if err := out.AddFunction(fn); err != nil {
				return nil, fmt.Errorf("%s: %w", fn.QualifiedName(), err)
			}
		}
	}
	return out, nil
}
