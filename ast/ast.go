// Package ast defines the abstract syntax tree produced by the TO2 grammar.
//
// Nodes are immutable once the parser has built them. Later passes attach
// computed information (types, resolved functions) through companion
// contexts in the compiler and never mutate the tree.
package ast

import "github.com/chazu/to2/parsec"

// ---------------------------------------------------------------------------
// Node hierarchy
// ---------------------------------------------------------------------------

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() parsec.Range
	node() // marker method
}

// ModuleItem is a top-level declaration of a module.
type ModuleItem interface {
	Node
	moduleItem() // marker method
}

// BlockItem is an element of a block: an expression, a variable
// declaration or an error node produced by recovery.
type BlockItem interface {
	Node
	blockItem() // marker method
}

// Expression is the interface for expression nodes.
type Expression interface {
	BlockItem
	expr() // marker method
}

// Module is the parse result of one source file.
type Module struct {
	Name        string
	Description string
	Items       []ModuleItem
}

// Errors returns the error items recovery inserted, in source order,
// including those nested in function bodies.
func (m *Module) Errors() []ErrorNode {
	var errs []ErrorNode
	for _, item := range m.Items {
		Walk(item, func(n Node) bool {
			if e, ok := n.(ErrorNode); ok {
				errs = append(errs, e)
			}
			return true
		})
	}
	return errs
}

// ErrorNode is implemented by the placeholders error recovery synthesizes.
type ErrorNode interface {
	Node
	ErrorText() string
	ErrorExpected() string
}

// ---------------------------------------------------------------------------
// Module items
// ---------------------------------------------------------------------------

// UseNames imports named (or all) exports of a module:
// use { a, B } from m::n / use * from m::n.
type UseNames struct {
	SpanVal parsec.Range
	Names   []string // nil with All
	All     bool
	Module  string
}

func (n *UseNames) Span() parsec.Range { return n.SpanVal }
func (n *UseNames) node()              {}
func (n *UseNames) moduleItem()        {}

// UseModule imports a module under an alias: use m::n as x. Without an
// alias the module's last segment is used.
type UseModule struct {
	SpanVal parsec.Range
	Module  string
	Alias   string
}

func (n *UseModule) Span() parsec.Range { return n.SpanVal }
func (n *UseModule) node()              {}
func (n *UseModule) moduleItem()        {}

// TypeAlias declares a named type: pub type A = T.
type TypeAlias struct {
	SpanVal     parsec.Range
	Exported    bool
	Name        string
	Description string
	Type        TypeRef
}

func (n *TypeAlias) Span() parsec.Range { return n.SpanVal }
func (n *TypeAlias) node()              {}
func (n *TypeAlias) moduleItem()        {}

// ConstDecl declares a module constant: pub const C: T = e.
type ConstDecl struct {
	SpanVal     parsec.Range
	Exported    bool
	Name        string
	Description string
	Type        TypeRef
	Value       Expression
}

func (n *ConstDecl) Span() parsec.Range { return n.SpanVal }
func (n *ConstDecl) node()              {}
func (n *ConstDecl) moduleItem()        {}

// Parameter is a function, method, constructor or lambda parameter. Type is
// nil for untyped lambda parameters; Default is nil when absent.
type Parameter struct {
	SpanVal parsec.Range
	Name    string
	Type    TypeRef
	Default Expression
}

// FunctionDecl declares a module function: pub [sync] fn f(p: T) -> R = e.
type FunctionDecl struct {
	SpanVal     parsec.Range
	Exported    bool
	Async       bool
	Name        string
	Description string
	Params      []Parameter
	ReturnType  TypeRef
	Body        Expression
}

func (n *FunctionDecl) Span() parsec.Range { return n.SpanVal }
func (n *FunctionDecl) node()              {}
func (n *FunctionDecl) moduleItem()        {}

// StructField is a field of a struct declaration.
type StructField struct {
	SpanVal     parsec.Range
	Name        string
	Description string
	Type        TypeRef
	Init        Expression
}

// StructDecl declares a struct: pub struct S(p: T) { f: T = e }.
// CtorParams is nil when the constructor parameter list is omitted, in
// which case the constructor takes every field in declaration order.
type StructDecl struct {
	SpanVal     parsec.Range
	Exported    bool
	Name        string
	Description string
	CtorParams  []Parameter
	HasCtor     bool
	Fields      []StructField
}

func (n *StructDecl) Span() parsec.Range { return n.SpanVal }
func (n *StructDecl) node()              {}
func (n *StructDecl) moduleItem()        {}

// MethodDecl is a method inside an impl block. The leading self parameter
// is not part of Params.
type MethodDecl struct {
	SpanVal     parsec.Range
	Async       bool
	Name        string
	Description string
	Params      []Parameter
	ReturnType  TypeRef
	Body        Expression
}

// ImplDecl attaches methods to a struct: impl S { ... }.
type ImplDecl struct {
	SpanVal parsec.Range
	Name    string
	Methods []MethodDecl
}

func (n *ImplDecl) Span() parsec.Range { return n.SpanVal }
func (n *ImplDecl) node()              {}
func (n *ImplDecl) moduleItem()        {}

// ErrorItem replaces a top-level declaration that failed to parse.
type ErrorItem struct {
	SpanVal  parsec.Range
	Text     string
	Expected string
}

func (n *ErrorItem) Span() parsec.Range    { return n.SpanVal }
func (n *ErrorItem) node()                 {}
func (n *ErrorItem) moduleItem()           {}
func (n *ErrorItem) ErrorText() string     { return n.Text }
func (n *ErrorItem) ErrorExpected() string { return n.Expected }

// ---------------------------------------------------------------------------
// Type references
// ---------------------------------------------------------------------------

// TypeRef is a syntactic reference to a type, resolved by the compiler.
type TypeRef interface {
	Span() parsec.Range
	String() string
	typeRef() // marker method
}

// NamedTypeRef refers to a builtin, declared, aliased or imported type,
// optionally qualified by a module alias and with generic arguments.
type NamedTypeRef struct {
	SpanVal parsec.Range
	Module  string
	Name    string
	Args    []TypeRef
}

// ArrayTypeRef is T[].
type ArrayTypeRef struct {
	SpanVal parsec.Range
	Element TypeRef
}

// TupleTypeRef is (T1, T2, ...). The empty tuple is unit.
type TupleTypeRef struct {
	SpanVal parsec.Range
	Items   []TypeRef
}

// RecordTypeField is one field of a record type reference.
type RecordTypeField struct {
	Name string
	Type TypeRef
}

// RecordTypeRef is (a: T1, b: T2).
type RecordTypeRef struct {
	SpanVal parsec.Range
	Fields  []RecordTypeField
}

// FunctionTypeRef is [sync] fn(T1, T2) -> R.
type FunctionTypeRef struct {
	SpanVal parsec.Range
	Async   bool
	Params  []TypeRef
	Result  TypeRef
}

func (t *NamedTypeRef) Span() parsec.Range    { return t.SpanVal }
func (t *ArrayTypeRef) Span() parsec.Range    { return t.SpanVal }
func (t *TupleTypeRef) Span() parsec.Range    { return t.SpanVal }
func (t *RecordTypeRef) Span() parsec.Range   { return t.SpanVal }
func (t *FunctionTypeRef) Span() parsec.Range { return t.SpanVal }

func (t *NamedTypeRef) typeRef()    {}
func (t *ArrayTypeRef) typeRef()    {}
func (t *TupleTypeRef) typeRef()    {}
func (t *RecordTypeRef) typeRef()   {}
func (t *FunctionTypeRef) typeRef() {}
