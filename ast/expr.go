package ast

import "github.com/chazu/to2/parsec"

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

// IntLiteral represents an integer literal.
type IntLiteral struct {
	SpanVal parsec.Range
	Value   int64
}

// FloatLiteral represents a floating-point literal.
type FloatLiteral struct {
	SpanVal parsec.Range
	Value   float64
}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	SpanVal parsec.Range
	Value   bool
}

// StringLiteral represents a string literal with escapes resolved.
type StringLiteral struct {
	SpanVal parsec.Range
	Value   string
}

// UnitLiteral represents ().
type UnitLiteral struct {
	SpanVal parsec.Range
}

// StringInterpolation represents $"text {expr} text". Literal text parts
// are StringLiterals.
type StringInterpolation struct {
	SpanVal parsec.Range
	Parts   []Expression
}

// ---------------------------------------------------------------------------
// Names, calls and suffixes
// ---------------------------------------------------------------------------

// VariableGet reads a local variable, constant or function reference.
// Module is set for qualified references (m::name).
type VariableGet struct {
	SpanVal parsec.Range
	Module  string
	Name    string
}

// Call calls a function, or a closure held in a local variable, by name.
type Call struct {
	SpanVal  parsec.Range
	Module   string
	Name     string
	TypeArgs []TypeRef
	Args     []Expression
}

// FieldGet reads a field: target.field.
type FieldGet struct {
	SpanVal parsec.Range
	Target  Expression
	Field   string
}

// MethodCall calls a method: target.method(args).
type MethodCall struct {
	SpanVal parsec.Range
	Target  Expression
	Method  string
	Args    []Expression
}

// IndexGet reads an array element: target[index].
type IndexGet struct {
	SpanVal parsec.Range
	Target  Expression
	Index   Expression
}

// Unwrap is the ? suffix: returns early with the failure of an Option or
// Result, otherwise yields the contained value.
type Unwrap struct {
	SpanVal parsec.Range
	Target  Expression
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// Unary applies a prefix operator.
type Unary struct {
	SpanVal parsec.Range
	Op      Operator
	Operand Expression
}

// Binary applies an infix operator, including && and ||.
type Binary struct {
	SpanVal parsec.Range
	Left    Expression
	Op      Operator
	Right   Expression
}

// Assign stores into a variable, field or array element. Op is Assign or
// one of the compound operators.
type Assign struct {
	SpanVal parsec.Range
	Target  Expression
	Op      Operator
	Value   Expression
}

// RangeCreate builds a range: from..to (exclusive) or from...to (inclusive).
type RangeCreate struct {
	SpanVal   parsec.Range
	From      Expression
	To        Expression
	Inclusive bool
}

// ---------------------------------------------------------------------------
// Composites
// ---------------------------------------------------------------------------

// ArrayCreate builds an array: [a, b, c].
type ArrayCreate struct {
	SpanVal  parsec.Range
	Elements []Expression
}

// TupleCreate builds a tuple: (a, b).
type TupleCreate struct {
	SpanVal parsec.Range
	Items   []Expression
}

// RecordField is one name: value member of a record literal.
type RecordField struct {
	SpanVal parsec.Range
	Name    string
	Value   Expression
}

// RecordCreate builds a structural record: (a: 1, b: 2.0).
type RecordCreate struct {
	SpanVal parsec.Range
	Fields  []RecordField
}

// RecordUpdate copies a record and overwrites the named fields:
// base & (field: value).
type RecordUpdate struct {
	SpanVal parsec.Range
	Base    Expression
	Fields  []RecordField
}

// Lambda is an anonymous synchronous function: fn(a, b: int) -> expr.
type Lambda struct {
	SpanVal parsec.Range
	Params  []Parameter
	Body    Expression
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

// Block is a sequence of items; its value is the value of the last item.
type Block struct {
	SpanVal parsec.Range
	Items   []BlockItem
}

// If evaluates Then when Cond holds, else Else (which may be nil).
type If struct {
	SpanVal parsec.Range
	Cond    Expression
	Then    Expression
	Else    Expression
}

// While repeats Body while Cond holds.
type While struct {
	SpanVal parsec.Range
	Cond    Expression
	Body    Expression
}

// For iterates Source (an array or range), binding each element to Variable.
type For struct {
	SpanVal  parsec.Range
	Variable string
	Source   Expression
	Body     Expression
}

// Return leaves the enclosing function. Value is nil for a bare return.
type Return struct {
	SpanVal parsec.Range
	Value   Expression
}

// Break leaves the innermost loop.
type Break struct {
	SpanVal parsec.Range
}

// Continue restarts the innermost loop.
type Continue struct {
	SpanVal parsec.Range
}

// Unapply matches Some(x), Ok(x) or Err(x) against Value, binding x in the
// guarded branch. Only valid as an if or while condition.
type Unapply struct {
	SpanVal parsec.Range
	Pattern string
	Binding string
	Value   Expression
}

// ErrorExpr replaces a block item that failed to parse.
type ErrorExpr struct {
	SpanVal  parsec.Range
	Text     string
	Expected string
}

func (n *ErrorExpr) ErrorText() string     { return n.Text }
func (n *ErrorExpr) ErrorExpected() string { return n.Expected }

// ---------------------------------------------------------------------------
// Declarations inside blocks
// ---------------------------------------------------------------------------

// DeclTarget is one variable bound by a declaration. Field is set for
// record destructuring; Name "_" discards the value.
type DeclTarget struct {
	Name  string
	Field string
	Type  TypeRef
}

// DeclKind distinguishes plain and destructuring declarations.
type DeclKind int

const (
	DeclSingle DeclKind = iota
	DeclTuple
	DeclRecord
)

// VariableDecl declares local variables: let x = e, const (a, b) = e,
// let (x: a) = e.
type VariableDecl struct {
	SpanVal parsec.Range
	Const   bool
	Kind    DeclKind
	Targets []DeclTarget
	Value   Expression
}

func (n *VariableDecl) Span() parsec.Range { return n.SpanVal }
func (n *VariableDecl) node()              {}
func (n *VariableDecl) blockItem()         {}

// ---------------------------------------------------------------------------
// Interface plumbing
// ---------------------------------------------------------------------------

func (n *IntLiteral) Span() parsec.Range          { return n.SpanVal }
func (n *FloatLiteral) Span() parsec.Range        { return n.SpanVal }
func (n *BoolLiteral) Span() parsec.Range         { return n.SpanVal }
func (n *StringLiteral) Span() parsec.Range       { return n.SpanVal }
func (n *UnitLiteral) Span() parsec.Range         { return n.SpanVal }
func (n *StringInterpolation) Span() parsec.Range { return n.SpanVal }
func (n *VariableGet) Span() parsec.Range         { return n.SpanVal }
func (n *Call) Span() parsec.Range                { return n.SpanVal }
func (n *FieldGet) Span() parsec.Range            { return n.SpanVal }
func (n *MethodCall) Span() parsec.Range          { return n.SpanVal }
func (n *IndexGet) Span() parsec.Range            { return n.SpanVal }
func (n *Unwrap) Span() parsec.Range              { return n.SpanVal }
func (n *Unary) Span() parsec.Range               { return n.SpanVal }
func (n *Binary) Span() parsec.Range              { return n.SpanVal }
func (n *Assign) Span() parsec.Range              { return n.SpanVal }
func (n *RangeCreate) Span() parsec.Range         { return n.SpanVal }
func (n *ArrayCreate) Span() parsec.Range         { return n.SpanVal }
func (n *TupleCreate) Span() parsec.Range         { return n.SpanVal }
func (n *RecordCreate) Span() parsec.Range        { return n.SpanVal }
func (n *RecordUpdate) Span() parsec.Range        { return n.SpanVal }
func (n *Lambda) Span() parsec.Range              { return n.SpanVal }
func (n *Block) Span() parsec.Range               { return n.SpanVal }
func (n *If) Span() parsec.Range                  { return n.SpanVal }
func (n *While) Span() parsec.Range               { return n.SpanVal }
func (n *For) Span() parsec.Range                 { return n.SpanVal }
func (n *Return) Span() parsec.Range              { return n.SpanVal }
func (n *Break) Span() parsec.Range               { return n.SpanVal }
func (n *Continue) Span() parsec.Range            { return n.SpanVal }
func (n *Unapply) Span() parsec.Range             { return n.SpanVal }
func (n *ErrorExpr) Span() parsec.Range           { return n.SpanVal }

func (n *IntLiteral) node()          {}
func (n *FloatLiteral) node()        {}
func (n *BoolLiteral) node()         {}
func (n *StringLiteral) node()       {}
func (n *UnitLiteral) node()         {}
func (n *StringInterpolation) node() {}
func (n *VariableGet) node()         {}
func (n *Call) node()                {}
func (n *FieldGet) node()            {}
func (n *MethodCall) node()          {}
func (n *IndexGet) node()            {}
func (n *Unwrap) node()              {}
func (n *Unary) node()               {}
func (n *Binary) node()              {}
func (n *Assign) node()              {}
func (n *RangeCreate) node()         {}
func (n *ArrayCreate) node()         {}
func (n *TupleCreate) node()         {}
func (n *RecordCreate) node()        {}
func (n *RecordUpdate) node()        {}
func (n *Lambda) node()              {}
func (n *Block) node()               {}
func (n *If) node()                  {}
func (n *While) node()               {}
func (n *For) node()                 {}
func (n *Return) node()              {}
func (n *Break) node()               {}
func (n *Continue) node()            {}
func (n *Unapply) node()             {}
func (n *ErrorExpr) node()           {}

func (n *IntLiteral) blockItem()          {}
func (n *FloatLiteral) blockItem()        {}
func (n *BoolLiteral) blockItem()         {}
func (n *StringLiteral) blockItem()       {}
func (n *UnitLiteral) blockItem()         {}
func (n *StringInterpolation) blockItem() {}
func (n *VariableGet) blockItem()         {}
func (n *Call) blockItem()                {}
func (n *FieldGet) blockItem()            {}
func (n *MethodCall) blockItem()          {}
func (n *IndexGet) blockItem()            {}
func (n *Unwrap) blockItem()              {}
func (n *Unary) blockItem()               {}
func (n *Binary) blockItem()              {}
func (n *Assign) blockItem()              {}
func (n *RangeCreate) blockItem()         {}
func (n *ArrayCreate) blockItem()         {}
func (n *TupleCreate) blockItem()         {}
func (n *RecordCreate) blockItem()        {}
func (n *RecordUpdate) blockItem()        {}
func (n *Lambda) blockItem()              {}
func (n *Block) blockItem()               {}
func (n *If) blockItem()                  {}
func (n *While) blockItem()               {}
func (n *For) blockItem()                 {}
func (n *Return) blockItem()              {}
func (n *Break) blockItem()               {}
func (n *Continue) blockItem()            {}
func (n *Unapply) blockItem()             {}
func (n *ErrorExpr) blockItem()           {}

func (n *IntLiteral) expr()          {}
func (n *FloatLiteral) expr()        {}
func (n *BoolLiteral) expr()         {}
func (n *StringLiteral) expr()       {}
func (n *UnitLiteral) expr()         {}
func (n *StringInterpolation) expr() {}
func (n *VariableGet) expr()         {}
func (n *Call) expr()                {}
func (n *FieldGet) expr()            {}
func (n *MethodCall) expr()          {}
func (n *IndexGet) expr()            {}
func (n *Unwrap) expr()              {}
func (n *Unary) expr()               {}
func (n *Binary) expr()              {}
func (n *Assign) expr()              {}
func (n *RangeCreate) expr()         {}
func (n *ArrayCreate) expr()         {}
func (n *TupleCreate) expr()         {}
func (n *RecordCreate) expr()        {}
func (n *RecordUpdate) expr()        {}
func (n *Lambda) expr()              {}
func (n *Block) expr()               {}
func (n *If) expr()                  {}
func (n *While) expr()               {}
func (n *For) expr()                 {}
func (n *Return) expr()              {}
func (n *Break) expr()               {}
func (n *Continue) expr()            {}
func (n *Unapply) expr()             {}
func (n *ErrorExpr) expr()           {}
