package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Type reference rendering
// ---------------------------------------------------------------------------

func (t *NamedTypeRef) String() string {
	var sb strings.Builder
	if t.Module != "" {
		sb.WriteString(t.Module)
		sb.WriteString("::")
	}
	sb.WriteString(t.Name)
	if len(t.Args) > 0 {
		sb.WriteByte('<')
		sb.WriteString(joinTypeRefs(t.Args))
		sb.WriteByte('>')
	}
	return sb.String()
}

func (t *ArrayTypeRef) String() string { return t.Element.String() + "[]" }

func (t *TupleTypeRef) String() string { return "(" + joinTypeRefs(t.Items) + ")" }

func (t *RecordTypeRef) String() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.Name + " : " + f.Type.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (t *FunctionTypeRef) String() string {
	prefix := "sync fn"
	if t.Async {
		prefix = "fn"
	}
	return fmt.Sprintf("%s(%s) -> %s", prefix, joinTypeRefs(t.Params), t.Result)
}

func joinTypeRefs(refs []TypeRef) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

// ---------------------------------------------------------------------------
// Expression rendering
// ---------------------------------------------------------------------------

// Format renders an expression with every operator application
// parenthesized, making the parsed structure visible. Used by diagnostics
// and tests.
func Format(e BlockItem) string {
	var sb strings.Builder
	format(&sb, e)
	return sb.String()
}

func format(sb *strings.Builder, n BlockItem) {
	switch e := n.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *IntLiteral:
		sb.WriteString(strconv.FormatInt(e.Value, 10))
	case *FloatLiteral:
		sb.WriteString(strconv.FormatFloat(e.Value, 'g', -1, 64))
	case *BoolLiteral:
		sb.WriteString(strconv.FormatBool(e.Value))
	case *StringLiteral:
		sb.WriteString(strconv.Quote(e.Value))
	case *UnitLiteral:
		sb.WriteString("()")
	case *StringInterpolation:
		sb.WriteString("$\"")
		for _, p := range e.Parts {
			if s, ok := p.(*StringLiteral); ok {
				sb.WriteString(s.Value)
				continue
			}
			sb.WriteByte('{')
			format(sb, p)
			sb.WriteByte('}')
		}
		sb.WriteByte('"')
	case *VariableGet:
		if e.Module != "" {
			sb.WriteString(e.Module + "::")
		}
		sb.WriteString(e.Name)
	case *Call:
		if e.Module != "" {
			sb.WriteString(e.Module + "::")
		}
		sb.WriteString(e.Name)
		formatArgs(sb, e.Args)
	case *FieldGet:
		format(sb, e.Target)
		sb.WriteString("." + e.Field)
	case *MethodCall:
		format(sb, e.Target)
		sb.WriteString("." + e.Method)
		formatArgs(sb, e.Args)
	case *IndexGet:
		format(sb, e.Target)
		sb.WriteByte('[')
		format(sb, e.Index)
		sb.WriteByte(']')
	case *Unwrap:
		format(sb, e.Target)
		sb.WriteByte('?')
	case *Unary:
		sb.WriteString("(" + e.Op.String())
		format(sb, e.Operand)
		sb.WriteByte(')')
	case *Binary:
		sb.WriteByte('(')
		format(sb, e.Left)
		sb.WriteString(" " + e.Op.String() + " ")
		format(sb, e.Right)
		sb.WriteByte(')')
	case *Assign:
		sb.WriteByte('(')
		format(sb, e.Target)
		sb.WriteString(" " + e.Op.String() + " ")
		format(sb, e.Value)
		sb.WriteByte(')')
	case *RangeCreate:
		sb.WriteByte('(')
		format(sb, e.From)
		if e.Inclusive {
			sb.WriteString("...")
		} else {
			sb.WriteString("..")
		}
		format(sb, e.To)
		sb.WriteByte(')')
	case *ArrayCreate:
		sb.WriteByte('[')
		formatList(sb, e.Elements)
		sb.WriteByte(']')
	case *TupleCreate:
		formatArgs(sb, e.Items)
	case *RecordCreate:
		formatFields(sb, e.Fields)
	case *RecordUpdate:
		sb.WriteByte('(')
		format(sb, e.Base)
		sb.WriteString(" & ")
		formatFields(sb, e.Fields)
		sb.WriteByte(')')
	case *Lambda:
		sb.WriteString("fn(")
		for i, p := range e.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Name)
		}
		sb.WriteString(") -> ")
		format(sb, e.Body)
	case *Block:
		sb.WriteString("{ ")
		for i, item := range e.Items {
			if i > 0 {
				sb.WriteString("; ")
			}
			format(sb, item)
		}
		sb.WriteString(" }")
	case *If:
		sb.WriteString("if ")
		format(sb, e.Cond)
		sb.WriteByte(' ')
		format(sb, e.Then)
		if e.Else != nil {
			sb.WriteString(" else ")
			format(sb, e.Else)
		}
	case *While:
		sb.WriteString("while ")
		format(sb, e.Cond)
		sb.WriteByte(' ')
		format(sb, e.Body)
	case *For:
		sb.WriteString("for " + e.Variable + " in ")
		format(sb, e.Source)
		sb.WriteByte(' ')
		format(sb, e.Body)
	case *Return:
		sb.WriteString("return")
		if e.Value != nil {
			sb.WriteByte(' ')
			format(sb, e.Value)
		}
	case *Break:
		sb.WriteString("break")
	case *Continue:
		sb.WriteString("continue")
	case *Unapply:
		sb.WriteString(e.Pattern + "(" + e.Binding + ") = ")
		format(sb, e.Value)
	case *VariableDecl:
		if e.Const {
			sb.WriteString("const ")
		} else {
			sb.WriteString("let ")
		}
		names := make([]string, len(e.Targets))
		for i, t := range e.Targets {
			names[i] = t.Name
			if e.Kind == DeclRecord {
				names[i] = t.Name + " @ " + t.Field
			}
		}
		if e.Kind == DeclSingle {
			sb.WriteString(names[0])
		} else {
			sb.WriteString("(" + strings.Join(names, ", ") + ")")
		}
		sb.WriteString(" = ")
		format(sb, e.Value)
	case *ErrorExpr:
		sb.WriteString("<error>")
	default:
		fmt.Fprintf(sb, "<%T>", n)
	}
}

func formatList(sb *strings.Builder, items []Expression) {
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		format(sb, item)
	}
}

func formatArgs(sb *strings.Builder, args []Expression) {
	sb.WriteByte('(')
	formatList(sb, args)
	sb.WriteByte(')')
}

func formatFields(sb *strings.Builder, fields []RecordField) {
	sb.WriteByte('(')
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name + ": ")
		format(sb, f.Value)
	}
	sb.WriteByte(')')
}
