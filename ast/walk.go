package ast

// Walk traverses the tree rooted at n in depth-first order, calling visit
// for each node. Children are skipped when visit returns false.
func Walk(n Node, visit func(Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	walkExpr := func(e Expression) {
		if e != nil {
			Walk(e, visit)
		}
	}
	walkParams := func(params []Parameter) {
		for _, p := range params {
			walkExpr(p.Default)
		}
	}
	switch n := n.(type) {
	case *ConstDecl:
		walkExpr(n.Value)
	case *FunctionDecl:
		walkParams(n.Params)
		walkExpr(n.Body)
	case *StructDecl:
		walkParams(n.CtorParams)
		for _, f := range n.Fields {
			walkExpr(f.Init)
		}
	case *ImplDecl:
		for _, m := range n.Methods {
			walkParams(m.Params)
			walkExpr(m.Body)
		}
	case *StringInterpolation:
		for _, p := range n.Parts {
			walkExpr(p)
		}
	case *Call:
		for _, a := range n.Args {
			walkExpr(a)
		}
	case *FieldGet:
		walkExpr(n.Target)
	case *MethodCall:
		walkExpr(n.Target)
		for _, a := range n.Args {
			walkExpr(a)
		}
	case *IndexGet:
		walkExpr(n.Target)
		walkExpr(n.Index)
	case *Unwrap:
		walkExpr(n.Target)
	case *Unary:
		walkExpr(n.Operand)
	case *Binary:
		walkExpr(n.Left)
		walkExpr(n.Right)
	case *Assign:
		walkExpr(n.Target)
		walkExpr(n.Value)
	case *RangeCreate:
		walkExpr(n.From)
		walkExpr(n.To)
	case *ArrayCreate:
		for _, e := range n.Elements {
			walkExpr(e)
		}
	case *TupleCreate:
		for _, e := range n.Items {
			walkExpr(e)
		}
	case *RecordCreate:
		for _, f := range n.Fields {
			walkExpr(f.Value)
		}
	case *RecordUpdate:
		walkExpr(n.Base)
		for _, f := range n.Fields {
			walkExpr(f.Value)
		}
	case *Lambda:
		walkExpr(n.Body)
	case *Block:
		for _, item := range n.Items {
			if item != nil {
				Walk(item, visit)
			}
		}
	case *If:
		walkExpr(n.Cond)
		walkExpr(n.Then)
		walkExpr(n.Else)
	case *While:
		walkExpr(n.Cond)
		walkExpr(n.Body)
	case *For:
		walkExpr(n.Source)
		walkExpr(n.Body)
	case *Return:
		walkExpr(n.Value)
	case *Unapply:
		walkExpr(n.Value)
	case *VariableDecl:
		walkExpr(n.Value)
	}
}
