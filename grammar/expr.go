package grammar

import (
	"github.com/chazu/to2/ast"
	"github.com/chazu/to2/parsec"
)

// rules holds the mutually recursive productions of the grammar.
type rules struct {
	typeRef    parsec.Parser[ast.TypeRef]
	expression parsec.Parser[ast.Expression]
	block      parsec.Parser[ast.Expression]
	blockItem  parsec.Parser[ast.BlockItem]
	moduleItem parsec.Parser[ast.ModuleItem]
	module     parsec.Parser[[]ast.ModuleItem]
}

// suffix applies a postfix operation (call, field, index, ?) to a target.
type suffix func(target ast.Expression) ast.Expression

// binaryOp parses an infix operator. The operator must be on the same line
// as its left operand; line breaks are allowed after it.
func binaryOp(s, notFollowedBy string, op ast.Operator) parsec.Parser[ast.Operator] {
	return parsec.To(parsec.Between(spacing, symbol(s, notFollowedBy), ws), op)
}

func makeBinary(left ast.Expression, op ast.Operator, right ast.Expression, r parsec.Range) ast.Expression {
	if update, ok := right.(*ast.RecordCreate); ok && op == ast.OpBitAnd {
		return &ast.RecordUpdate{SpanVal: r, Base: left, Fields: update.Fields}
	}
	return &ast.Binary{SpanVal: r, Left: left, Op: op, Right: right}
}

func (g *rules) buildExpressions() {
	expr := parsec.Lazy(func() parsec.Parser[ast.Expression] { return g.expression })
	block := parsec.Lazy(func() parsec.Parser[ast.Expression] { return g.block })
	typeRef := parsec.Lazy(func() parsec.Parser[ast.TypeRef] { return g.typeRef })

	args := list('(', expr, ')')

	// -- terms -------------------------------------------------------------

	pathOrCall := parsec.MapRange(
		parsec.Seq2(parsec.Delimited1(identifier, parsec.Tag("::")), parsec.Opt(args)),
		func(t parsec.Tuple2[[]string, parsec.Optional[[]ast.Expression]], r parsec.Range) ast.Expression {
			path := t.V1
			module := ""
			if len(path) > 1 {
				module = joinPath(path[:len(path)-1])
			}
			name := path[len(path)-1]
			if t.V2.Defined {
				return &ast.Call{SpanVal: r, Module: module, Name: name, Args: t.V2.Value}
			}
			return &ast.VariableGet{SpanVal: r, Module: module, Name: name}
		},
	)

	unitLiteral := parsec.MapRange(
		parsec.Seq3(parsec.Char('('), ws, parsec.Char(')')),
		func(_ parsec.Tuple3[rune, unit, rune], r parsec.Range) ast.Expression {
			return &ast.UnitLiteral{SpanVal: r}
		},
	)

	recordField := parsec.MapRange(
		parsec.Seq2(identifier, parsec.Preceded(parsec.Terminated(parsec.Preceded(spacing, symbol(":", ":")), ws), expr)),
		func(t parsec.Tuple2[string, ast.Expression], r parsec.Range) ast.RecordField {
			return ast.RecordField{SpanVal: r, Name: t.V1, Value: t.V2}
		},
	)
	recordLiteral := parsec.MapRange(
		parsec.Between(
			parsec.Terminated(parsec.Char('('), ws),
			parsec.Delimited1(recordField, commaSep),
			parsec.Preceded(parsec.Seq2(parsec.Opt(commaSep), ws), parsec.Char(')')),
		),
		func(fields []ast.RecordField, r parsec.Range) ast.Expression {
			return &ast.RecordCreate{SpanVal: r, Fields: fields}
		},
	)

	// (e) groups, (a, b) builds a tuple.
	parenOrTuple := parsec.MapRange(
		list('(', expr, ')'),
		func(items []ast.Expression, r parsec.Range) ast.Expression {
			if len(items) == 1 {
				return items[0]
			}
			return &ast.TupleCreate{SpanVal: r, Items: items}
		},
	)

	arrayLiteral := parsec.MapRange(
		list('[', expr, ']'),
		func(items []ast.Expression, r parsec.Range) ast.Expression {
			return &ast.ArrayCreate{SpanVal: r, Elements: items}
		},
	)

	interpolated := interpolation(expr)

	lambdaParam := parsec.MapRange(
		parsec.Seq2(identifier, parsec.Opt(parsec.Preceded(padded(symbol(":", ":")), typeRef))),
		func(t parsec.Tuple2[string, parsec.Optional[ast.TypeRef]], r parsec.Range) ast.Parameter {
			return ast.Parameter{SpanVal: r, Name: t.V1, Type: t.V2.Value}
		},
	)
	lambda := parsec.MapRange(
		parsec.Seq3(
			parsec.Terminated(keyword("fn"), ws),
			parsec.Terminated(list('(', lambdaParam, ')'), padded(parsec.Tag("->"))),
			expr,
		),
		func(t parsec.Tuple3[string, []ast.Parameter, ast.Expression], r parsec.Range) ast.Expression {
			return &ast.Lambda{SpanVal: r, Params: t.V2, Body: t.V3}
		},
	)

	unapply := parsec.MapRange(
		parsec.Seq4(
			parsec.Alt(keyword("Some"), keyword("Ok"), keyword("Err")),
			parsec.Between(padded(parsec.Char('(')), identifier, padded(parsec.Char(')'))),
			parsec.Terminated(symbol("=", "="), ws),
			expr,
		),
		func(t parsec.Tuple4[string, string, string, ast.Expression], r parsec.Range) ast.Expression {
			return &ast.Unapply{SpanVal: r, Pattern: t.V1, Binding: t.V2, Value: t.V4}
		},
	)
	condition := parsec.Between(
		parsec.Terminated(parsec.Char('('), ws),
		parsec.Alt(unapply, expr),
		parsec.Preceded(ws, parsec.Char(')')),
	)

	ifExpr := parsec.MapRange(
		parsec.Seq4(
			parsec.Terminated(keyword("if"), ws),
			parsec.Terminated(condition, ws),
			expr,
			parsec.Opt(parsec.Preceded(parsec.Seq3(ws, keyword("else"), ws), expr)),
		),
		func(t parsec.Tuple4[string, ast.Expression, ast.Expression, parsec.Optional[ast.Expression]], r parsec.Range) ast.Expression {
			return &ast.If{SpanVal: r, Cond: t.V2, Then: t.V3, Else: t.V4.Value}
		},
	)

	whileExpr := parsec.MapRange(
		parsec.Seq3(parsec.Terminated(keyword("while"), ws), parsec.Terminated(condition, ws), expr),
		func(t parsec.Tuple3[string, ast.Expression, ast.Expression], r parsec.Range) ast.Expression {
			return &ast.While{SpanVal: r, Cond: t.V2, Body: t.V3}
		},
	)

	forExpr := parsec.MapRange(
		parsec.Seq5(
			parsec.Terminated(keyword("for"), ws),
			parsec.Terminated(parsec.Char('('), ws),
			parsec.Terminated(identifier, parsec.Seq3(ws, keyword("in"), ws)),
			parsec.Terminated(expr, parsec.Seq3(ws, parsec.Char(')'), ws)),
			expr,
		),
		func(t parsec.Tuple5[string, rune, string, ast.Expression, ast.Expression], r parsec.Range) ast.Expression {
			return &ast.For{SpanVal: r, Variable: t.V3, Source: t.V4, Body: t.V5}
		},
	)

	returnExpr := parsec.MapRange(
		parsec.Seq2(keyword("return"), parsec.Opt(parsec.Preceded(spacing, expr))),
		func(t parsec.Tuple2[string, parsec.Optional[ast.Expression]], r parsec.Range) ast.Expression {
			return &ast.Return{SpanVal: r, Value: t.V2.Value}
		},
	)
	breakExpr := parsec.MapRange(keyword("break"), func(_ string, r parsec.Range) ast.Expression {
		return &ast.Break{SpanVal: r}
	})
	continueExpr := parsec.MapRange(keyword("continue"), func(_ string, r parsec.Range) ast.Expression {
		return &ast.Continue{SpanVal: r}
	})

	term := parsec.Label(parsec.Alt(
		numberLiteral,
		stringLiteral,
		interpolated,
		boolLiteral,
		ifExpr,
		whileExpr,
		forExpr,
		returnExpr,
		breakExpr,
		continueExpr,
		lambda,
		block,
		unitLiteral,
		recordLiteral,
		parenOrTuple,
		arrayLiteral,
		pathOrCall,
	), "expression")

	// -- suffixes ----------------------------------------------------------

	member := parsec.MapRange(
		parsec.Seq2(parsec.Preceded(parsec.Seq2(ws, parsec.Char('.')), identifier), parsec.Opt(args)),
		func(t parsec.Tuple2[string, parsec.Optional[[]ast.Expression]], r parsec.Range) suffix {
			return func(target ast.Expression) ast.Expression {
				span := parsec.MakeRange(target.Span().Start, r.End)
				if t.V2.Defined {
					return &ast.MethodCall{SpanVal: span, Target: target, Method: t.V1, Args: t.V2.Value}
				}
				return &ast.FieldGet{SpanVal: span, Target: target, Field: t.V1}
			}
		},
	)
	index := parsec.MapRange(
		parsec.Between(parsec.Terminated(parsec.Char('['), ws), expr, parsec.Preceded(ws, parsec.Char(']'))),
		func(i ast.Expression, r parsec.Range) suffix {
			return func(target ast.Expression) ast.Expression {
				return &ast.IndexGet{SpanVal: parsec.MakeRange(target.Span().Start, r.End), Target: target, Index: i}
			}
		},
	)
	unwrap := parsec.MapRange(symbol("?", ""), func(_ string, r parsec.Range) suffix {
		return func(target ast.Expression) ast.Expression {
			return &ast.Unwrap{SpanVal: parsec.MakeRange(target.Span().Start, r.End), Target: target}
		}
	})

	suffixExpr := parsec.Map(
		parsec.Seq2(term, parsec.Many0(parsec.Alt(member, index, unwrap))),
		func(t parsec.Tuple2[ast.Expression, []suffix]) ast.Expression {
			e := t.V1
			for _, s := range t.V2 {
				e = s(e)
			}
			return e
		},
	)

	// -- operator cascade, tightest first ----------------------------------

	var unaryExpr parsec.Parser[ast.Expression]
	unaryOp := parsec.Alt(
		parsec.To(symbol("-", "=>"), ast.OpNeg),
		parsec.To(symbol("!", "="), ast.OpNot),
		parsec.To(symbol("~", ""), ast.OpBitNot),
	)
	unaryExpr = parsec.Alt(
		parsec.MapRange(
			parsec.Seq2(parsec.Terminated(unaryOp, spacing), parsec.Lazy(func() parsec.Parser[ast.Expression] { return unaryExpr })),
			func(t parsec.Tuple2[ast.Operator, ast.Expression], r parsec.Range) ast.Expression {
				return &ast.Unary{SpanVal: r, Op: t.V1, Operand: t.V2}
			},
		),
		suffixExpr,
	)

	powerExpr := parsec.Chain(unaryExpr, binaryOp("**", "=", ast.OpPow), makeBinary)

	mulExpr := parsec.Chain(powerExpr, parsec.Alt(
		binaryOp("*", "*=", ast.OpMul),
		binaryOp("/", "/=", ast.OpDiv),
		binaryOp("%", "=", ast.OpMod),
	), makeBinary)

	addExpr := parsec.Chain(mulExpr, parsec.Alt(
		binaryOp("+", "=", ast.OpAdd),
		binaryOp("-", "=>", ast.OpSub),
	), makeBinary)

	bitExpr := parsec.Chain(addExpr, parsec.Alt(
		binaryOp("&", "&=", ast.OpBitAnd),
		binaryOp("|", "|=", ast.OpBitOr),
		binaryOp("^", "=", ast.OpBitXor),
	), makeBinary)

	rangeOp := parsec.Alt(
		parsec.To(parsec.Between(spacing, parsec.Tag("..."), ws), true),
		parsec.To(parsec.Between(spacing, symbol("..", "."), ws), false),
	)
	rangeExpr := parsec.MapRange(
		parsec.Seq2(bitExpr, parsec.Opt(parsec.Seq2(rangeOp, bitExpr))),
		func(t parsec.Tuple2[ast.Expression, parsec.Optional[parsec.Tuple2[bool, ast.Expression]]], r parsec.Range) ast.Expression {
			if !t.V2.Defined {
				return t.V1
			}
			return &ast.RangeCreate{SpanVal: r, From: t.V1, To: t.V2.Value.V2, Inclusive: t.V2.Value.V1}
		},
	)

	compareExpr := parsec.Chain(rangeExpr, parsec.Alt(
		binaryOp("==", "", ast.OpEq),
		binaryOp("!=", "", ast.OpNe),
		binaryOp("<=", "", ast.OpLe),
		binaryOp(">=", "", ast.OpGe),
		binaryOp("<", "=", ast.OpLt),
		binaryOp(">", "=", ast.OpGt),
	), makeBinary)

	booleanExpr := parsec.Chain(compareExpr, parsec.Alt(
		binaryOp("&&", "", ast.OpAnd),
		binaryOp("||", "", ast.OpOr),
	), makeBinary)

	assignOp := parsec.Alt(
		binaryOp("=", "=>", ast.OpAssign),
		binaryOp("+=", "", ast.OpAddAssign),
		binaryOp("-=", "", ast.OpSubAssign),
		binaryOp("*=", "", ast.OpMulAssign),
		binaryOp("/=", "", ast.OpDivAssign),
		binaryOp("%=", "", ast.OpModAssign),
	)
	var assignExpr parsec.Parser[ast.Expression]
	assignExpr = parsec.MapRange(
		parsec.Seq2(booleanExpr, parsec.Opt(parsec.Seq2(assignOp, parsec.Lazy(func() parsec.Parser[ast.Expression] { return assignExpr })))),
		func(t parsec.Tuple2[ast.Expression, parsec.Optional[parsec.Tuple2[ast.Operator, ast.Expression]]], r parsec.Range) ast.Expression {
			if !t.V2.Defined {
				return t.V1
			}
			return &ast.Assign{SpanVal: r, Target: t.V1, Op: t.V2.Value.V1, Value: t.V2.Value.V2}
		},
	)

	g.expression = assignExpr
}

// interpolation parses $"text {expr} text".
func interpolation(expr parsec.Parser[ast.Expression]) parsec.Parser[ast.Expression] {
	embedded := parsec.Between(parsec.Terminated(parsec.Char('{'), ws), expr, parsec.Preceded(ws, parsec.Char('}')))
	return func(in parsec.Input) parsec.Result[ast.Expression] {
		if !in.HasPrefix(`$"`) {
			return parsec.Fail[ast.Expression](in, "interpolated string")
		}
		start := in
		in = in.Advance(2)
		var parts []ast.Expression
		for {
			textStart := in.Position()
			text, rest, ok := stringChars(in, true)
			if !ok {
				return parsec.Fail[ast.Expression](rest, "closing \"")
			}
			if text != "" {
				parts = append(parts, &ast.StringLiteral{SpanVal: parsec.MakeRange(textStart, rest.Position()), Value: text})
			}
			in = rest
			if in.HasPrefix(`"`) {
				in = in.Advance(1)
				return parsec.Ok[ast.Expression](start.Position(), in, &ast.StringInterpolation{
					SpanVal: parsec.MakeRange(start.Position(), in.Position()),
					Parts:   parts,
				})
			}
			r := embedded(in)
			if !r.Success {
				return r
			}
			parts = append(parts, r.Value)
			in = r.Remaining
		}
	}
}
