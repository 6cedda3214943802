package grammar

import (
	"strings"

	"github.com/chazu/to2/ast"
	"github.com/chazu/to2/parsec"
)

// ---------------------------------------------------------------------------
// Blocks
// ---------------------------------------------------------------------------

func (g *rules) buildBlocks() {
	expr := parsec.Lazy(func() parsec.Parser[ast.Expression] { return g.expression })
	typeRef := parsec.Lazy(func() parsec.Parser[ast.TypeRef] { return g.typeRef })

	declTarget := parsec.Map(
		parsec.Seq3(
			identifier,
			parsec.Opt(parsec.Preceded(padded(symbol(":", ":")), typeRef)),
			parsec.Opt(parsec.Preceded(padded(parsec.Char('@')), identifier)),
		),
		func(t parsec.Tuple3[string, parsec.Optional[ast.TypeRef], parsec.Optional[string]]) ast.DeclTarget {
			return ast.DeclTarget{Name: t.V1, Type: t.V2.Value, Field: t.V3.Value}
		},
	)
	destructure := parsec.Map(list('(', declTarget, ')'), func(targets []ast.DeclTarget) []ast.DeclTarget {
		if len(targets) == 0 {
			return nil
		}
		return targets
	})
	single := parsec.Map(declTarget, func(t ast.DeclTarget) []ast.DeclTarget { return []ast.DeclTarget{t} })

	variableDecl := parsec.MapRange(
		parsec.Seq4(
			parsec.Terminated(parsec.Alt(keyword("let"), keyword("const")), ws),
			parsec.Alt(
				parsec.Map(destructure, func(t []ast.DeclTarget) parsec.Tuple2[bool, []ast.DeclTarget] { return parsec.Tuple2[bool, []ast.DeclTarget]{V1: true, V2: t} }),
				parsec.Map(single, func(t []ast.DeclTarget) parsec.Tuple2[bool, []ast.DeclTarget] { return parsec.Tuple2[bool, []ast.DeclTarget]{V2: t} }),
			),
			padded(symbol("=", "=")),
			expr,
		),
		func(t parsec.Tuple4[string, parsec.Tuple2[bool, []ast.DeclTarget], string, ast.Expression], r parsec.Range) ast.BlockItem {
			decl := &ast.VariableDecl{SpanVal: r, Const: t.V1 == "const", Targets: t.V2.V2, Value: t.V4}
			if t.V2.V1 {
				decl.Kind = ast.DeclTuple
				for _, target := range decl.Targets {
					if target.Field != "" {
						decl.Kind = ast.DeclRecord
					}
				}
			}
			if decl.Kind == ast.DeclRecord {
				for i, target := range decl.Targets {
					if target.Field == "" {
						decl.Targets[i].Field = target.Name
					}
				}
			}
			return decl
		},
	)

	g.blockItem = parsec.Alt(
		variableDecl,
		parsec.Map(expr, func(e ast.Expression) ast.BlockItem { return e }),
	)

	separator := parsec.Preceded(spacing, parsec.Alt(
		parsec.To(parsec.Char('\n'), unit{}),
		parsec.To(parsec.Char(';'), unit{}),
		parsec.To(parsec.Peek(parsec.Char('}')), unit{}),
		parsec.EOF(),
	))

	item := parsec.Preceded(ws, parsec.Terminated(g.blockItem, separator))
	closing := parsec.Preceded(ws, parsec.Char('}'))

	g.block = parsec.MapRange(
		parsec.Between(
			parsec.Char('{'),
			parsec.ManyUntil(item, closing, recoverBlockItem),
			closing,
		),
		func(items []ast.BlockItem, r parsec.Range) ast.Expression {
			return &ast.Block{SpanVal: r, Items: items}
		},
	)
}

// recoverBlockItem replaces a broken block item with an ErrorExpr spanning
// to the end of its line or the closing brace of the block.
func recoverBlockItem(at parsec.Input, failure parsec.Result[ast.BlockItem]) (ast.BlockItem, parsec.Input) {
	start := ws(at).Remaining
	stop := parsec.SkipUntil(start, func(r rune) bool { return r == '\n' || r == '}' })
	text := strings.TrimSpace(start.Slice(start.Position(), stop.Position()))
	next := stop
	if r, _ := stop.Peek(); r == '\n' {
		next = stop.Advance(1)
	}
	return &ast.ErrorExpr{
		SpanVal:  parsec.MakeRange(start.Position(), start.Advance(len(text)).Position()),
		Text:     text,
		Expected: failure.Expected,
	}, next
}

// ---------------------------------------------------------------------------
// Module items
// ---------------------------------------------------------------------------

func (g *rules) buildModuleItems() {
	expr := parsec.Lazy(func() parsec.Parser[ast.Expression] { return g.expression })
	block := parsec.Lazy(func() parsec.Parser[ast.Expression] { return g.block })
	typeRef := parsec.Lazy(func() parsec.Parser[ast.TypeRef] { return g.typeRef })

	colon := padded(symbol(":", ":"))
	equals := padded(symbol("=", "="))

	param := parsec.MapRange(
		parsec.Seq3(identifier, parsec.Preceded(colon, typeRef), parsec.Opt(parsec.Preceded(equals, expr))),
		func(t parsec.Tuple3[string, ast.TypeRef, parsec.Optional[ast.Expression]], r parsec.Range) ast.Parameter {
			return ast.Parameter{SpanVal: r, Name: t.V1, Type: t.V2, Default: t.V3.Value}
		},
	)
	params := list('(', param, ')')
	returnType := parsec.Opt(parsec.Preceded(padded(parsec.Tag("->")), typeRef))
	body := parsec.Preceded(ws, parsec.Alt(parsec.Preceded(parsec.Terminated(symbol("=", "="), ws), expr), block))
	syncFlag := parsec.Map(parsec.Opt(parsec.Terminated(keyword("sync"), ws)), func(o parsec.Optional[string]) bool { return o.Defined })

	// use { a, b } from m / use * from m / use m as x
	useNames := parsec.MapRange(
		parsec.Seq2(
			parsec.Alt(
				parsec.Between(parsec.Terminated(parsec.Char('{'), ws), parsec.Delimited1(identifier, commaSep), parsec.Preceded(ws, parsec.Char('}'))),
				parsec.To(parsec.Char('*'), []string(nil)),
			),
			parsec.Preceded(parsec.Seq3(ws, keyword("from"), ws), modulePath),
		),
		func(t parsec.Tuple2[[]string, string], r parsec.Range) ast.ModuleItem {
			return &ast.UseNames{SpanVal: r, Names: t.V1, All: t.V1 == nil, Module: t.V2}
		},
	)
	useModule := parsec.MapRange(
		parsec.Seq2(modulePath, parsec.Opt(parsec.Preceded(parsec.Seq3(ws, keyword("as"), ws), identifier))),
		func(t parsec.Tuple2[string, parsec.Optional[string]], r parsec.Range) ast.ModuleItem {
			return &ast.UseModule{SpanVal: r, Module: t.V1, Alias: t.V2.Value}
		},
	)
	use := parsec.Preceded(parsec.Terminated(keyword("use"), ws), parsec.Alt(useNames, useModule))

	function := parsec.MapRange(
		parsec.Seq5(
			syncFlag,
			parsec.Preceded(parsec.Terminated(keyword("fn"), ws), identifier),
			parsec.Preceded(ws, params),
			returnType,
			body,
		),
		func(t parsec.Tuple5[bool, string, []ast.Parameter, parsec.Optional[ast.TypeRef], ast.Expression], r parsec.Range) ast.ModuleItem {
			return &ast.FunctionDecl{SpanVal: r, Async: !t.V1, Name: t.V2, Params: t.V3, ReturnType: t.V4.Value, Body: t.V5}
		},
	)

	constDecl := parsec.MapRange(
		parsec.Seq4(
			parsec.Preceded(parsec.Terminated(keyword("const"), ws), identifier),
			parsec.Opt(parsec.Preceded(colon, typeRef)),
			equals,
			expr,
		),
		func(t parsec.Tuple4[string, parsec.Optional[ast.TypeRef], string, ast.Expression], r parsec.Range) ast.ModuleItem {
			return &ast.ConstDecl{SpanVal: r, Name: t.V1, Type: t.V2.Value, Value: t.V4}
		},
	)

	typeAlias := parsec.MapRange(
		parsec.Seq2(parsec.Preceded(parsec.Terminated(keyword("type"), ws), identifier), parsec.Preceded(equals, typeRef)),
		func(t parsec.Tuple2[string, ast.TypeRef], r parsec.Range) ast.ModuleItem {
			return &ast.TypeAlias{SpanVal: r, Name: t.V1, Type: t.V2}
		},
	)

	field := parsec.MapRange(
		parsec.Seq4(
			descriptions,
			identifier,
			parsec.Preceded(colon, typeRef),
			parsec.Opt(parsec.Preceded(equals, expr)),
		),
		func(t parsec.Tuple4[string, string, ast.TypeRef, parsec.Optional[ast.Expression]], r parsec.Range) ast.StructField {
			return ast.StructField{SpanVal: r, Description: t.V1, Name: t.V2, Type: t.V3, Init: t.V4.Value}
		},
	)
	fieldSep := parsec.Preceded(spacing, parsec.Opt(parsec.Char(',')))
	structDecl := parsec.MapRange(
		parsec.Seq3(
			parsec.Preceded(parsec.Terminated(keyword("struct"), ws), identifier),
			parsec.Opt(parsec.Preceded(ws, params)),
			parsec.Between(
				parsec.Preceded(ws, parsec.Char('{')),
				parsec.Many0(parsec.Terminated(field, fieldSep)),
				parsec.Preceded(ws, parsec.Char('}')),
			),
		),
		func(t parsec.Tuple3[string, parsec.Optional[[]ast.Parameter], []ast.StructField], r parsec.Range) ast.ModuleItem {
			return &ast.StructDecl{SpanVal: r, Name: t.V1, CtorParams: t.V2.Value, HasCtor: t.V2.Defined, Fields: t.V3}
		},
	)

	// Methods take self as their first parameter.
	selfParams := parsec.Between(
		parsec.Seq3(parsec.Char('('), ws, keyword("self")),
		parsec.Many0(parsec.Preceded(commaSep, param)),
		parsec.Seq3(parsec.Opt(commaSep), ws, parsec.Char(')')),
	)
	method := parsec.MapRange(
		parsec.Seq5(
			descriptions,
			syncFlag,
			parsec.Preceded(parsec.Terminated(keyword("fn"), ws), identifier),
			parsec.Seq2(parsec.Preceded(ws, selfParams), returnType),
			body,
		),
		func(t parsec.Tuple5[string, bool, string, parsec.Tuple2[[]ast.Parameter, parsec.Optional[ast.TypeRef]], ast.Expression], r parsec.Range) ast.MethodDecl {
			return ast.MethodDecl{
				SpanVal:     r,
				Description: t.V1,
				Async:       !t.V2,
				Name:        t.V3,
				Params:      t.V4.V1,
				ReturnType:  t.V4.V2.Value,
				Body:        t.V5,
			}
		},
	)
	implDecl := parsec.MapRange(
		parsec.Seq2(
			parsec.Preceded(parsec.Terminated(keyword("impl"), ws), identifier),
			parsec.Between(
				parsec.Preceded(ws, parsec.Char('{')),
				parsec.Many0(method),
				parsec.Preceded(ws, parsec.Char('}')),
			),
		),
		func(t parsec.Tuple2[string, []ast.MethodDecl], r parsec.Range) ast.ModuleItem {
			return &ast.ImplDecl{SpanVal: r, Name: t.V1, Methods: t.V2}
		},
	)

	exportable := parsec.Map(
		parsec.Seq2(
			parsec.Map(parsec.Opt(parsec.Terminated(keyword("pub"), ws)), func(o parsec.Optional[string]) bool { return o.Defined }),
			parsec.Alt(function, structDecl, constDecl, typeAlias),
		),
		func(t parsec.Tuple2[bool, ast.ModuleItem]) ast.ModuleItem {
			switch item := t.V2.(type) {
			case *ast.FunctionDecl:
				item.Exported = t.V1
			case *ast.StructDecl:
				item.Exported = t.V1
			case *ast.ConstDecl:
				item.Exported = t.V1
			case *ast.TypeAlias:
				item.Exported = t.V1
			}
			return t.V2
		},
	)

	g.moduleItem = parsec.Map(
		parsec.Seq2(descriptions, parsec.Alt(use, implDecl, exportable)),
		func(t parsec.Tuple2[string, ast.ModuleItem]) ast.ModuleItem {
			switch item := t.V2.(type) {
			case *ast.FunctionDecl:
				item.Description = t.V1
			case *ast.StructDecl:
				item.Description = t.V1
			case *ast.ConstDecl:
				item.Description = t.V1
			case *ast.TypeAlias:
				item.Description = t.V1
			}
			return t.V2
		},
	)

	g.module = parsec.Terminated(
		parsec.ManyUntil(g.moduleItem, parsec.Preceded(ws, parsec.EOF()), recoverModuleItem),
		ws,
	)
}

// recoverModuleItem replaces a broken declaration with an ErrorItem and
// resumes at the next line after its first that starts in column 1 with
// something other than a closing brace. The failure point is not used: it
// is often past trailing whitespace on a following line.
func recoverModuleItem(at parsec.Input, failure parsec.Result[ast.ModuleItem]) (ast.ModuleItem, parsec.Input) {
	start := ws(at).Remaining
	next := parsec.SkipLine(start)
	for !next.AtEnd() {
		r, _ := next.Peek()
		if !isBlank(r) && !isNewline(r) && r != '}' {
			break
		}
		next = parsec.SkipLine(next)
	}
	text := strings.TrimSpace(start.Slice(start.Position(), next.Position()))
	return &ast.ErrorItem{
		SpanVal:  parsec.MakeRange(start.Position(), start.Advance(len(text)).Position()),
		Text:     text,
		Expected: failure.Expected,
	}, next
}
