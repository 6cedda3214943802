package grammar

import (
	"github.com/chazu/to2/ast"
	"github.com/chazu/to2/parsec"
)

// typeRefParser builds the type reference grammar:
//
//	T, m::T, T<A, B>, T[], (A, B), (a: A, b: B), sync fn(A) -> R, fn(A) -> R
func typeRefParser() parsec.Parser[ast.TypeRef] {
	var typeRef parsec.Parser[ast.TypeRef]
	lazy := parsec.Lazy(func() parsec.Parser[ast.TypeRef] { return typeRef })

	named := parsec.MapRange(
		parsec.Seq2(
			parsec.Delimited1(identifier, parsec.Tag("::")),
			parsec.Opt(parsec.Between(parsec.Terminated(parsec.Char('<'), ws), parsec.Delimited1(lazy, commaSep), parsec.Preceded(ws, parsec.Char('>')))),
		),
		func(t parsec.Tuple2[[]string, parsec.Optional[[]ast.TypeRef]], r parsec.Range) ast.TypeRef {
			path := t.V1
			ref := &ast.NamedTypeRef{SpanVal: r, Name: path[len(path)-1], Args: t.V2.Value}
			if len(path) > 1 {
				ref.Module = joinPath(path[:len(path)-1])
			}
			return ref
		},
	)

	function := parsec.MapRange(
		parsec.Seq4(
			parsec.Opt(parsec.Terminated(keyword("sync"), ws)),
			parsec.Terminated(keyword("fn"), ws),
			parsec.Terminated(list('(', lazy, ')'), padded(parsec.Tag("->"))),
			lazy,
		),
		func(t parsec.Tuple4[parsec.Optional[string], string, []ast.TypeRef, ast.TypeRef], r parsec.Range) ast.TypeRef {
			return &ast.FunctionTypeRef{SpanVal: r, Async: !t.V1.Defined, Params: t.V3, Result: t.V4}
		},
	)

	recordField := parsec.Map(
		parsec.Seq2(identifier, parsec.Preceded(padded(symbol(":", ":")), lazy)),
		func(t parsec.Tuple2[string, ast.TypeRef]) ast.RecordTypeField {
			return ast.RecordTypeField{Name: t.V1, Type: t.V2}
		},
	)
	record := parsec.MapRange(
		parsec.Between(parsec.Terminated(parsec.Char('('), ws), parsec.Delimited1(recordField, commaSep), parsec.Preceded(parsec.Seq2(parsec.Opt(commaSep), ws), parsec.Char(')'))),
		func(fields []ast.RecordTypeField, r parsec.Range) ast.TypeRef {
			return &ast.RecordTypeRef{SpanVal: r, Fields: fields}
		},
	)
	tuple := parsec.MapRange(
		list('(', lazy, ')'),
		func(items []ast.TypeRef, r parsec.Range) ast.TypeRef {
			if len(items) == 1 {
				return items[0]
			}
			return &ast.TupleTypeRef{SpanVal: r, Items: items}
		},
	)

	term := parsec.Alt(function, record, tuple, named)

	typeRef = parsec.MapRange(
		parsec.Seq2(term, parsec.Many0(parsec.Tag("[]"))),
		func(t parsec.Tuple2[ast.TypeRef, []string], r parsec.Range) ast.TypeRef {
			ref := t.V1
			for range t.V2 {
				ref = &ast.ArrayTypeRef{SpanVal: parsec.MakeRange(r.Start, r.End), Element: ref}
			}
			return ref
		},
	)
	return parsec.Label(typeRef, "type")
}

func joinPath(parts []string) string {
	s := parts[0]
	for _, p := range parts[1:] {
		s += "::" + p
	}
	return s
}
