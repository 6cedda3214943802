package grammar

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/chazu/to2/ast"
	"github.com/chazu/to2/parsec"
)

// ---------------------------------------------------------------------------
// Whitespace and comments
// ---------------------------------------------------------------------------

type unit = struct{}

var keywords = map[string]bool{
	"pub": true, "fn": true, "sync": true, "let": true, "const": true,
	"if": true, "else": true, "while": true, "for": true, "in": true,
	"return": true, "break": true, "continue": true, "true": true,
	"false": true, "use": true, "from": true, "as": true, "type": true,
	"struct": true, "impl": true,
}

// IsKeyword reports whether s is reserved and cannot be used as a name.
func IsKeyword(s string) bool {
	return keywords[s]
}

// Keywords lists the reserved words in sorted order.
func Keywords() []string {
	return slices.Sorted(maps.Keys(keywords))
}

func isBlank(r rune) bool   { return r == ' ' || r == '\t' || r == '\r' }
func isNewline(r rune) bool { return r == '\n' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentChar(r rune) bool  { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

func isDocComment(in parsec.Input) bool {
	return in.HasPrefix("///") && !in.HasPrefix("////")
}

// skipSpace skips blanks and line comments. Line breaks are skipped when
// lines is set; doc comments stop the scan when keepDocs is set.
func skipSpace(lines, keepDocs bool) parsec.Parser[unit] {
	return func(in parsec.Input) parsec.Result[unit] {
		start := in.Position()
		for {
			r, size := in.Peek()
			switch {
			case size == 0:
				return parsec.Ok(start, in, unit{})
			case isBlank(r), lines && isNewline(r):
				in = in.Advance(size)
			case keepDocs && isDocComment(in):
				return parsec.Ok(start, in, unit{})
			case in.HasPrefix("//"):
				in = parsec.SkipUntil(in, isNewline)
			default:
				return parsec.Ok(start, in, unit{})
			}
		}
	}
}

var (
	// spacing skips blanks and comments on the current line.
	spacing = skipSpace(false, false)
	// ws skips blanks, comments and line breaks.
	ws = skipSpace(true, false)
	// wsKeepDocs is ws stopping in front of a /// description.
	wsKeepDocs = skipSpace(true, true)
)

// docLine parses one /// description line.
var docLine = parsec.Map(
	parsec.Preceded(parsec.Tag("///"), parsec.TakeWhile0(func(r rune) bool { return !isNewline(r) })),
	strings.TrimSpace,
)

// descriptions parses the /// lines in front of a declaration.
var descriptions = parsec.Map(
	parsec.Terminated(parsec.Many0(parsec.Preceded(wsKeepDocs, docLine)), ws),
	func(lines []string) string { return strings.Join(lines, "\n") },
)

// ---------------------------------------------------------------------------
// Names and symbols
// ---------------------------------------------------------------------------

var identifier parsec.Parser[string] = func(in parsec.Input) parsec.Result[string] {
	r, size := in.Peek()
	if size == 0 || !isIdentStart(r) {
		return parsec.Fail[string](in, "identifier")
	}
	n := in.FindNext(func(r rune) bool { return !isIdentChar(r) })
	if n < 0 {
		n = in.Available()
	}
	name := in.Take(n)
	if keywords[name] {
		return parsec.Fail[string](in, "identifier")
	}
	return parsec.Ok(in.Position(), in.Advance(n), name)
}

// modulePath parses a::b::c.
var modulePath = parsec.Map(
	parsec.Delimited1(identifier, parsec.Tag("::")),
	func(parts []string) string { return strings.Join(parts, "::") },
)

func keyword(word string) parsec.Parser[string] {
	return parsec.Label(
		parsec.Terminated(parsec.Tag(word), parsec.Not(parsec.CharWhere(isIdentChar, ""), "")),
		strconv.Quote(word),
	)
}

// symbol matches s unless it is immediately followed by one of the runes
// in notFollowedBy, which distinguishes * from ** and *=.
func symbol(s, notFollowedBy string) parsec.Parser[string] {
	if notFollowedBy == "" {
		return parsec.Tag(s)
	}
	next := parsec.CharWhere(func(r rune) bool { return strings.ContainsRune(notFollowedBy, r) }, "")
	return parsec.Label(parsec.Terminated(parsec.Tag(s), parsec.Not(next, "")), strconv.Quote(s))
}

// padded surrounds p with ws.
func padded[T any](p parsec.Parser[T]) parsec.Parser[T] {
	return parsec.Between(ws, p, ws)
}

var commaSep = padded(parsec.Char(','))

// list parses open item, item, ... close with an optional trailing comma.
func list[T any](open rune, item parsec.Parser[T], close rune) parsec.Parser[[]T] {
	return parsec.Between(
		parsec.Terminated(parsec.Char(open), ws),
		parsec.Terminated(parsec.Delimited0(item, commaSep), parsec.Seq2(parsec.Opt(commaSep), ws)),
		parsec.Char(close),
	)
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// numberLiteral parses an integer or float literal. A float needs a digit
// after the dot so that 1..5 stays a range.
var numberLiteral parsec.Parser[ast.Expression] = func(in parsec.Input) parsec.Result[ast.Expression] {
	start := in
	digits := func(in parsec.Input) parsec.Input {
		n := in.FindNext(func(r rune) bool { return !isDigit(r) && r != '_' })
		if n < 0 {
			n = in.Available()
		}
		return in.Advance(n)
	}
	if r, size := in.Peek(); size == 0 || !isDigit(r) {
		return parsec.Fail[ast.Expression](in, "number")
	}
	in = digits(in)
	isFloat := false
	if rest := in.Rest(); len(rest) > 1 && rest[0] == '.' && isDigit(rune(rest[1])) {
		isFloat = true
		in = digits(in.Advance(1))
	}
	if rest := in.Rest(); len(rest) > 1 && (rest[0] == 'e' || rest[0] == 'E') {
		exp := in.Advance(1)
		if r, _ := exp.Peek(); r == '+' || r == '-' {
			exp = exp.Advance(1)
		}
		if r, size := exp.Peek(); size > 0 && isDigit(r) {
			isFloat = true
			in = digits(exp)
		}
	}
	text := strings.ReplaceAll(start.Slice(start.Position(), in.Position()), "_", "")
	span := parsec.MakeRange(start.Position(), in.Position())
	if isFloat {
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return parsec.Fail[ast.Expression](start, "float literal")
		}
		return parsec.Ok[ast.Expression](start.Position(), in, &ast.FloatLiteral{SpanVal: span, Value: v})
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return parsec.Fail[ast.Expression](start, "integer literal in range")
	}
	return parsec.Ok[ast.Expression](start.Position(), in, &ast.IntLiteral{SpanVal: span, Value: v})
}

var escapes = map[rune]rune{
	'n':  '\n',
	't':  '\t',
	'r':  '\r',
	'"':  '"',
	'\\': '\\',
	'{':  '{',
	'}':  '}',
	'0':  0,
}

// stringChars scans the body of a string literal up to the closing quote,
// or up to an unescaped { when interpolating. It returns the decoded text
// and the input positioned at the stop rune.
func stringChars(in parsec.Input, interpolated bool) (string, parsec.Input, bool) {
	var sb strings.Builder
	for {
		r, size := in.Peek()
		switch {
		case size == 0 || isNewline(r):
			return "", in, false
		case r == '"' || (interpolated && r == '{'):
			return sb.String(), in, true
		case r == '\\':
			in = in.Advance(size)
			e, esize := in.Peek()
			decoded, ok := escapes[e]
			if esize == 0 || !ok {
				return "", in, false
			}
			sb.WriteRune(decoded)
			in = in.Advance(esize)
		default:
			sb.WriteRune(r)
			in = in.Advance(size)
		}
	}
}

var stringLiteral parsec.Parser[ast.Expression] = func(in parsec.Input) parsec.Result[ast.Expression] {
	if !in.HasPrefix(`"`) {
		return parsec.Fail[ast.Expression](in, "string")
	}
	text, rest, ok := stringChars(in.Advance(1), false)
	if !ok {
		return parsec.Fail[ast.Expression](rest, "closing \"")
	}
	rest = rest.Advance(1)
	return parsec.Ok[ast.Expression](in.Position(), rest, &ast.StringLiteral{
		SpanVal: parsec.MakeRange(in.Position(), rest.Position()),
		Value:   text,
	})
}

var boolLiteral = parsec.MapRange(
	parsec.Alt(parsec.To(keyword("true"), true), parsec.To(keyword("false"), false)),
	func(v bool, r parsec.Range) ast.Expression { return &ast.BoolLiteral{SpanVal: r, Value: v} },
)
