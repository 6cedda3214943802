// Package grammar is the TO2 grammar, built on the parsec combinators.
//
// There is exactly one grammar. The batch compiler and the language server
// both call ParseModule; the compiler refuses to continue when the result
// contains error nodes, while the language server reports them and keeps
// working with the rest of the tree.
package grammar

import (
	"fmt"
	"sync"

	"github.com/chazu/to2/ast"
	"github.com/chazu/to2/parsec"
)

// Error is a syntax error with its position.
type Error struct {
	Module   string
	Range    parsec.Range
	Expected string
	Text     string
}

func (e *Error) Error() string {
	loc := e.Range.Start.String()
	if e.Module != "" {
		loc = e.Module + ":" + loc
	}
	if e.Text != "" {
		return fmt.Sprintf("%s: expected %s, found %q", loc, e.Expected, e.Text)
	}
	return fmt.Sprintf("%s: expected %s", loc, e.Expected)
}

var build = sync.OnceValue(func() *rules {
	g := &rules{}
	g.typeRef = typeRefParser()
	g.buildExpressions()
	g.buildBlocks()
	g.buildModuleItems()
	return g
})

// ParseModule parses the source of a module in recovery mode. The tree is
// always returned; every declaration or block item that failed to parse is
// replaced by an error node and reported in the returned errors.
func ParseModule(name, source string) (*ast.Module, []*Error) {
	g := build()
	r := g.module(parsec.NewInput(source))
	module := &ast.Module{Name: name, Items: r.Value}

	var errs []*Error
	for _, node := range module.Errors() {
		errs = append(errs, &Error{
			Module:   name,
			Range:    node.Span(),
			Expected: node.ErrorExpected(),
			Text:     node.ErrorText(),
		})
	}
	return module, errs
}

// ParseExpression parses a single expression. Unlike ParseModule it fails
// on the first error.
func ParseExpression(source string) (ast.Expression, error) {
	g := build()
	r := parsec.Terminated(parsec.Preceded(ws, g.expression), parsec.Preceded(ws, parsec.EOF()))(parsec.NewInput(source))
	if !r.Success {
		return nil, failure(r)
	}
	var err error
	ast.Walk(r.Value, func(n ast.Node) bool {
		if e, ok := n.(ast.ErrorNode); ok && err == nil {
			err = &Error{Range: e.Span(), Expected: e.ErrorExpected(), Text: e.ErrorText()}
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return r.Value, nil
}

// ParseType parses a type reference.
func ParseType(source string) (ast.TypeRef, error) {
	g := build()
	r := parsec.Terminated(parsec.Preceded(ws, g.typeRef), parsec.Preceded(ws, parsec.EOF()))(parsec.NewInput(source))
	if !r.Success {
		return nil, failure(r)
	}
	return r.Value, nil
}

func failure[T any](r parsec.Result[T]) *Error {
	at := r.Remaining
	n := at.FindNext(isNewline)
	if n < 0 {
		n = at.Available()
	}
	text := at.Take(n)
	return &Error{
		Range:    parsec.MakeRange(at.Position(), at.Position()),
		Expected: r.Expected,
		Text:     text,
	}
}
