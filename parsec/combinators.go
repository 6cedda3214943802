package parsec

import (
	"fmt"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Terminals
// ---------------------------------------------------------------------------

// Tag matches an exact string.
func Tag(s string) Parser[string] {
	expected := fmt.Sprintf("%q", s)
	return func(in Input) Result[string] {
		if in.HasPrefix(s) {
			return Ok(in.Position(), in.Advance(len(s)), s)
		}
		return Fail[string](in, expected)
	}
}

// Char matches a single rune.
func Char(c rune) Parser[rune] {
	expected := fmt.Sprintf("%q", c)
	return func(in Input) Result[rune] {
		r, size := in.Peek()
		if size > 0 && r == c {
			return Ok(in.Position(), in.Advance(size), r)
		}
		return Fail[rune](in, expected)
	}
}

// CharWhere matches a single rune satisfying pred.
func CharWhere(pred func(rune) bool, expected string) Parser[rune] {
	return func(in Input) Result[rune] {
		r, size := in.Peek()
		if size > 0 && pred(r) {
			return Ok(in.Position(), in.Advance(size), r)
		}
		return Fail[rune](in, expected)
	}
}

// TakeWhile0 consumes runes while pred holds. Never fails.
func TakeWhile0(pred func(rune) bool) Parser[string] {
	return func(in Input) Result[string] {
		n := in.FindNext(func(r rune) bool { return !pred(r) })
		if n < 0 {
			n = in.Available()
		}
		return Ok(in.Position(), in.Advance(n), in.Take(n))
	}
}

// TakeWhile1 consumes at least one rune while pred holds.
func TakeWhile1(pred func(rune) bool, expected string) Parser[string] {
	return func(in Input) Result[string] {
		n := in.FindNext(func(r rune) bool { return !pred(r) })
		if n < 0 {
			n = in.Available()
		}
		if n == 0 {
			return Fail[string](in, expected)
		}
		return Ok(in.Position(), in.Advance(n), in.Take(n))
	}
}

// EOF succeeds only at end of input.
func EOF() Parser[struct{}] {
	return func(in Input) Result[struct{}] {
		if in.AtEnd() {
			return Ok(in.Position(), in, struct{}{})
		}
		return Fail[struct{}](in, "end of input")
	}
}

// Success always succeeds without consuming input.
func Success[T any](value T) Parser[T] {
	return func(in Input) Result[T] {
		return Ok(in.Position(), in, value)
	}
}

// ---------------------------------------------------------------------------
// Transformations
// ---------------------------------------------------------------------------

// Map transforms the value of a successful parse.
func Map[T, U any](p Parser[T], f func(T) U) Parser[U] {
	return func(in Input) Result[U] {
		r := p(in)
		if !r.Success {
			return failAs[U](r)
		}
		return Ok(r.Start, r.Remaining, f(r.Value))
	}
}

// MapRange transforms the value of a successful parse, passing the consumed
// range along. Used to attach source ranges to AST nodes.
func MapRange[T, U any](p Parser[T], f func(T, Range) U) Parser[U] {
	return func(in Input) Result[U] {
		r := p(in)
		if !r.Success {
			return failAs[U](r)
		}
		return Ok(r.Start, r.Remaining, f(r.Value, r.Range()))
	}
}

// To replaces the value of a successful parse with a constant.
func To[T, U any](p Parser[T], value U) Parser[U] {
	return Map(p, func(T) U { return value })
}

// Label replaces the expectation of a failed parse.
func Label[T any](p Parser[T], expected string) Parser[T] {
	return func(in Input) Result[T] {
		r := p(in)
		if !r.Success && r.Remaining.Offset() == in.Offset() {
			r.Expected = expected
		}
		return r
	}
}

// Recognize returns the exact substring consumed by p.
func Recognize[T any](p Parser[T]) Parser[string] {
	return func(in Input) Result[string] {
		r := p(in)
		if !r.Success {
			return failAs[string](r)
		}
		return Ok(in.Position(), r.Remaining, in.Slice(in.Position(), r.Remaining.Position()))
	}
}

// Lazy defers construction of a parser, allowing recursive grammars.
func Lazy[T any](f func() Parser[T]) Parser[T] {
	p := sync.OnceValue(f)
	return func(in Input) Result[T] {
		return p()(in)
	}
}

// Peek runs p without consuming input.
func Peek[T any](p Parser[T]) Parser[T] {
	return func(in Input) Result[T] {
		r := p(in)
		if !r.Success {
			return r
		}
		return Ok(in.Position(), in, r.Value)
	}
}

// Not succeeds without consuming input when p fails.
func Not[T any](p Parser[T], expected string) Parser[struct{}] {
	return func(in Input) Result[struct{}] {
		if r := p(in); r.Success {
			return Fail[struct{}](in, expected)
		}
		return Ok(in.Position(), in, struct{}{})
	}
}

// ---------------------------------------------------------------------------
// Choice and optionality
// ---------------------------------------------------------------------------

// Opt makes a parser optional. It never fails.
func Opt[T any](p Parser[T]) Parser[Optional[T]] {
	return func(in Input) Result[Optional[T]] {
		r := p(in)
		if !r.Success {
			return Ok(in.Position(), in, Optional[T]{})
		}
		return Ok(r.Start, r.Remaining, Optional[T]{Value: r.Value, Defined: true})
	}
}

// Alt tries each alternative in order and returns the first success. When
// every alternative fails the failure that progressed furthest is reported;
// on ties the expectations are merged.
func Alt[T any](alternatives ...Parser[T]) Parser[T] {
	return func(in Input) Result[T] {
		var best Result[T]
		var expected []string
		for i, p := range alternatives {
			r := p(in)
			if r.Success {
				return r
			}
			switch {
			case i == 0 || best.Remaining.Offset() < r.Remaining.Offset():
				best = r
				expected = []string{r.Expected}
			case best.Remaining.Offset() == r.Remaining.Offset():
				expected = appendUnique(expected, r.Expected)
			}
		}
		if len(alternatives) == 0 {
			return Fail[T](in, "nothing")
		}
		best.Expected = strings.Join(expected, " or ")
		return best
	}
}

func appendUnique(list []string, s string) []string {
	for _, e := range list {
		if e == s {
			return list
		}
	}
	return append(list, s)
}

// ---------------------------------------------------------------------------
// Sequences
// ---------------------------------------------------------------------------

// Seq2 runs two parsers in order, short-circuiting on the first failure.
func Seq2[A, B any](pa Parser[A], pb Parser[B]) Parser[Tuple2[A, B]] {
	return func(in Input) Result[Tuple2[A, B]] {
		ra := pa(in)
		if !ra.Success {
			return failAs[Tuple2[A, B]](ra)
		}
		rb := pb(ra.Remaining)
		if !rb.Success {
			return failAs[Tuple2[A, B]](rb)
		}
		return Ok(in.Position(), rb.Remaining, Tuple2[A, B]{ra.Value, rb.Value})
	}
}

// Seq3 runs three parsers in order.
func Seq3[A, B, C any](pa Parser[A], pb Parser[B], pc Parser[C]) Parser[Tuple3[A, B, C]] {
	return func(in Input) Result[Tuple3[A, B, C]] {
		ra := pa(in)
		if !ra.Success {
			return failAs[Tuple3[A, B, C]](ra)
		}
		rb := pb(ra.Remaining)
		if !rb.Success {
			return failAs[Tuple3[A, B, C]](rb)
		}
		rc := pc(rb.Remaining)
		if !rc.Success {
			return failAs[Tuple3[A, B, C]](rc)
		}
		return Ok(in.Position(), rc.Remaining, Tuple3[A, B, C]{ra.Value, rb.Value, rc.Value})
	}
}

// Seq4 runs four parsers in order.
func Seq4[A, B, C, D any](pa Parser[A], pb Parser[B], pc Parser[C], pd Parser[D]) Parser[Tuple4[A, B, C, D]] {
	return func(in Input) Result[Tuple4[A, B, C, D]] {
		r := Seq3(pa, pb, pc)(in)
		if !r.Success {
			return failAs[Tuple4[A, B, C, D]](r)
		}
		rd := pd(r.Remaining)
		if !rd.Success {
			return failAs[Tuple4[A, B, C, D]](rd)
		}
		return Ok(in.Position(), rd.Remaining, Tuple4[A, B, C, D]{r.Value.V1, r.Value.V2, r.Value.V3, rd.Value})
	}
}

// Seq5 runs five parsers in order.
func Seq5[A, B, C, D, E any](pa Parser[A], pb Parser[B], pc Parser[C], pd Parser[D], pe Parser[E]) Parser[Tuple5[A, B, C, D, E]] {
	return func(in Input) Result[Tuple5[A, B, C, D, E]] {
		r := Seq4(pa, pb, pc, pd)(in)
		if !r.Success {
			return failAs[Tuple5[A, B, C, D, E]](r)
		}
		re := pe(r.Remaining)
		if !re.Success {
			return failAs[Tuple5[A, B, C, D, E]](re)
		}
		v := r.Value
		return Ok(in.Position(), re.Remaining, Tuple5[A, B, C, D, E]{v.V1, v.V2, v.V3, v.V4, re.Value})
	}
}

// Preceded runs prefix then p, keeping p's value.
func Preceded[A, T any](prefix Parser[A], p Parser[T]) Parser[T] {
	return Map(Seq2(prefix, p), func(t Tuple2[A, T]) T { return t.V2 })
}

// Terminated runs p then suffix, keeping p's value.
func Terminated[T, B any](p Parser[T], suffix Parser[B]) Parser[T] {
	return Map(Seq2(p, suffix), func(t Tuple2[T, B]) T { return t.V1 })
}

// Between runs open, p and close, keeping p's value.
func Between[O, T, C any](open Parser[O], p Parser[T], close Parser[C]) Parser[T] {
	return Map(Seq3(open, p, close), func(t Tuple3[O, T, C]) T { return t.V2 })
}

// ---------------------------------------------------------------------------
// Repetition
//
// Every repetition stops as soon as an item succeeds without consuming input;
// otherwise an item parser that matches the empty string would loop forever.
// ---------------------------------------------------------------------------

// Many0 applies p zero or more times.
func Many0[T any](p Parser[T]) Parser[[]T] {
	return func(in Input) Result[[]T] {
		start := in.Position()
		var items []T
		for {
			r := p(in)
			if !r.Success || r.Remaining.Offset() == in.Offset() {
				return Ok(start, in, items)
			}
			items = append(items, r.Value)
			in = r.Remaining
		}
	}
}

// Many1 applies p one or more times.
func Many1[T any](p Parser[T]) Parser[[]T] {
	return func(in Input) Result[[]T] {
		first := p(in)
		if !first.Success {
			return failAs[[]T](first)
		}
		rest := Many0(p)(first.Remaining)
		return Ok(in.Position(), rest.Remaining, append([]T{first.Value}, rest.Value...))
	}
}

// DelimitedMN parses between min and max items separated by delim. A max
// below zero means unbounded. A trailing delimiter is not consumed.
func DelimitedMN[T, D any](item Parser[T], delim Parser[D], min, max int) Parser[[]T] {
	return func(in Input) Result[[]T] {
		start := in
		var items []T
		current := in
		for max < 0 || len(items) < max {
			next := current
			if len(items) > 0 {
				d := delim(current)
				if !d.Success {
					break
				}
				next = d.Remaining
			}
			r := item(next)
			if !r.Success {
				if len(items) < min {
					return failAs[[]T](r)
				}
				break
			}
			if r.Remaining.Offset() == current.Offset() {
				break
			}
			items = append(items, r.Value)
			current = r.Remaining
		}
		if len(items) < min {
			return Fail[[]T](current, fmt.Sprintf("at least %d items", min))
		}
		return Ok(start.Position(), current, items)
	}
}

// Delimited0 parses zero or more items separated by delim.
func Delimited0[T, D any](item Parser[T], delim Parser[D]) Parser[[]T] {
	return DelimitedMN(item, delim, 0, -1)
}

// Delimited1 parses one or more items separated by delim.
func Delimited1[T, D any](item Parser[T], delim Parser[D]) Parser[[]T] {
	return DelimitedMN(item, delim, 1, -1)
}

// Fold0 parses first followed by zero or more (op operand) pairs, folding
// them left-associatively with combine. Used to encode operator precedence
// structurally: each precedence level is one Fold0 over the next level.
func Fold0[T, O any](first Parser[T], op Parser[O], operand Parser[T], combine func(left T, op O, right T, r Range) T) Parser[T] {
	pair := Seq2(op, operand)
	return func(in Input) Result[T] {
		r := first(in)
		if !r.Success {
			return r
		}
		acc := r.Value
		current := r.Remaining
		for {
			p := pair(current)
			if !p.Success || p.Remaining.Offset() == current.Offset() {
				break
			}
			current = p.Remaining
			acc = combine(acc, p.Value.V1, p.Value.V2, Range{Start: in.Position(), End: current.Position()})
		}
		return Ok(in.Position(), current, acc)
	}
}

// Chain is Fold0 with the same parser for the first and following operands.
func Chain[T, O any](operand Parser[T], op Parser[O], combine func(left T, op O, right T, r Range) T) Parser[T] {
	return Fold0(operand, op, operand, combine)
}

// ---------------------------------------------------------------------------
// Error recovery
// ---------------------------------------------------------------------------

// Recovery synthesizes a replacement item for a failed parse. It receives
// the input where the item started and the failure, and returns the
// replacement plus the input to continue from.
type Recovery[T any] func(at Input, failure Result[T]) (T, Input)

// ManyUntil parses items until terminator matches (without consuming it) or
// the input ends. When an item fails, recovery synthesizes an error item
// spanning to the next resynchronization point so the rest still parses.
func ManyUntil[T, E any](item Parser[T], terminator Parser[E], recovery Recovery[T]) Parser[[]T] {
	return func(in Input) Result[[]T] {
		start := in.Position()
		var items []T
		for !in.AtEnd() {
			if t := terminator(in); t.Success {
				break
			}
			r := item(in)
			if r.Success && r.Remaining.Offset() > in.Offset() {
				items = append(items, r.Value)
				in = r.Remaining
				continue
			}
			replacement, next := recovery(in, r)
			if next.Offset() <= in.Offset() {
				break
			}
			items = append(items, replacement)
			in = next
		}
		return Ok(start, in, items)
	}
}

// SkipLine returns the input after the end of the current line, or the end
// of input. A line break is a resynchronization point for recovery.
func SkipLine(in Input) Input {
	n := in.FindNext(func(r rune) bool { return r == '\n' })
	if n < 0 {
		return in.Advance(in.Available())
	}
	return in.Advance(n + 1)
}

// SkipUntil returns the input at the first rune satisfying stop, or the end
// of input.
func SkipUntil(in Input, stop func(rune) bool) Input {
	n := in.FindNext(stop)
	if n < 0 {
		return in.Advance(in.Available())
	}
	return in.Advance(n)
}
