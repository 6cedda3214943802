package parsec

import "fmt"

// Parser is a function from an input cursor to a parse result.
type Parser[T any] func(Input) Result[T]

// Result is the outcome of running a parser.
//
// On success Remaining is the input after the match and Start is where the
// match began. On failure Remaining is the input at the failure point and
// Expected describes what would have been accepted there.
type Result[T any] struct {
	Success   bool
	Value     T
	Start     Position
	Remaining Input
	Expected  string
}

// Ok creates a successful result.
func Ok[T any](start Position, remaining Input, value T) Result[T] {
	return Result[T]{Success: true, Value: value, Start: start, Remaining: remaining}
}

// Fail creates a failed result.
func Fail[T any](at Input, expected string) Result[T] {
	return Result[T]{Success: false, Start: at.Position(), Remaining: at, Expected: expected}
}

// failAs re-types a failure.
func failAs[U, T any](r Result[T]) Result[U] {
	return Result[U]{Success: false, Start: r.Start, Remaining: r.Remaining, Expected: r.Expected}
}

// Range returns the consumed span of a successful result.
func (r Result[T]) Range() Range {
	return Range{Start: r.Start, End: r.Remaining.Position()}
}

// Position returns the position where the result stopped: the end of the
// match on success, the failure point otherwise.
func (r Result[T]) Position() Position {
	return r.Remaining.Position()
}

// Error describes a failed result.
func (r Result[T]) Error() string {
	if r.Success {
		return ""
	}
	return fmt.Sprintf("%s: expected %s", r.Remaining.Position(), r.Expected)
}

// Optional holds the outcome of Opt.
type Optional[T any] struct {
	Value   T
	Defined bool
}

// Tuple2 through Tuple5 hold the outcomes of the Seq combinators.
type Tuple2[A, B any] struct {
	V1 A
	V2 B
}

type Tuple3[A, B, C any] struct {
	V1 A
	V2 B
	V3 C
}

type Tuple4[A, B, C, D any] struct {
	V1 A
	V2 B
	V3 C
	V4 D
}

type Tuple5[A, B, C, D, E any] struct {
	V1 A
	V2 B
	V3 C
	V4 D
	V5 E
}
