// Package parsec is a small generic parser-combinator library.
//
// Parsers consume an immutable Input cursor and produce a Result that either
// carries the parsed value together with the remaining input, or the input at
// the point of failure and a description of what was expected there.
package parsec

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Position and Range
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Before reports whether p lies strictly before other.
func (p Position) Before(other Position) bool {
	return p.Offset < other.Offset
}

// Range represents a span in source code.
type Range struct {
	Start Position
	End   Position
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// Contains reports whether pos lies within the range (end inclusive).
func (r Range) Contains(pos Position) bool {
	return pos.Offset >= r.Start.Offset && pos.Offset <= r.End.Offset
}

// MakeRange creates a range from start and end positions.
func MakeRange(start, end Position) Range {
	return Range{Start: start, End: end}
}

// ---------------------------------------------------------------------------
// Input: immutable cursor over source text
// ---------------------------------------------------------------------------

// Input is a cursor over source text. Advancing returns a new Input; the
// receiver is never modified, so any Input may be used for backtracking.
type Input struct {
	source string
	pos    Position
}

// NewInput creates an input positioned at the start of source.
func NewInput(source string) Input {
	return Input{source: source, pos: Position{Offset: 0, Line: 1, Column: 1}}
}

// Position returns the current position.
func (in Input) Position() Position {
	return in.pos
}

// Offset returns the current byte offset.
func (in Input) Offset() int {
	return in.pos.Offset
}

// Available returns the number of unconsumed bytes.
func (in Input) Available() int {
	return len(in.source) - in.pos.Offset
}

// AtEnd returns true if all input has been consumed.
func (in Input) AtEnd() bool {
	return in.pos.Offset >= len(in.source)
}

// Rest returns the unconsumed text.
func (in Input) Rest() string {
	return in.source[in.pos.Offset:]
}

// Peek decodes the next rune without consuming it. Returns utf8.RuneError
// and size 0 at end of input.
func (in Input) Peek() (rune, int) {
	if in.AtEnd() {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(in.source[in.pos.Offset:])
}

// HasPrefix reports whether the unconsumed text starts with s.
func (in Input) HasPrefix(s string) bool {
	return strings.HasPrefix(in.source[in.pos.Offset:], s)
}

// Take returns the next n bytes (or fewer at end of input).
func (in Input) Take(n int) string {
	end := in.pos.Offset + n
	if end > len(in.source) {
		end = len(in.source)
	}
	return in.source[in.pos.Offset:end]
}

// Slice returns the source text between two positions of this input.
func (in Input) Slice(from, to Position) string {
	return in.source[from.Offset:to.Offset]
}

// Advance consumes n bytes, tracking line and column.
func (in Input) Advance(n int) Input {
	end := in.pos.Offset + n
	if end > len(in.source) {
		end = len(in.source)
	}
	pos := in.pos
	for _, r := range in.source[in.pos.Offset:end] {
		if r == '\n' {
			pos.Line++
			pos.Column = 1
		} else {
			pos.Column++
		}
	}
	pos.Offset = end
	return Input{source: in.source, pos: pos}
}

// FindNext returns the byte distance to the first rune satisfying pred, or -1.
func (in Input) FindNext(pred func(rune) bool) int {
	for i, r := range in.source[in.pos.Offset:] {
		if pred(r) {
			return i
		}
	}
	return -1
}

// Line returns the full text of the line the cursor is on.
func (in Input) Line() string {
	start := strings.LastIndexByte(in.source[:in.pos.Offset], '\n') + 1
	end := strings.IndexByte(in.source[in.pos.Offset:], '\n')
	if end < 0 {
		return in.source[start:]
	}
	return in.source[start : in.pos.Offset+end]
}
