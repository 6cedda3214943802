package parsec

import (
	"strings"
	"sync"
	"testing"
	"unicode"
)

func digits() Parser[string] {
	return TakeWhile1(unicode.IsDigit, "digit")
}

func TestInputAdvanceTracksLines(t *testing.T) {
	in := NewInput("ab\ncd\n\nef")
	tests := []struct {
		advance int
		line    int
		column  int
	}{
		{0, 1, 1},
		{1, 1, 2},
		{3, 2, 1},
		{5, 2, 3},
		{7, 4, 1},
		{9, 4, 3},
		{20, 4, 3},
	}
	for _, tc := range tests {
		pos := in.Advance(tc.advance).Position()
		if pos.Line != tc.line || pos.Column != tc.column {
			t.Errorf("Advance(%d) = %d:%d, want %d:%d", tc.advance, pos.Line, pos.Column, tc.line, tc.column)
		}
	}
	if got := in.Advance(4).Line(); got != "cd" {
		t.Errorf("Line() = %q, want %q", got, "cd")
	}
}

func TestTerminals(t *testing.T) {
	in := NewInput("fn foo")
	if r := Tag("fn")(in); !r.Success || r.Value != "fn" || r.Remaining.Offset() != 2 {
		t.Errorf("Tag(fn) = %+v", r)
	}
	if r := Tag("fun")(in); r.Success || r.Expected != `"fun"` {
		t.Errorf("Tag(fun) should fail expecting \"fun\", got %+v", r)
	}
	if r := Char('f')(in); !r.Success || r.Value != 'f' {
		t.Errorf("Char(f) = %+v", r)
	}
	if r := TakeWhile0(unicode.IsDigit)(in); !r.Success || r.Value != "" {
		t.Errorf("TakeWhile0 on no digits = %+v", r)
	}
	if r := digits()(in); r.Success {
		t.Errorf("TakeWhile1 on no digits should fail")
	}
	if r := EOF()(NewInput("")); !r.Success {
		t.Errorf("EOF on empty input should succeed")
	}
	if r := EOF()(in); r.Success {
		t.Errorf("EOF on non-empty input should fail")
	}
}

func TestSeqShortCircuits(t *testing.T) {
	calls := 0
	counting := func(in Input) Result[string] {
		calls++
		return Tag("c")(in)
	}
	r := Seq3(Tag("a"), Tag("x"), Parser[string](counting))(NewInput("abc"))
	if r.Success {
		t.Fatal("Seq3 should fail on second element")
	}
	if calls != 0 {
		t.Errorf("third parser ran %d times after failure", calls)
	}
	if r.Position().Offset != 1 {
		t.Errorf("failure offset = %d, want 1", r.Position().Offset)
	}

	ok := Seq3(Tag("a"), Tag("b"), Tag("c"))(NewInput("abc"))
	if !ok.Success || ok.Value.V1 != "a" || ok.Value.V3 != "c" {
		t.Errorf("Seq3 = %+v", ok)
	}
	if rng := ok.Range(); rng.Start.Offset != 0 || rng.End.Offset != 3 {
		t.Errorf("Seq3 range = %v", rng)
	}
}

func TestAltReportsFurthestFailure(t *testing.T) {
	p := Alt(
		Recognize(Seq2(Tag("let"), Tag(" x"))),
		Recognize(Seq3(Tag("let"), Tag(" y"), Tag(" ="))),
		Tag("const"),
	)
	r := p(NewInput("let y !"))
	if r.Success {
		t.Fatal("Alt should fail")
	}
	if r.Position().Offset != 5 {
		t.Errorf("failure offset = %d, want 5", r.Position().Offset)
	}
	if r.Expected != `" ="` {
		t.Errorf("Expected = %q, want %q", r.Expected, `" ="`)
	}

	tie := Alt(Tag("a"), Tag("b"))(NewInput("c"))
	if tie.Expected != `"a" or "b"` {
		t.Errorf("tie Expected = %q", tie.Expected)
	}

	first := Alt(Tag("ab"), Tag("a"))(NewInput("ab"))
	if !first.Success || first.Value != "ab" {
		t.Errorf("Alt first success = %+v", first)
	}
}

func TestRepetitionTerminatesOnEmptyMatch(t *testing.T) {
	empty := TakeWhile0(unicode.IsDigit)
	tests := []struct {
		name string
		run  func() int
	}{
		{"Many0", func() int { return len(Many0(empty)(NewInput("abc")).Value) }},
		{"Many1", func() int { return len(Many1(empty)(NewInput("abc")).Value) }},
		{"Delimited0", func() int { return len(Delimited0(empty, Opt(Char(',')))(NewInput("abc")).Value) }},
	}
	for _, tc := range tests {
		if n := tc.run(); n > 1 {
			t.Errorf("%s produced %d items from empty matches", tc.name, n)
		}
	}
}

func TestMany(t *testing.T) {
	r := Many0(Tag("ab"))(NewInput("ababa"))
	if !r.Success || len(r.Value) != 2 || r.Remaining.Offset() != 4 {
		t.Errorf("Many0 = %+v", r)
	}
	if r := Many1(Tag("x"))(NewInput("ab")); r.Success {
		t.Error("Many1 should fail without a first match")
	}
}

func TestDelimited(t *testing.T) {
	comma := Char(',')
	tests := []struct {
		input    string
		min, max int
		want     []string
		ok       bool
		consumed int
	}{
		{"1,2,3", 0, -1, []string{"1", "2", "3"}, true, 5},
		{"1,2,", 0, -1, []string{"1", "2"}, true, 3},
		{"", 0, -1, nil, true, 0},
		{"", 1, -1, nil, false, 0},
		{"1,2,3", 1, 2, []string{"1", "2"}, true, 3},
		{"1", 2, 3, nil, false, 0},
	}
	for _, tc := range tests {
		r := DelimitedMN(digits(), comma, tc.min, tc.max)(NewInput(tc.input))
		if r.Success != tc.ok {
			t.Errorf("DelimitedMN(%q, %d, %d) success = %v, want %v", tc.input, tc.min, tc.max, r.Success, tc.ok)
			continue
		}
		if !tc.ok {
			continue
		}
		if strings.Join(r.Value, "|") != strings.Join(tc.want, "|") {
			t.Errorf("DelimitedMN(%q) = %v, want %v", tc.input, r.Value, tc.want)
		}
		if r.Remaining.Offset() != tc.consumed {
			t.Errorf("DelimitedMN(%q) consumed %d, want %d", tc.input, r.Remaining.Offset(), tc.consumed)
		}
	}
}

func TestChainIsLeftAssociative(t *testing.T) {
	num := Map(digits(), func(s string) string { return s })
	op := Char('-')
	p := Chain(num, op, func(l string, o rune, r string, _ Range) string {
		return "(" + l + string(o) + r + ")"
	})
	r := p(NewInput("1-2-3"))
	if !r.Success || r.Value != "((1-2)-3)" {
		t.Errorf("Chain = %q, want %q", r.Value, "((1-2)-3)")
	}
	single := p(NewInput("7-"))
	if !single.Success || single.Value != "7" || single.Remaining.Offset() != 1 {
		t.Errorf("Chain with dangling operator = %+v", single)
	}
}

func TestRecognizeAndBetween(t *testing.T) {
	p := Recognize(Seq2(Char('$'), digits()))
	if r := p(NewInput("$42 rest")); r.Value != "$42" {
		t.Errorf("Recognize = %q", r.Value)
	}
	b := Between(Char('('), digits(), Char(')'))
	if r := b(NewInput("(12)")); !r.Success || r.Value != "12" {
		t.Errorf("Between = %+v", r)
	}
}

func TestOpt(t *testing.T) {
	p := Opt(Tag("pub"))
	if r := p(NewInput("pub fn")); !r.Value.Defined || r.Remaining.Offset() != 3 {
		t.Errorf("Opt match = %+v", r)
	}
	if r := p(NewInput("fn")); !r.Success || r.Value.Defined || r.Remaining.Offset() != 0 {
		t.Errorf("Opt miss = %+v", r)
	}
}

func TestLazyRecursion(t *testing.T) {
	var nested Parser[int]
	nested = Alt(
		Map(Between(Char('['), Lazy(func() Parser[int] { return nested }), Char(']')), func(n int) int { return n + 1 }),
		To(Tag("x"), 0),
	)
	if r := nested(NewInput("[[[x]]]")); !r.Success || r.Value != 3 {
		t.Errorf("nested depth = %d, want 3", r.Value)
	}
}

func TestLazyConcurrentFirstUse(t *testing.T) {
	var calls int
	var mu sync.Mutex
	p := Lazy(func() Parser[string] {
		mu.Lock()
		calls++
		mu.Unlock()
		return digits()
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r := p(NewInput("42")); !r.Success || r.Value != "42" {
				t.Errorf("Lazy parse = %+v", r)
			}
		}()
	}
	wg.Wait()
	if calls != 1 {
		t.Errorf("parser built %d times, want 1", calls)
	}
}

func TestManyUntilRecovers(t *testing.T) {
	line := Terminated(Recognize(Seq2(Tag("ok"), digits())), Opt(Char('\n')))
	resync := func(at Input, _ Result[string]) (string, Input) {
		next := SkipLine(at)
		return "error:" + strings.TrimSpace(at.Slice(at.Position(), next.Position())), next
	}
	r := ManyUntil(line, EOF(), resync)(NewInput("ok1\nok2\n%%bad\nok3"))
	want := []string{"ok1", "ok2", "error:%%bad", "ok3"}
	if strings.Join(r.Value, "|") != strings.Join(want, "|") {
		t.Errorf("ManyUntil = %v, want %v", r.Value, want)
	}
	if !r.Remaining.AtEnd() {
		t.Errorf("ManyUntil stopped at %v", r.Remaining.Position())
	}
}

func TestManyUntilStopsWithoutProgress(t *testing.T) {
	stuck := func(at Input, _ Result[string]) (string, Input) { return "", at }
	r := ManyUntil(Tag("a"), EOF(), stuck)(NewInput("aab"))
	if len(r.Value) != 2 || r.Remaining.Offset() != 2 {
		t.Errorf("ManyUntil = %+v", r)
	}
}
