package ast

// Operator identifies a unary, binary or assignment operator.
type Operator int

const (
	OpInvalid Operator = iota

	// Arithmetic
	OpAdd // +
	OpSub // -
	OpMul // *
	OpDiv // /
	OpMod // %
	OpPow // **

	// Bitwise
	OpBitAnd // &
	OpBitOr  // |
	OpBitXor // ^
	OpBitNot // ~

	// Comparison
	OpEq // ==
	OpNe // !=
	OpLt // <
	OpLe // <=
	OpGt // >
	OpGe // >=

	// Boolean
	OpAnd // &&
	OpOr  // ||
	OpNot // !

	// Unary minus
	OpNeg // -

	// Assignment
	OpAssign    // =
	OpAddAssign // +=
	OpSubAssign // -=
	OpMulAssign // *=
	OpDivAssign // /=
	OpModAssign // %=
)

var operatorSymbols = map[Operator]string{
	OpAdd:       "+",
	OpSub:       "-",
	OpMul:       "*",
	OpDiv:       "/",
	OpMod:       "%",
	OpPow:       "**",
	OpBitAnd:    "&",
	OpBitOr:     "|",
	OpBitXor:    "^",
	OpBitNot:    "~",
	OpEq:        "==",
	OpNe:        "!=",
	OpLt:        "<",
	OpLe:        "<=",
	OpGt:        ">",
	OpGe:        ">=",
	OpAnd:       "&&",
	OpOr:        "||",
	OpNot:       "!",
	OpNeg:       "-",
	OpAssign:    "=",
	OpAddAssign: "+=",
	OpSubAssign: "-=",
	OpMulAssign: "*=",
	OpDivAssign: "/=",
	OpModAssign: "%=",
}

func (op Operator) String() string {
	if s, ok := operatorSymbols[op]; ok {
		return s
	}
	return "?"
}

// IsComparison reports whether op is one of == != < <= > >=.
func (op Operator) IsComparison() bool {
	return op >= OpEq && op <= OpGe
}

// IsBoolean reports whether op is && or ||.
func (op Operator) IsBoolean() bool {
	return op == OpAnd || op == OpOr
}

// Arithmetic returns the binary operator a compound assignment applies,
// or OpInvalid for plain assignment.
func (op Operator) Arithmetic() Operator {
	switch op {
	case OpAddAssign:
		return OpAdd
	case OpSubAssign:
		return OpSub
	case OpMulAssign:
		return OpMul
	case OpDivAssign:
		return OpDiv
	case OpModAssign:
		return OpMod
	}
	return OpInvalid
}
