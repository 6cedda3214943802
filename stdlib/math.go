package stdlib

import (
	"math"

	"github.com/chazu/to2/binding"
)

var unary = []binding.Param{{Name: "x"}}

// Math binds floating point helpers. Int arguments widen to float.
var Math = &binding.Module{
	Name:        "core::math",
	Description: "Floating point math",
	Constants: []binding.Constant{
		{Name: "PI", Description: "Ratio of a circle's circumference to its diameter", Value: math.Pi},
		{Name: "E", Description: "Base of the natural logarithm", Value: math.E},
	},
	Funcs: []binding.Func{
		{Name: "sqrt", Description: "Square root", Fn: math.Sqrt, Params: unary},
		{Name: "sin", Description: "Sine of x radians", Fn: math.Sin, Params: unary},
		{Name: "cos", Description: "Cosine of x radians", Fn: math.Cos, Params: unary},
		{Name: "abs", Description: "Absolute value", Fn: math.Abs, Params: unary},
		{
			Name:        "clamp",
			Description: "Limit x to the interval [min, max]",
			Fn:          clamp,
			Params:      []binding.Param{{Name: "x"}, {Name: "min", Default: 0.0}, {Name: "max", Default: 1.0}},
		},
		{Name: "min", Description: "Smaller of a and b", Fn: math.Min, Params: []binding.Param{{Name: "a"}, {Name: "b"}}},
		{Name: "max", Description: "Larger of a and b", Fn: math.Max, Params: []binding.Param{{Name: "a"}, {Name: "b"}}},
	},
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
