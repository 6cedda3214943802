package stdlib

import (
	"github.com/chazu/to2/binding"
)

// Prelude provides the Option and Result constructors.
var Prelude = &binding.Module{
	Name:        PreludeName,
	Description: "Constructors for Option and Result, imported into every module",
	Funcs: []binding.Func{
		{
			Name:        "Some",
			Description: "A defined option holding value",
			TypeParams:  []string{"T"},
			Fn:          binding.Some[binding.T],
			Params:      []binding.Param{{Name: "value"}},
		},
		{
			Name:        "None",
			Description: "An empty option",
			TypeParams:  []string{"T"},
			Fn:          binding.None[binding.T],
		},
		{
			Name:        "Ok",
			Description: "A successful result holding value",
			TypeParams:  []string{"T", "E"},
			Fn:          binding.Ok[binding.T, binding.E],
			Params:      []binding.Param{{Name: "value"}},
		},
		{
			Name:        "Err",
			Description: "A failed result holding error",
			TypeParams:  []string{"T", "E"},
			Fn:          binding.Fail[binding.T, binding.E],
			Params:      []binding.Param{{Name: "error"}},
		},
	},
}
