package stdlib

import (
	"fmt"
	"strings"

	"github.com/chazu/to2/binding"
)

// Str binds string helpers that are not methods of string itself.
var Str = &binding.Module{
	Name:        "core::str",
	Description: "String utilities",
	Funcs: []binding.Func{
		{
			Name:        "join",
			Description: "Concatenate items with separator between them",
			Fn:          strings.Join,
			Params:      []binding.Param{{Name: "items"}, {Name: "separator", Default: ", "}},
		},
		{
			Name:        "repeat",
			Description: "Concatenate count copies of s",
			Fn:          repeat,
			Params:      []binding.Param{{Name: "s"}, {Name: "count"}},
		},
	},
}

func repeat(s string, count int) (string, error) {
	if count < 0 {
		return "", fmt.Errorf("negative repeat count %d", count)
	}
	return strings.Repeat(s, count), nil
}
