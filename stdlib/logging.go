package stdlib

import (
	"github.com/chazu/to2/binding"
	"github.com/chazu/to2/runtime"
)

// Logging forwards messages to the logger of the calling context.
var Logging = &binding.Module{
	Name:        "core::logging",
	Description: "Write messages to the host log",
	Funcs: []binding.Func{
		{
			Name:        "print",
			Description: "Log an informational message",
			Fn:          func(ctx *runtime.Context, message string) { ctx.Logger().Infof("%s", message) },
			Params:      []binding.Param{{Name: "message"}},
		},
		{
			Name:        "debug",
			Description: "Log a debug message",
			Fn:          func(ctx *runtime.Context, message string) { ctx.Logger().Debugf("%s", message) },
			Params:      []binding.Param{{Name: "message"}},
		},
		{
			Name:        "warning",
			Description: "Log a warning",
			Fn:          func(ctx *runtime.Context, message string) { ctx.Logger().Warningf("%s", message) },
			Params:      []binding.Param{{Name: "message"}},
		},
		{
			Name:        "error",
			Description: "Log an error",
			Fn:          func(ctx *runtime.Context, message string) { ctx.Logger().Errorf("%s", message) },
			Params:      []binding.Param{{Name: "message"}},
		},
	},
}
