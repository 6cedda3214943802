package stdlib

import (
	"time"

	"github.com/chazu/to2/binding"
	"github.com/chazu/to2/runtime"
)

// TaskModule binds cooperative scheduling primitives for async functions.
var TaskModule = &binding.Module{
	Name:        "core::task",
	Description: "Cooperative scheduling",
	Funcs: []binding.Func{
		{
			Name:        "yield",
			Description: "Hand control back to the scheduler until the next tick",
			Fn:          runtime.Yield,
		},
		{
			Name:        "sleep",
			Description: "Suspend for at least ms milliseconds",
			Fn: func(ms int) runtime.Future[runtime.Unit] {
				return runtime.Sleep(time.Duration(ms) * time.Millisecond)
			},
			Params: []binding.Param{{Name: "ms"}},
		},
		{
			Name:        "elapsed_ms",
			Description: "Milliseconds since the current execution started",
			Fn: func(ctx *runtime.Context) int {
				return int(ctx.Elapsed().Milliseconds())
			},
		},
	},
}
