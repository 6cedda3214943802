package stdlib

import (
	"github.com/chazu/to2/binding"
	"github.com/chazu/to2/runtime"
)

type task = runtime.Task[binding.T]

// Background runs sync functions on their own goroutine. The task gets a
// background child context, so its failure or cancellation stays local.
var Background = &binding.Module{
	Name:        "core::background",
	Description: "Background tasks",
	Types: []binding.Type{
		{
			Name:        "Task",
			Description: "A function running in the background",
			Zero:        (*task)(nil),
			TypeParams:  []string{"T"},
			Fields: []binding.Field{
				{Name: "is_completed", Description: "Whether the task has finished", Get: (*task).IsCompleted},
				{Name: "is_success", Description: "Whether the task finished with a value", Get: (*task).IsSuccess},
				{Name: "is_canceled", Description: "Whether the task was cancelled", Get: (*task).IsCanceled},
				{Name: "result", Description: "The value of a successful task", Get: taskResult},
			},
			Methods: []binding.Method{
				{Name: "cancel", Description: "Request cancellation", Fn: (*task).Cancel},
				{Name: "wait", Description: "Wait for the task to finish", Fn: (*task).Wait},
			},
		},
	},
	Funcs: []binding.Func{
		{
			Name:        "run",
			Description: "Start fn in the background",
			TypeParams:  []string{"T"},
			Fn:          run,
			Params:      []binding.Param{{Name: "fn"}},
		},
	},
}

func run(ctx *runtime.Context, fn func(*runtime.Context) (binding.T, error)) *task {
	t := runtime.Spawn(ctx, fn)
	log.Debugf("started background task %s", t.Context().ID())
	return t
}

func taskResult(t *task) binding.Option[binding.T] {
	if v, ok := t.Result(); ok {
		return binding.Some(v)
	}
	return binding.None[binding.T]()
}
