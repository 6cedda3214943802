package runtime

import (
	"sync"
)

// ---------------------------------------------------------------------------
// Background tasks
// ---------------------------------------------------------------------------

// Task is a computation running on its own goroutine with a background
// child context. Failure or cancellation of the task never reaches the
// context that spawned it.
type Task[T any] struct {
	ctx  *Context
	done chan struct{}

	mu     sync.Mutex
	result Poll[T]
}

// Spawn starts fn on a new goroutine with a background child of parent.
func Spawn[T any](parent *Context, fn func(ctx *Context) (T, error)) *Task[T] {
	t := &Task[T]{
		ctx:  parent.Background(),
		done: make(chan struct{}),
	}
	go t.run(fn)
	return t
}

func (t *Task[T]) run(fn func(ctx *Context) (T, error)) {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			t.finish(PollFailed[T](&PanicError{Value: r}))
		}
	}()

	value, err := fn(t.ctx)
	if err == nil && t.ctx.IsCancelled() {
		err = ErrCancelled
	}
	if err != nil {
		t.finish(PollFailed[T](err))
		return
	}
	t.finish(PollReady(value))
}

func (t *Task[T]) finish(p Poll[T]) {
	t.mu.Lock()
	t.result = p
	t.mu.Unlock()
}

// Context returns the task's background context.
func (t *Task[T]) Context() *Context {
	return t.ctx
}

// Cancel requests cancellation. The task observes it at its next timeout
// check.
func (t *Task[T]) Cancel() {
	t.ctx.Cancel()
}

// IsCompleted reports whether the task has finished in any way.
func (t *Task[T]) IsCompleted() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// State returns the task's current state.
func (t *Task[T]) State() Poll[T] {
	if !t.IsCompleted() {
		return PollPending[T]()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// IsSuccess reports whether the task completed with a value.
func (t *Task[T]) IsSuccess() bool {
	return t.State().State == Ready
}

// IsCanceled reports whether the task was cancelled.
func (t *Task[T]) IsCanceled() bool {
	return t.ctx.IsCancelled()
}

// Result returns the task's value once it completed successfully.
func (t *Task[T]) Result() (T, bool) {
	p := t.State()
	return p.Value, p.State == Ready
}

// Wait returns a future that resolves with the task's outcome. The future
// never blocks; it stays pending, waking on the task's Done channel, until
// the goroutine finishes.
func (t *Task[T]) Wait() Future[T] {
	return FromFunc(func(ctx *Context) Poll[T] {
		p := t.State()
		if p.State == Pending {
			ctx.SetNextYield(WaitOn(t.done))
		}
		return p
	})
}

// Done returns a channel closed when the task finishes.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}
