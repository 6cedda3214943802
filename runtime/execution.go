package runtime

import (
	"context"
	"fmt"
	goruntime "runtime"
	"time"
)

// ---------------------------------------------------------------------------
// Execution: drives one top-level future to completion
// ---------------------------------------------------------------------------

const (
	// TickInterval is how long Run sleeps between polls once a future keeps
	// asking for the next tick.
	TickInterval = time.Millisecond
	// spinTicks is how many consecutive next-tick polls Run answers by only
	// yielding the processor.
	spinTicks = 16
)

// PanicError wraps a panic raised while polling an execution.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic during execution: %v", e.Value)
}

// Execution owns a context and the future it polls. A host calls Poll
// whenever it is ready to give the script a time slice; Run does so in a
// loop until the future finishes.
type Execution struct {
	ctx    *Context
	future AnyFuture
	result Poll[any]
	polls  int
}

// NewExecution creates an execution of future under ctx.
func NewExecution(ctx *Context, future AnyFuture) *Execution {
	return &Execution{ctx: ctx, future: future}
}

// Context returns the execution's context.
func (e *Execution) Context() *Context {
	return e.ctx
}

// Polls returns how many times the future has been polled.
func (e *Execution) Polls() int {
	return e.polls
}

// Result returns the last poll result.
func (e *Execution) Result() Poll[any] {
	return e.result
}

// Poll gives the execution one time slice. The context is marked active for
// the duration of the poll and the mark is cleared on every exit path. A
// panic inside the future fails the execution. Once the execution reached
// Ready or Failed, Poll returns that result without polling again.
func (e *Execution) Poll() (result Poll[any]) {
	if e.result.Done() {
		return e.result
	}
	if e.ctx.IsCancelled() {
		e.result = PollFailed[any](ErrCancelled)
		return e.result
	}

	e.ctx.active.Store(true)
	defer func() {
		e.ctx.active.Store(false)
		if r := recover(); r != nil {
			e.result = PollFailed[any](&PanicError{Value: r})
			result = e.result
		}
	}()

	e.ctx.ResetTimeout()
	e.ctx.SetNextYield(YieldPoint{})
	e.polls++
	e.result = e.future.PollAny(e.ctx)
	return e.result
}

// NextYield returns what the execution waits on after a pending poll.
func (e *Execution) NextYield() YieldPoint {
	return e.ctx.NextYield()
}

// Run polls the execution until it finishes, sleeping between polls as the
// recorded yield points allow. A future that keeps asking for the next tick
// is polled every TickInterval after a short spin. Cancelling ctx cancels
// the execution.
func (e *Execution) Run(ctx context.Context) (any, error) {
	stop := context.AfterFunc(ctx, e.ctx.Cancel)
	defer stop()

	spins := 0
	for {
		p := e.Poll()
		switch p.State {
		case Ready:
			return p.Value, nil
		case Failed:
			return nil, p.Err
		}

		next := e.NextYield()
		if next.Kind == YieldWake && next.Wake != nil {
			spins = 0
			select {
			case <-next.Wake:
			case <-e.ctx.Done():
			}
			continue
		}

		delay := next.Delay(e.ctx.now())
		if delay <= 0 {
			if spins < spinTicks {
				spins++
				goruntime.Gosched()
				continue
			}
			delay = TickInterval
		} else {
			spins = 0
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-e.ctx.Done():
			timer.Stop()
		}
	}
}

// RunFuture executes future under a fresh context derived from ctx.
func RunFuture(ctx context.Context, future AnyFuture, opts ...ContextOption) (any, error) {
	return NewExecution(NewContext(ctx, opts...), future).Run(ctx)
}
