// Package runtime provides the services compiled TO2 code relies on while it
// runs: deferred results (futures), the per-execution context with its
// cooperative timeout and cancellation, background contexts, and the
// execution driver that polls a script to completion.
package runtime

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Poll results
// ---------------------------------------------------------------------------

// State is the state of a future after a poll.
type State int

const (
	Pending State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Unit is the value of expressions that produce nothing.
type Unit struct{}

// Poll is the outcome of polling a future once.
type Poll[T any] struct {
	State State
	Value T
	Err   error
}

// PollPending returns a pending poll result.
func PollPending[T any]() Poll[T] {
	return Poll[T]{State: Pending}
}

// PollReady returns a ready poll result.
func PollReady[T any](value T) Poll[T] {
	return Poll[T]{State: Ready, Value: value}
}

// PollFailed returns a failed poll result.
func PollFailed[T any](err error) Poll[T] {
	return Poll[T]{State: Failed, Err: err}
}

// Done reports whether the poll reached a terminal state.
func (p Poll[T]) Done() bool {
	return p.State != Pending
}

// Any erases the value type.
func (p Poll[T]) Any() Poll[any] {
	return Poll[any]{State: p.State, Value: p.Value, Err: p.Err}
}

// ---------------------------------------------------------------------------
// Futures
// ---------------------------------------------------------------------------

// AnyFuture is the untyped view of a future. The VM and the execution driver
// only ever see futures through this interface.
type AnyFuture interface {
	PollAny(ctx *Context) Poll[any]
}

// Future is a deferred result. Poll never blocks: a future that cannot make
// progress returns Pending and may record what it waits on with
// ctx.SetNextYield. Once a future has returned Ready or Failed, every later
// poll returns the same result.
type Future[T any] interface {
	AnyFuture
	Poll(ctx *Context) Poll[T]
}

type readyFuture[T any] struct {
	value T
}

// ReadyFuture returns a future that is already resolved to value.
func ReadyFuture[T any](value T) Future[T] {
	return readyFuture[T]{value: value}
}

func (f readyFuture[T]) Poll(*Context) Poll[T]      { return PollReady(f.value) }
func (f readyFuture[T]) PollAny(*Context) Poll[any] { return PollReady[any](f.value) }

type failedFuture[T any] struct {
	err error
}

// FailedFuture returns a future that has already failed with err.
func FailedFuture[T any](err error) Future[T] {
	return failedFuture[T]{err: err}
}

func (f failedFuture[T]) Poll(*Context) Poll[T]      { return PollFailed[T](f.err) }
func (f failedFuture[T]) PollAny(*Context) Poll[any] { return PollFailed[any](f.err) }

// FuncFuture adapts a poll function into a future. The first terminal
// result is remembered, so fn is never called again after it.
type FuncFuture[T any] struct {
	fn   func(ctx *Context) Poll[T]
	done bool
	last Poll[T]
}

// FromFunc creates a future from a poll function.
func FromFunc[T any](fn func(ctx *Context) Poll[T]) *FuncFuture[T] {
	return &FuncFuture[T]{fn: fn}
}

// Poll advances the future.
func (f *FuncFuture[T]) Poll(ctx *Context) Poll[T] {
	if f.done {
		return f.last
	}
	p := f.fn(ctx)
	if p.Done() {
		f.done = true
		f.last = p
	}
	return p
}

// PollAny advances the future.
func (f *FuncFuture[T]) PollAny(ctx *Context) Poll[any] {
	return f.Poll(ctx).Any()
}

// Yield returns a future that is pending exactly once, handing control back
// to the scheduler until the next tick.
func Yield() Future[Unit] {
	polled := false
	return FromFunc(func(ctx *Context) Poll[Unit] {
		if polled {
			return PollReady(Unit{})
		}
		polled = true
		ctx.SetNextYield(NextTick())
		return PollPending[Unit]()
	})
}

// Sleep returns a future that becomes ready once d has elapsed after its
// first poll.
func Sleep(d time.Duration) Future[Unit] {
	var deadline time.Time
	return FromFunc(func(ctx *Context) Poll[Unit] {
		if deadline.IsZero() {
			deadline = ctx.now().Add(d)
		}
		if !ctx.now().Before(deadline) {
			return PollReady(Unit{})
		}
		ctx.SetNextYield(Until(deadline))
		return PollPending[Unit]()
	})
}

// Map transforms the value of a future once it is ready.
func Map[T, U any](f Future[T], fn func(T) U) Future[U] {
	return FromFunc(func(ctx *Context) Poll[U] {
		p := f.Poll(ctx)
		switch p.State {
		case Ready:
			return PollReady(fn(p.Value))
		case Failed:
			return PollFailed[U](p.Err)
		}
		return PollPending[U]()
	})
}

// ---------------------------------------------------------------------------
// Yield points
// ---------------------------------------------------------------------------

// YieldKind tells the scheduler when a suspended execution wants to resume.
type YieldKind int

const (
	// YieldNone means no explicit request; resume on the next tick.
	YieldNone YieldKind = iota
	// YieldNextTick resumes on the next scheduling tick.
	YieldNextTick
	// YieldUntil resumes once the wall clock reaches Until.
	YieldUntil
	// YieldWake resumes once Wake is closed.
	YieldWake
)

// YieldPoint records what a pending execution is waiting on.
type YieldPoint struct {
	Kind  YieldKind
	Until time.Time
	Wake  <-chan struct{}
}

// NextTick requests a resume on the next scheduling tick.
func NextTick() YieldPoint {
	return YieldPoint{Kind: YieldNextTick}
}

// Until requests a resume once t has passed.
func Until(t time.Time) YieldPoint {
	return YieldPoint{Kind: YieldUntil, Until: t}
}

// WaitOn requests a resume once ch is closed. Hosts that cannot block on ch
// treat it as the next tick.
func WaitOn(ch <-chan struct{}) YieldPoint {
	return YieldPoint{Kind: YieldWake, Wake: ch}
}

// Delay returns how long the scheduler may wait before resuming.
func (y YieldPoint) Delay(now time.Time) time.Duration {
	if y.Kind != YieldUntil {
		return 0
	}
	if d := y.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}
