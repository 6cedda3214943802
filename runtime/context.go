package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Context: per-execution services for generated and native code
// ---------------------------------------------------------------------------

var (
	// ErrTimeout is returned when a context's time slice is exhausted.
	ErrTimeout = errors.New("execution timed out")
	// ErrCancelled is returned when a context has been cancelled.
	ErrCancelled = errors.New("execution cancelled")
)

// Logger is the logging surface scripts reach through their context.
// A commonlog.Logger satisfies it.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warningf(format string, args ...any)
	Errorf(format string, args ...any)
}

type discardLogger struct{}

func (discardLogger) Debugf(string, ...any)   {}
func (discardLogger) Infof(string, ...any)    {}
func (discardLogger) Warningf(string, ...any) {}
func (discardLogger) Errorf(string, ...any)   {}

// Context carries everything one execution needs at runtime: logger,
// cooperative timeout, cancellation and the next yield point.
//
// A Context is handed explicitly to every native function and future; there
// is no global "current context". A Context is used by one execution at a
// time; only Cancel and IsCancelled may be called from other goroutines.
type Context struct {
	id      uuid.UUID
	logger  Logger
	timeout time.Duration
	clock   func() time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	parent    *Context
	cancelled atomic.Bool

	created    time.Time
	sliceStart time.Time
	nextYield  YieldPoint
	active     atomic.Bool

	mu       sync.Mutex
	children []*Context
}

// ContextOption configures a new Context.
type ContextOption func(*Context)

// WithLogger sets the context's logger.
func WithLogger(l Logger) ContextOption {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout sets the time slice a single poll may use. Zero disables the
// check.
func WithTimeout(d time.Duration) ContextOption {
	return func(c *Context) { c.timeout = d }
}

// WithClock replaces the wall clock, for tests.
func WithClock(clock func() time.Time) ContextOption {
	return func(c *Context) { c.clock = clock }
}

// NewContext creates a root execution context bound to parent for
// cancellation.
func NewContext(parent context.Context, opts ...ContextOption) *Context {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	c := &Context{
		id:     uuid.New(),
		logger: discardLogger{},
		clock:  time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.created = c.now()
	c.sliceStart = c.created
	return c
}

func (c *Context) now() time.Time {
	return c.clock()
}

// ID identifies the execution in logs.
func (c *Context) ID() uuid.UUID {
	return c.id
}

// Logger returns the execution's logger.
func (c *Context) Logger() Logger {
	return c.logger
}

// Parent returns the context this one was cloned from, or nil.
func (c *Context) Parent() *Context {
	return c.parent
}

// Elapsed returns the wall-clock time since the context was created.
func (c *Context) Elapsed() time.Duration {
	return c.now().Sub(c.created)
}

// ---------------------------------------------------------------------------
// Cooperative timeout
// ---------------------------------------------------------------------------

// ResetTimeout starts a new time slice.
func (c *Context) ResetTimeout() {
	c.sliceStart = c.now()
}

// CheckTimeout fails when the current time slice is exhausted or the
// context was cancelled. Generated code calls it at every function entry
// and loop condition.
func (c *Context) CheckTimeout() error {
	if c.IsCancelled() {
		return ErrCancelled
	}
	if c.timeout > 0 {
		if elapsed := c.now().Sub(c.sliceStart); elapsed > c.timeout {
			return fmt.Errorf("%w after %s", ErrTimeout, elapsed.Round(time.Millisecond))
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Cancellation
// ---------------------------------------------------------------------------

// Cancel cancels the context and every background child cloned from it.
func (c *Context) Cancel() {
	c.cancel()
	c.cancelled.Store(true)
}

// IsCancelled reports whether the context or one of its ancestors has been
// cancelled.
func (c *Context) IsCancelled() bool {
	if c.cancelled.Load() {
		return true
	}
	select {
	case <-c.ctx.Done():
		c.cancelled.Store(true)
		return true
	default:
		return false
	}
}

// Done returns a channel closed on cancellation.
func (c *Context) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Background clones the context into a child for a detached computation.
// The child has its own identity and cancellation: cancelling or failing
// the child never affects the parent, while cancelling the parent cancels
// the child.
func (c *Context) Background() *Context {
	ctx, cancel := context.WithCancel(c.ctx)
	child := &Context{
		id:      uuid.New(),
		logger:  c.logger,
		timeout: c.timeout,
		clock:   c.clock,
		ctx:     ctx,
		cancel:  cancel,
		parent:  c,
	}
	child.created = child.now()
	child.sliceStart = child.created
	c.mu.Lock()
	c.children = append(c.children, child)
	c.mu.Unlock()
	return child
}

// Children returns the background contexts cloned from c.
func (c *Context) Children() []*Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Context(nil), c.children...)
}

// ---------------------------------------------------------------------------
// Yield side channel
// ---------------------------------------------------------------------------

// SetNextYield records what the execution waits on before returning
// Pending.
func (c *Context) SetNextYield(y YieldPoint) {
	c.nextYield = y
}

// NextYield returns the yield point recorded during the last poll.
func (c *Context) NextYield() YieldPoint {
	return c.nextYield
}

// Active reports whether an execution is currently polling with this
// context.
func (c *Context) Active() bool {
	return c.active.Load()
}
