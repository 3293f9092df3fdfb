package host

import (
	"log/slog"
	"time"

	"github.com/monalisastar/elr-protocol-mainnet/core/events"
	"github.com/monalisastar/elr-protocol-mainnet/core/state"
	"github.com/monalisastar/elr-protocol-mainnet/storage"
)

// Context is the execution environment handed to a call. It is only valid for
// the duration of the call that received it.
type Context struct {
	caller  [20]byte
	op      string
	overlay *storage.Overlay
	state   *state.Manager
	events  []events.Event
	commits []func()
	now     time.Time
	logger  *slog.Logger
	depth   int
}

// Caller returns the identity that initiated the current (possibly nested)
// call.
func (c *Context) Caller() [20]byte { return c.caller }

// Op names the top-level operation being executed.
func (c *Context) Op() string { return c.op }

// State exposes the call's view of persistent state.
func (c *Context) State() *state.Manager { return c.state }

// Now returns the timestamp fixed at the start of the top-level call.
func (c *Context) Now() time.Time { return c.now }

// Logger returns the host logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Depth reports the nesting level, zero for a top-level call.
func (c *Context) Depth() int { return c.depth }

// Emit buffers an event. Buffered events are dropped if the call, or any
// enclosing call, fails.
func (c *Context) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	c.events = append(c.events, evt)
}

// OnCommit queues fn to run once the top-level call has been committed. Like
// events, queued functions are dropped if the call, or any enclosing call,
// fails. They run in queue order while the host lock is held and must not call
// back into the host.
func (c *Context) OnCommit(fn func()) {
	if fn == nil {
		return
	}
	c.commits = append(c.commits, fn)
}

// Call runs fn as a nested call issued by self: inside fn, Caller() reports
// self. The nested call gets its own overlay and event buffer, which are merged
// into c only when fn succeeds. A failed nested call leaves no trace in c.
func (c *Context) Call(self [20]byte, fn func(*Context) error) error {
	if fn == nil {
		return ErrNilCall
	}
	if c.depth+1 > MaxCallDepth {
		return ErrCallDepth
	}
	overlay := storage.NewOverlay(c.overlay)
	child := &Context{
		caller:  self,
		op:      c.op,
		overlay: overlay,
		state:   state.NewManager(overlay),
		now:     c.now,
		logger:  c.logger,
		depth:   c.depth + 1,
	}
	if err := fn(child); err != nil {
		overlay.Discard()
		return err
	}
	if err := overlay.Commit(); err != nil {
		return err
	}
	c.events = append(c.events, child.events...)
	c.commits = append(c.commits, child.commits...)
	return nil
}

// Atomic runs fn in a nested frame that keeps the current caller. Mutations
// made by fn are discarded if it fails, even when the enclosing call carries
// on.
func (c *Context) Atomic(fn func(*Context) error) error {
	return c.Call(c.caller, fn)
}
