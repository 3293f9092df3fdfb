package host

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/monalisastar/elr-protocol-mainnet/core/events"
	"github.com/monalisastar/elr-protocol-mainnet/core/state"
	"github.com/monalisastar/elr-protocol-mainnet/crypto"
	"github.com/monalisastar/elr-protocol-mainnet/storage"
)

// MaxCallDepth bounds the nesting of Context.Call.
const MaxCallDepth = 64

var (
	ErrCallDepth = errors.New("host: call depth exceeded")
	ErrNilCall   = errors.New("host: nil call")
)

// Observer is notified after every top-level call settles. err is nil for
// committed calls.
type Observer interface {
	ObserveCall(op string, err error)
}

// Host serialises calls against a database. Each call runs inside a write
// overlay that is committed only when the call returns nil; events emitted by
// the call are buffered and forwarded to the emitter after the commit.
type Host struct {
	mu       sync.Mutex
	db       storage.Database
	emitter  events.Emitter
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

// Option customises the host instance.
type Option func(*Host)

// WithEmitter sets the sink receiving committed events.
func WithEmitter(e events.Emitter) Option {
	return func(h *Host) { h.emitter = e }
}

// WithClock sets the function used to derive call timestamps.
func WithClock(clock func() time.Time) Option {
	return func(h *Host) { h.now = clock }
}

// WithLogger sets the logger used for call outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) { h.logger = logger }
}

// WithObserver registers a call observer, typically the metrics registry.
func WithObserver(o Observer) Option {
	return func(h *Host) { h.observer = o }
}

// New constructs a host over db.
func New(db storage.Database, opts ...Option) *Host {
	h := &Host{
		db:      db,
		emitter: events.NoopEmitter{},
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.emitter == nil {
		h.emitter = events.NoopEmitter{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Execute runs fn as caller. Either every state mutation, event and commit
// callback produced by fn takes effect, or none does.
func (h *Host) Execute(caller [20]byte, op string, fn func(*Context) error) error {
	if fn == nil {
		return ErrNilCall
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := h.newContext(caller, op)
	err := fn(ctx)
	writes := ctx.overlay.Dirty()
	if err == nil {
		err = ctx.overlay.Commit()
		if err != nil {
			err = fmt.Errorf("host: commit %s: %w", op, err)
		}
	}
	if err != nil {
		ctx.overlay.Discard()
		h.logger.Warn("call reverted",
			slog.String("op", op),
			slog.String("caller", crypto.FormatAddress(caller)),
			slog.Any("error", err))
		h.observe(op, err)
		return err
	}
	for _, fn := range ctx.commits {
		fn()
	}
	for _, evt := range ctx.events {
		h.emitter.Emit(evt)
	}
	h.logger.Debug("call committed",
		slog.String("op", op),
		slog.String("caller", crypto.FormatAddress(caller)),
		slog.Int("writes", writes),
		slog.Int("events", len(ctx.events)))
	h.observe(op, nil)
	return nil
}

// View runs fn against the current state and discards every mutation, event
// and commit callback it produces.
func (h *Host) View(fn func(*Context) error) error {
	if fn == nil {
		return ErrNilCall
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := h.newContext([20]byte{}, "view")
	defer ctx.overlay.Discard()
	return fn(ctx)
}

func (h *Host) newContext(caller [20]byte, op string) *Context {
	overlay := storage.NewOverlay(h.db)
	return &Context{
		caller:  caller,
		op:      op,
		overlay: overlay,
		state:   state.NewManager(overlay),
		now:     h.now(),
		logger:  h.logger,
	}
}

func (h *Host) observe(op string, err error) {
	if h.observer != nil {
		h.observer.ObserveCall(op, err)
	}
}
