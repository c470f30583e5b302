package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/elements"
	"github.com/aretw0/canopy/pkg/rsc"
)

type rootConfig struct {
	id                string
	path              string
	params            any
	cache             *rsc.Cache
	enhanceFetch      rsc.EnhanceFetch
	enhanceCreateData rsc.EnhanceCreateData
	logger            *slog.Logger
}

// RootOption configures a Root.
type RootOption func(*rootConfig)

// WithSessionID names the root; the Manager sets it.
func WithSessionID(id string) RootOption {
	return func(c *rootConfig) {
		c.id = id
	}
}

// WithInitialPath sets the path of the initial fetch (default: "").
func WithInitialPath(path string) RootOption {
	return func(c *rootConfig) {
		c.path = path
	}
}

// WithInitialParams sets the params of the initial fetch.
func WithInitialParams(params any) RootOption {
	return func(c *rootConfig) {
		c.params = params
	}
}

// WithCache uses an existing fetch cache instead of a fresh one.
func WithCache(cache *rsc.Cache) RootOption {
	return func(c *rootConfig) {
		c.cache = cache
	}
}

// WithEnhanceFetch installs a transport hook on the root's cache.
func WithEnhanceFetch(fn rsc.EnhanceFetch) RootOption {
	return func(c *rootConfig) {
		c.enhanceFetch = fn
	}
}

// WithEnhanceCreateData installs a decode hook on the root's cache.
func WithEnhanceCreateData(fn rsc.EnhanceCreateData) RootOption {
	return func(c *rootConfig) {
		c.enhanceCreateData = fn
	}
}

// WithRootLogger sets a custom structured logger.
func WithRootLogger(logger *slog.Logger) RootOption {
	return func(c *rootConfig) {
		c.logger = logger
	}
}

// Root owns the reactive state of one session.
type Root struct {
	id     string
	rt     *rsc.Runtime
	cache  *rsc.Cache
	cell   *Cell
	logger *slog.Logger

	mu     sync.Mutex
	path   string
	closed bool
}

// NewRoot seeds a session with the initial fetch and wires the cache's push
// callback to its cell. The hooks given as options replace any on the cache.
func NewRoot(ctx context.Context, rt *rsc.Runtime, opts ...RootOption) *Root {
	cfg := rootConfig{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.cache == nil {
		cfg.cache = rsc.NewCache()
	}
	cfg.cache.SetEnhanceFetch(cfg.enhanceFetch)
	cfg.cache.SetEnhanceCreateData(cfg.enhanceCreateData)

	r := &Root{
		id:     cfg.id,
		rt:     rt,
		cache:  cfg.cache,
		logger: cfg.logger,
		path:   cfg.path,
	}
	r.cell = NewCell(rt.FetchElements(ctx, cfg.path, cfg.params, cfg.cache))
	r.cache.SetPush(r.update)
	return r
}

// update applies u to the cell. Merge memos keyed by the replaced handle are
// dropped since no updater can see it again. Updates after Close are ignored.
func (r *Root) update(u rsc.Updater) {
	if r.isClosed() {
		return
	}
	prev, next := r.cell.Update(u)
	if prev != next {
		r.rt.Merger().Forget(prev)
	}
}

// ID returns the session ID, empty for roots created outside a Manager.
func (r *Root) ID() string {
	return r.id
}

// Path returns the path of the most recent fetch or refetch.
func (r *Root) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// Cache returns the root's fetch cache.
func (r *Root) Cache() *rsc.Cache {
	return r.cache
}

// Elements returns the current Elements handle.
func (r *Root) Elements() *elements.Future {
	return r.cell.Get()
}

// Subscribe registers fn to be called with every new Elements handle.
func (r *Root) Subscribe(fn func(*elements.Future)) (unsubscribe func()) {
	return r.cell.Subscribe(fn)
}

// Refetch drops the cache memo, fetches (path, params) again and merges the result
// over the current tree, so slots the new result does not mention survive.
// It returns the merged handle now held by the session, or a handle rejected
// with domain.ErrSessionClosed once the root is closed.
func (r *Root) Refetch(ctx context.Context, path string, params any) *elements.Future {
	if r.isClosed() {
		return elements.Rejected(domain.ErrSessionClosed)
	}
	r.cache.ClearEntry()
	data := r.rt.FetchElements(ctx, path, params, r.cache)

	var merged *elements.Future
	r.update(func(prev *elements.Future) *elements.Future {
		r.mu.Lock()
		r.path = path
		r.mu.Unlock()
		merged = r.rt.Merger().Merge(prev, data)
		return merged
	})
	if merged == nil {
		return elements.Rejected(domain.ErrSessionClosed)
	}
	r.logger.Debug("Refetch scheduled", "session_id", r.id, "path", path)
	return merged
}

// Prefetch issues the request for (path, params) ahead of need.
func (r *Root) Prefetch(ctx context.Context, path string, params any) error {
	return r.rt.PrefetchElements(ctx, path, params, r.cache)
}

// CallRemote invokes a server function within this session.
func (r *Root) CallRemote(ctx context.Context, funcID string, args ...any) (any, error) {
	return r.rt.CallRemote(ctx, funcID, args, r.cache)
}

// Slot resolves id out of the current tree. See ResolveSlot.
func (r *Root) Slot(ctx context.Context, id string, children any) (*SlotView, error) {
	return ResolveSlot(ctx, r.Elements(), id, children)
}

func (r *Root) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close detaches the root from its cache. Pushes after Close are dropped.
func (r *Root) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cache.SetPush(nil)
	r.rt.Merger().Forget(r.cell.Get())
}
