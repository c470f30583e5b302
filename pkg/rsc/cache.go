package rsc

import (
	"context"
	"sync"

	"github.com/aretw0/canopy/pkg/elements"
)

// Updater derives the next Elements handle from the current one.
type Updater func(prev *elements.Future) *elements.Future

// PushFunc pushes an update into a session's reactive state.
type PushFunc func(Updater)

// CreateData turns an in-flight response into an Elements handle.
type CreateData func(ctx context.Context, resp *Response) *elements.Future

// EnhanceCreateData wraps the response decoding step.
type EnhanceCreateData func(CreateData) CreateData

type cacheEntry struct {
	path     string
	params   any
	elements *elements.Future
}

// Cache is the per-session fetch state: the most recent fetch, the push
// callback into the session and optional transport and decode hooks.
// A Cache must not be shared between sessions.
type Cache struct {
	mu                sync.Mutex
	entry             *cacheEntry
	push              PushFunc
	enhanceFetch      EnhanceFetch
	enhanceCreateData EnhanceCreateData
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithEnhanceFetch wraps the transport used by this cache's requests.
func WithEnhanceFetch(fn EnhanceFetch) CacheOption {
	return func(c *Cache) {
		c.enhanceFetch = fn
	}
}

// WithEnhanceCreateData wraps the decoding step used by this cache's requests.
func WithEnhanceCreateData(fn EnhanceCreateData) CacheOption {
	return func(c *Cache) {
		c.enhanceCreateData = fn
	}
}

// NewCache creates an empty per-session cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetEnhanceFetch replaces the transport hook. nil restores the identity.
func (c *Cache) SetEnhanceFetch(fn EnhanceFetch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enhanceFetch = fn
}

// SetEnhanceCreateData replaces the decode hook. nil restores the identity.
func (c *Cache) SetEnhanceCreateData(fn EnhanceCreateData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enhanceCreateData = fn
}

// SetPush registers the callback used to push updates into the session.
// nil unregisters it.
func (c *Cache) SetPush(fn PushFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.push = fn
}

// Push hands u to the registered push callback. It reports false when none is registered.
func (c *Cache) Push(u Updater) bool {
	c.mu.Lock()
	push := c.push
	c.mu.Unlock()

	if push == nil {
		return false
	}
	push(u)
	return true
}

// ClearEntry invalidates the single-entry memo so the next fetch goes to the network.
func (c *Cache) ClearEntry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = nil
}

// Seed installs a memo entry, e.g. when restoring a persisted session.
func (c *Cache) Seed(path string, params any, f *elements.Future) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = &cacheEntry{path: path, params: params, elements: f}
}

// Entry returns the memoized fetch, if any.
func (c *Cache) Entry() (path string, params any, f *elements.Future, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return "", nil, nil, false
	}
	return c.entry.path, c.entry.params, c.entry.elements, true
}

func (c *Cache) hooks() (EnhanceFetch, EnhanceCreateData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enhanceFetch, c.enhanceCreateData
}

// lookupLocked returns the memoized handle for (path, params). c.mu must be held.
func (c *Cache) lookupLocked(path string, params any) (*elements.Future, bool) {
	if c.entry != nil && c.entry.path == path && sameParams(c.entry.params, params) {
		return c.entry.elements, true
	}
	return nil, false
}
