package rsc

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/codec"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/elements"
	"github.com/aretw0/canopy/pkg/ports"
)

// Runtime holds the state shared by every session of one runtime instance.
type Runtime struct {
	origin      string
	basePath    string
	fetch       FetchFunc
	decoder     ports.Decoder
	encoder     ports.ArgsEncoder
	pathEncoder PathEncoder
	prefetch    *PrefetchStore
	merger      *elements.Merger
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithOrigin sets the scheme and host requests are sent to, e.g. "http://localhost:8080".
func WithOrigin(origin string) Option {
	return func(rt *Runtime) {
		rt.origin = strings.TrimSuffix(origin, "/")
	}
}

// WithBasePath sets the base path and RSC segment; the effective base is "{basePath}{rscBase}/".
func WithBasePath(basePath, rscBase string) Option {
	return func(rt *Runtime) {
		rt.basePath = BasePath(basePath, rscBase)
	}
}

// WithHTTPClient sends requests through client.
func WithHTTPClient(client *http.Client) Option {
	return func(rt *Runtime) {
		rt.fetch = client.Do
	}
}

// WithTransport replaces the transport entirely.
func WithTransport(fetch FetchFunc) Option {
	return func(rt *Runtime) {
		rt.fetch = fetch
	}
}

// WithDecoder replaces the response decoder (default: codec.JSONDecoder).
func WithDecoder(d ports.Decoder) Option {
	return func(rt *Runtime) {
		rt.decoder = d
	}
}

// WithArgsEncoder replaces the remote-call argument encoder (default: codec.MultipartEncoder).
func WithArgsEncoder(e ports.ArgsEncoder) Option {
	return func(rt *Runtime) {
		rt.encoder = e
	}
}

// WithPathEncoder replaces EncodeRSCPath.
func WithPathEncoder(fn PathEncoder) Option {
	return func(rt *Runtime) {
		rt.pathEncoder = fn
	}
}

// WithPrefetchStore shares an existing prefetch store.
func WithPrefetchStore(s *PrefetchStore) Option {
	return func(rt *Runtime) {
		rt.prefetch = s
	}
}

// WithMerger shares an existing merge engine.
func WithMerger(m *elements.Merger) Option {
	return func(rt *Runtime) {
		rt.merger = m
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(rt *Runtime) {
		rt.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = logger
	}
}

// NewRuntime creates a Runtime. Without options it talks to http.DefaultClient
// with relative URLs under "/RSC/".
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{
		basePath:    BasePath(domain.DefaultBasePath, domain.DefaultRSCBase),
		fetch:       http.DefaultClient.Do,
		decoder:     codec.JSONDecoder{},
		encoder:     codec.MultipartEncoder{},
		pathEncoder: EncodeRSCPath,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.prefetch == nil {
		rt.prefetch = NewPrefetchStore()
	}
	if rt.merger == nil {
		rt.merger = elements.NewMerger()
	}
	return rt
}

// Prefetch returns the runtime's prefetch store.
func (rt *Runtime) Prefetch() *PrefetchStore {
	return rt.prefetch
}

// Merger returns the runtime's merge engine.
func (rt *Runtime) Merger() *elements.Merger {
	return rt.merger
}

// BaseURL returns the origin joined with the base path.
func (rt *Runtime) BaseURL() string {
	return rt.origin + rt.basePath
}

// ElementsURL returns the fully-qualified URL for an element path.
func (rt *Runtime) ElementsURL(path string) (string, error) {
	encoded, err := rt.pathEncoder(path)
	if err != nil {
		return "", err
	}
	return rt.BaseURL() + encoded, nil
}

// FuncURL returns the fully-qualified URL for a remote function.
func (rt *Runtime) FuncURL(funcID string) (string, error) {
	id, err := EncodeFuncID(funcID)
	if err != nil {
		return "", err
	}
	return rt.ElementsURL(id)
}

// Close tears the runtime down: pending prefetches are released and merge memos dropped.
func (rt *Runtime) Close() {
	rt.prefetch.Clear()
	rt.merger.Reset()
}
