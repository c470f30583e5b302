package canopy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/rsc"
	"github.com/aretw0/canopy/pkg/session"
)

// Client is the high-level entry point for the Canopy library.
// It owns one fetch runtime and the session manager built on top of it.
type Client struct {
	runtime  *rsc.Runtime
	sessions *session.Manager

	runtimeOpts []rsc.Option
	sessionOpts []session.Option
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	Name        string
}

// Option defines a functional option for configuring the Client.
type Option func(*Client)

// WithOrigin sets the server origin, e.g. "http://localhost:3000".
func WithOrigin(origin string) Option {
	return func(c *Client) {
		c.runtimeOpts = append(c.runtimeOpts, rsc.WithOrigin(origin))
	}
}

// WithBasePath sets the application base path and the RSC directory below it.
func WithBasePath(basePath, rscBase string) Option {
	return func(c *Client) {
		c.runtimeOpts = append(c.runtimeOpts, rsc.WithBasePath(basePath, rscBase))
	}
}

// WithHTTPClient sets the client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.runtimeOpts = append(c.runtimeOpts, rsc.WithHTTPClient(hc))
	}
}

// WithTransport replaces the network with fetch, e.g. memory.Transport.Fetch.
func WithTransport(fetch rsc.FetchFunc) Option {
	return func(c *Client) {
		c.runtimeOpts = append(c.runtimeOpts, rsc.WithTransport(fetch))
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Client) {
		c.hooks = hooks
	}
}

// WithStore persists session snapshots.
func WithStore(store ports.SnapshotStore) Option {
	return func(c *Client) {
		c.sessionOpts = append(c.sessionOpts, session.WithStore(store))
	}
}

// WithLocker serializes snapshot writes across processes.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(c *Client) {
		c.sessionOpts = append(c.sessionOpts, session.WithLocker(locker, ttl))
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithName labels the client in log records.
func WithName(name string) Option {
	return func(c *Client) {
		c.Name = name
	}
}

// WithRuntimeOptions passes low-level options straight to the fetch runtime.
func WithRuntimeOptions(opts ...rsc.Option) Option {
	return func(c *Client) {
		c.runtimeOpts = append(c.runtimeOpts, opts...)
	}
}

// New initializes a Client. Without WithOrigin requests go to relative URLs,
// which only a custom transport can serve.
func New(opts ...Option) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if c.Name != "" {
		c.logger = c.logger.With("client", c.Name)
	}

	runtimeOpts := []rsc.Option{
		rsc.WithLifecycleHooks(c.hooks),
		rsc.WithLogger(c.logger),
	}
	c.runtime = rsc.NewRuntime(append(runtimeOpts, c.runtimeOpts...)...)

	sessionOpts := append([]session.Option{session.WithLogger(c.logger)}, c.sessionOpts...)
	c.sessions = session.NewManager(c.runtime, sessionOpts...)
	return c
}

// Runtime returns the underlying fetch runtime.
func (c *Client) Runtime() *rsc.Runtime {
	return c.runtime
}

// Sessions returns the session manager.
func (c *Client) Sessions() *session.Manager {
	return c.sessions
}

// Open returns the session id, opening it at path when it is not live yet.
// An empty id creates a fresh session.
func (c *Client) Open(ctx context.Context, id, path string, params any) (*session.Root, error) {
	return c.sessions.Open(ctx, id, path, params)
}

// NewRoot creates an unmanaged session root. The caller closes it.
func (c *Client) NewRoot(ctx context.Context, path string, params any, opts ...session.RootOption) *session.Root {
	base := []session.RootOption{
		session.WithInitialPath(path),
		session.WithInitialParams(params),
		session.WithRootLogger(c.logger),
	}
	return session.NewRoot(ctx, c.runtime, append(base, opts...)...)
}

// Fetch resolves the element tree at path once, outside of any session.
func (c *Client) Fetch(ctx context.Context, path string, params any) (domain.Elements, error) {
	f := c.runtime.FetchElements(ctx, path, params, rsc.NewCache())
	defer c.runtime.Merger().Forget(f)
	return f.Wait(ctx)
}

// Call invokes a server function outside of any session and returns its value.
// Elements returned next to the value are discarded.
func (c *Client) Call(ctx context.Context, funcID string, args ...any) (any, error) {
	return c.runtime.CallRemote(ctx, funcID, args, rsc.NewCache())
}

// Close shuts down every live session and releases the runtime.
func (c *Client) Close(ctx context.Context) error {
	if err := c.sessions.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down sessions: %w", err)
	}
	c.runtime.Close()
	return nil
}
