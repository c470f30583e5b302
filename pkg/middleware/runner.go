package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/canopy/internal/logging"
)

// Cmd selects how a Runner obtains its configuration.
type Cmd string

const (
	// CmdStart loads entries first and reads the configuration from them.
	CmdStart Cmd = "start"
	// CmdDev uses Options.Config directly.
	CmdDev Cmd = "dev"
)

// Entries is a built application able to produce its configuration.
type Entries interface {
	LoadConfig(ctx context.Context) (*Config, error)
}

// FileEntries reads the configuration from a file on first use.
type FileEntries struct {
	Path string
}

// LoadConfig implements Entries.
func (e FileEntries) LoadConfig(ctx context.Context) (*Config, error) {
	return LoadConfig(e.Path)
}

// Options configures a Runner. Factories receive it with Config resolved.
type Options struct {
	Cmd         Cmd
	Config      *Config
	LoadEntries func(ctx context.Context) (Entries, error)
	Registry    *Registry
	Logger      *slog.Logger
}

var errNoEntries = errors.New("loadEntries is not available")

// Runner executes the configured chain for each request.
// The chain is resolved once, on first use, and shared by every request.
type Runner struct {
	opts Options

	once     sync.Once
	done     chan struct{}
	handlers []Handler
	err      error
}

// NewRunner creates a Runner. Resolution is deferred until the first request.
func NewRunner(opts Options) *Runner {
	if opts.Registry == nil {
		opts.Registry = NewDefaultRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Cmd == "" {
		opts.Cmd = CmdDev
	}
	return &Runner{opts: opts, done: make(chan struct{})}
}

// NewRunnerWithHandlers creates a Runner around an already built chain.
func NewRunnerWithHandlers(handlers ...Handler) *Runner {
	r := NewRunner(Options{})
	r.once.Do(func() {
		r.handlers = handlers
		close(r.done)
	})
	return r
}

// Handlers returns the resolved chain, waiting for a resolution in progress.
// A failed resolution is returned to every caller and never retried.
func (r *Runner) Handlers(ctx context.Context) ([]Handler, error) {
	r.once.Do(func() {
		go r.resolve(context.WithoutCancel(ctx))
	})
	select {
	case <-r.done:
		return r.handlers, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Runner) resolve(ctx context.Context) {
	defer close(r.done)

	cfg, err := r.config(ctx)
	if err != nil {
		r.err = err
		return
	}
	r.handlers, r.err = r.instantiate(ctx, cfg)
	if r.err == nil {
		r.opts.Logger.Debug("Middleware chain resolved", "count", len(r.handlers))
	}
}

func (r *Runner) config(ctx context.Context) (*Config, error) {
	if r.opts.Cmd != CmdStart {
		return ResolveConfig(r.opts.Config), nil
	}
	if r.opts.LoadEntries == nil {
		return nil, errNoEntries
	}
	entries, err := r.opts.LoadEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	cfg, err := entries.LoadConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return ResolveConfig(cfg), nil
}

// instantiate builds every handler concurrently, keeping declared order.
func (r *Runner) instantiate(ctx context.Context, cfg *Config) ([]Handler, error) {
	opts := r.opts
	opts.Config = cfg

	handlers := make([]Handler, len(cfg.Middleware))
	g, _ := errgroup.WithContext(ctx)
	for i, spec := range cfg.Middleware {
		i, spec := i, spec
		g.Go(func() error {
			factory, err := opts.Registry.Lookup(spec.Name)
			if err != nil {
				return err
			}
			h, err := factory(opts, spec)
			if err != nil {
				return fmt.Errorf("middleware %s: %w", spec.Name, err)
			}
			handlers[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return handlers, nil
}

// Run resolves the chain if needed and executes it against hc.
// Handler errors are returned unchanged.
func (r *Runner) Run(ctx context.Context, hc *HandlerContext) error {
	handlers, err := r.Handlers(ctx)
	if err != nil {
		return err
	}
	return Execute(ctx, handlers, hc)
}

// Execute runs handlers in order. Each handler's continuation runs the next
// handler on its first call only.
func Execute(ctx context.Context, handlers []Handler, hc *HandlerContext) error {
	var run func(ctx context.Context, index int) error
	run = func(ctx context.Context, index int) error {
		if index >= len(handlers) {
			return nil
		}
		var alreadyCalled atomic.Bool
		return handlers[index](ctx, hc, func(ctx context.Context) error {
			if !alreadyCalled.CompareAndSwap(false, true) {
				return nil
			}
			return run(ctx, index+1)
		})
	}
	return run(ctx, 0)
}
