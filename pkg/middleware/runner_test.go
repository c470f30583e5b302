package middleware_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/canopy/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(t *testing.T, path string) *middleware.HandlerContext {
	t.Helper()
	u, err := url.Parse("http://localhost" + path)
	require.NoError(t, err)
	return middleware.NewHandlerContext("GET", u, nil, nil)
}

func record(trace *[]string, name string, advance bool) middleware.Handler {
	return func(ctx context.Context, hc *middleware.HandlerContext, next middleware.Next) error {
		*trace = append(*trace, name)
		if !advance {
			return nil
		}
		return next(ctx)
	}
}

func TestExecute_ShortCircuit(t *testing.T) {
	var trace []string
	h2 := func(ctx context.Context, hc *middleware.HandlerContext, next middleware.Next) error {
		trace = append(trace, "h2")
		hc.Res.Status = 204
		return nil
	}
	hc := newContext(t, "/")

	err := middleware.Execute(context.Background(), []middleware.Handler{
		record(&trace, "h1", true),
		h2,
		record(&trace, "h3", true),
	}, hc)

	require.NoError(t, err)
	assert.Equal(t, []string{"h1", "h2"}, trace)
	assert.Equal(t, 204, hc.Res.Status)
	assert.True(t, hc.Res.Written())
}

func TestExecute_AdvanceTwiceRunsDownstreamOnce(t *testing.T) {
	var downstream int
	twice := func(ctx context.Context, hc *middleware.HandlerContext, next middleware.Next) error {
		require.NoError(t, next(ctx))
		return next(ctx)
	}
	count := func(ctx context.Context, hc *middleware.HandlerContext, next middleware.Next) error {
		downstream++
		return next(ctx)
	}

	err := middleware.Execute(context.Background(), []middleware.Handler{twice, count, count}, newContext(t, "/"))
	require.NoError(t, err)
	assert.Equal(t, 2, downstream)
}

func TestExecute_ErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	var trace []string
	fail := func(ctx context.Context, hc *middleware.HandlerContext, next middleware.Next) error {
		return boom
	}

	err := middleware.Execute(context.Background(), []middleware.Handler{
		record(&trace, "h1", true),
		fail,
		record(&trace, "h3", true),
	}, newContext(t, "/"))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"h1"}, trace)
}

func TestExecute_ExhaustedChainLeavesResponseUnset(t *testing.T) {
	var trace []string
	hc := newContext(t, "/")
	err := middleware.Execute(context.Background(), []middleware.Handler{
		record(&trace, "h1", true),
		record(&trace, "h2", true),
	}, hc)

	require.NoError(t, err)
	assert.False(t, hc.Res.Written())
	assert.Equal(t, []string{"h1", "h2"}, trace)
}

func TestNewHandlerContext_EmptyBody(t *testing.T) {
	hc := newContext(t, "/")
	require.NotNil(t, hc.Req.Body)
	n, err := hc.Req.Body.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.Error(t, err)
	assert.NotNil(t, hc.Req.Headers)
	assert.NotNil(t, hc.Context)
}

func TestRunner_ResolvesOnceAcrossConcurrentRequests(t *testing.T) {
	var loads atomic.Int32
	reg := middleware.NewRegistry()
	reg.Register("mark", func(opts middleware.Options, spec middleware.Spec) (middleware.Handler, error) {
		return func(ctx context.Context, hc *middleware.HandlerContext, next middleware.Next) error {
			hc.Res.Status = 200
			return nil
		}, nil
	})

	runner := middleware.NewRunner(middleware.Options{
		Cmd:      middleware.CmdStart,
		Registry: reg,
		LoadEntries: func(ctx context.Context) (middleware.Entries, error) {
			loads.Add(1)
			time.Sleep(10 * time.Millisecond)
			return entriesFunc(func(ctx context.Context) (*middleware.Config, error) {
				return &middleware.Config{Middleware: []middleware.Spec{{Name: "mark"}}}, nil
			}), nil
		},
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hc := newContext(t, "/")
			assert.NoError(t, runner.Run(context.Background(), hc))
			assert.Equal(t, 200, hc.Res.Status)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, loads.Load())
}

type entriesFunc func(ctx context.Context) (*middleware.Config, error)

func (f entriesFunc) LoadConfig(ctx context.Context) (*middleware.Config, error) { return f(ctx) }

func TestRunner_KeepsDeclaredOrder(t *testing.T) {
	var mu sync.Mutex
	var trace []string
	reg := middleware.NewRegistry()
	for _, name := range []string{"a", "b", "c"} {
		reg.Register(name, func(opts middleware.Options, spec middleware.Spec) (middleware.Handler, error) {
			return func(ctx context.Context, hc *middleware.HandlerContext, next middleware.Next) error {
				mu.Lock()
				trace = append(trace, spec.Name)
				mu.Unlock()
				return next(ctx)
			}, nil
		})
	}

	runner := middleware.NewRunner(middleware.Options{
		Config: &middleware.Config{Middleware: []middleware.Spec{
			{Name: "c"}, {Name: "a"}, {Name: "b"},
		}},
		Registry: reg,
	})
	require.NoError(t, runner.Run(context.Background(), newContext(t, "/")))
	assert.Equal(t, []string{"c", "a", "b"}, trace)
}

func TestRunner_ResolutionFailureIsShared(t *testing.T) {
	runner := middleware.NewRunner(middleware.Options{
		Config:   &middleware.Config{Middleware: []middleware.Spec{{Name: "missing"}}},
		Registry: middleware.NewRegistry(),
	})

	err := runner.Run(context.Background(), newContext(t, "/"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "middleware not found: missing"))

	_, err2 := runner.Handlers(context.Background())
	assert.Equal(t, err, err2)
}

func TestRunner_StartWithoutEntries(t *testing.T) {
	runner := middleware.NewRunner(middleware.Options{Cmd: middleware.CmdStart})
	_, err := runner.Handlers(context.Background())
	assert.Error(t, err)
}

func TestRunner_WithHandlers(t *testing.T) {
	var trace []string
	runner := middleware.NewRunnerWithHandlers(record(&trace, "only", true))
	require.NoError(t, runner.Run(context.Background(), newContext(t, "/")))
	assert.Equal(t, []string{"only"}, trace)
}
