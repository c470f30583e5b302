package rsc_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/canopy/internal/testutils"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/elements"
	"github.com/aretw0/canopy/pkg/rsc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rootPath  = "/RSC/_/_.txt"
	aboutPath = "/RSC/_/about.txt"
)

func newTestRuntime(t *testing.T, opts ...rsc.Option) (*rsc.Runtime, *testutils.RSCServer) {
	t.Helper()
	srv := testutils.NewRSCServer(t)
	srv.Handle(rootPath, http.StatusOK, `{"App": "home"}`)
	srv.Handle(aboutPath, http.StatusOK, `{"App": "about"}`)
	rt := rsc.NewRuntime(append([]rsc.Option{rsc.WithOrigin(srv.URL)}, opts...)...)
	t.Cleanup(rt.Close)
	return rt, srv
}

func TestFetchElements_ExampleScenario(t *testing.T) {
	rt, srv := newTestRuntime(t)
	ctx := context.Background()

	got, err := rt.FetchElements(ctx, "/", nil, rsc.NewCache()).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Elements{"App": "home"}, got)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, rootPath, reqs[0].Path)
}

func TestFetchElements_MemoizesSameArgs(t *testing.T) {
	rt, srv := newTestRuntime(t)
	ctx := context.Background()
	cache := rsc.NewCache()
	params := url.Values{"q": {"1"}}

	first := rt.FetchElements(ctx, "/", params, cache)
	second := rt.FetchElements(ctx, "/", params, cache)

	assert.Same(t, first, second)
	_, err := second.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits(rootPath))
}

func TestFetchElements_ConcurrentCallersIssueOneRequest(t *testing.T) {
	rt, srv := newTestRuntime(t)
	ctx := context.Background()
	cache := rsc.NewCache()

	var wg sync.WaitGroup
	handles := make([]*elements.Future, 8)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = rt.FetchElements(ctx, "/", nil, cache)
		}(i)
	}
	wg.Wait()

	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
	_, err := handles[0].Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits(rootPath))
}

func TestFetchElements_NewArgsReplaceMemoImmediately(t *testing.T) {
	rt, srv := newTestRuntime(t)
	ctx := context.Background()
	cache := rsc.NewCache()

	home := rt.FetchElements(ctx, "/", nil, cache)
	about := rt.FetchElements(ctx, "/about", nil, cache)

	_, _, memo, ok := cache.Entry()
	require.True(t, ok)
	assert.Same(t, about, memo)

	// The memo only holds the latest fetch; going back is a new request.
	again := rt.FetchElements(ctx, "/", nil, cache)
	assert.NotSame(t, home, again)
	_, err := again.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Hits(rootPath))
}

func TestFetchElements_ClearEntryForcesNetwork(t *testing.T) {
	rt, srv := newTestRuntime(t)
	ctx := context.Background()
	cache := rsc.NewCache()

	_, err := rt.FetchElements(ctx, "/", nil, cache).Wait(ctx)
	require.NoError(t, err)

	cache.ClearEntry()
	_, err = rt.FetchElements(ctx, "/", nil, cache).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Hits(rootPath))
}

func TestFetchElements_ParamsEncoding(t *testing.T) {
	rt, srv := newTestRuntime(t)
	ctx := context.Background()

	_, err := rt.FetchElements(ctx, "/", url.Values{"page": {"2"}}, rsc.NewCache()).Wait(ctx)
	require.NoError(t, err)
	_, err = rt.FetchElements(ctx, "/", map[string]any{"page": 2}, rsc.NewCache()).Wait(ctx)
	require.NoError(t, err)

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, "page=2", reqs[0].Query)
	assert.Equal(t, http.MethodPost, reqs[1].Method)
	assert.True(t, strings.HasPrefix(reqs[1].ContentType, "multipart/form-data"))
	assert.Contains(t, string(reqs[1].Body), `{"page":2}`)
}

func TestFetchElements_ProtocolFailure(t *testing.T) {
	rt, srv := newTestRuntime(t)
	srv.Handle("/RSC/_/broken.txt", http.StatusInternalServerError, "render crashed")
	ctx := context.Background()
	cache := rsc.NewCache()

	handle := rt.FetchElements(ctx, "/broken", nil, cache)
	_, err := handle.Wait(ctx)

	var protoErr *domain.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, http.StatusInternalServerError, protoErr.StatusCode)
	assert.Equal(t, "render crashed", protoErr.Body)

	// The memoized handle reproduces the failure instead of retrying.
	_, err = rt.FetchElements(ctx, "/broken", nil, cache).Wait(ctx)
	assert.ErrorAs(t, err, &protoErr)
	assert.Equal(t, 1, srv.Hits("/RSC/_/broken.txt"))
}

func TestFetchElements_NetworkFailure(t *testing.T) {
	boom := errors.New("connection refused")
	rt := rsc.NewRuntime(rsc.WithTransport(func(*http.Request) (*http.Response, error) {
		return nil, boom
	}))

	_, err := rt.FetchElements(context.Background(), "/", nil, rsc.NewCache()).Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestFetchElements_DecodeFailure(t *testing.T) {
	rt, srv := newTestRuntime(t)
	srv.Handle("/RSC/_/garbled.txt", http.StatusOK, `{"App":`)

	_, err := rt.FetchElements(context.Background(), "/garbled", nil, rsc.NewCache()).Wait(context.Background())
	assert.Error(t, err)
}

func TestFetchElements_InvalidPathRejects(t *testing.T) {
	rt, srv := newTestRuntime(t)
	cache := rsc.NewCache()

	_, err := rt.FetchElements(context.Background(), "_private", nil, cache).Wait(context.Background())
	assert.Error(t, err)
	_, _, _, ok := cache.Entry()
	assert.False(t, ok, "nothing is cached for a path that cannot be encoded")
	assert.Empty(t, srv.Requests())
}

func TestFetchElements_CallerCancellationDoesNotAbortSharedFetch(t *testing.T) {
	rt, srv := newTestRuntime(t)
	release := make(chan struct{})
	srv.HandleFunc("/RSC/_/slow.txt", func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"App": "slow"}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cache := rsc.NewCache()
	handle := rt.FetchElements(ctx, "/slow", nil, cache)
	cancel()
	close(release)

	got, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "slow", got["App"])
}

func TestCacheHooks_EnhanceFetchAndCreateData(t *testing.T) {
	rt, srv := newTestRuntime(t)
	ctx := context.Background()

	enhanceFetch := func(next rsc.FetchFunc) rsc.FetchFunc {
		return func(req *http.Request) (*http.Response, error) {
			req.Header.Set("X-Session", "abc")
			return next(req)
		}
	}
	enhanceCreateData := func(next rsc.CreateData) rsc.CreateData {
		return func(ctx context.Context, resp *rsc.Response) *elements.Future {
			inner := next(ctx, resp)
			return elements.Go(ctx, func(ctx context.Context) (domain.Elements, error) {
				tree, err := inner.Wait(ctx)
				if err != nil {
					return nil, err
				}
				out := tree.Clone()
				out["Decorated"] = true
				return out, nil
			})
		}
	}
	cache := rsc.NewCache(rsc.WithEnhanceFetch(enhanceFetch), rsc.WithEnhanceCreateData(enhanceCreateData))

	got, err := rt.FetchElements(ctx, "/", nil, cache).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, got["Decorated"])

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "abc", reqs[0].Header.Get("X-Session"))
}

func TestLifecycleHooks(t *testing.T) {
	var mu sync.Mutex
	seen := map[domain.EventType]int{}
	record := func(_ context.Context, e *domain.FetchEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen[e.Type]++
	}
	rt, _ := newTestRuntime(t, rsc.WithLifecycleHooks(domain.LifecycleHooks{
		OnRequest:     record,
		OnCacheHit:    record,
		OnPrefetchHit: record,
	}))
	ctx := context.Background()
	cache := rsc.NewCache()

	require.NoError(t, rt.PrefetchElements(ctx, "/about", nil, cache))
	_, err := rt.FetchElements(ctx, "/about", nil, cache).Wait(ctx)
	require.NoError(t, err)
	_, err = rt.FetchElements(ctx, "/about", nil, cache).Wait(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[domain.EventRequest] == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, seen[domain.EventPrefetchHit])
	assert.Equal(t, 1, seen[domain.EventCacheHit])
}
