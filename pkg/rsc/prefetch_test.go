package rsc_test

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/aretw0/canopy/pkg/rsc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefetch_ConsumedOnce(t *testing.T) {
	rt, srv := newTestRuntime(t)
	ctx := context.Background()

	require.NoError(t, rt.PrefetchElements(ctx, "/about", nil, rsc.NewCache()))
	aboutURL, err := rt.ElementsURL("/about")
	require.NoError(t, err)
	assert.True(t, rt.Prefetch().Has(aboutURL))

	got, err := rt.FetchElements(ctx, "/about", nil, rsc.NewCache()).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "about", got["App"])
	assert.Equal(t, 1, srv.Hits(aboutPath))
	assert.False(t, rt.Prefetch().Has(aboutURL), "consumed prefetch must be removed")

	// A different session has no memo and the prefetch is gone: fresh request.
	_, err = rt.FetchElements(ctx, "/about", nil, rsc.NewCache()).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Hits(aboutPath))
}

func TestPrefetch_DoesNotOverwriteInFlight(t *testing.T) {
	rt, srv := newTestRuntime(t)
	ctx := context.Background()
	cache := rsc.NewCache()

	require.NoError(t, rt.PrefetchElements(ctx, "/about", nil, cache))
	require.NoError(t, rt.PrefetchElements(ctx, "/about", nil, cache))
	assert.Equal(t, 1, rt.Prefetch().Len())

	_, err := rt.FetchElements(ctx, "/about", nil, cache).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits(aboutPath))
}

func TestPrefetch_ParamsMismatchIssuesNewRequest(t *testing.T) {
	rt, srv := newTestRuntime(t)
	ctx := context.Background()
	cache := rsc.NewCache()

	require.NoError(t, rt.PrefetchElements(ctx, "/about", url.Values{"tab": {"a"}}, cache))
	_, err := rt.FetchElements(ctx, "/about", url.Values{"tab": {"b"}}, cache).Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, rt.Prefetch().Len(), "mismatched prefetch is still removed")
	var queries []string
	for _, r := range srv.Requests() {
		queries = append(queries, r.Query)
	}
	assert.ElementsMatch(t, []string{"tab=a", "tab=b"}, queries)
}

func TestPrefetch_SameParamsReferenceIsReused(t *testing.T) {
	rt, srv := newTestRuntime(t)
	ctx := context.Background()
	cache := rsc.NewCache()
	params := url.Values{"tab": {"a"}}

	require.NoError(t, rt.PrefetchElements(ctx, "/about", params, cache))
	_, err := rt.FetchElements(ctx, "/about", params, cache).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits(aboutPath))
}

func TestPrefetch_SeededEntryServesAnyParams(t *testing.T) {
	rt, srv := newTestRuntime(t)
	ctx := context.Background()

	aboutURL, err := rt.ElementsURL("/about")
	require.NoError(t, err)
	seeded := rsc.ResponseOf(&http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(`{"App": "hydrated"}`)),
	}, nil)
	require.True(t, rt.Prefetch().Seed(aboutURL, seeded))
	assert.False(t, rt.Prefetch().Seed(aboutURL, seeded), "seed never overwrites")

	got, err := rt.FetchElements(ctx, "/about", url.Values{"any": {"thing"}}, rsc.NewCache()).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hydrated", got["App"])
	assert.Empty(t, srv.Requests())
}

func TestPrefetch_InvalidPath(t *testing.T) {
	rt, _ := newTestRuntime(t)
	assert.Error(t, rt.PrefetchElements(context.Background(), "bad_", nil, rsc.NewCache()))
}

func TestPrefetchStore_Clear(t *testing.T) {
	rt, _ := newTestRuntime(t)
	require.NoError(t, rt.PrefetchElements(context.Background(), "/", nil, rsc.NewCache()))
	require.NoError(t, rt.PrefetchElements(context.Background(), "/about", nil, rsc.NewCache()))

	rt.Prefetch().Clear()
	assert.Equal(t, 0, rt.Prefetch().Len())
}
