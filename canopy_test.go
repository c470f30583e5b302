package canopy_test

import (
	"context"
	"encoding/json"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/domain"
)

func newClient(t *testing.T, opts ...canopy.Option) *canopy.Client {
	t.Helper()
	transport, err := memory.NewFromElements(map[string]any{
		"/RSC/_/_.txt":              domain.Elements{"App": "home", "Nav": "menu"},
		"/RSC/_/about.txt":          domain.Elements{"App": "about"},
		"/RSC/F/actions/submit.txt": domain.Elements{"_value": 7, "Toast": "sent"},
	})
	require.NoError(t, err)

	base := []canopy.Option{
		canopy.WithOrigin("http://memory"),
		canopy.WithTransport(transport.Fetch),
	}
	client := canopy.New(append(base, opts...)...)
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client
}

func TestClient_Fetch(t *testing.T) {
	client := newClient(t)
	tree, err := client.Fetch(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Elements{"App": "home", "Nav": "menu"}, tree)
}

func TestClient_Call(t *testing.T) {
	client := newClient(t)
	value, err := client.Call(context.Background(), "actions#submit", url.Values{"q": {"x"}})
	require.NoError(t, err)
	assert.Equal(t, json.Number("7"), value)
}

func TestClient_SessionFlow(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	root, err := client.Open(ctx, "s1", "/", nil)
	require.NoError(t, err)

	_, err = root.Elements().Wait(ctx)
	require.NoError(t, err)

	tree, err := root.Refetch(ctx, "/about", nil).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Elements{"App": "about", "Nav": "menu"}, tree)

	value, err := root.CallRemote(ctx, "actions#submit", "payload")
	require.NoError(t, err)
	assert.Equal(t, json.Number("7"), value)

	same, err := client.Open(ctx, "s1", "/ignored", nil)
	require.NoError(t, err)
	assert.Same(t, root, same)
}

func TestClient_Hooks(t *testing.T) {
	var requests, hits atomic.Int32
	client := newClient(t, canopy.WithLifecycleHooks(domain.LifecycleHooks{
		OnRequest:  func(context.Context, *domain.FetchEvent) { requests.Add(1) },
		OnCacheHit: func(context.Context, *domain.FetchEvent) { hits.Add(1) },
	}))
	ctx := context.Background()

	root := client.NewRoot(ctx, "/", nil)
	defer root.Close()
	_, err := root.Elements().Wait(ctx)
	require.NoError(t, err)

	_, err = root.Refetch(ctx, "/", nil).Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, int32(0), hits.Load())
}
