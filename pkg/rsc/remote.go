package rsc

import (
	"context"
	"net/http"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/elements"
)

// CallRemote invokes the server function funcID and returns its value.
//
// A single url.Values argument is sent as a GET query string; anything else is
// encoded into a multipart POST body. Slots returned alongside the value are merged
// into the session through cache's push callback without waiting for the merge.
// Nested calls requested by the decoded stream re-enter CallRemote with the same cache.
func (rt *Runtime) CallRemote(ctx context.Context, funcID string, args []any, cache *Cache) (any, error) {
	start := time.Now()
	url, err := rt.FuncURL(funcID)
	if err != nil {
		return nil, err
	}
	enhanceFetch, enhanceCreateData := cache.hooks()

	method := http.MethodPost
	build := func(ctx context.Context) (*http.Request, error) {
		return rt.postRequest(ctx, url, args)
	}
	if len(args) == 1 {
		if q, ok := queryParams(args[0]); ok {
			method = http.MethodGet
			build = func(ctx context.Context) (*http.Request, error) {
				return http.NewRequestWithContext(ctx, http.MethodGet, url+"?"+q.Encode(), nil)
			}
		}
	}

	resp := rt.fetchInternal(ctx, funcID, url, build, enhanceFetch)
	data := rt.createData(cache, enhanceCreateData)(ctx, resp)
	tree, err := data.Wait(ctx)

	if rt.hooks.OnRemoteCall != nil {
		rt.hooks.OnRemoteCall(ctx, &domain.RemoteCallEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRemoteCall},
			FuncID:    funcID,
			Method:    method,
			Duration:  time.Since(start),
			Err:       err,
		})
	}
	if err != nil {
		return nil, err
	}

	value := tree[domain.KeyValue]
	pushed := cache.Push(func(prev *elements.Future) *elements.Future {
		return rt.merger.Merge(prev, data)
	})
	if !pushed {
		rt.logger.Debug("Remote call result not pushed: no session attached", "func_id", funcID)
	}
	return value, nil
}
