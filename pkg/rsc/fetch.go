package rsc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/elements"
	"github.com/aretw0/canopy/pkg/ports"
)

// maxErrorBody bounds how much of a failed response is kept in a ProtocolError.
const maxErrorBody = 64 << 10

type requestBuilder func(ctx context.Context) (*http.Request, error)

// FetchElements returns the Elements handle for (path, params).
//
// The handle is returned immediately. If the cache already holds a fetch for the
// same path and params it is returned without network access; otherwise a matching
// prefetch is consumed or a new request issued, and the result becomes the cache's
// memo. Failures surface when the handle is awaited and are never retried.
//
// params may be nil (GET), url.Values (GET with query string) or any other value,
// which is sent as a multipart POST body ([]any spreads into one part per element).
func (rt *Runtime) FetchElements(ctx context.Context, path string, params any, cache *Cache) *elements.Future {
	cache.mu.Lock()
	if f, ok := cache.lookupLocked(path, params); ok {
		cache.mu.Unlock()
		rt.logger.Debug("Fetch served from cache", "path", path)
		rt.emit(ctx, rt.hooks.OnCacheHit, &domain.FetchEvent{Path: path}, domain.EventCacheHit)
		return f
	}

	url, err := rt.ElementsURL(path)
	if err != nil {
		cache.mu.Unlock()
		return elements.Rejected(err)
	}

	resp, prefetched := rt.prefetch.consume(url, params)
	enhanceFetch, enhanceCreateData := cache.enhanceFetch, cache.enhanceCreateData
	data, settle := elements.Pending()
	cache.entry = &cacheEntry{path: path, params: params, elements: data}
	cache.mu.Unlock()

	// Hooks and decoding run unlocked: nested remote calls re-enter the cache.
	// Shared handles outlive the caller's request.
	bg := context.WithoutCancel(ctx)
	if prefetched {
		rt.logger.Debug("Fetch consumed prefetch", "path", path, "url", url)
		rt.emit(ctx, rt.hooks.OnPrefetchHit, &domain.FetchEvent{Path: path, URL: url}, domain.EventPrefetchHit)
	} else {
		resp = rt.fetchInternal(bg, path, url, rt.elementsRequest(url, params), enhanceFetch)
	}

	decoded := rt.createData(cache, enhanceCreateData)(bg, resp)
	go func() {
		settle(decoded.Wait(bg))
	}()
	return data
}

// PrefetchElements issues the request for (path, params) ahead of need and stores
// it for FetchElements to consume. An existing prefetch for the same URL is kept.
// Only a path that cannot be encoded returns an error.
func (rt *Runtime) PrefetchElements(ctx context.Context, path string, params any, cache *Cache) error {
	url, err := rt.ElementsURL(path)
	if err != nil {
		return err
	}
	enhanceFetch, _ := cache.hooks()
	bg := context.WithoutCancel(ctx)

	started := rt.prefetch.start(url, params, func() *Response {
		return rt.fetchInternal(bg, path, url, rt.elementsRequest(url, params), enhanceFetch)
	})
	if started {
		rt.logger.Debug("Prefetch started", "path", path, "url", url)
	}
	return nil
}

func (rt *Runtime) elementsRequest(url string, params any) requestBuilder {
	return func(ctx context.Context) (*http.Request, error) {
		if params == nil {
			return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		}
		if q, ok := queryParams(params); ok {
			return http.NewRequestWithContext(ctx, http.MethodGet, url+"?"+q.Encode(), nil)
		}
		args, ok := params.([]any)
		if !ok {
			args = []any{params}
		}
		return rt.postRequest(ctx, url, args)
	}
}

func (rt *Runtime) postRequest(ctx context.Context, url string, args []any) (*http.Request, error) {
	body, contentType, err := rt.encoder.Encode(args)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return req, nil
}

// fetchInternal issues the request in the background through the (possibly enhanced) transport.
func (rt *Runtime) fetchInternal(ctx context.Context, label, url string, build requestBuilder, enhance EnhanceFetch) *Response {
	resp := newResponse()
	fetch := rt.fetch
	if enhance != nil {
		fetch = enhance(fetch)
	}

	go func() {
		start := time.Now()
		req, err := build(ctx)
		if err != nil {
			resp.settle(nil, err)
			return
		}
		r, err := fetch(req)
		rt.emit(ctx, rt.hooks.OnRequest, &domain.FetchEvent{
			Path:     label,
			URL:      url,
			Method:   req.Method,
			Duration: time.Since(start),
			Err:      err,
		}, domain.EventRequest)
		if err != nil {
			rt.logger.Warn("Request failed", "url", url, "err", err)
		}
		resp.settle(r, err)
	}()
	return resp
}

// createData returns the decode step for cache, wrapped by enhance when set.
func (rt *Runtime) createData(cache *Cache, enhance EnhanceCreateData) CreateData {
	base := func(ctx context.Context, resp *Response) *elements.Future {
		return elements.Go(ctx, func(ctx context.Context) (domain.Elements, error) {
			r, err := resp.Wait(ctx)
			if err != nil {
				return nil, err
			}
			defer r.Body.Close()

			if err := checkStatus(r); err != nil {
				return nil, err
			}

			tree, err := rt.decoder.Decode(ctx, r.Body, ports.DecodeOptions{
				OnRemoteCall: func(ctx context.Context, funcID string, args []any) (any, error) {
					return rt.CallRemote(ctx, funcID, args, cache)
				},
			})
			if err != nil {
				event := &domain.FetchEvent{Err: err}
				if r.Request != nil {
					event.URL = r.Request.URL.String()
				}
				rt.emit(ctx, rt.hooks.OnDecodeError, event, domain.EventDecodeError)
				return nil, err
			}
			return tree, nil
		})
	}
	if enhance != nil {
		return enhance(base)
	}
	return base
}

// checkStatus turns a non-2xx response into a ProtocolError carrying the body text.
func checkStatus(r *http.Response) error {
	if r.StatusCode >= 200 && r.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(r.Body, maxErrorBody))
	return &domain.ProtocolError{
		StatusCode: r.StatusCode,
		Body:       string(body),
	}
}

func (rt *Runtime) emit(ctx context.Context, hook func(context.Context, *domain.FetchEvent), e *domain.FetchEvent, typ domain.EventType) {
	if hook == nil {
		return
	}
	e.Type = typ
	e.Timestamp = time.Now()
	hook(ctx, e)
}
