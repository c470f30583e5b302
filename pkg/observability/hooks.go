package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/canopy/pkg/domain"
)

// LoggingHooks logs every lifecycle event at Debug, and failures at Warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	fetch := func(msg string) func(context.Context, *domain.FetchEvent) {
		return func(ctx context.Context, e *domain.FetchEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, msg, "path", e.Path, "url", e.URL, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, msg, "path", e.Path, "url", e.URL, "method", e.Method, "duration", e.Duration)
		}
	}
	return domain.LifecycleHooks{
		OnRequest:     fetch("rsc_request"),
		OnCacheHit:    fetch("rsc_cache_hit"),
		OnPrefetchHit: fetch("rsc_prefetch_hit"),
		OnDecodeError: fetch("rsc_decode_error"),
		OnRemoteCall: func(ctx context.Context, e *domain.RemoteCallEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "rsc_remote_call", "func_id", e.FuncID, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "rsc_remote_call", "func_id", e.FuncID, "method", e.Method, "duration", e.Duration)
		},
	}
}

// Combine returns hooks that invoke each of hooks in order.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	fetch := func(pick func(domain.LifecycleHooks) func(context.Context, *domain.FetchEvent)) func(context.Context, *domain.FetchEvent) {
		var fns []func(context.Context, *domain.FetchEvent)
		for _, h := range hooks {
			if fn := pick(h); fn != nil {
				fns = append(fns, fn)
			}
		}
		if len(fns) == 0 {
			return nil
		}
		return func(ctx context.Context, e *domain.FetchEvent) {
			for _, fn := range fns {
				fn(ctx, e)
			}
		}
	}

	var remote []func(context.Context, *domain.RemoteCallEvent)
	for _, h := range hooks {
		if h.OnRemoteCall != nil {
			remote = append(remote, h.OnRemoteCall)
		}
	}
	out := domain.LifecycleHooks{
		OnRequest:     fetch(func(h domain.LifecycleHooks) func(context.Context, *domain.FetchEvent) { return h.OnRequest }),
		OnCacheHit:    fetch(func(h domain.LifecycleHooks) func(context.Context, *domain.FetchEvent) { return h.OnCacheHit }),
		OnPrefetchHit: fetch(func(h domain.LifecycleHooks) func(context.Context, *domain.FetchEvent) { return h.OnPrefetchHit }),
		OnDecodeError: fetch(func(h domain.LifecycleHooks) func(context.Context, *domain.FetchEvent) { return h.OnDecodeError }),
	}
	if len(remote) > 0 {
		out.OnRemoteCall = func(ctx context.Context, e *domain.RemoteCallEvent) {
			for _, fn := range remote {
				fn(ctx, e)
			}
		}
	}
	return out
}
