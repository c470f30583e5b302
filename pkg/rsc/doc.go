/*
Package rsc implements the client side of the server-rendered elements protocol.

A Runtime owns the process-wide pieces shared by every session of one runtime
instance: the prefetch store, the merge engine, the transport and the codecs. A Cache
is owned by one session and holds the single most recent fetch, the push callback into
the session's reactive state, and optional transport and decode hooks.

# Fetching

FetchElements returns a handle synchronously and resolves it in the background. A
repeated call with the same path and params returns the memoized handle; otherwise a
stored prefetch for the same URL is consumed (at most once) or a new request is issued.

	rt := rsc.NewRuntime(rsc.WithOrigin("http://localhost:8080"))
	cache := rsc.NewCache()
	tree, err := rt.FetchElements(ctx, "/", nil, cache).Wait(ctx)

# Remote calls

CallRemote invokes a server function by identifier. Any slots returned alongside the
function's value are merged into the session through the cache's push callback.
*/
package rsc
