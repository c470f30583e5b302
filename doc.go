/*
Package canopy is a client runtime for React Server Components style applications,
written for Go hosts that render or proxy server-driven element trees.

The server answers each page path with an Elements map: named slots holding
serialized element subtrees. Canopy fetches those maps, keeps them in a
per-session root, merges partial updates returned by navigation and by remote
server function calls, and lets the host resolve individual slots.

# Concept

A session root holds one Elements handle at a time. Navigation (Refetch) and
server functions (Call) produce new partial trees that are merged over the
current one, so slots the server did not resend keep their previous value.
Requests for the same path and params are served from a single-entry memo, and
prefetched responses are consumed by the next matching fetch.

# Usage

	client := canopy.New(canopy.WithOrigin("http://localhost:3000"))
	defer client.Close(ctx)

	root, err := client.Open(ctx, "", "/", nil)
	if err != nil {
		log.Fatal(err)
	}

	tree, err := root.Elements().Wait(ctx)
	...
	// Navigate; untouched slots are kept.
	tree, err = root.Refetch(ctx, "/about", nil).Wait(ctx)

	// Invoke a server function.
	value, err := root.CallRemote(ctx, "actions#submit", url.Values{"q": {"x"}})

# Packages

  - pkg/rsc: fetch engine, prefetch store and remote-call bridge.
  - pkg/session: session roots, slot resolution and the session manager.
  - pkg/middleware: request middleware runner and its configuration.
  - pkg/adapters/http: HTTP server exposing sessions, metrics and diff events.
  - pkg/adapters/redis, pkg/adapters/memory: snapshot stores and transports.
*/
package canopy
