/*
Package domain contains the shared vocabulary of the Canopy client runtime.

It defines the resolved shape of a server-rendered UI description (Elements), the
reserved side-channel key used by remote calls, the diff between two resolved trees,
observability hooks, and the error taxonomy surfaced to callers. The package is kept
free of I/O so every other layer can depend on it.

# Key Entities

  - Elements: A mapping from slot identifier to an opaque UI subtree value.
  - ElementsDiff: The keys added, removed or changed between two resolved trees.
  - LifecycleHooks: Callbacks fired by the fetch engine for observability.
  - ProtocolError / SlotError: Typed failures carrying their context.
*/
package domain
