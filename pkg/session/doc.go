/*
Package session implements the session root that keeps a UI tree in sync with the server.

A Root owns one reactive Cell holding the current Elements handle. It seeds the cell
with the initial fetch, registers the cell as the push target of its fetch cache, and
exposes Refetch, which always merges the new result over the current tree. Slots
resolve one identifier out of the current tree, blocking until it settles.

The Manager keeps many roots keyed by session ID, serializes access per session and
persists resolved trees to a ports.SnapshotStore so a session can be reopened
without a network round trip.
*/
package session
