/*
Package elements provides the asynchronous Elements handle and the merge engine.

A Future is returned synchronously by every fetch and resolves later to a
domain.Elements mapping or an error. Its pointer is its identity: the merge engine
memoizes results per exact (a, b) pair of handles, never by value.

	m := elements.NewMerger()
	next := m.Merge(current, update) // same handle for the same pair
	tree, err := next.Wait(ctx)
*/
package elements
